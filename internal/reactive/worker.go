// Package reactive implements the Reactive Worker (C3) and Approval
// Protocol (C4): it consumes normalized chat updates off the bus,
// persists them, drives the per-job classify → [approval] → execute →
// respond state machine, and answers approval callbacks — all grounded
// on original_source/app/workers/reactive.py, app/workers/handlers.py,
// and app/tools/approval.py.
package reactive

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/budget"
	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/notify"
	"github.com/nextlevelbuilder/goclaw/internal/prompts"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/storage"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

const (
	defaultMessageHistoryLimit = 30
	defaultPollIntervalMin     = 50 * time.Millisecond
	defaultPollIntervalMax     = 200 * time.Millisecond
	defaultApprovalTimeout     = time.Hour
	approvalPollInterval       = 2 * time.Second
	maxMessageChars            = 4096
)

// Worker owns both long-lived loops described by spec §4.2/§4.3: the
// ingestion loop (drains bus.MessageRouter's inbound queue) and the job
// loop (leases and drives reactive_jobs). They share one struct because
// ingestion is what wakes the job loop early.
type Worker struct {
	threads   store.ThreadStore
	messages  store.MessageStore
	artifacts store.ArtifactStore
	jobs      store.JobStore
	approvals store.ApprovalStore
	tasks     store.TaskStore

	storage storage.Store
	budget  *budget.Tracker
	router  bus.MessageRouter
	notify  *notify.Notifier

	classifier providers.Provider
	executor   providers.Provider
	prompts    prompts.Set

	operatorChatID []string

	historyLimit     int
	pollMin, pollMax time.Duration
	approvalTimeout  time.Duration

	wake chan struct{}
}

// Deps bundles everything Worker needs from the composition root.
type Deps struct {
	Threads   store.ThreadStore
	Messages  store.MessageStore
	Artifacts store.ArtifactStore
	Jobs      store.JobStore
	Approvals store.ApprovalStore
	Tasks     store.TaskStore

	Storage storage.Store
	Budget  *budget.Tracker
	Router  bus.MessageRouter
	Notify  *notify.Notifier

	Classifier providers.Provider
	Executor   providers.Provider
	Prompts    prompts.Set

	// OperatorChatID is the configured set of master chat ids (spec §6.6).
	// A task-intent message from one of these threads is the "master"
	// task-assignment path; everything else is a regular conversational
	// reply with no persisted Task.
	OperatorChatID []string

	Reactive config.ReactiveConfig
	Approval config.ApprovalConfig
}

func New(d Deps) *Worker {
	historyLimit := d.Reactive.MessageHistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultMessageHistoryLimit
	}
	pollMin := defaultPollIntervalMin
	if d.Reactive.PollIntervalMinMs > 0 {
		pollMin = time.Duration(d.Reactive.PollIntervalMinMs) * time.Millisecond
	}
	pollMax := defaultPollIntervalMax
	if d.Reactive.PollIntervalMaxMs > 0 {
		pollMax = time.Duration(d.Reactive.PollIntervalMaxMs) * time.Millisecond
	}
	approvalTimeout := defaultApprovalTimeout
	if d.Approval.TimeoutSeconds > 0 {
		approvalTimeout = time.Duration(d.Approval.TimeoutSeconds) * time.Second
	}

	return &Worker{
		threads:         d.Threads,
		messages:        d.Messages,
		artifacts:       d.Artifacts,
		jobs:            d.Jobs,
		approvals:       d.Approvals,
		tasks:           d.Tasks,
		storage:         d.Storage,
		budget:          d.Budget,
		router:          d.Router,
		notify:          d.Notify,
		classifier:      d.Classifier,
		executor:        d.Executor,
		prompts:         d.Prompts,
		operatorChatID:  d.OperatorChatID,
		historyLimit:    historyLimit,
		pollMin:         pollMin,
		pollMax:         pollMax,
		approvalTimeout: approvalTimeout,
		wake:            make(chan struct{}, 1),
	}
}

// Run starts the ingestion and job loops and blocks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		w.ingestLoop(ctx)
	}()
	go func() {
		defer wg.Done()
		w.jobLoop(ctx)
	}()

	wg.Wait()
}

// signalWake short-circuits the job loop's idle sleep (spec §4.3 "A
// signal from Ingestion short-circuits the sleep").
func (w *Worker) signalWake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) jobLoop(ctx context.Context) {
	slog.Info("reactive worker started", "poll_min", w.pollMin, "poll_max", w.pollMax)
	interval := w.pollMin

	for {
		select {
		case <-ctx.Done():
			slog.Info("reactive worker stopped")
			return
		default:
		}

		job, err := w.jobs.LeaseOldestQueued(ctx)
		if err != nil {
			if err == store.ErrNotFound {
				interval = w.pollMax
				select {
				case <-ctx.Done():
					return
				case <-w.wake:
					interval = w.pollMin
				case <-time.After(interval):
				}
				continue
			}
			slog.Error("reactive worker: lease failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		interval = w.pollMin
		w.processJob(ctx, job)
	}
}
