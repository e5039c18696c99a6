// Package media implements the Media Processor (C5): an independent
// background loop that turns pending message attachments into usable
// conversation context by calling out to speech-to-text, vision, and
// document-extraction backends (spec §4.5).
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/storage"
	"github.com/nextlevelbuilder/goclaw/internal/store"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchLimit   = 10
)

// Processor drains store.Artifact rows left pending by ingestion and
// resolves them against configured HTTP backends.
type Processor struct {
	artifacts store.ArtifactStore
	blobs     storage.Store
	cfg       config.MediaConfig
	interval  time.Duration
}

func New(artifacts store.ArtifactStore, blobs storage.Store, cfg config.MediaConfig) *Processor {
	interval := defaultPollInterval
	if cfg.PollIntervalMs > 0 {
		interval = time.Duration(cfg.PollIntervalMs) * time.Millisecond
	}
	return &Processor{artifacts: artifacts, blobs: blobs, cfg: cfg, interval: interval}
}

// Run ticks every interval until ctx is canceled, each tick draining up
// to defaultBatchLimit artifacts (spec §4.5 "Scheduling").
func (p *Processor) Run(ctx context.Context) {
	slog.Info("media processor started", "interval", p.interval)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Processor) tick(ctx context.Context) {
	artifacts, err := p.artifacts.ListPendingForProcessing(ctx, defaultBatchLimit)
	if err != nil {
		slog.Error("media: list pending failed", "error", err)
		return
	}
	for _, a := range artifacts {
		p.processOne(ctx, a)
	}
}

func (p *Processor) processOne(ctx context.Context, a *store.Artifact) {
	if !p.backendConfigured(a.Kind) {
		// No backend bound for this kind yet; leave it pending rather than
		// burning one of its three attempts on a guaranteed failure.
		return
	}

	if err := p.artifacts.MarkProcessing(ctx, a.ID); err != nil {
		slog.Error("media: mark processing failed", "artifact_id", a.ID, "error", err)
		return
	}

	var blob []byte
	var err error
	if a.URI != "" {
		blob, err = p.blobs.Get(ctx, a.URI)
		if err != nil {
			p.fail(ctx, a.ID, fmt.Sprintf("fetch blob: %v", err))
			return
		}
	}

	var output json.RawMessage
	switch a.Kind {
	case store.ArtifactVoiceTranscript:
		output, err = p.transcribe(ctx, blob)
	case store.ArtifactImageJSON:
		output, err = p.analyzeImage(ctx, blob)
	case store.ArtifactOCRText:
		output, err = p.extractDocument(ctx, blob)
	default:
		err = fmt.Errorf("no media backend for artifact kind %q", a.Kind)
	}
	if err != nil {
		p.fail(ctx, a.ID, err.Error())
		return
	}

	if err := p.artifacts.MarkDone(ctx, a.ID, output); err != nil {
		slog.Error("media: mark done failed", "artifact_id", a.ID, "error", err)
	}
}

func (p *Processor) backendConfigured(kind store.ArtifactKind) bool {
	switch kind {
	case store.ArtifactVoiceTranscript:
		return p.cfg.SpeechToText.URL != ""
	case store.ArtifactImageJSON:
		return p.cfg.Vision.URL != ""
	case store.ArtifactOCRText:
		return p.cfg.DocumentExtraction.URL != ""
	default:
		return false
	}
}

func (p *Processor) fail(ctx context.Context, id uuid.UUID, msg string) {
	slog.Warn("media: processing attempt failed", "artifact_id", id, "error", msg)
	if err := p.artifacts.MarkFailed(ctx, id, msg); err != nil {
		slog.Error("media: mark failed failed", "artifact_id", id, "error", err)
	}
}
