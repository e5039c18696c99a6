package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nextlevelbuilder/goclaw/internal/budget"
	"github.com/nextlevelbuilder/goclaw/internal/bus"
	"github.com/nextlevelbuilder/goclaw/internal/channels/telegram"
	"github.com/nextlevelbuilder/goclaw/internal/config"
	"github.com/nextlevelbuilder/goclaw/internal/httpapi"
	"github.com/nextlevelbuilder/goclaw/internal/media"
	"github.com/nextlevelbuilder/goclaw/internal/memory"
	"github.com/nextlevelbuilder/goclaw/internal/notify"
	"github.com/nextlevelbuilder/goclaw/internal/proactive"
	"github.com/nextlevelbuilder/goclaw/internal/prompts"
	"github.com/nextlevelbuilder/goclaw/internal/providers"
	"github.com/nextlevelbuilder/goclaw/internal/providers/subprocess"
	"github.com/nextlevelbuilder/goclaw/internal/reactive"
	"github.com/nextlevelbuilder/goclaw/internal/storage"
	"github.com/nextlevelbuilder/goclaw/internal/storage/local"
	"github.com/nextlevelbuilder/goclaw/internal/storage/s3"
	"github.com/nextlevelbuilder/goclaw/internal/store"
	"github.com/nextlevelbuilder/goclaw/internal/store/pg"
	"github.com/nextlevelbuilder/goclaw/internal/tasks"
	"github.com/nextlevelbuilder/goclaw/internal/telemetry"
)

// runGateway is the composition root (spec §9 "global mutable state" —
// one place owns the scheduler, media processor, DB pool, and chat
// transport; every subsystem below receives its dependencies by value).
func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		fmt.Println("No configuration found. Run 'goclaw onboard' first, then set the required environment variables.")
		os.Exit(1)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.Providers.HasAnyProvider() {
		slog.Error("no LLM provider credentials configured; set at least one provider API key env var")
		os.Exit(1)
	}
	if cfg.Telegram.Token == "" {
		slog.Error("GOCLAW_TELEGRAM_TOKEN is required")
		os.Exit(1)
	}
	if cfg.Database.PostgresDSN == "" {
		slog.Error("GOCLAW_POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without tracing", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	// --- Persistence (C1) ---
	stores, err := pg.NewPGStores(store.StoreConfig{
		PostgresDSN: cfg.Database.PostgresDSN,
		MaxOpenConn: cfg.Database.MaxOpenConn,
		MaxIdleConn: cfg.Database.MaxIdleConn,
	})
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}

	// Recovery on boot (spec §5): any job still "running" across a crash
	// can never be trusted to still be in flight.
	if n, err := stores.Jobs.RecoverStaleRunning(ctx); err != nil {
		slog.Warn("recovery: failed to mark stale running jobs failed", "error", err)
	} else if n > 0 {
		slog.Warn("recovery: marked stale running jobs failed", "count", n)
	}

	// --- Blob storage (§6.3) ---
	var blobs storage.Store
	switch cfg.Storage.Driver {
	case "s3":
		blobs, err = s3.New(ctx, cfg.Storage.S3)
		if err != nil {
			slog.Error("failed to configure s3 storage", "error", err)
			os.Exit(1)
		}
	default:
		blobs, err = local.New(config.ExpandHome(cfg.Storage.Local.BaseDir))
		if err != nil {
			slog.Error("failed to configure local storage", "error", err)
			os.Exit(1)
		}
	}

	// --- LLM providers (§6.4) ---
	registry, err := providers.NewRegistry(cfg.Providers)
	if err != nil {
		slog.Error("failed to build provider registry", "error", err)
		os.Exit(1)
	}
	taskWorker := registry.Executor
	if cfg.Providers.Subprocess.Command != "" {
		if sp, spErr := subprocess.New(cfg.Providers.Subprocess); spErr != nil {
			slog.Warn("subprocess provider misconfigured, task execution stays on the executor role", "error", spErr)
		} else {
			taskWorker = sp
		}
	}

	promptSet, err := prompts.Load(os.Getenv("GOCLAW_PROMPTS_FILE"))
	if err != nil {
		slog.Error("failed to load prompts", "error", err)
		os.Exit(1)
	}

	// --- Shared infra ---
	msgBus := bus.New(256)
	budgetTracker := budget.New(stores.TokenLedger, cfg.Budget)
	memStore := memory.New(stores.Memory)
	notifier := notify.New(msgBus, cfg.Gateway.OperatorChatID)

	// --- Chat transport (§6.1/§6.2) ---
	tgChannel, err := telegram.New(cfg.Telegram, msgBus)
	if err != nil {
		slog.Error("failed to create telegram channel", "error", err)
		os.Exit(1)
	}

	// --- Reactive Worker & Approval Protocol (C2/C3/C4) ---
	reactiveWorker := reactive.New(reactive.Deps{
		Threads:        stores.Threads,
		Messages:       stores.Messages,
		Artifacts:      stores.Artifacts,
		Jobs:           stores.Jobs,
		Approvals:      stores.Approvals,
		Tasks:          stores.Tasks,
		Storage:        blobs,
		Budget:         budgetTracker,
		Router:         msgBus,
		Notify:         notifier,
		Classifier:     registry.Classifier,
		Executor:       registry.Executor,
		Prompts:        promptSet,
		OperatorChatID: cfg.Gateway.OperatorChatID,
		Reactive:       cfg.Reactive,
		Approval:       cfg.Approval,
	})

	// --- Media Processor (C5) ---
	mediaProcessor := media.New(stores.Artifacts, blobs, cfg.Media)

	// --- Task/Goal Executor (C6) ---
	var restartRequested bool
	taskExecutor := tasks.New(tasks.Deps{
		Tasks:    stores.Tasks,
		Goals:    stores.Goals,
		Budget:   budgetTracker,
		Notify:   notifier,
		Worker:   taskWorker,
		Verifier: registry.Verifier,
		Prompts:  promptSet,
		Config:   cfg.Tasks,
		RequestRestart: func() {
			restartRequested = true
			notifier.Notifyf(ctx, "🔄 Self-modification detected\n\nRestarting in %s to pick up the new code.", "5s")
			time.AfterFunc(5*time.Second, stop)
		},
	})

	// --- Proactive Scheduler, Decision Engine, Action Handlers (C7/C8/C9) ---
	actionHandlers := proactive.NewHandlers(proactive.HandlersDeps{
		Tasks:           stores.Tasks,
		Threads:         stores.Threads,
		Approvals:       stores.Approvals,
		Router:          msgBus,
		OperatorChatID:  cfg.Gateway.OperatorChatID,
		ApprovalTimeout: time.Duration(cfg.Approval.TimeoutSeconds) * time.Second,
		Platform:        "telegram",
	})
	scheduler := proactive.New(proactive.Deps{
		Executor: taskExecutor,
		Tasks:    stores.Tasks,
		Goals:    stores.Goals,
		Budget:   budgetTracker,
		Memory:   memStore,
		Notify:   notifier,
		Handlers: actionHandlers,
		Decider:  registry.Executor,
		Prompts:  promptSet,
		Config:   cfg.Proactive,
	})

	// --- HTTP Surface (C12) ---
	server := httpapi.New(httpapi.Deps{
		Telegram:      tgChannel,
		DB:            stores.DB,
		Jobs:          stores.Jobs,
		Ledger:        stores.TokenLedger,
		Budget:        budgetTracker,
		Host:          cfg.Gateway.Host,
		Port:          cfg.Gateway.Port,
		WebhookSecret: cfg.Gateway.WebhookSecret,
	})

	// --- Config hot-reload ---
	watcher := config.NewWatcher(cfgPath, cfg, slog.Default())
	if err := watcher.Start(ctx); err != nil {
		slog.Warn("config watcher failed to start", "error", err)
	}

	// --- Run everything ---
	done := make(chan struct{})
	go func() { reactiveWorker.Run(ctx); done <- struct{}{} }()
	go func() { mediaProcessor.Run(ctx); done <- struct{}{} }()
	go func() { scheduler.Run(ctx); done <- struct{}{} }()
	go func() { tgChannel.RunOutbound(ctx); done <- struct{}{} }()

	if cfg.Telegram.Mode == "polling" {
		if err := tgChannel.StartPolling(ctx); err != nil {
			slog.Error("failed to start telegram polling", "error", err)
			os.Exit(1)
		}
		defer tgChannel.StopPolling()
	}

	go func() {
		if err := server.Run(ctx); err != nil {
			slog.Error("http surface exited", "error", err)
		}
		done <- struct{}{}
	}()

	<-ctx.Done()
	slog.Info("shutdown signal received, draining in-flight work")
	for i := 0; i < 5; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
		}
	}
	if restartRequested {
		slog.Info("exiting for self-modification restart")
	}
	slog.Info("goclaw stopped")
}
