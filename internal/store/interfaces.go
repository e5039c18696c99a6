package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ThreadStore is the typed repository for Thread rows (C1, ).
type ThreadStore interface {
	GetOrCreate(ctx context.Context, platform, externalChatID string) (*Thread, error)
	Get(ctx context.Context, id uuid.UUID) (*Thread, error)
	Touch(ctx context.Context, id uuid.UUID) error
}

// MessageStore is the typed repository for Message rows.
type MessageStore interface {
	Insert(ctx context.Context, msg *Message) error
	Get(ctx context.Context, id uuid.UUID) (*Message, error)
	RecentWindow(ctx context.Context, threadID uuid.UUID, limit int) ([]*Message, error)
}

// ArtifactStore is the typed repository for Artifact rows.
type ArtifactStore interface {
	Insert(ctx context.Context, a *Artifact) error
	Get(ctx context.Context, id uuid.UUID) (*Artifact, error)
	ListForMessage(ctx context.Context, messageID uuid.UUID) ([]*Artifact, error)
	ListPendingForProcessing(ctx context.Context, limit int) ([]*Artifact, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkDone(ctx context.Context, id uuid.UUID, content []byte) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// JobStore is the typed repository for ReactiveJob rows.
type JobStore interface {
	Enqueue(ctx context.Context, job *ReactiveJob) error
	LeaseOldestQueued(ctx context.Context) (*ReactiveJob, error)
	SetMode(ctx context.Context, id uuid.UUID, mode JobMode) error
	Finish(ctx context.Context, id uuid.UUID, status JobStatus) error
	Get(ctx context.Context, id uuid.UUID) (*ReactiveJob, error)
	CancelPendingForThread(ctx context.Context, threadID uuid.UUID) error
	CountByStatus(ctx context.Context) (map[JobStatus]int, error)
	RecoverStaleRunning(ctx context.Context) (int, error)
}

// ApprovalStore is the typed repository for Approval rows.
type ApprovalStore interface {
	Create(ctx context.Context, a *Approval) error
	Get(ctx context.Context, id uuid.UUID) (*Approval, error)
	GetByJob(ctx context.Context, jobID uuid.UUID) (*Approval, error)
	SetPrompt(ctx context.Context, id uuid.UUID, chatID, messageID string) error
	Resolve(ctx context.Context, id uuid.UUID, status ApprovalStatus) (bool, error)
	SupersedePendingForThread(ctx context.Context, threadID uuid.UUID) (int, error)
}

// TokenLedgerStore is the typed repository for TokenLedger rows.
type TokenLedgerStore interface {
	Log(ctx context.Context, entry *TokenLedgerEntry) error
	DailyUsage(ctx context.Context, scope TokenScope, day time.Time) (int, error)
	TodayByScope(ctx context.Context) (map[TokenScope]int, error)
}

// TaskStore is the typed repository for Task rows.
type TaskStore interface {
	Create(ctx context.Context, t *Task) error
	Get(ctx context.Context, id uuid.UUID) (*Task, error)
	Update(ctx context.Context, t *Task) error
	NextRootCandidate(ctx context.Context) (*Task, error)
	PendingSubtasks(ctx context.Context, parentID uuid.UUID) ([]*Task, error)
	CountPendingOrRunningChildren(ctx context.Context, parentID uuid.UUID) (int, error)
	ListPending(ctx context.Context, limit int) ([]*Task, error)
}

// GoalStore is the typed repository for Goal rows.
type GoalStore interface {
	Create(ctx context.Context, g *Goal) error
	Get(ctx context.Context, id uuid.UUID) (*Goal, error)
	Update(ctx context.Context, g *Goal) error
	IncrementCounters(ctx context.Context, id uuid.UUID, completedDelta, failedDelta int) error
	NeedingAttention(ctx context.Context) ([]*Goal, error)
}

// DeploymentStore is the typed repository for Deployment rows.
type DeploymentStore interface {
	Create(ctx context.Context, d *Deployment) error
	SetStatus(ctx context.Context, id uuid.UUID, status DeploymentStatus, report []byte) error
}

// MemoryStore is the typed repository for MemoryEntry rows (C10).
type MemoryStore interface {
	Append(ctx context.Context, e *MemoryEntry) error
	Recent(ctx context.Context, kind MemoryEntryKind, limit int) ([]*MemoryEntry, error)
}

// Stores is the composition-root container wiring every persistence
// concern to one concrete backend. Built once at startup; handed to
// every other actor by value (§9 "global mutable state").
type Stores struct {
	Threads ThreadStore
	Messages MessageStore
	Artifacts ArtifactStore
	Jobs JobStore
	Approvals ApprovalStore
	TokenLedger TokenLedgerStore
	Tasks TaskStore
	Goals GoalStore
	Deployments DeploymentStore
	Memory MemoryStore

	// DB is the underlying pooled connection, exposed for health probes
	// (C12's GET /health) that need a raw ping rather than a repository
	// call.
	DB *sql.DB
}

// StoreConfig configures the Postgres-backed Stores implementation.
type StoreConfig struct {
	PostgresDSN string
	MaxOpenConn int
	MaxIdleConn int
}
