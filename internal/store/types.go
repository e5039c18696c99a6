package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Closed enumerations. Dispatch on these is always a switch, never
// runtime polymorphism — see DESIGN.md "tagged variants".

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type ArtifactKind string

const (
	ArtifactVoiceTranscript ArtifactKind = "voice_transcript"
	ArtifactImageJSON       ArtifactKind = "image_json"
	ArtifactOCRText         ArtifactKind = "ocr_text"
	ArtifactFileMeta        ArtifactKind = "file_meta"
	ArtifactToolResult      ArtifactKind = "tool_result"
)

type ArtifactStatus string

const (
	ArtifactPending    ArtifactStatus = "pending"
	ArtifactProcessing ArtifactStatus = "processing"
	ArtifactDone       ArtifactStatus = "done"
	ArtifactFailed     ArtifactStatus = "failed"
)

const ArtifactMaxAttempts = 3

type JobMode string

const (
	JobClassify JobMode = "classify"
	JobPlan     JobMode = "plan"
	JobExecute  JobMode = "execute"
	JobAnswer   JobMode = "answer"
)

type JobStatus string

const (
	JobQueued   JobStatus = "queued"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

type ApprovalKind string

const (
	ApprovalKindGate     ApprovalKind = "gate"     // classify→execute confirmation gate
	ApprovalKindQuestion ApprovalKind = "question" // ask_master placeholder, no sibling job
)

type ApprovalStatus string

const (
	ApprovalPending    ApprovalStatus = "pending"
	ApprovalApproved   ApprovalStatus = "approved"
	ApprovalRejected   ApprovalStatus = "rejected"
	ApprovalSuperseded ApprovalStatus = "superseded"
)

type TokenScope string

const (
	ScopeProactive TokenScope = "proactive"
	ScopeReactive  TokenScope = "reactive"
)

type TaskPriority string

const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// priorityRank gives the total order used by task selection: lower is
// more urgent. Ties within the same rank fall back to created_at.
func (p TaskPriority) rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Less reports whether p is strictly more urgent than other.
func (p TaskPriority) Less(other TaskPriority) bool { return p.rank() < other.rank() }

type TaskSource string

const (
	SourceMaster TaskSource = "master"
	SourceSelf   TaskSource = "self"
)

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

const TaskDefaultMaxAttempts = 3
const TaskResultMaxBytes = 5000

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalFailed    GoalStatus = "failed"
	GoalPaused    GoalStatus = "paused"
)

type DeploymentStatus string

const (
	DeploymentBuilding   DeploymentStatus = "building"
	DeploymentTesting    DeploymentStatus = "testing"
	DeploymentDeploying  DeploymentStatus = "deploying"
	DeploymentHealthy    DeploymentStatus = "healthy"
	DeploymentRolledBack DeploymentStatus = "rolled_back"
	DeploymentFailed     DeploymentStatus = "failed"
)

// Entities. Copied by value across every component boundary; never
// shared by pointer between goroutines.

type Thread struct {
	ID             uuid.UUID
	Platform       string
	ExternalChatID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Message struct {
	ID                 uuid.UUID
	ThreadID           uuid.UUID
	ExternalMessageID  string
	Role               MessageRole
	AuthorID           string
	Text               string
	RawPayload         json.RawMessage
	CreatedAt          time.Time
}

type Artifact struct {
	ID            uuid.UUID
	MessageID     uuid.UUID
	Kind          ArtifactKind
	Content       json.RawMessage
	URI           string
	Status        ArtifactStatus
	AttemptCount  int
	LastAttemptAt *time.Time
	Error         string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

type ReactiveJob struct {
	ID               uuid.UUID
	ThreadID         uuid.UUID
	TriggerMessageID uuid.UUID
	Mode             JobMode
	Status           JobStatus
	Payload          json.RawMessage
	CreatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       *time.Time
}

type Approval struct {
	ID              uuid.UUID
	ThreadID        uuid.UUID
	JobID           *uuid.UUID
	Kind            ApprovalKind
	ProposalText    string
	Status          ApprovalStatus
	PromptChatID    string
	PromptMessageID string
	CreatedAt       time.Time
	ResolvedAt      *time.Time
}

type TokenLedgerEntry struct {
	ID           uuid.UUID
	Scope        TokenScope
	Provider     string
	TokensInput  int
	TokensOutput int
	TokensTotal  int
	Meta         json.RawMessage
	CreatedAt    time.Time
}

type Task struct {
	ID            uuid.UUID
	Title         string
	Description   string
	Priority      TaskPriority
	Status        TaskStatus
	Source        TaskSource
	GoalCriteria  string
	Attempts      int
	MaxAttempts   int
	LastResult    string
	BlockedBy     []string
	ParentID      *uuid.UUID
	OrderIndex    int
	Depth         int
	GoalID        *uuid.UUID
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

type Goal struct {
	ID               uuid.UUID
	Title            string
	Description      string
	SuccessCriteria  string
	Source           TaskSource
	Priority         TaskPriority
	Status           GoalStatus
	TotalTasks       int
	CompletedTasks   int
	FailedTasks      int
	VerifiedByMaster bool
	MasterFeedback   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Deployment struct {
	ID         uuid.UUID
	SHA        string
	Branch     string
	Status     DeploymentStatus
	StartedAt  time.Time
	FinishedAt *time.Time
	Report     json.RawMessage
}

type MemoryEntryKind string

const (
	MemoryCycleSummary MemoryEntryKind = "cycle_summary"
	MemoryAroma        MemoryEntryKind = "aroma"
)

type MemoryEntry struct {
	ID        uuid.UUID
	Kind      MemoryEntryKind
	Payload   json.RawMessage
	CreatedAt time.Time
}
