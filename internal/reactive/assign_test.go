package reactive

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/goclaw/internal/store"
)

// fakeTaskStore is a minimal in-process store.TaskStore for unit tests;
// only Create is exercised by maybeAssignMasterTask.
type fakeTaskStore struct {
	created []*store.Task
}

func (f *fakeTaskStore) Create(ctx context.Context, t *store.Task) error {
	t.ID = uuid.New()
	f.created = append(f.created, t)
	return nil
}
func (f *fakeTaskStore) Get(ctx context.Context, id uuid.UUID) (*store.Task, error) { return nil, store.ErrNotFound }
func (f *fakeTaskStore) Update(ctx context.Context, t *store.Task) error            { return nil }
func (f *fakeTaskStore) NextRootCandidate(ctx context.Context) (*store.Task, error) {
	return nil, store.ErrNotFound
}
func (f *fakeTaskStore) PendingSubtasks(ctx context.Context, parentID uuid.UUID) ([]*store.Task, error) {
	return nil, nil
}
func (f *fakeTaskStore) CountPendingOrRunningChildren(ctx context.Context, parentID uuid.UUID) (int, error) {
	return 0, nil
}
func (f *fakeTaskStore) ListPending(ctx context.Context, limit int) ([]*store.Task, error) {
	return nil, nil
}

func TestIsOperatorChat(t *testing.T) {
	w := &Worker{operatorChatID: []string{"111", "222"}}
	if !w.isOperatorChat("111") {
		t.Fatalf("expected 111 to be recognized as an operator chat")
	}
	if w.isOperatorChat("333") {
		t.Fatalf("expected 333 to not be recognized as an operator chat")
	}
}

func TestMaybeAssignMasterTask_OperatorTaskIntentCreatesTask(t *testing.T) {
	tasks := &fakeTaskStore{}
	w := &Worker{operatorChatID: []string{"111"}, tasks: tasks}
	thread := &store.Thread{ExternalChatID: "111"}
	c := classification{Intent: "task", Summary: "restart the service", Task: "restart goclaw on the VPS"}

	w.maybeAssignMasterTask(context.Background(), thread, c)

	if len(tasks.created) != 1 {
		t.Fatalf("expected one task created, got %d", len(tasks.created))
	}
	got := tasks.created[0]
	if got.Source != store.SourceMaster {
		t.Fatalf("expected source=master, got %q", got.Source)
	}
	if got.Title != "restart the service" || got.Description != "restart goclaw on the VPS" {
		t.Fatalf("unexpected task contents: %+v", got)
	}
}

func TestMaybeAssignMasterTask_NonOperatorSkipped(t *testing.T) {
	tasks := &fakeTaskStore{}
	w := &Worker{operatorChatID: []string{"111"}, tasks: tasks}
	thread := &store.Thread{ExternalChatID: "999"}
	c := classification{Intent: "task", Summary: "do something", Task: "do something"}

	w.maybeAssignMasterTask(context.Background(), thread, c)

	if len(tasks.created) != 0 {
		t.Fatalf("expected no task created for non-operator chat, got %d", len(tasks.created))
	}
}

func TestMaybeAssignMasterTask_NonTaskIntentSkipped(t *testing.T) {
	tasks := &fakeTaskStore{}
	w := &Worker{operatorChatID: []string{"111"}, tasks: tasks}
	thread := &store.Thread{ExternalChatID: "111"}
	c := classification{Intent: "question", Summary: "what time is it", Task: ""}

	w.maybeAssignMasterTask(context.Background(), thread, c)

	if len(tasks.created) != 0 {
		t.Fatalf("expected no task created for a question intent, got %d", len(tasks.created))
	}
}
