package binding

import (
	"context"
	"fmt"
	"testing"

	"github.com/skychat-ai/skychat/internal/assistant"
)

// fakeService keeps assistant state in memory and counts writes.
type fakeService struct {
	assistants map[string]assistant.Assistant
	writes     int
}

func (f *fakeService) GetAssistant(_ context.Context, id string) (assistant.Assistant, error) {
	a, ok := f.assistants[id]
	if !ok {
		return assistant.Assistant{}, fmt.Errorf("no such assistant %s", id)
	}
	return a, nil
}

func (f *fakeService) UpdateAssistantVectorStores(_ context.Context, id string, storeIDs []string) (assistant.Assistant, error) {
	f.writes++
	a := f.assistants[id]
	a.ToolResources = &assistant.ToolResources{
		FileSearch: &assistant.FileSearchResources{VectorStoreIDs: storeIDs},
	}
	f.assistants[id] = a
	return a, nil
}

func newFakeService(bound ...string) *fakeService {
	a := assistant.Assistant{ID: "asst_1", Name: "skychat"}
	if len(bound) > 0 {
		a.ToolResources = &assistant.ToolResources{
			FileSearch: &assistant.FileSearchResources{VectorStoreIDs: bound},
		}
	}
	return &fakeService{assistants: map[string]assistant.Assistant{"asst_1": a}}
}

func TestBind_AppendsMissingStore(t *testing.T) {
	svc := newFakeService("vs_old")
	m := NewManager(svc, "asst_1", "vs_new")

	a, wrote, err := m.Bind(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !wrote {
		t.Error("wrote = false, want true")
	}
	got := a.VectorStoreIDs()
	if len(got) != 2 || got[0] != "vs_old" || got[1] != "vs_new" {
		t.Errorf("bound stores = %v, want [vs_old vs_new]", got)
	}
}

func TestBind_Idempotent(t *testing.T) {
	svc := newFakeService()
	m := NewManager(svc, "asst_1", "vs_1")

	for i := 0; i < 2; i++ {
		if _, _, err := m.Bind(context.Background(), "asst_1", "vs_1"); err != nil {
			t.Fatalf("Bind call %d: %v", i+1, err)
		}
	}

	if svc.writes != 1 {
		t.Errorf("remote writes = %d, want exactly 1", svc.writes)
	}
	got := svc.assistants["asst_1"].VectorStoreIDs()
	count := 0
	for _, id := range got {
		if id == "vs_1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("vs_1 bound %d times, want exactly once (list: %v)", count, got)
	}
}

func TestBind_SecondCallNoWrite(t *testing.T) {
	svc := newFakeService("vs_1")
	m := NewManager(svc, "asst_1", "vs_1")

	_, wrote, err := m.Bind(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if wrote {
		t.Error("wrote = true for already-bound store, want false")
	}
	if svc.writes != 0 {
		t.Errorf("remote writes = %d, want 0", svc.writes)
	}
}

func TestBind_MissingBindingTreatedAsEmpty(t *testing.T) {
	svc := newFakeService() // no tool_resources at all
	m := NewManager(svc, "asst_1", "vs_1")

	a, wrote, err := m.Bind(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if !wrote {
		t.Error("wrote = false, want true")
	}
	if got := a.VectorStoreIDs(); len(got) != 1 || got[0] != "vs_1" {
		t.Errorf("bound stores = %v, want [vs_1]", got)
	}
}

func TestBind_UnknownAssistant(t *testing.T) {
	m := NewManager(newFakeService(), "asst_missing", "vs_1")
	if _, _, err := m.Bind(context.Background(), "", ""); err == nil {
		t.Error("expected error for unknown assistant")
	}
}
