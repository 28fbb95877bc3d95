package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetAssistant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/assistants/asst_1" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("OpenAI-Beta"); got != "assistants=v2" {
			t.Errorf("OpenAI-Beta header = %q, want %q", got, "assistants=v2")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization header = %q", got)
		}
		json.NewEncoder(w).Encode(Assistant{
			ID:    "asst_1",
			Name:  "skychat",
			Model: "gpt-4o",
			ToolResources: &ToolResources{
				FileSearch: &FileSearchResources{VectorStoreIDs: []string{"vs_1"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL)
	a, err := c.GetAssistant(context.Background(), "asst_1")
	if err != nil {
		t.Fatalf("GetAssistant: %v", err)
	}
	if a.ID != "asst_1" {
		t.Errorf("ID = %q, want asst_1", a.ID)
	}
	if got := a.VectorStoreIDs(); len(got) != 1 || got[0] != "vs_1" {
		t.Errorf("VectorStoreIDs() = %v, want [vs_1]", got)
	}
}

func TestVectorStoreIDs_MissingBinding(t *testing.T) {
	a := Assistant{ID: "asst_2"}
	if got := a.VectorStoreIDs(); got != nil {
		t.Errorf("VectorStoreIDs() = %v, want nil", got)
	}
}

func TestUpdateAssistantVectorStores(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/assistants/asst_1" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(Assistant{
			ID: "asst_1",
			ToolResources: &ToolResources{
				FileSearch: &FileSearchResources{VectorStoreIDs: []string{"vs_1", "vs_2"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL)
	a, err := c.UpdateAssistantVectorStores(context.Background(), "asst_1", []string{"vs_1", "vs_2"})
	if err != nil {
		t.Fatalf("UpdateAssistantVectorStores: %v", err)
	}
	if got := a.VectorStoreIDs(); len(got) != 2 {
		t.Errorf("VectorStoreIDs() = %v, want two entries", got)
	}
	if gotBody["tool_resources"] == nil {
		t.Error("request body missing tool_resources")
	}
}

func TestUploadFile_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/files" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("purpose"); got != "assistants" {
			t.Errorf("purpose = %q, want assistants", got)
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		f.Close()
		json.NewEncoder(w).Encode(File{ID: "file_1", Filename: header.Filename})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL)
	f, err := c.UploadFile(context.Background(), "manual.txt", strings.NewReader("rotor maintenance"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if f.ID != "file_1" || f.Filename != "manual.txt" {
		t.Errorf("got %+v", f)
	}
}

func TestListMessages_RunScoped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("run_id"); got != "run_1" {
			t.Errorf("run_id = %q, want run_1", got)
		}
		json.NewEncoder(w).Encode(messageList{Data: []Message{
			{ID: "msg_1", Role: "assistant", RunID: "run_1", Content: []MessageContent{
				{Type: "text", Text: &MessageText{Value: "hello"}},
			}},
		}})
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL)
	msgs, err := c.ListMessages(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if tc := msgs[0].TextContent(); tc == nil || tc.Value != "hello" {
		t.Errorf("TextContent() = %+v", tc)
	}
}

func TestRespond(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			http.NotFound(w, r)
			return
		}
		var req RespondRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Tools) != 1 || req.Tools[0].Type != "web_search" {
			t.Errorf("tools = %+v", req.Tools)
		}
		w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"answer"}]}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL)
	out, err := c.Respond(context.Background(), RespondRequest{
		Model: "gpt-4o",
		Input: "max wind speed for survey flights?",
		Tools: []RespondTool{{Type: "web_search"}},
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if out != "answer" {
		t.Errorf("Respond = %q, want %q", out, "answer")
	}
}

func TestDo_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"message":"No thread found","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("sk-test", srv.URL)
	_, err := c.GetRun(context.Background(), "thread_x", "run_x")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "No thread found") {
		t.Errorf("error %q does not carry the service message", err)
	}
}

func TestRunTerminal(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{RunQueued, false},
		{RunInProgress, false},
		{RunCompleted, true},
		{RunFailed, true},
		{RunCancelled, true},
		{RunExpired, true},
	}
	for _, tc := range cases {
		if got := (Run{Status: tc.status}).Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
