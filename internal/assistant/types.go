package assistant

// Tool enables a capability on an assistant or a one-shot response request.
type Tool struct {
	Type string `json:"type"`
}

// FileSearchResources lists the vector stores an assistant searches over.
type FileSearchResources struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

// ToolResources carries per-tool configuration attached to an assistant.
type ToolResources struct {
	FileSearch *FileSearchResources `json:"file_search,omitempty"`
}

// Assistant is the hosted configuration of instructions, model, and tools.
type Assistant struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Model         string         `json:"model"`
	Instructions  string         `json:"instructions"`
	Tools         []Tool         `json:"tools"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// VectorStoreIDs returns the bound vector store identifiers, treating a
// missing file_search binding as an empty list.
func (a Assistant) VectorStoreIDs() []string {
	if a.ToolResources == nil || a.ToolResources.FileSearch == nil {
		return nil
	}
	return a.ToolResources.FileSearch.VectorStoreIDs
}

// VectorStore is a hosted searchable collection of ingested documents.
type VectorStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// File is the metadata record for an uploaded file.
type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// FileCounts breaks down the per-file status of a file batch.
type FileCounts struct {
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Total      int `json:"total"`
}

// FileBatch tracks a group of files being indexed into a vector store.
type FileBatch struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"` // "in_progress", "completed", "failed", "cancelled"
	FileCounts FileCounts `json:"file_counts"`
}

// Done reports whether the batch has reached a terminal status.
func (b FileBatch) Done() bool {
	return b.Status == "completed" || b.Status == "failed" || b.Status == "cancelled"
}

// Thread is the hosted handle for one ordered multi-turn conversation.
type Thread struct {
	ID string `json:"id"`
}

// Run statuses as reported by the hosted service.
const (
	RunQueued     = "queued"
	RunInProgress = "in_progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
	RunCancelled  = "cancelled"
	RunExpired    = "expired"
)

// Run is one invocation of an assistant against a thread.
type Run struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Terminal reports whether the run has finished processing.
func (r Run) Terminal() bool {
	switch r.Status {
	case RunCompleted, RunFailed, RunCancelled, RunExpired:
		return true
	}
	return false
}

// FileCitation references the source file behind an annotation.
type FileCitation struct {
	FileID string `json:"file_id"`
}

// Annotation marks a span in a reply that refers to a source. A plain
// annotation only carries the matched text; a file-citation annotation
// additionally carries the cited file reference.
type Annotation struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	FileCitation *FileCitation `json:"file_citation,omitempty"`
}

// MessageText is the text payload of one message content block.
type MessageText struct {
	Value       string       `json:"value"`
	Annotations []Annotation `json:"annotations"`
}

// MessageContent is one content block of a thread message.
type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

// Message is one turn on a thread.
type Message struct {
	ID      string           `json:"id"`
	Role    string           `json:"role"`
	RunID   string           `json:"run_id,omitempty"`
	Content []MessageContent `json:"content"`
}

// TextContent returns the first text content block of the message,
// or nil if the message carries none.
func (m Message) TextContent() *MessageText {
	for _, c := range m.Content {
		if c.Type == "text" && c.Text != nil {
			return c.Text
		}
	}
	return nil
}

// RespondTool configures one tool on a one-shot response request.
type RespondTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

// RespondRequest is a single completion-with-tools invocation, independent
// of any thread.
type RespondRequest struct {
	Model        string        `json:"model"`
	Instructions string        `json:"instructions,omitempty"`
	Input        string        `json:"input"`
	Tools        []RespondTool `json:"tools,omitempty"`
}
