package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// Client communicates with the hosted assistant service over HTTP. It covers
// the assistant, vector store, thread, run, and one-shot response operations
// the rest of the system is built on. Failures surface as errors to the
// caller; no retry happens at this layer.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client authenticating with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL (for testing).
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

// apiError mirrors the service's error envelope.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// do issues one JSON request and decodes the response into out (when non-nil).
// Assistant-scoped endpoints require the beta header.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("service error (HTTP %d, %s): %s", resp.StatusCode, envelope.Error.Type, envelope.Error.Message)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(raw))
}

// CreateAssistant creates a named assistant configuration.
func (c *Client) CreateAssistant(ctx context.Context, name, instructions, model string, tools []Tool) (Assistant, error) {
	body := map[string]any{
		"name":         name,
		"instructions": instructions,
		"model":        model,
		"tools":        tools,
	}
	var a Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants", body, &a); err != nil {
		return Assistant{}, fmt.Errorf("creating assistant: %w", err)
	}
	return a, nil
}

// GetAssistant fetches the current assistant configuration.
func (c *Client) GetAssistant(ctx context.Context, id string) (Assistant, error) {
	var a Assistant
	if err := c.do(ctx, http.MethodGet, "/assistants/"+id, nil, &a); err != nil {
		return Assistant{}, fmt.Errorf("getting assistant %s: %w", id, err)
	}
	return a, nil
}

// UpdateAssistantVectorStores replaces the assistant's file-search vector
// store binding with the given list.
func (c *Client) UpdateAssistantVectorStores(ctx context.Context, id string, storeIDs []string) (Assistant, error) {
	body := map[string]any{
		"tool_resources": ToolResources{
			FileSearch: &FileSearchResources{VectorStoreIDs: storeIDs},
		},
	}
	var a Assistant
	if err := c.do(ctx, http.MethodPost, "/assistants/"+id, body, &a); err != nil {
		return Assistant{}, fmt.Errorf("updating assistant %s: %w", id, err)
	}
	return a, nil
}

// CreateVectorStore creates a named vector store.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (VectorStore, error) {
	var vs VectorStore
	if err := c.do(ctx, http.MethodPost, "/vector_stores", map[string]any{"name": name}, &vs); err != nil {
		return VectorStore{}, fmt.Errorf("creating vector store: %w", err)
	}
	return vs, nil
}

// UploadFile uploads one file for assistant use and returns its metadata.
func (c *Client) UploadFile(ctx context.Context, filename string, r io.Reader) (File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return File{}, fmt.Errorf("writing purpose field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return File{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return File{}, fmt.Errorf("copying file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return File{}, fmt.Errorf("finalizing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files", &buf)
	if err != nil {
		return File{}, fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("uploading %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return File{}, fmt.Errorf("uploading %s: %w", filename, decodeError(resp))
	}

	var f File
	if err := json.NewDecoder(resp.Body).Decode(&f); err != nil {
		return File{}, fmt.Errorf("decoding upload response: %w", err)
	}
	return f, nil
}

// GetFile retrieves metadata for an uploaded file.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	var f File
	if err := c.do(ctx, http.MethodGet, "/files/"+fileID, nil, &f); err != nil {
		return File{}, fmt.Errorf("getting file %s: %w", fileID, err)
	}
	return f, nil
}

// CreateFileBatch starts indexing the given uploaded files into a vector store.
func (c *Client) CreateFileBatch(ctx context.Context, vectorStoreID string, fileIDs []string) (FileBatch, error) {
	body := map[string]any{"file_ids": fileIDs}
	var fb FileBatch
	if err := c.do(ctx, http.MethodPost, "/vector_stores/"+vectorStoreID+"/file_batches", body, &fb); err != nil {
		return FileBatch{}, fmt.Errorf("creating file batch: %w", err)
	}
	return fb, nil
}

// GetFileBatch fetches the current status of a file batch.
func (c *Client) GetFileBatch(ctx context.Context, vectorStoreID, batchID string) (FileBatch, error) {
	var fb FileBatch
	if err := c.do(ctx, http.MethodGet, "/vector_stores/"+vectorStoreID+"/file_batches/"+batchID, nil, &fb); err != nil {
		return FileBatch{}, fmt.Errorf("getting file batch %s: %w", batchID, err)
	}
	return fb, nil
}

// CreateThread creates a fresh empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (Thread, error) {
	var t Thread
	if err := c.do(ctx, http.MethodPost, "/threads", map[string]any{}, &t); err != nil {
		return Thread{}, fmt.Errorf("creating thread: %w", err)
	}
	return t, nil
}

// CreateMessage appends a message with the given role to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID, role, content string) (Message, error) {
	body := map[string]any{"role": role, "content": content}
	var m Message
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/messages", body, &m); err != nil {
		return Message{}, fmt.Errorf("creating message: %w", err)
	}
	return m, nil
}

// CreateRun starts processing the thread with the given assistant.
func (c *Client) CreateRun(ctx context.Context, threadID, assistantID string) (Run, error) {
	body := map[string]any{"assistant_id": assistantID}
	var r Run
	if err := c.do(ctx, http.MethodPost, "/threads/"+threadID+"/runs", body, &r); err != nil {
		return Run{}, fmt.Errorf("creating run: %w", err)
	}
	return r, nil
}

// GetRun fetches the current status of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (Run, error) {
	var r Run
	if err := c.do(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+runID, nil, &r); err != nil {
		return Run{}, fmt.Errorf("getting run %s: %w", runID, err)
	}
	return r, nil
}

// messageList mirrors the JSON returned by GET /threads/{id}/messages.
type messageList struct {
	Data []Message `json:"data"`
}

// ListMessages returns the thread's messages, newest first, optionally
// scoped to a single run.
func (c *Client) ListMessages(ctx context.Context, threadID, runID string) ([]Message, error) {
	path := "/threads/" + threadID + "/messages"
	if runID != "" {
		path += "?run_id=" + url.QueryEscape(runID)
	}
	var list messageList
	if err := c.do(ctx, http.MethodGet, path, nil, &list); err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	return list.Data, nil
}

// respondResponse mirrors the JSON returned by POST /responses.
type respondResponse struct {
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// Respond issues one completion-with-tools request outside any thread and
// returns the first output text verbatim.
func (c *Client) Respond(ctx context.Context, req RespondRequest) (string, error) {
	var resp respondResponse
	if err := c.do(ctx, http.MethodPost, "/responses", req, &resp); err != nil {
		return "", fmt.Errorf("responding: %w", err)
	}
	for _, out := range resp.Output {
		for _, content := range out.Content {
			if content.Text != "" {
				return content.Text, nil
			}
		}
	}
	return "", fmt.Errorf("empty response output")
}
