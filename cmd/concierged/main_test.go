package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/nodes"
	"github.com/northstar-market/concierge/internal/objectstore"
	"github.com/northstar-market/concierge/internal/router"
	"github.com/northstar-market/concierge/internal/state"
	"github.com/northstar-market/concierge/internal/workflow"
)

type fakeQAProvider struct{}

func (fakeQAProvider) Invoke(ctx context.Context, msgs []llm.Message) (llm.Message, error) {
	return llm.Message{Content: "QA"}, nil
}
func (fakeQAProvider) InvokeStream(ctx context.Context, msgs []llm.Message, h llm.StreamHandler) error {
	return nil
}
func (fakeQAProvider) BindTools(schemas []llm.ToolSchema) llm.Provider { return fakeQAProvider{} }

func testEngine() *workflow.Engine {
	intentNode := &nodes.IntentRecognitionNode{LLM: fakeQAProvider{}}
	return workflow.NewEngine(nil, intentNode, nil, nil, map[string]nodes.Node{
		router.NodeQA: &fakeNode{answer: "how can I help you today?"},
	})
}

type fakeNode struct {
	answer string
}

func (f *fakeNode) Execute(ctx context.Context, s state.ConversationState) (state.ConversationState, error) {
	s.Response = f.answer
	s.MessageID = "m-1"
	return s, nil
}

func TestHandleChatMessage_ReturnsJSONResponse(t *testing.T) {
	engine := testEngine()
	handler := handleChatMessage(engine, nil, 5*time.Second)

	body := strings.NewReader(`{"session_id":"s1","message":"hello there friend"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/message", body)
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "how can I help you today?", resp.Content)
	require.NotEmpty(t, resp.MessageID)
}

func TestHandleChatMessage_RejectsNonPost(t *testing.T) {
	engine := testEngine()
	handler := handleChatMessage(engine, nil, 5*time.Second)

	req := httptest.NewRequest(http.MethodGet, "/chat/message", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleChatMessage_RejectsInvalidSessionID(t *testing.T) {
	engine := testEngine()
	handler := handleChatMessage(engine, nil, 5*time.Second)

	body := strings.NewReader(`{"session_id":"../etc/passwd","message":"hello there friend"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/message", body)
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatMessage_RejectsInvalidJSON(t *testing.T) {
	engine := testEngine()
	handler := handleChatMessage(engine, nil, 5*time.Second)

	req := httptest.NewRequest(http.MethodPost, "/chat/message", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChatStream_EmitsSSEFrames(t *testing.T) {
	engine := testEngine()
	handler := handleChatStream(engine, nil, 5*time.Second)

	body := strings.NewReader(`{"session_id":"s1","message":"hello there friend"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/stream", body)
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	var events []string
	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			events = append(events, strings.TrimPrefix(line, "data: "))
		}
	}
	require.GreaterOrEqual(t, len(events), 3, "expected at least start/content/end events, got %v", events)
	require.Contains(t, events[0], `"start"`)
	require.Contains(t, events[len(events)-1], `"end"`)
}

func TestHandleKnowledgeUpload_StoresFileAndMetadata(t *testing.T) {
	store := objectstore.NewMemoryStore()
	handler := handleKnowledgeUpload(store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "refund-policy.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("refunds take five business days"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()

	handler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var meta knowledgeMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	require.Equal(t, "refund-policy.txt", meta.FileName)
	require.NotEmpty(t, meta.DocID)

	metaKey := "knowledge/" + meta.DocID + "/metadata.json"
	_, _, err = store.Get(context.Background(), metaKey)
	require.NoError(t, err)

	fileKey := "knowledge/" + meta.DocID + ".txt"
	_, _, err = store.Get(context.Background(), fileKey)
	require.NoError(t, err)
}

func TestHandleKnowledgeUpload_RejectsMissingFile(t *testing.T) {
	store := objectstore.NewMemoryStore()
	handler := handleKnowledgeUpload(store)

	req := httptest.NewRequest(http.MethodPost, "/knowledge/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := httptest.NewRecorder()
	handler(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
