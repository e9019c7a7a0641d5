package nodes

import (
	"context"
	"errors"
	"testing"

	"github.com/northstar-market/concierge/internal/llm"
	"github.com/northstar-market/concierge/internal/state"
)

type fakeAttachmentService struct {
	text map[string]string
	err  error
}

func (f *fakeAttachmentService) ExtractText(ctx context.Context, filePath string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text[filePath], nil
}

func TestDocumentNode_NoAttachmentsReturnsApology(t *testing.T) {
	n := &DocumentNode{LLM: &staticProvider{}, Attachments: &fakeAttachmentService{}}
	out, err := n.Execute(context.Background(), state.ConversationState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" {
		t.Fatal("expected apology response")
	}
}

func TestDocumentNode_AnalyzesReadableAttachment(t *testing.T) {
	n := &DocumentNode{
		LLM:         &staticProvider{resp: llm.Message{Content: "summary: ..."}},
		Attachments: &fakeAttachmentService{text: map[string]string{"/f1.pdf": "contract terms"}},
	}
	s := state.ConversationState{Attachments: []state.Attachment{{FileName: "f1.pdf", FilePath: "/f1.pdf"}}}
	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response != "summary: ..." {
		t.Fatalf("unexpected response %q", out.Response)
	}
	if len(out.Sources) != 1 {
		t.Fatalf("expected one source entry, got %+v", out.Sources)
	}
}

func TestDocumentNode_UnreadableAttachmentsReturnApology(t *testing.T) {
	n := &DocumentNode{LLM: &staticProvider{}, Attachments: &fakeAttachmentService{err: errors.New("unsupported format")}}
	s := state.ConversationState{Attachments: []state.Attachment{{FileName: "f1.bin", FilePath: "/f1.bin"}}}
	out, err := n.Execute(context.Background(), s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Response == "" {
		t.Fatal("expected apology response")
	}
}
