package state

// ValidationError signals a malformed request or a reference to state that
// does not exist (e.g. an unknown session). Handlers surface it as 4xx.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// UpstreamLLMError wraps a provider failure (timeout, non-200, malformed
// response). Nodes degrade gracefully rather than propagate it.
type UpstreamLLMError struct {
	Op  string
	Err error
}

func (e *UpstreamLLMError) Error() string { return "upstream llm: " + e.Op + ": " + e.Err.Error() }
func (e *UpstreamLLMError) Unwrap() error { return e.Err }

// RetrievalError wraps an embedding or rerank failure during retrieval. The
// retriever drops the failing sub-step and continues with what it has.
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string { return "retrieval: " + e.Op + ": " + e.Err.Error() }
func (e *RetrievalError) Unwrap() error { return e.Err }

// ToolExecutionError wraps a single tool's failure. It is recorded in
// ToolResult rather than propagated.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string { return "tool " + e.Tool + ": " + e.Err.Error() }
func (e *ToolExecutionError) Unwrap() error { return e.Err }

// SummarizationError wraps a summarizer LLM failure; callers fall back to
// fallback_truncate.
type SummarizationError struct{ Err error }

func (e *SummarizationError) Error() string { return "summarization: " + e.Err.Error() }
func (e *SummarizationError) Unwrap() error { return e.Err }

// IOError wraps a disk/index/attachment read failure. Callers treat it as
// an absence (empty retrieval, empty attachment text).
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string { return "io: " + e.Op + ": " + e.Err.Error() }
func (e *IOError) Unwrap() error { return e.Err }
