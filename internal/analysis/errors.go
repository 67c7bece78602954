package analysis

import "fmt"

// ErrorCode classifies a failure that occurred while producing a result.
// Codes travel inside [ErrorDetail] entries on a [ResultChunk]; they are never
// raised across the streaming boundary.
type ErrorCode string

const (
	// ErrInvalidInput means the request carried neither transcript nor audio.
	ErrInvalidInput ErrorCode = "invalid_input"

	// ErrAudioDecode means the audio bytes could not be parsed.
	ErrAudioDecode ErrorCode = "audio_decode"

	// ErrTranscriptionFailed means the transcription call failed after retries.
	ErrTranscriptionFailed ErrorCode = "transcription_failed"

	// ErrLLMTimeout means an LLM call exceeded its per-attempt deadline.
	ErrLLMTimeout ErrorCode = "llm_timeout"

	// ErrLLMProvider means the LLM provider returned an error on every attempt.
	ErrLLMProvider ErrorCode = "llm_provider_error"

	// ErrSchemaViolation means LLM output could not be parsed or failed schema
	// validation.
	ErrSchemaViolation ErrorCode = "schema_violation"

	// ErrInsufficientData means a service's input gate never opened.
	ErrInsufficientData ErrorCode = "insufficient_data"

	// ErrCancelled means the request was cancelled before the service finished.
	ErrCancelled ErrorCode = "cancelled"

	// ErrInternal covers unexpected failures inside a service.
	ErrInternal ErrorCode = "internal_error"
)

// ErrorDetail is a single materialized error on a [ResultChunk].
type ErrorDetail struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Errorf builds an [ErrorDetail] with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) ErrorDetail {
	return ErrorDetail{Code: code, Message: fmt.Sprintf(format, args...)}
}
