package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrQuizNotFound indicates the question set could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrAttemptNotFound is returned when an attempt id is unknown or already discarded.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrAttemptSubmitted is returned for mutations after submission.
	ErrAttemptSubmitted = errors.New("attempt already submitted")
	// ErrQuestionIndexOutOfRange indicates a question index outside [0, count).
	ErrQuestionIndexOutOfRange = errors.New("question index out of range")
	// ErrOptionIndexOutOfRange indicates an option index outside the question's options.
	ErrOptionIndexOutOfRange = errors.New("option index out of range")
	// ErrEmptyQuestionSet is returned when an attempt is started over zero questions.
	ErrEmptyQuestionSet = errors.New("question set is empty")
	// ErrInvalidGenerationParams wraps parameter validation failures.
	ErrInvalidGenerationParams = errors.New("invalid generation parameters")
	// ErrNoSourceFiles is returned when a file generation request carries no files.
	ErrNoSourceFiles = errors.New("at least one source file is required")
	// ErrUnsupportedFile is returned for source files outside the allowed types.
	ErrUnsupportedFile = errors.New("unsupported source file type")
	// ErrUnsupportedIntegrityKind is returned for integrity signals of an unknown kind.
	ErrUnsupportedIntegrityKind = errors.New("unsupported integrity kind")
	// ErrAccessCodeTaken is returned by stores when an access code is already assigned.
	ErrAccessCodeTaken = errors.New("access code already in use")
	// ErrValidationFailed matches any *ValidationError via errors.Is.
	ErrValidationFailed = errors.New("validation failed")

	ErrTransportFailure  = errors.New("generation transport failure")
	ErrEmptyResponse     = errors.New("generation service returned an empty response")
	ErrUnrecognizedShape = errors.New("generation response has an unrecognized shape")
	ErrNoValidQuestions  = errors.New("generation response contained no valid questions")
)

// GenerationErrorKind is the failure taxonomy of a generation request.
type GenerationErrorKind string

const (
	TransportFailure  GenerationErrorKind = "transport_failure"
	EmptyResponse     GenerationErrorKind = "empty_response"
	UnrecognizedShape GenerationErrorKind = "unrecognized_shape"
	NoValidQuestions  GenerationErrorKind = "no_valid_questions"
)

// GenerationError reports why a generation request produced no draft.
type GenerationError struct {
	Kind       GenerationErrorKind
	StatusCode int
	// Body is the raw response body, truncated for diagnostics.
	Body    string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	msg := e.sentinel().Error()
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

func (e *GenerationError) Is(target error) bool {
	return target == e.sentinel()
}

func (e *GenerationError) sentinel() error {
	switch e.Kind {
	case TransportFailure:
		return ErrTransportFailure
	case EmptyResponse:
		return ErrEmptyResponse
	case UnrecognizedShape:
		return ErrUnrecognizedShape
	default:
		return ErrNoValidQuestions
	}
}

// ValidationError points at the first draft problem that blocks saving.
// Index is 1-based; 0 means the problem is with the draft itself.
type ValidationError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	if e.Index == 0 {
		return e.Reason
	}
	return fmt.Sprintf("question %d: %s", e.Index, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}
