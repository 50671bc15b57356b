// Package feedback turns backend failures into the text shown to the user.
//
// Classification is best-effort: when the backend sends a structured error
// code it is used, otherwise the message text is matched against known
// English and Spanish phrasings.
package feedback

import (
	"errors"
	"net/http"
	"strings"

	"github.com/Gantu78/WebReactivaFront/internal/api"
)

// GradeFailure is the user-facing category of a failed grade save.
type GradeFailure int

const (
	Generic GradeFailure = iota
	PercentageExceeded
	ServerValidation
	NotFound
)

func (f GradeFailure) String() string {
	switch f {
	case PercentageExceeded:
		return "percentage-exceeded"
	case ServerValidation:
		return "validation"
	case NotFound:
		return "not-found"
	default:
		return "generic"
	}
}

const (
	MsgPercentageExceeded = "The sum of weights for this subject and student would exceed 100%."
	MsgGradeValidation    = "The backend rejected the grade: score must be between 0 and 5 and weight between 1 and 100."
	MsgGradeNotFound      = "That grade no longer exists; reload and try again."
	MsgEmailTaken         = "Email already registered"
	MsgSubjectNameTaken   = "A subject with that name already exists"

	fallbackGrade   = "Could not save the grade. Does the weight sum exceed 100%?"
	fallbackStudent = "Could not save the student. Is the email duplicated?"
	fallbackSubject = "Could not save the subject."
	fallbackUnknown = "The request failed."
)

var (
	percentagePatterns = []string{"sum of", "suma de", "exceed", "supera"}
	validationPatterns = []string{"validation", "must be", "debe", "invalid", "inválid"}
	notFoundPatterns   = []string{"not found", "no encontrad", "no existe"}
	duplicatePatterns  = []string{"duplicate", "ya está en uso", "ya existe", "already"}
)

// Structured codes a backend may send instead of relying on message text.
const (
	CodePercentageExceeded = "PERCENTAGE_EXCEEDED"
	CodeValidation         = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeDuplicate          = "DUPLICATE"
)

// ClassifyGradeError picks the category for a failed grade create/update.
func ClassifyGradeError(err error) GradeFailure {
	if err == nil {
		return Generic
	}
	apiErr, ok := api.AsError(err)
	if ok && apiErr.Code != "" {
		switch strings.ToUpper(apiErr.Code) {
		case CodePercentageExceeded:
			return PercentageExceeded
		case CodeValidation:
			return ServerValidation
		case CodeNotFound:
			return NotFound
		}
	}
	if ok && apiErr.Kind == api.KindTransport {
		return Generic
	}
	text := strings.ToLower(api.Message(err))
	switch {
	case containsAny(text, percentagePatterns):
		return PercentageExceeded
	case ok && apiErr.Status == http.StatusNotFound, containsAny(text, notFoundPatterns):
		return NotFound
	case containsAny(text, validationPatterns):
		return ServerValidation
	default:
		return Generic
	}
}

// GradeErrorMessage renders a failed grade save.
func GradeErrorMessage(err error) string {
	switch ClassifyGradeError(err) {
	case PercentageExceeded:
		return MsgPercentageExceeded
	case ServerValidation:
		return MsgGradeValidation
	case NotFound:
		return MsgGradeNotFound
	default:
		return withFallback(err, fallbackGrade)
	}
}

// StudentErrorMessage renders a failed student save; duplicate emails get a
// dedicated message.
func StudentErrorMessage(err error) string {
	if isDuplicate(err) {
		return MsgEmailTaken
	}
	return withFallback(err, fallbackStudent)
}

// SubjectErrorMessage renders a failed subject save; duplicate names get a
// dedicated message.
func SubjectErrorMessage(err error) string {
	if isDuplicate(err) {
		return MsgSubjectNameTaken
	}
	return withFallback(err, fallbackSubject)
}

// ErrorMessage renders any other failure (reads, deletes) with the backend
// text, or the transport description when there was no response.
func ErrorMessage(action string, err error) string {
	text := withFallback(err, fallbackUnknown)
	if action == "" {
		return text
	}
	return action + ": " + text
}

func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if apiErr, ok := api.AsError(err); ok {
		if strings.EqualFold(apiErr.Code, CodeDuplicate) {
			return true
		}
		if apiErr.Kind == api.KindTransport {
			return false
		}
	}
	return containsAny(strings.ToLower(api.Message(err)), duplicatePatterns)
}

// withFallback prefers the backend's own message. A bare status text means
// the backend said nothing useful.
func withFallback(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		msg := strings.TrimSpace(apiErr.Message)
		if msg == "" || (apiErr.Status > 0 && msg == http.StatusText(apiErr.Status)) {
			return fallback
		}
		return msg
	}
	return err.Error()
}

func containsAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
