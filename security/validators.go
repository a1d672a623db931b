package security

import (
	"errors"
	"regexp"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrInjection marks input rejected as a prompt-injection attempt.
var ErrInjection = errors.New("contenido no permitido")

// ValidationError describes a rejected field with a message safe to show users.
type ValidationError struct {
	Field     string
	Message   string
	Injection bool
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error {
	if e.Injection {
		return ErrInjection
	}
	return nil
}

const (
	MaxQuestionLength    = 2000
	MaxDestinationLength = 200
	MaxSearchLength      = 100
)

var destinationChars = regexp.MustCompile(`^[\p{L}\p{M}0-9\s,.\-]+$`)

func injectionError(field, msg string) error {
	return &ValidationError{Field: field, Message: msg, Injection: true}
}

// ValidateQuestion checks and sanitizes a user question.
func ValidateQuestion(v string) (string, error) {
	if err := CheckLength(v, "question", 1, MaxQuestionLength); err != nil {
		return "", err
	}
	s := Sanitize(v, MaxQuestionLength)
	if s == "" {
		return "", &ValidationError{Field: "question", Message: "La pregunta no puede estar vacía"}
	}
	if bad, _ := DetectInjection(s); bad {
		return "", injectionError("question", "La entrada contiene contenido no permitido")
	}
	return s, nil
}

// ValidateDestination checks an optional "Ciudad, País" destination. Empty input
// returns "" and no error.
func ValidateDestination(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	if err := CheckLength(v, "destination", 1, MaxDestinationLength); err != nil {
		return "", err
	}
	s := Sanitize(v, MaxDestinationLength)
	if utf8.RuneCountInString(s) < 3 {
		return "", &ValidationError{Field: "destination", Message: "El destino es demasiado corto"}
	}
	if bad, _ := DetectInjection(s); bad {
		return "", injectionError("destination", "El destino contiene contenido no permitido")
	}
	if !destinationChars.MatchString(s) {
		return "", &ValidationError{Field: "destination", Message: "El destino contiene caracteres no permitidos"}
	}
	return s, nil
}

// RequireDestination is ValidateDestination for fields that cannot be empty.
func RequireDestination(v string) (string, error) {
	s, err := ValidateDestination(v)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &ValidationError{Field: "destination", Message: "El destino es requerido"}
	}
	return s, nil
}

// ValidateSearchQuery checks a destination autocomplete query.
func ValidateSearchQuery(v string) (string, error) {
	if err := CheckLength(v, "query", 1, MaxSearchLength); err != nil {
		return "", err
	}
	s := Sanitize(v, MaxSearchLength)
	if bad, _ := DetectInjection(s); bad {
		return "", injectionError("query", "La consulta contiene contenido no permitido")
	}
	return s, nil
}

// ValidateSessionID accepts "" (no session yet) or a UUID.
func ValidateSessionID(v string) (string, error) {
	if v == "" {
		return "", nil
	}
	s := Sanitize(v, 100)
	if _, err := uuid.Parse(s); err != nil {
		return "", &ValidationError{Field: "session_id", Message: "El session ID no tiene un formato válido (UUID)"}
	}
	return s, nil
}

// RequireSessionID is ValidateSessionID for fields that cannot be empty.
func RequireSessionID(v string) (string, error) {
	s, err := ValidateSessionID(v)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &ValidationError{Field: "session_id", Message: "El session ID es requerido"}
	}
	return s, nil
}
