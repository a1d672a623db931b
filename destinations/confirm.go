package destinations

import (
	"strings"
	"unicode"

	"viajeia-backend/textnorm"
)

type Decision int

const (
	Ambiguous Decision = iota
	Confirmed
	Rejected
)

func (d Decision) String() string {
	switch d {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	}
	return "ambiguous"
}

var (
	affirmative = []string{
		"si", "yes", "claro", "dale", "ok", "okay", "vale", "de acuerdo", "confirmo",
		"cambia", "cambialo", "cambiar", "adelante", "por supuesto", "perfecto", "correcto",
	}
	negative = []string{
		"no", "nope", "mantener", "manten", "mantenlo", "continuar", "continua",
		"quedarme", "quedemonos", "sigamos", "seguir", "sigue",
	}
)

// maxReplyWords bounds how long a message can be and still read as a yes/no reply.
const maxReplyWords = 8

// InterpretConfirmation decides whether answer replies to the question
// "¿cambiar a detected o seguir con current?". isReply is false when the
// message looks like an unrelated question, in which case the pending
// confirmation should be dropped.
func InterpretConfirmation(answer, detected, current string) (isReply bool, decision Decision) {
	words := tokenize(answer)
	if len(words) == 0 {
		return false, Ambiguous
	}
	text := " " + strings.Join(words, " ") + " "

	mentionsDetected := mentions(text, detected)
	mentionsCurrent := mentions(text, current)
	switch {
	case mentionsDetected && !mentionsCurrent:
		return true, Confirmed
	case mentionsCurrent && !mentionsDetected:
		return true, Rejected
	}

	if len(words) > maxReplyWords {
		return false, Ambiguous
	}
	yes := containsAny(text, affirmative)
	no := containsAny(text, negative)
	switch {
	case yes && !no:
		return true, Confirmed
	case no && !yes:
		return true, Rejected
	case yes && no:
		return true, Ambiguous
	}
	if len(words) <= 3 && !strings.Contains(answer, "?") {
		return true, Ambiguous
	}
	return false, Ambiguous
}

func tokenize(s string) []string {
	return strings.FieldsFunc(textnorm.Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func mentions(text, destination string) bool {
	city := strings.Join(tokenize(cityPart(destination)), " ")
	if city == "" {
		return false
	}
	return strings.Contains(text, " "+city+" ")
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, " "+p+" ") {
			return true
		}
	}
	return false
}
