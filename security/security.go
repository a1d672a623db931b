// Package security sanitiza la entrada del usuario y detecta intentos de
// prompt injection antes de que el texto llegue a un prompt.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var injectionPatterns = compileAll([]string{
	// español
	`ignora\s+(las\s+)?instrucciones\s+(anteriores|previas|del\s+sistema)`,
	`olvida\s+(todo\s+)?lo\s+anterior`,
	`eres\s+ahora\s+[^.]*`,
	`repite\s+(todas\s+)?las\s+instrucciones`,
	`no\s+sigas\s+(las\s+)?reglas`,
	`ignora\s+(el\s+)?prompt\s+(anterior|inicial)`,
	`actúa\s+como\s+[^.]*`,
	`desobedece\s+[^.]*`,
	`cambia\s+tu\s+(rol|personalidad|comportamiento)`,
	`ejecuta\s+[^.]*`,
	`mostrar\s+(el\s+)?prompt\s+(completo|original)`,
	`revelar\s+[^.]*`,
	`mostrar\s+(las\s+)?instrucciones`,
	// english
	`ignore\s+(the\s+)?(previous|prior|system\s+)?instructions?`,
	`forget\s+(all\s+)?(the\s+)?previous`,
	`you\s+are\s+now\s+[^.]*`,
	`repeat\s+(all\s+)?(the\s+)?instructions?`,
	`don'?t\s+follow\s+(the\s+)?rules?`,
	`ignore\s+(the\s+)?(previous\s+)?prompt`,
	`act\s+as\s+[^.]*`,
	`disobey\s+[^.]*`,
	`change\s+your\s+(role|personality|behavior)`,
	`execute\s+[^.]*`,
	`show\s+(the\s+)?(complete\s+)?prompt`,
	`reveal\s+[^.]*`,
	`display\s+(the\s+)?instructions?`,
	// delimiter escapes
	`<<<[^>]*>>>`,
	`###[^#]*###`,
	"```[^`]*```",
	`---[^-]*---`,
	`\{\{[^}]*\}\}`,
})

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f-\x{9f}]`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
	delimiterToken = regexp.MustCompile("<<<|>>>|###|```|---|\\{\\{|\\}\\}")
)

func compileAll(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// Sanitize removes markup and control characters, normalizes to NFC,
// collapses whitespace and truncates to maxLen runes.
func Sanitize(text string, maxLen int) string {
	if text == "" {
		return ""
	}
	if strings.ContainsRune(text, '<') {
		text = StripMarkup(text)
	}
	text = norm.NFC.String(text)
	text = controlChars.ReplaceAllString(text, " ")
	text = whitespaceRuns.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen {
		text = string([]rune(text)[:maxLen])
	}
	return text
}

// StripMarkup keeps only the text nodes of an HTML fragment.
// Script and style contents are dropped.
func StripMarkup(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// DetectInjection reports whether text looks like a prompt-injection attempt.
func DetectInjection(text string) (bool, string) {
	if text == "" {
		return false, ""
	}
	lower := strings.ToLower(text)
	for _, re := range injectionPatterns {
		if re.MatchString(lower) {
			return true, "patrón sospechoso: " + re.String()
		}
	}
	if len(delimiterToken.FindAllStringIndex(text, -1)) >= 3 {
		return true, "múltiples intentos de escape de delimitadores"
	}
	return false, ""
}

// CheckLength validates the rune length of a field.
func CheckLength(text, field string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		if minLen > 0 {
			return &ValidationError{Field: field, Message: fmt.Sprintf("El campo '%s' no puede estar vacío", field)}
		}
		return nil
	}
	if n < minLen {
		return &ValidationError{Field: field, Message: fmt.Sprintf("El campo '%s' debe tener al menos %d caracteres", field, minLen)}
	}
	if n > maxLen {
		return &ValidationError{Field: field, Message: fmt.Sprintf("El campo '%s' excede la longitud máxima de %d caracteres", field, maxLen)}
	}
	return nil
}

// HistoryMessage is the minimal view SanitizeHistory needs.
type HistoryMessage struct {
	Role    string
	Content string
}

// SanitizeHistory renders prior turns for a prompt, dropping messages that look
// like injection attempts and capping the total size.
func SanitizeHistory(messages []HistoryMessage, maxPerMessage, maxTotal int, logger *zap.Logger) string {
	if len(messages) == 0 {
		return ""
	}
	parts := make([]string, 0, len(messages))
	total := 0
	for _, m := range messages {
		content := Sanitize(m.Content, maxPerMessage)
		if content == "" {
			continue
		}
		if bad, reason := DetectInjection(content); bad {
			if logger != nil {
				logger.Warn("history message dropped", zap.String("reason", reason))
			}
			continue
		}
		role := "Alex"
		if m.Role == "user" {
			role = "Usuario"
		}
		line := role + ": " + content
		n := utf8.RuneCountInString(line)
		if total+n > maxTotal {
			if remaining := maxTotal - total; remaining > 50 {
				parts = append(parts, string([]rune(line)[:remaining])+"...")
			}
			break
		}
		parts = append(parts, line)
		total += n
	}
	return strings.Join(parts, "\n")
}

// Delimit fences user-provided text so the model can tell it apart from instructions.
func Delimit(text, kind string) string {
	if text == "" {
		return ""
	}
	return "<<<" + kind + ">>>\n" + text + "\n<<</" + kind + ">>>"
}
