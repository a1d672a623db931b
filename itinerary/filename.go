package itinerary

import (
	"fmt"
	"net/url"
	"strings"

	"viajeia-backend/textnorm"
)

const maxFilenameStem = 50

var separators = strings.NewReplacer(", ", "_", ",", "_", " ", "_")

// Filename builds an ASCII file name such as "itinerario_Paris_Francia.pdf".
func Filename(destination string) string {
	s := separators.Replace(textnorm.StripMarks(strings.TrimSpace(destination)))
	var sb strings.Builder
	for _, r := range s {
		if r == '_' || r == '-' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	stem := sb.String()
	if len(stem) > maxFilenameStem {
		stem = stem[:maxFilenameStem]
	}
	if stem == "" {
		stem = "destino"
	}
	return "itinerario_" + stem + ".pdf"
}

// ContentDisposition returns an attachment header with an RFC 5987 filename*.
func ContentDisposition(filename string) string {
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, filename, url.PathEscape(filename))
}
