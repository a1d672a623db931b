// Package prompts renders the LLM prompts from embedded templates. Every piece
// of user-provided text goes through security.Delimit before it reaches a model.
package prompts

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"viajeia-backend/security"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("prompts").
		Funcs(template.FuncMap{"delimit": security.Delimit}).
		ParseFS(templateFS, "templates/*.tmpl"),
)

// Travel holds the inputs of the structured and contextual prompts.
// History is the sanitized conversation rendered by conversation.Service.Context.
type Travel struct {
	Question    string
	Destination string
	History     string
}

func render(name string, data any) (string, error) {
	var sb strings.Builder
	if err := templates.ExecuteTemplate(&sb, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Structured asks for the five-section JSON itinerary.
func Structured(t Travel) (string, error) { return render("structured", t) }

// Contextual asks for a direct follow-up answer about the current destination.
func Contextual(t Travel) (string, error) { return render("contextual", t) }

func PopularDestinations(count int) (string, error) {
	return render("popular_destinations", struct{ Count int }{count})
}

func SearchDestinations(query string, count int) (string, error) {
	return render("search_destinations", struct {
		Query string
		Count int
	}{query, count})
}

func CountryCode(country string) (string, error) {
	return render("country_code", struct{ Country string }{country})
}
