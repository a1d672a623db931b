// Package sections extracts the five itinerary sections from an assistant
// reply. JSON is tried first, then the older header-per-section text layout.
// Parsing is best effort: when nothing is recognized the caller shows the raw text.
package sections

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"viajeia-backend/textnorm"
)

type Key string

const (
	Alojamiento        Key = "alojamiento"
	ComidaLocal        Key = "comida_local"
	LugaresImperdibles Key = "lugares_imperdibles"
	ConsejosLocales    Key = "consejos_locales"
	EstimacionCostos   Key = "estimacion_costos"
)

type Section struct {
	Key   Key    `json:"key"`
	Title string `json:"title"`
}

var all = []Section{
	{Alojamiento, "ALOJAMIENTO"},
	{ComidaLocal, "COMIDA LOCAL"},
	{LugaresImperdibles, "LUGARES IMPERDIBLES"},
	{ConsejosLocales, "CONSEJOS LOCALES"},
	{EstimacionCostos, "ESTIMACIÓN DE COSTOS"},
}

// aliases maps folded labels to section keys.
var aliases = map[string]Key{
	"alojamiento":          Alojamiento,
	"hospedaje":            Alojamiento,
	"comida local":         ComidaLocal,
	"comida":               ComidaLocal,
	"gastronomia":          ComidaLocal,
	"gastronomia local":    ComidaLocal,
	"lugares imperdibles":  LugaresImperdibles,
	"lugares para visitar": LugaresImperdibles,
	"consejos locales":     ConsejosLocales,
	"consejos":             ConsejosLocales,
	"estimacion de costos": EstimacionCostos,
	"estimacion costos":    EstimacionCostos,
	"costos estimados":     EstimacionCostos,
	"presupuesto estimado": EstimacionCostos,
}

type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatRaw  Format = "raw"
)

type Parsed struct {
	Sections map[Key][]string `json:"sections"`
	Format   Format           `json:"format"`
	Raw      string           `json:"-"`
}

// Empty reports whether no section was recognized.
func (p Parsed) Empty() bool { return len(p.Sections) == 0 }

// Titles returns the sections in display order.
func Titles() []Section {
	out := make([]Section, len(all))
	copy(out, all)
	return out
}

// Title returns the display title of k, or "" for an unknown key.
func Title(k Key) string {
	for _, s := range all {
		if s.Key == k {
			return s.Title
		}
	}
	return ""
}

// KeyFor maps a label such as "Estimación de costos" or "comida_local" to its key.
func KeyFor(label string) (Key, bool) {
	l := textnorm.Fold(strings.ReplaceAll(label, "_", " "))
	k, ok := aliases[l]
	return k, ok
}

var (
	fence  = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	bullet = regexp.MustCompile(`^(?:[-•*▪►]|\d{1,2}[.)])\s+`)
)

// Parse extracts sections from answer.
func Parse(answer string) Parsed {
	if s, ok := parseJSON(answer); ok {
		return Parsed{Sections: s, Format: FormatJSON, Raw: answer}
	}
	if s := parseText(answer); len(s) > 0 {
		return Parsed{Sections: s, Format: FormatText, Raw: answer}
	}
	return Parsed{Sections: map[Key][]string{}, Format: FormatRaw, Raw: answer}
}

func parseJSON(answer string) (map[Key][]string, bool) {
	body := answer
	if m := fence.FindStringSubmatch(answer); m != nil {
		body = m[1]
	}
	start := strings.IndexByte(body, '{')
	end := strings.LastIndexByte(body, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
		return nil, false
	}
	// Some replies wrap everything in a single object such as {"itinerario": {...}}.
	if len(raw) == 1 {
		for label, v := range raw {
			if _, ok := KeyFor(label); ok {
				break
			}
			var inner map[string]json.RawMessage
			if json.Unmarshal(v, &inner) == nil && len(inner) > 0 {
				raw = inner
			}
		}
	}
	out := make(map[Key][]string)
	for label, v := range raw {
		k, ok := KeyFor(label)
		if !ok {
			continue
		}
		if items := decodeItems(v); len(items) > 0 {
			out[k] = append(out[k], items...)
		}
	}
	return out, len(out) > 0
}

func decodeItems(v json.RawMessage) []string {
	var anyv any
	if err := json.Unmarshal(v, &anyv); err != nil {
		return nil
	}
	var out []string
	switch t := anyv.(type) {
	case []any:
		for _, e := range t {
			if s := itemString(e); s != "" {
				out = append(out, s)
			}
		}
	default:
		if s := itemString(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func itemString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprint(t))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := itemString(t[k]); s != "" {
				parts = append(parts, k+": "+s)
			}
		}
		return strings.Join(parts, " - ")
	}
	return ""
}

func parseText(answer string) map[Key][]string {
	out := make(map[Key][]string)
	var current Key
	for _, line := range strings.Split(answer, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if k, inline, ok := header(line); ok {
			current = k
			if _, seen := out[k]; !seen {
				out[k] = []string{}
			}
			if inline != "" {
				out[k] = append(out[k], inline)
			}
			continue
		}
		if current == "" {
			continue
		}
		if item := cleanItem(line); item != "" {
			out[current] = append(out[current], item)
		}
	}
	for k, v := range out {
		if len(v) == 0 {
			delete(out, k)
		}
	}
	return out
}

func notLetter(r rune) bool { return !unicode.IsLetter(r) }

// header recognizes "## 🏨 ALOJAMIENTO", "**Comida local:**" and
// "ALOJAMIENTO: Hotel Centro". The text after the colon is returned as inline.
// A list item is a header only when its label is marked up as one (#, ** or
// capitals), so "- Consejos: lleva efectivo" stays an item.
func header(line string) (Key, string, bool) {
	item := bullet.MatchString(line)
	if item {
		line = bullet.ReplaceAllString(line, "")
	}
	raw, inline := line, ""
	if i := strings.IndexAny(line, ":："); i >= 0 {
		_, size := utf8.DecodeRuneInString(line[i:])
		raw, inline = line[:i], line[i+size:]
	}
	label := strings.TrimFunc(raw, notLetter)
	k, ok := KeyFor(label)
	if !ok {
		return "", "", false
	}
	if item && !strings.HasPrefix(raw, "#") && !strings.Contains(raw, "**") && label != strings.ToUpper(label) {
		return "", "", false
	}
	return k, cleanItem(inline), true
}

func cleanItem(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "*_ ")
	s = bullet.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	return strings.TrimSpace(s)
}

// Merge unions the sections of several replies, keeping first-seen order and
// dropping items repeated across replies.
func Merge(replies []string) map[Key][]string {
	out := make(map[Key][]string)
	seen := make(map[Key]map[string]bool)
	for _, r := range replies {
		p := Parse(r)
		for _, s := range all {
			for _, item := range p.Sections[s.Key] {
				f := textnorm.Fold(item)
				if seen[s.Key] == nil {
					seen[s.Key] = make(map[string]bool)
				}
				if seen[s.Key][f] {
					continue
				}
				seen[s.Key][f] = true
				out[s.Key] = append(out[s.Key], item)
			}
		}
	}
	return out
}
