package destinations

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"

	"viajeia-backend/textnorm"
)

var (
	listBullet = regexp.MustCompile(`^(?:[-•*]|\d{1,2}[.)])\s*`)
	jsonArray  = regexp.MustCompile(`(?s)\[.*?\]`)
	skipWords  = []string{"ejemplo", "formato", "instruccion", "responde"}
	nameCols   = []string{"name", "destination", "destino", "ciudad", "city"}
	countryCol = []string{"country", "pais"}
)

// ParseList extracts "Ciudad, País" entries from a model reply. It accepts one
// destination per line, a pipe-separated table with a header row, or a JSON
// array of strings. Duplicates are removed; callers cap the length.
func ParseList(text string) []string {
	lines := cleanLines(text)
	var out []string
	if hasTable(lines) {
		out = parseTable(lines)
	} else {
		for _, l := range lines {
			if keepLine(l) {
				out = append(out, l)
			}
		}
	}
	if len(out) == 0 {
		if m := jsonArray.FindString(text); m != "" {
			var arr []string
			if json.Unmarshal([]byte(m), &arr) == nil {
				for _, s := range arr {
					if s = strings.TrimSpace(s); strings.Contains(s, ",") {
						out = append(out, s)
					}
				}
			}
		}
	}
	return dedupe(out)
}

func cleanLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "#") || strings.HasPrefix(l, "//") {
			continue
		}
		l = listBullet.ReplaceAllString(l, "")
		l = strings.ReplaceAll(l, "**", "")
		l = strings.Trim(l, `"'`+"`")
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func keepLine(l string) bool {
	n := utf8.RuneCountInString(l)
	if n < 3 {
		return false
	}
	if strings.HasSuffix(l, ".") && n < 20 {
		return false
	}
	f := textnorm.Fold(l)
	for _, w := range skipWords {
		if strings.Contains(f, w) {
			return false
		}
	}
	if strings.ContainsAny(l, "{}[]") {
		return false
	}
	return strings.Contains(l, ",")
}

func hasTable(lines []string) bool {
	for _, l := range lines {
		if strings.Contains(l, "|") {
			return true
		}
	}
	return false
}

func splitRow(l string) []string {
	parts := strings.Split(strings.Trim(l, "|"), "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func column(header []string, names []string) int {
	for i, h := range header {
		f := textnorm.Fold(h)
		for _, n := range names {
			if f == n {
				return i
			}
		}
	}
	return -1
}

func parseTable(lines []string) []string {
	start := -1
	for i, l := range lines {
		if strings.Contains(l, "|") {
			start = i
			break
		}
	}
	header := splitRow(lines[start])
	nameIdx := column(header, nameCols)
	countryIdx := column(header, countryCol)
	if nameIdx < 0 {
		nameIdx = 0
	}
	var out []string
	for _, l := range lines[start+1:] {
		if !strings.Contains(l, "|") || strings.Trim(l, "|-: ") == "" {
			continue
		}
		row := splitRow(l)
		if nameIdx >= len(row) || row[nameIdx] == "" {
			continue
		}
		v := row[nameIdx]
		if !strings.Contains(v, ",") && countryIdx >= 0 && countryIdx < len(row) && row[countryIdx] != "" {
			v += ", " + row[countryIdx]
		}
		if strings.Contains(v, ",") {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := Normalize(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}
