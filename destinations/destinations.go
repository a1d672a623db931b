// Package destinations finds "Ciudad, País" destinations in free text, decides
// whether a chat question changes the conversation's destination, and parses
// destination lists returned by the model.
package destinations

import (
	"regexp"
	"strings"

	"viajeia-backend/countries"
	"viajeia-backend/textnorm"
)

// Normalize folds a destination for comparison.
func Normalize(d string) string { return textnorm.Fold(d) }

// Same reports whether a and b name the same place, either exactly or by city.
// "París" and "paris, francia" are the same.
func Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return cityPart(na) == cityPart(nb)
}

func cityPart(d string) string {
	city, _, _ := strings.Cut(d, ",")
	return strings.TrimSpace(city)
}

// ParseFormDestination splits "Ciudad, País" at the first comma.
// country is "" when the text has no comma.
func ParseFormDestination(dest string) (city, country string) {
	dest = strings.TrimSpace(dest)
	c, rest, ok := strings.Cut(dest, ",")
	if !ok {
		return dest, ""
	}
	return strings.TrimSpace(c), strings.TrimSpace(rest)
}

var defaults = []string{
	"París, Francia",
	"Tokio, Japón",
	"Nueva York, Estados Unidos",
	"Bali, Indonesia",
	"Barcelona, España",
}

// Defaults is the popular list served when the model cannot provide one.
func Defaults() []string {
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

var explicitKeywords = []string{
	"cambiar", "cambio", "ahora quiero", "quiero ir a", "mejor", "prefiero",
	"en lugar de", "cambiar a", "cambiar destino", "ahora", "mejor destino",
	"otro destino", "diferente destino",
}

const placeName = `\p{Lu}[\p{L}'\-]*(?:\s+(?:(?:de|del|la|las|los|el)\s+)?\p{Lu}[\p{L}'\-]*)*`

var (
	formPattern    = regexp.MustCompile(`(?:viajar\s+a|ir\s+a|hacia|destino:|\ba)\s*(` + placeName + `),\s*(` + placeName + `)`)
	genericPattern = regexp.MustCompile(`(` + placeName + `),\s*(` + placeName + `)`)
)

type cityMatcher struct {
	re   *regexp.Regexp
	dest string
}

// Detector extracts destinations using the country catalog.
type Detector struct {
	catalog *countries.Catalog
	cities  []cityMatcher
}

func NewDetector(catalog *countries.Catalog) *Detector {
	d := &Detector{catalog: catalog}
	for _, c := range catalog.Cities() {
		dest := catalog.Destination(c)
		for _, k := range c.Keys {
			d.cities = append(d.cities, cityMatcher{re: wordRegexp(textnorm.Fold(k)), dest: dest})
		}
	}
	return d
}

func wordRegexp(folded string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}])` + regexp.QuoteMeta(folded) + `(?:$|[^\p{L}])`)
}

// Extract returns the destination mentioned in text as "Ciudad, País", or "".
// Well-known cities win over an explicit "Ciudad, País" pair.
func (d *Detector) Extract(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	folded := textnorm.Fold(text)
	for _, c := range d.cities {
		if c.re.MatchString(folded) {
			return c.dest
		}
	}
	for _, re := range []*regexp.Regexp{formPattern, genericPattern} {
		if m := re.FindStringSubmatch(text); m != nil {
			city, country := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
			if co, ok := d.catalog.ByName(country); ok {
				country = co.Name
			}
			return city + ", " + country
		}
	}
	return ""
}

type Change struct {
	IsChange bool
	Detected string
	Explicit bool
}

// DetectChange compares the destination mentioned in question with current.
// Without a current destination a detected one counts as explicit, not as a change.
func (d *Detector) DetectChange(current, question string) Change {
	detected := d.Extract(question)
	if detected == "" {
		return Change{}
	}
	if strings.TrimSpace(current) == "" {
		return Change{Detected: detected, Explicit: true}
	}
	if Same(current, detected) {
		return Change{Detected: detected}
	}
	q := textnorm.Fold(question)
	explicit := false
	for _, k := range explicitKeywords {
		if strings.Contains(q, textnorm.Fold(k)) {
			explicit = true
			break
		}
	}
	return Change{IsChange: true, Detected: detected, Explicit: explicit}
}
