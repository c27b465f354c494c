package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/MikeSquared-Agency/nova/internal/spec"
)

// numberPattern matches a number or a range of two, each with an optional
// thousand or million multiplier. A multiplier on the upper end of a range
// applies to the lower end too: "2-5k" is 2000 to 5000.
var numberPattern = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)*)(?:\s*(tausend|tsd|mio|millionen|million|k)\b)?` +
	`(?:\s*(?:-|–|—|bis|und|to)\s*(\d+(?:[.,]\d+)*)(?:\s*(tausend|tsd|mio|millionen|million|k)\b)?)?`)

// numberWords covers the counts owners tend to spell out, including the
// "zu dritt" form.
var numberWords = map[string]float64{
	"allein": 1, "alleine": 1,
	"zwei": 2, "zweit": 2, "drei": 3, "dritt": 3, "vier": 4, "viert": 4,
	"fünf": 5, "fünft": 5, "sechs": 6, "sechst": 6, "sieben": 7, "siebt": 7,
	"acht": 8, "neun": 9, "neunt": 9, "zehn": 10, "zehnt": 10, "elf": 11, "zwölf": 12,
	"two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// notSpecifiedVariants are what models write instead of the sentinel.
var notSpecifiedVariants = map[string]bool{
	"":                true,
	"not specified":   true,
	"not mentioned":   true,
	"unknown":         true,
	"n/a":             true,
	"none":            true,
	"nicht angegeben": true,
	"nicht genannt":   true,
	"keine angabe":    true,
	"unbekannt":       true,
	"-":               true,
}

// numbers extracts every numeric value in text. "5.000" and "5,000" are read
// as thousands; "2,5" as a decimal. Spelled-out counts are included.
func numbers(text string) []float64 {
	text = strings.ToLower(norm.NFC.String(text))
	var out []float64
	for _, m := range numberPattern.FindAllStringSubmatch(text, -1) {
		low, lowMult, high, highMult := m[1], m[2], m[3], m[4]
		if high != "" && lowMult == "" {
			lowMult = highMult
		}
		if v, ok := parseNumber(low); ok {
			out = append(out, v*multiplier(lowMult))
		}
		if high == "" {
			continue
		}
		if v, ok := parseNumber(high); ok {
			out = append(out, v*multiplier(highMult))
		}
	}
	for _, w := range strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if v, ok := numberWords[w]; ok {
			out = append(out, v)
		}
	}
	return out
}

func multiplier(suffix string) float64 {
	switch suffix {
	case "":
		return 1
	case "mio", "million", "millionen":
		return 1_000_000
	default:
		return 1000
	}
}

func parseNumber(s string) (float64, bool) {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '.' || r == ',' })
	if len(parts) > 1 {
		thousands := true
		for _, p := range parts[1:] {
			if len(p) != 3 {
				thousands = false
				break
			}
		}
		if thousands {
			s = strings.Join(parts, "")
		} else {
			s = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// factSet holds the numbers the owner actually wrote.
type factSet map[float64]bool

func newFactSet(ownerText string) factSet {
	fs := factSet{}
	for _, v := range numbers(ownerText) {
		fs[v] = true
	}
	return fs
}

func (fs factSet) has(v float64) bool { return fs[v] }

// grounded reports whether every number in value was stated by the owner.
func (fs factSet) grounded(value string) bool {
	for _, v := range numbers(value) {
		if !fs.has(v) {
			return false
		}
	}
	return true
}

// normalizeFact trims value, maps "unknown" phrasings to the sentinel and
// drops values whose numbers the owner never stated.
func (fs factSet) normalizeFact(value string) string {
	value = strings.TrimSpace(value)
	if notSpecifiedVariants[strings.ToLower(value)] {
		return spec.NotSpecified
	}
	if !fs.grounded(value) {
		return spec.NotSpecified
	}
	return value
}

func normalizePriority(p string) spec.Priority {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "hoch", "urgent", "critical", "dringend":
		return spec.PriorityHigh
	case "low", "niedrig", "gering":
		return spec.PriorityLow
	default:
		return spec.PriorityMedium
	}
}
