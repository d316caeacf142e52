package color

import (
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultThreshold is the largest CIEDE2000 distance, on go-colorful's 0..1
// scale, at which two colours are still considered the same filament.
const DefaultThreshold = 0.08

var names = map[string]string{
	"black":   "#000000",
	"white":   "#ffffff",
	"red":     "#ff0000",
	"green":   "#00ff00",
	"blue":    "#0000ff",
	"yellow":  "#ffff00",
	"orange":  "#ffa500",
	"purple":  "#800080",
	"pink":    "#ffc0cb",
	"grey":    "#808080",
	"gray":    "#808080",
	"silver":  "#c0c0c0",
	"gold":    "#ffd700",
	"brown":   "#a52a2a",
	"cyan":    "#00ffff",
	"magenta": "#ff00ff",
}

// Comparer holds the similarity tolerance. The zero value uses
// DefaultThreshold.
type Comparer struct {
	Threshold float64
}

// Default is the comparer used by the package level helpers.
var Default = Comparer{Threshold: DefaultThreshold}

// Normalize returns the canonical form of c: "#rrggbb" for anything that
// parses as a hex code or a known colour name, otherwise the lower-cased
// text with all whitespace removed.
func Normalize(c string) string {
	s := strings.ToLower(strings.Join(strings.Fields(c), ""))
	if hex, ok := names[s]; ok {
		return hex
	}
	raw := strings.TrimPrefix(s, "#")
	if !isHex(raw) {
		return s
	}
	switch len(raw) {
	case 3:
		return "#" + string([]byte{raw[0], raw[0], raw[1], raw[1], raw[2], raw[2]})
	case 6:
		return "#" + raw
	case 8:
		// printers append an alpha byte
		return "#" + raw[:6]
	default:
		return s
	}
}

// Equal reports whether a and b normalise to the same colour.
func Equal(a, b string) bool { return Normalize(a) == Normalize(b) }

// AreSimilar reports whether a and b are perceptually close using the
// default threshold.
func AreSimilar(a, b string) bool { return Default.AreSimilar(a, b) }

// AreSimilar reports whether a and b are within the comparer's threshold.
// It is reflexive and symmetric; colours that cannot be parsed are only
// similar to themselves.
func (c Comparer) AreSimilar(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == nb {
		return true
	}
	if nb < na {
		na, nb = nb, na
	}
	ca, err := colorful.Hex(na)
	if err != nil {
		return false
	}
	cb, err := colorful.Hex(nb)
	if err != nil {
		return false
	}
	return ca.DistanceCIEDE2000(cb) <= c.threshold()
}

// Distance returns the CIEDE2000 distance between a and b, or false when
// either colour cannot be parsed.
func (c Comparer) Distance(a, b string) (float64, bool) {
	na, nb := Normalize(a), Normalize(b)
	if nb < na {
		na, nb = nb, na
	}
	ca, err := colorful.Hex(na)
	if err != nil {
		return 0, false
	}
	cb, err := colorful.Hex(nb)
	if err != nil {
		return 0, false
	}
	return ca.DistanceCIEDE2000(cb), true
}

func (c Comparer) threshold() float64 {
	if c.Threshold <= 0 {
		return DefaultThreshold
	}
	return c.Threshold
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return false
		}
	}
	return true
}
