package objectdetection

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// Palette holds the colours used for each violation severity.
type Palette struct {
	Safe     color.RGBA
	Serious  color.RGBA
	Abnormal color.RGBA
}

// DefaultPalette is green for safe, red for serious and yellow for abnormal.
var DefaultPalette = Palette{
	Safe:     color.RGBA{0, 255, 0, 255},
	Serious:  color.RGBA{255, 0, 0, 255},
	Abnormal: color.RGBA{255, 255, 0, 255},
}

// NewPalette parses three hex colours such as "#00ff00".
func NewPalette(safe, serious, abnormal string) (Palette, error) {
	var p Palette
	for _, c := range []struct {
		hex string
		dst *color.RGBA
	}{{safe, &p.Safe}, {serious, &p.Serious}, {abnormal, &p.Abnormal}} {
		parsed, err := colorful.Hex(c.hex)
		if err != nil {
			return Palette{}, errors.Wrapf(err, "invalid colour %q", c.hex)
		}
		r, g, b := parsed.RGB255()
		*c.dst = color.RGBA{r, g, b, 255}
	}
	return p, nil
}

// SeverityMarker reports the severity of the detection at an index.
type SeverityMarker interface {
	IsSerious(idx int) bool
	IsAbnormal(idx int) bool
}

// ColorOf returns the colour for the detection at idx. Serious wins over abnormal.
func (p Palette) ColorOf(m SeverityMarker, idx int) color.RGBA {
	switch {
	case m == nil:
		return p.Safe
	case m.IsSerious(idx):
		return p.Serious
	case m.IsAbnormal(idx):
		return p.Abnormal
	default:
		return p.Safe
	}
}
