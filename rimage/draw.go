package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// DrawRectangleEmpty draws the outline of the given rectangle into the context.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// DrawFilledCircle draws a disc of the given radius centred on (x, y).
func DrawFilledCircle(dc *gg.Context, x, y, radius float64, c color.Color) {
	dc.SetColor(c)
	dc.DrawCircle(x, y, radius)
	dc.Fill()
}

// DrawTextPanel writes lines of text top-left on a translucent dark backing so they stay
// readable on any frame.
func DrawTextPanel(dc *gg.Context, lines []string, c color.Color, size float64) {
	if len(lines) == 0 {
		return
	}
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	maxW := 0.
	for _, line := range lines {
		if w, _ := dc.MeasureString(line); w > maxW {
			maxW = w
		}
	}
	const pad = 6.
	lineH := size * 1.4
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRectangle(0, 0, maxW+2*pad, float64(len(lines))*lineH+2*pad)
	dc.Fill()

	dc.SetColor(c)
	for i, line := range lines {
		dc.DrawString(line, pad, pad+float64(i+1)*lineH-size*0.4)
	}
}
