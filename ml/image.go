package ml

import (
	"image"

	"gorgonia.org/tensor"

	"github.com/sodistec/sodistec/rimage"
)

// ImageToNCHW converts img into a float32 tensor of shape [1, 3, H, W] with channels in RGB order
// and values scaled to [0, 1].
func ImageToNCHW(img image.Image) *tensor.Dense {
	rgba := rimage.ToRGBA(img)
	b := rgba.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			px := row[4*x:]
			idx := y*w + x
			data[idx] = float32(px[0]) / 255
			data[plane+idx] = float32(px[1]) / 255
			data[2*plane+idx] = float32(px[2]) / 255
		}
	}
	return tensor.New(tensor.WithShape(1, 3, h, w), tensor.WithBacking(data))
}
