package obs

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"golang.org/x/image/draw"
)

// Image converts the image part of an observation to 8-bit grayscale.
func Image(o []float32) (*image.Gray, error) {
	if len(o) < ImageSize {
		return nil, fmt.Errorf("observation has %d values want >= %d", len(o), ImageSize)
	}
	img := image.NewGray(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			v := o[y*Width+x]
			switch {
			case v < 0:
				v = 0
			case v > 255:
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v + 0.5)})
		}
	}
	return img, nil
}

// WritePNG encodes the observation image scaled up by an integer factor with
// nearest-neighbour sampling.
func WritePNG(w io.Writer, o []float32, scale int) error {
	src, err := Image(o)
	if err != nil {
		return err
	}
	if scale < 1 {
		scale = 1
	}
	if scale == 1 {
		return png.Encode(w, src)
	}
	dst := image.NewGray(image.Rect(0, 0, Width*scale, Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return png.Encode(w, dst)
}
