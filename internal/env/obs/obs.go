// Package obs builds the policy observation: a half-resolution grayscale
// screen followed by a few scalar features.
package obs

import (
	"github.com/leanke/puffer-red/internal/emu"
	"github.com/leanke/puffer-red/internal/game/ram"
)

const (
	Width     = emu.ScreenWidth / 2
	Height    = emu.ScreenHeight / 2
	ImageSize = Width * Height

	// Extras follow the image: x, y, map, badges, party count.
	Extras = 5
	Size   = ImageSize + Extras
)

// Luma weights.
const (
	lumaR float32 = 0.299
	lumaG float32 = 0.587
	lumaB float32 = 0.114
)

// Build fills dst from a packed 0x00RRGGBB framebuffer. Each output pixel is
// 0.25 times the summed luma of its 2x2 source block. Nothing is written when
// dst or frame is too short.
func Build(dst []float32, frame []uint32, s ram.Snapshot) bool {
	if len(dst) < Size || len(frame) < emu.ScreenPixels {
		return false
	}
	for sy := 0; sy < Height; sy++ {
		row := sy * 2 * emu.ScreenWidth
		for sx := 0; sx < Width; sx++ {
			i := row + sx*2
			var sum float32
			sum += luma(frame[i])
			sum += luma(frame[i+1])
			sum += luma(frame[i+emu.ScreenWidth])
			sum += luma(frame[i+emu.ScreenWidth+1])
			dst[sy*Width+sx] = sum * 0.25
		}
	}
	ext := dst[ImageSize:Size]
	ext[0] = float32(s.X)
	ext[1] = float32(s.Y)
	ext[2] = float32(s.Map)
	ext[3] = float32(s.Badges)
	ext[4] = float32(s.PartyCount)
	return true
}

// luma keeps every product rounded to float32 before it is summed, matching a
// plain float32 multiply-add with no fused operations.
func luma(p uint32) float32 {
	r := float32((p >> 16) & 0xFF)
	g := float32((p >> 8) & 0xFF)
	b := float32(p & 0xFF)
	return float32(lumaR*r) + float32(lumaG*g) + float32(lumaB*b)
}
