// Package scale implements the codec.Scaler capability for planar YUV
// sources: nearest-neighbor resampling from I420 input to the pipeline's
// output frame layout, a full-resolution luma plane followed by one
// interleaved quarter-resolution VU plane.
//
// No colorspace conversion is performed; source and target share the YUV
// value range.
package scale

import (
	"fmt"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

// Scaler resizes I420 frames to a fixed target geometry decided at
// construction.
type Scaler struct {
	srcW, srcH int
	dstW, dstH int
}

// New creates a scaler from src to dst. dst must describe the interleaved
// chroma output layout and have even dimensions.
func New(src, dst codec.VideoParams) (*Scaler, error) {
	if dst.Width <= 0 || dst.Height <= 0 {
		return nil, fmt.Errorf("scale: invalid target size %dx%d", dst.Width, dst.Height)
	}
	if dst.Width%2 != 0 || dst.Height%2 != 0 {
		return nil, fmt.Errorf("scale: target size %dx%d must be even", dst.Width, dst.Height)
	}
	if dst.Format != media.PixelNV21 {
		return nil, fmt.Errorf("scale: unsupported target format %d", dst.Format)
	}

	return &Scaler{
		srcW: src.Width, srcH: src.Height,
		dstW: dst.Width, dstH: dst.Height,
	}, nil
}

// Scale resizes src into dst, where dst[0] is the luma plane and dst[1] the
// interleaved VU plane, with strides dstStrides. The source geometry may
// differ from the parameters given at construction; the frame's own
// dimensions win, matching decoders that change size mid-stream.
func (s *Scaler) Scale(src *media.VideoFrame, dst [][]byte, dstStrides []int) error {
	if src.Format != media.PixelI420 || len(src.Planes) < 3 || len(src.Strides) < 3 {
		return fmt.Errorf("scale: source must be planar I420, got format %d with %d planes",
			src.Format, len(src.Planes))
	}
	if len(dst) < 2 || len(dstStrides) < 2 {
		return fmt.Errorf("scale: destination must have luma and chroma planes")
	}

	srcW, srcH := src.Width, src.Height
	if srcW <= 0 || srcH <= 0 {
		return fmt.Errorf("scale: source has no dimensions")
	}

	// Luma, full resolution.
	luma := src.Planes[0]
	for y := 0; y < s.dstH; y++ {
		sy := y * srcH / s.dstH
		row := dst[0][y*dstStrides[0]:]
		srcRow := luma[sy*src.Strides[0]:]
		for x := 0; x < s.dstW; x++ {
			row[x] = srcRow[x*srcW/s.dstW]
		}
	}

	// Chroma, quarter resolution, V and U interleaved.
	u, v := src.Planes[1], src.Planes[2]
	srcCW, srcCH := (srcW+1)/2, (srcH+1)/2
	dstCW, dstCH := s.dstW/2, s.dstH/2
	for y := 0; y < dstCH; y++ {
		sy := y * srcCH / dstCH
		row := dst[1][y*dstStrides[1]:]
		uRow := u[sy*src.Strides[1]:]
		vRow := v[sy*src.Strides[2]:]
		for x := 0; x < dstCW; x++ {
			sx := x * srcCW / dstCW
			row[x*2] = vRow[sx]
			row[x*2+1] = uRow[sx]
		}
	}
	return nil
}

// Close satisfies the capability contract; the scaler holds no resources.
func (s *Scaler) Close() error { return nil }
