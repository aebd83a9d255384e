// Package resample implements the codec.Resampler capability: streaming
// sample-rate conversion by Catmull-Rom cubic interpolation over a four
// frame window, with a one-pole low-pass filter when downsampling and
// simple channel up/down-mixing. Output is always signed 16-bit
// little-endian interleaved PCM.
package resample

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

// tailShiftLimit bounds how far the interpolation window slides past the
// final input frame while draining.
const tailShiftLimit = 2

// Resampler converts interleaved raw audio to a fixed target rate, channel
// count, and s16 format. It keeps interpolation state across Convert calls
// so packet boundaries do not produce seams.
type Resampler struct {
	ratio float64 // source sample frames per output frame
	srcCh int
	dstCh int

	// win holds four consecutive mixed source frames; interpolation happens
	// between win[1] and win[2] at fractional position pos.
	win      [4][]float32
	winCount int // source frames pushed into the window so far
	pos      float64

	// backlog holds mixed source frames not yet pulled into the window.
	backlog []float32

	filterState []float32
	filterAlpha float32
	useFilter   bool

	draining   bool
	tailShifts int
}

// New creates a resampler from src to dst. dst.Format must be s16; src may
// be s16 or f32 interleaved.
func New(src, dst codec.AudioParams) (*Resampler, error) {
	if src.SampleRate <= 0 || src.Channels <= 0 {
		return nil, fmt.Errorf("resample: invalid source params %d Hz, %d channels", src.SampleRate, src.Channels)
	}
	if dst.SampleRate <= 0 || dst.Channels <= 0 {
		return nil, fmt.Errorf("resample: invalid target params %d Hz, %d channels", dst.SampleRate, dst.Channels)
	}
	if dst.Format != media.SampleS16 {
		return nil, fmt.Errorf("resample: unsupported target format %d", dst.Format)
	}

	r := &Resampler{
		ratio: float64(src.SampleRate) / float64(dst.SampleRate),
		srcCh: src.Channels,
		dstCh: dst.Channels,
	}
	for i := range r.win {
		r.win[i] = make([]float32, dst.Channels)
	}
	if r.ratio > 1.0 {
		// Downsampling: one-pole low-pass with the cutoff near the target
		// Nyquist frequency to tame aliasing.
		r.useFilter = true
		r.filterAlpha = 0.5
		r.filterState = make([]float32, dst.Channels)
	}
	return r, nil
}

// OutSamples returns an upper bound on the output sample frames available
// once in further source frames arrive, counting frames already buffered.
// Zero means converting now would produce nothing.
func (r *Resampler) OutSamples(in int) int {
	avail := in + len(r.backlog)/r.dstCh
	if avail == 0 {
		if !r.draining || r.tailShifts >= tailShiftLimit || r.winCount == 0 {
			return 0
		}
		avail = tailShiftLimit - r.tailShifts
	}
	return int(math.Ceil(float64(avail)/r.ratio)) + 2
}

// Convert resamples frame into dst and returns the sample frames written.
// A nil frame switches the resampler into draining mode and flushes the
// frames still held in the interpolation window. dst must hold at least
// OutSamples(frame.Samples) s16 interleaved items.
func (r *Resampler) Convert(dst []byte, frame *media.AudioFrame) (int, error) {
	if frame != nil {
		if err := r.push(frame); err != nil {
			return 0, err
		}
	} else {
		r.draining = true
	}

	itemSize := r.dstCh * 2
	capacity := len(dst) / itemSize
	written := 0

	for written < capacity {
		// Slide the window until the output position falls between win[1]
		// and win[2].
		for r.pos >= 1.0 {
			if !r.shift() {
				return written, nil
			}
			r.pos -= 1.0
		}
		if r.winCount < 2 {
			// Not enough frames yet for interpolation.
			if !r.shift() {
				return written, nil
			}
			continue
		}

		alpha := float32(r.pos)
		for c := 0; c < r.dstCh; c++ {
			y0 := r.win[0][c]
			y1 := r.win[1][c]
			y2 := r.win[2][c]
			y3 := r.win[3][c]
			v := cubicInterpolate(y0, y1, y2, y3, alpha)
			binary.LittleEndian.PutUint16(dst[written*itemSize+c*2:], uint16(floatToS16(v)))
		}
		written++
		r.pos += r.ratio
	}
	return written, nil
}

// push mixes the frame to the target channel count and appends it to the
// backlog, applying the anti-aliasing filter when enabled.
func (r *Resampler) push(frame *media.AudioFrame) error {
	if frame.Channels != r.srcCh {
		return fmt.Errorf("resample: frame has %d channels, expected %d", frame.Channels, r.srcCh)
	}

	for i := 0; i < frame.Samples; i++ {
		for c := 0; c < r.dstCh; c++ {
			v := r.mixChannel(frame, i, c)
			if r.useFilter {
				v = r.filterAlpha*v + (1-r.filterAlpha)*r.filterState[c]
				r.filterState[c] = v
			}
			r.backlog = append(r.backlog, v)
		}
	}
	return nil
}

// mixChannel produces target channel c of source sample frame i.
func (r *Resampler) mixChannel(frame *media.AudioFrame, i, c int) float32 {
	if r.dstCh == 1 && r.srcCh > 1 {
		// Downmix: average all source channels.
		var sum float32
		for sc := 0; sc < r.srcCh; sc++ {
			sum += sampleAt(frame, i, sc)
		}
		return sum / float32(r.srcCh)
	}
	// Pass-through or upmix by repeating source channels.
	return sampleAt(frame, i, c%r.srcCh)
}

// shift advances the interpolation window by one source frame. During
// draining it duplicates the final frame for up to tailShiftLimit slots;
// otherwise it returns false when the backlog is empty.
func (r *Resampler) shift() bool {
	if len(r.backlog) < r.dstCh {
		if !r.draining || r.tailShifts >= tailShiftLimit || r.winCount == 0 {
			return false
		}
		r.win[0], r.win[1], r.win[2], r.win[3] = r.win[1], r.win[2], r.win[3], r.win[0]
		copy(r.win[3], r.win[2])
		r.tailShifts++
		r.winCount++
		return true
	}

	r.win[0], r.win[1], r.win[2], r.win[3] = r.win[1], r.win[2], r.win[3], r.win[0]
	copy(r.win[3], r.backlog[:r.dstCh])
	r.backlog = r.backlog[r.dstCh:]
	if r.winCount == 0 {
		// First frame primes the whole window so interpolation near the
		// stream start leans on duplicated edges.
		copy(r.win[0], r.win[3])
		copy(r.win[1], r.win[3])
		copy(r.win[2], r.win[3])
		r.winCount = 3
	}
	r.winCount++
	return true
}

// Close releases nothing but satisfies the capability contract.
func (r *Resampler) Close() error {
	r.backlog = nil
	return nil
}

// sampleAt decodes source sample frame i, channel c to a float in [-1, 1].
func sampleAt(frame *media.AudioFrame, i, c int) float32 {
	idx := i*frame.Channels + c
	switch frame.Format {
	case media.SampleF32:
		bits := binary.LittleEndian.Uint32(frame.Data[idx*4:])
		return math.Float32frombits(bits)
	default:
		v := int16(binary.LittleEndian.Uint16(frame.Data[idx*2:]))
		return float32(v) / 32768.0
	}
}

// cubicInterpolate evaluates a Catmull-Rom spline at fractional position x
// between y1 and y2.
func cubicInterpolate(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}

// floatToS16 clamps and scales a float sample to signed 16-bit.
func floatToS16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767.0)
}
