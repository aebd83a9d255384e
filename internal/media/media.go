// Package media defines the packet, frame, and format types that flow
// through the decant decode pipeline, from demuxing through the buffered
// consumer boundary.
package media

// Buffer sizes used by the pipeline producers (audio sample frames, video
// frames) and the bounded scratch area one resampled packet may fill. Sized
// so a single decode step can never outrun the consumer's drain batches.
const (
	// AudioBufferSamples is the default audio ring capacity in sample frames.
	AudioBufferSamples = 0x4000

	// VideoBufferFrames is the default video ring capacity in frames.
	VideoBufferFrames = 0x20

	// ResampleBufferSamples bounds the sample frames a single input packet
	// may yield after resampling.
	ResampleBufferSamples = 0x1000
)

// Type identifies the media carried by a stream.
type Type int

const (
	TypeOther Type = iota
	TypeAudio
	TypeVideo
)

// String returns a short lowercase name for the media type.
func (t Type) String() string {
	switch t {
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	default:
		return "other"
	}
}

// Rational is an exact fraction, used for stream time bases.
type Rational struct {
	Num int
	Den int
}

// Seconds converts a timestamp expressed in this time base to seconds.
func (r Rational) Seconds(ts int64) float64 {
	return float64(ts) * float64(r.Num) / float64(r.Den)
}

// Float returns the fraction as a float64.
func (r Rational) Float() float64 {
	return float64(r.Num) / float64(r.Den)
}

// Packet is one compressed unit read from a demuxer, still tagged with the
// stream it belongs to.
type Packet struct {
	StreamIndex int
	Data        []byte
	PTS         int64
	TimeBase    Rational
}

// SampleFormat identifies how raw audio samples are laid out. All formats
// are interleaved; planar layouts are normalized by decoders before frames
// enter the pipeline.
type SampleFormat int

const (
	// SampleS16 is signed 16-bit little-endian interleaved PCM.
	SampleS16 SampleFormat = iota
	// SampleF32 is 32-bit float interleaved PCM in [-1, 1].
	SampleF32
)

// Bytes returns the width of one sample of this format in bytes.
func (f SampleFormat) Bytes() int {
	switch f {
	case SampleF32:
		return 4
	default:
		return 2
	}
}

// AudioFrame is one decoded run of interleaved raw audio samples.
type AudioFrame struct {
	Data     []byte // Samples * Channels * Format.Bytes() bytes
	Samples  int    // sample frames, not values
	Channels int
	Rate     int
	Format   SampleFormat
}

// PixelFormat identifies the plane layout of a decoded video frame.
type PixelFormat int

const (
	// PixelI420 is planar YUV 4:2:0 with separate U and V planes.
	PixelI420 PixelFormat = iota
	// PixelNV21 is a full-resolution Y plane followed by one interleaved
	// quarter-resolution VU plane.
	PixelNV21
)

// VideoFrame is one decoded picture, possibly still at the source
// resolution and pixel layout.
type VideoFrame struct {
	Width   int
	Height  int
	Format  PixelFormat
	Planes  [][]byte
	Strides []int

	PTS      int64
	TimeBase Rational
}

// Valid reports whether the frame carries usable picture data.
func (f *VideoFrame) Valid() bool {
	return f != nil && f.Width > 0 && f.Height > 0 && len(f.Planes) > 0 && len(f.Planes[0]) > 0
}
