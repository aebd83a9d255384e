// Package codec defines the capability boundary the pipeline consumes:
// demuxing, audio/video decoding, resampling, and scaling are modeled as
// small interfaces so any media backend can sit behind them without the
// pipeline knowing which library does the work.
//
// Concrete implementations live in [github.com/zsiec/decant/internal/mediafile]
// (demuxers and decoders), [github.com/zsiec/decant/internal/resample], and
// [github.com/zsiec/decant/internal/scale].
package codec

import (
	"errors"
	"io"

	"github.com/zsiec/decant/internal/media"
)

// ErrNeedMoreInput is returned by decoder Receive when no frame is ready
// until more packets are sent. It is an expected condition, not a failure.
var ErrNeedMoreInput = errors.New("codec: decoder needs more input")

// AudioParams describes raw audio produced by a decoder or expected by a
// resampler target.
type AudioParams struct {
	SampleRate int
	Channels   int
	Format     media.SampleFormat
}

// VideoParams describes raw video geometry on either side of a scaler.
type VideoParams struct {
	Width  int
	Height int
	Format media.PixelFormat
}

// StreamInfo describes one elementary stream exposed by a demuxer.
type StreamInfo struct {
	Index    int
	Type     media.Type
	Codec    string
	TimeBase media.Rational

	// Audio is set for audio streams, Video for video streams.
	Audio *AudioParams
	Video *VideoParams
}

// Demuxer pulls compressed packets from an opened input. ReadPacket returns
// io.EOF once the input is exhausted; any other error also ends the input.
type Demuxer interface {
	Streams() []StreamInfo
	ReadPacket() (*media.Packet, error)
	io.Closer
}

// AudioDecoder turns compressed audio packets into raw frames. Send may be
// skipped to drain frames buffered inside the decoder. Receive returns
// ErrNeedMoreInput when no frame is ready yet.
type AudioDecoder interface {
	Send(pkt *media.Packet) error
	Receive() (*media.AudioFrame, error)
	io.Closer
}

// VideoDecoder is the video counterpart of AudioDecoder.
type VideoDecoder interface {
	Send(pkt *media.Packet) error
	Receive() (*media.VideoFrame, error)
	io.Closer
}

// Resampler converts raw audio frames to a fixed target rate, channel
// count, and sample format decided at construction.
type Resampler interface {
	// OutSamples returns an upper bound on the sample frames that feeding
	// in more input sample frames would yield, including anything already
	// buffered inside the resampler. A zero result means converting now
	// would produce nothing.
	OutSamples(in int) int

	// Convert resamples frame into dst and returns the sample frames
	// actually written. A nil frame drains the resampler's internal delay.
	// dst must hold at least OutSamples(frame.Samples) target items.
	Convert(dst []byte, frame *media.AudioFrame) (int, error)

	io.Closer
}

// Scaler converts one decoded frame into the fixed target geometry and
// pixel layout decided at construction, writing directly into dst planes.
type Scaler interface {
	Scale(src *media.VideoFrame, dst [][]byte, dstStrides []int) error
	io.Closer
}

// Toolkit constructs the decode collaborators for a session from stream
// parameters. It fills the role of a media backend's codec registry; the
// pipeline calls it once per stream at open time.
type Toolkit interface {
	NewAudioDecoder(info StreamInfo) (AudioDecoder, error)
	NewVideoDecoder(info StreamInfo) (VideoDecoder, error)
	NewResampler(src, dst AudioParams) (Resampler, error)
	NewScaler(src, dst VideoParams) (Scaler, error)
}
