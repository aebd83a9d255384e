package mediafile

import (
	"fmt"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
	"github.com/zsiec/decant/internal/resample"
	"github.com/zsiec/decant/internal/scale"
)

// Toolkit builds decode collaborators for the streams this package's
// demuxers expose. The demuxers here emit decoded payloads already, so the
// decoders are thin unwrappers; resampling and scaling are the real work.
type Toolkit struct{}

var _ codec.Toolkit = Toolkit{}

func (Toolkit) NewAudioDecoder(info codec.StreamInfo) (codec.AudioDecoder, error) {
	if info.Audio == nil {
		return nil, fmt.Errorf("mediafile: stream %d has no audio parameters", info.Index)
	}
	switch info.Codec {
	case CodecPCMS16, CodecPCMF32:
		return &pcmAudioDecoder{params: *info.Audio}, nil
	}
	return nil, fmt.Errorf("mediafile: no audio decoder for codec %q", info.Codec)
}

func (Toolkit) NewVideoDecoder(info codec.StreamInfo) (codec.VideoDecoder, error) {
	if info.Video == nil {
		return nil, fmt.Errorf("mediafile: stream %d has no video parameters", info.Index)
	}
	if info.Codec != CodecRawVideo {
		return nil, fmt.Errorf("mediafile: no video decoder for codec %q", info.Codec)
	}
	if info.Video.Format != media.PixelI420 {
		return nil, fmt.Errorf("mediafile: rawvideo decoder needs I420 input, got %v", info.Video.Format)
	}
	return &rawVideoDecoder{params: *info.Video}, nil
}

func (Toolkit) NewResampler(src, dst codec.AudioParams) (codec.Resampler, error) {
	return resample.New(src, dst)
}

func (Toolkit) NewScaler(src, dst codec.VideoParams) (codec.Scaler, error) {
	return scale.New(src, dst)
}

// pcmAudioDecoder unwraps packets whose payload is already raw PCM in the
// stream's native format. One packet in, one frame out.
type pcmAudioDecoder struct {
	params  codec.AudioParams
	pending *media.AudioFrame
}

func (d *pcmAudioDecoder) Send(pkt *media.Packet) error {
	if d.pending != nil {
		return fmt.Errorf("mediafile: pcm decoder already holds a frame")
	}
	itemSize := d.params.Channels * d.params.Format.Bytes()
	if len(pkt.Data)%itemSize != 0 {
		return fmt.Errorf("mediafile: pcm packet of %d bytes is not a whole number of %d-byte frames", len(pkt.Data), itemSize)
	}
	d.pending = &media.AudioFrame{
		Data:     pkt.Data,
		Samples:  len(pkt.Data) / itemSize,
		Channels: d.params.Channels,
		Rate:     d.params.SampleRate,
		Format:   d.params.Format,
	}
	return nil
}

func (d *pcmAudioDecoder) Receive() (*media.AudioFrame, error) {
	if d.pending == nil {
		return nil, codec.ErrNeedMoreInput
	}
	f := d.pending
	d.pending = nil
	return f, nil
}

func (d *pcmAudioDecoder) Close() error { return nil }

// rawVideoDecoder splits packed I420 payloads into planes. One packet in,
// one frame out.
type rawVideoDecoder struct {
	params  codec.VideoParams
	pending *media.VideoFrame
}

func (d *rawVideoDecoder) Send(pkt *media.Packet) error {
	if d.pending != nil {
		return fmt.Errorf("mediafile: rawvideo decoder already holds a frame")
	}
	w, h := d.params.Width, d.params.Height
	if len(pkt.Data) != w*h*3/2 {
		return fmt.Errorf("mediafile: rawvideo packet of %d bytes, want %d for %dx%d I420", len(pkt.Data), w*h*3/2, w, h)
	}
	lumaSize := w * h
	chromaSize := lumaSize / 4
	d.pending = &media.VideoFrame{
		Width:  w,
		Height: h,
		Format: media.PixelI420,
		Planes: [][]byte{
			pkt.Data[:lumaSize],
			pkt.Data[lumaSize : lumaSize+chromaSize],
			pkt.Data[lumaSize+chromaSize:],
		},
		Strides:  []int{w, w / 2, w / 2},
		PTS:      pkt.PTS,
		TimeBase: pkt.TimeBase,
	}
	return nil
}

func (d *rawVideoDecoder) Receive() (*media.VideoFrame, error) {
	if d.pending == nil {
		return nil, codec.ErrNeedMoreInput
	}
	f := d.pending
	d.pending = nil
	return f, nil
}

func (d *rawVideoDecoder) Close() error { return nil }
