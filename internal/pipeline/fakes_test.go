package pipeline

import (
	"errors"
	"io"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

// fakeDemuxer replays a fixed packet list and then reports end of input.
type fakeDemuxer struct {
	streams []codec.StreamInfo
	packets []*media.Packet
	pos     int
	closed  int
}

func (d *fakeDemuxer) Streams() []codec.StreamInfo { return d.streams }

func (d *fakeDemuxer) ReadPacket() (*media.Packet, error) {
	if d.pos >= len(d.packets) {
		return nil, io.EOF
	}
	pkt := d.packets[d.pos]
	d.pos++
	return pkt, nil
}

func (d *fakeDemuxer) Close() error {
	d.closed++
	return nil
}

// fakeAudioDecoder treats packet payloads as already raw s16 interleaved
// samples. failSend makes every Send fail, exercising the silent-drop path.
type fakeAudioDecoder struct {
	params   codec.AudioParams
	pending  *media.AudioFrame
	failSend bool
	closed   int
}

func (d *fakeAudioDecoder) Send(pkt *media.Packet) error {
	if d.failSend {
		return errors.New("bad packet")
	}
	d.pending = &media.AudioFrame{
		Data:     pkt.Data,
		Samples:  len(pkt.Data) / (d.params.Channels * d.params.Format.Bytes()),
		Channels: d.params.Channels,
		Rate:     d.params.SampleRate,
		Format:   d.params.Format,
	}
	return nil
}

func (d *fakeAudioDecoder) Receive() (*media.AudioFrame, error) {
	if d.pending == nil {
		return nil, codec.ErrNeedMoreInput
	}
	frame := d.pending
	d.pending = nil
	return frame, nil
}

func (d *fakeAudioDecoder) Close() error {
	d.closed++
	return nil
}

// passthroughResampler copies sample data unchanged; its target item size
// must match the source layout.
type passthroughResampler struct {
	itemSize int
	closed   int
}

func (r *passthroughResampler) OutSamples(in int) int { return in }

func (r *passthroughResampler) Convert(dst []byte, frame *media.AudioFrame) (int, error) {
	if frame == nil {
		return 0, nil
	}
	copy(dst, frame.Data[:frame.Samples*r.itemSize])
	return frame.Samples, nil
}

func (r *passthroughResampler) Close() error {
	r.closed++
	return nil
}

// fakeVideoDecoder produces one tagged frame per packet: the first payload
// byte marks every pixel, so tests can identify which input a queued frame
// (or duplicate) came from.
type fakeVideoDecoder struct {
	params  codec.VideoParams
	pending *media.VideoFrame
	closed  int
}

func (d *fakeVideoDecoder) Send(pkt *media.Packet) error {
	tag := byte(0)
	if len(pkt.Data) > 0 {
		tag = pkt.Data[0]
	}
	luma := make([]byte, d.params.Width*d.params.Height)
	for i := range luma {
		luma[i] = tag
	}
	chroma := make([]byte, d.params.Width*d.params.Height/2)
	d.pending = &media.VideoFrame{
		Width:    d.params.Width,
		Height:   d.params.Height,
		Format:   media.PixelI420,
		Planes:   [][]byte{luma, chroma},
		Strides:  []int{d.params.Width, d.params.Width},
		PTS:      pkt.PTS,
		TimeBase: pkt.TimeBase,
	}
	return nil
}

func (d *fakeVideoDecoder) Receive() (*media.VideoFrame, error) {
	if d.pending == nil {
		return nil, codec.ErrNeedMoreInput
	}
	frame := d.pending
	d.pending = nil
	return frame, nil
}

func (d *fakeVideoDecoder) Close() error {
	d.closed++
	return nil
}

// fakeScaler stamps the source frame's first luma byte across the
// destination planes.
type fakeScaler struct {
	closed int
}

func (s *fakeScaler) Scale(src *media.VideoFrame, dst [][]byte, dstStrides []int) error {
	tag := src.Planes[0][0]
	for _, plane := range dst {
		for i := range plane {
			plane[i] = tag
		}
	}
	return nil
}

func (s *fakeScaler) Close() error {
	s.closed++
	return nil
}

// fakeToolkit hands out the fakes above and remembers them for inspection.
type fakeToolkit struct {
	failAudioSend bool

	audioDec  *fakeAudioDecoder
	videoDec  *fakeVideoDecoder
	resampler *passthroughResampler
	scaler    *fakeScaler
}

func (t *fakeToolkit) NewAudioDecoder(info codec.StreamInfo) (codec.AudioDecoder, error) {
	t.audioDec = &fakeAudioDecoder{params: *info.Audio, failSend: t.failAudioSend}
	return t.audioDec, nil
}

func (t *fakeToolkit) NewVideoDecoder(info codec.StreamInfo) (codec.VideoDecoder, error) {
	t.videoDec = &fakeVideoDecoder{params: *info.Video}
	return t.videoDec, nil
}

func (t *fakeToolkit) NewResampler(src, dst codec.AudioParams) (codec.Resampler, error) {
	t.resampler = &passthroughResampler{itemSize: dst.Channels * dst.Format.Bytes()}
	return t.resampler, nil
}

func (t *fakeToolkit) NewScaler(src, dst codec.VideoParams) (codec.Scaler, error) {
	t.scaler = &fakeScaler{}
	return t.scaler, nil
}

// Stream and packet helpers shared by the pipeline tests.

func audioStream(index int) codec.StreamInfo {
	return codec.StreamInfo{
		Index:    index,
		Type:     media.TypeAudio,
		TimeBase: media.Rational{Num: 1, Den: 1000},
		Audio:    &codec.AudioParams{SampleRate: 8000, Channels: 1, Format: media.SampleS16},
	}
}

func videoStream(index int) codec.StreamInfo {
	return codec.StreamInfo{
		Index:    index,
		Type:     media.TypeVideo,
		TimeBase: media.Rational{Num: 1, Den: 1000},
		Video:    &codec.VideoParams{Width: 16, Height: 16, Format: media.PixelI420},
	}
}

// audioPacket carries samples raw s16 mono sample frames.
func audioPacket(index, samples int) *media.Packet {
	return &media.Packet{
		StreamIndex: index,
		Data:        make([]byte, samples*2),
	}
}

// videoPacket tags its frame with tag and stamps it at ptsMillis.
func videoPacket(index int, tag byte, ptsMillis int64) *media.Packet {
	return &media.Packet{
		StreamIndex: index,
		Data:        []byte{tag},
		PTS:         ptsMillis,
		TimeBase:    media.Rational{Num: 1, Den: 1000},
	}
}
