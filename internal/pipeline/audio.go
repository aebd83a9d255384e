package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
	"github.com/zsiec/decant/internal/ringbuf"
)

// sampleProducer owns the audio path: decoder, resampler, the audio ring,
// and the bounded scratch area one resampled packet lands in before being
// span-copied into the ring.
type sampleProducer struct {
	log       *slog.Logger
	index     int
	dec       codec.AudioDecoder
	resampler codec.Resampler
	ring      *ringbuf.Ring
	scratch   []byte
}

func newSampleProducer(cfg AudioConfig, info codec.StreamInfo, toolkit codec.Toolkit, log *slog.Logger) (*sampleProducer, error) {
	dec, err := toolkit.NewAudioDecoder(info)
	if err != nil {
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	if info.Audio != nil && cfg.Channels > info.Audio.Channels {
		log.Warn("input has fewer channels than requested",
			"input", info.Audio.Channels, "requested", cfg.Channels)
	}

	target := codec.AudioParams{
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		Format:     media.SampleS16,
	}
	var src codec.AudioParams
	if info.Audio != nil {
		src = *info.Audio
	}

	resampler, err := toolkit.NewResampler(src, target)
	if err != nil {
		closeAll(dec)
		return nil, fmt.Errorf("open resampler: %w", err)
	}

	capacity := cfg.BufferSamples
	if capacity == 0 {
		capacity = media.AudioBufferSamples
	}
	itemSize := cfg.Channels * media.SampleS16.Bytes()

	return &sampleProducer{
		log:       log,
		index:     info.Index,
		dec:       dec,
		resampler: resampler,
		ring:      ringbuf.New(itemSize, capacity),
		scratch:   make([]byte, itemSize*media.ResampleBufferSamples),
	}, nil
}

// consume decodes one packet (or drains the decoder when pkt is nil),
// resamples the result, and queues it. Decode failures drop the packet's
// contribution without surfacing an error; a broken packet must not end the
// stream.
func (p *sampleProducer) consume(pkt *media.Packet) {
	frame, ok := receiveAudio(p.dec, pkt)
	if !ok {
		p.log.Debug("audio packet dropped")
		return
	}

	in := 0
	if frame != nil {
		in = frame.Samples
	}
	want := p.resampler.OutSamples(in)
	if want == 0 {
		return
	}
	if want > media.ResampleBufferSamples {
		panic(fmt.Sprintf("pipeline: resampled packet of %d samples exceeds scratch capacity %d",
			want, media.ResampleBufferSamples))
	}

	n, err := p.resampler.Convert(p.scratch[:want*p.ring.ItemSize()], frame)
	if err != nil {
		p.log.Debug("resample failed", "error", err)
		return
	}

	// Copy as many contiguous sample frames as possible at a time into the
	// ring; one resampled chunk may straddle the wrap boundary.
	src := p.scratch
	for n > 0 {
		span := p.ring.ContiguousSpan()
		if span > n {
			span = n
		}
		copy(p.ring.Tail(0), src[:span*p.ring.ItemSize()])
		p.ring.Append(span)
		src = src[span*p.ring.ItemSize():]
		n -= span
	}
}

// receiveAudio sends the packet (if any) and receives one decoded frame.
// A decoder that merely needs more input yields (nil, true); real failures
// yield (nil, false).
func receiveAudio(dec codec.AudioDecoder, pkt *media.Packet) (*media.AudioFrame, bool) {
	if pkt != nil {
		if err := dec.Send(pkt); err != nil {
			return nil, false
		}
	}

	frame, err := dec.Receive()
	if err == nil {
		return frame, true
	}
	if errors.Is(err, codec.ErrNeedMoreInput) {
		return nil, true
	}
	return nil, false
}

func (p *sampleProducer) close() error {
	err := closeAll(p.dec, p.resampler)
	p.ring.Destroy()
	return err
}
