package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
	"github.com/zsiec/decant/internal/ringbuf"
)

// frameProducer owns the video path: decoder, scaler, the video ring, and
// the pacing cursor that retimes the input frame rate onto the fixed output
// rate by dropping or duplicating frames.
type frameProducer struct {
	log    *slog.Logger
	index  int
	dec    codec.VideoDecoder
	scaler codec.Scaler
	ring   *ringbuf.Ring

	width  int
	height int

	// framePeriod is the output frame spacing in seconds; nextPTS is the
	// presentation time the next queued frame is due at.
	framePeriod float64
	nextPTS     float64
}

func newFrameProducer(cfg VideoConfig, info codec.StreamInfo, toolkit codec.Toolkit, log *slog.Logger) (*frameProducer, error) {
	if cfg.FPSNum <= 0 || cfg.FPSDen <= 0 {
		return nil, fmt.Errorf("invalid output frame rate %d/%d", cfg.FPSNum, cfg.FPSDen)
	}

	dec, err := toolkit.NewVideoDecoder(info)
	if err != nil {
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	width, height := cfg.Width, cfg.Height
	var src codec.VideoParams
	if info.Video != nil {
		src = *info.Video
	}

	if src.Width > 0 && src.Height > 0 {
		if width > src.Width || height > src.Height {
			log.Warn("input resolution lower than target",
				"input_width", src.Width, "input_height", src.Height,
				"target_width", width, "target_height", height)
		}
		if !cfg.IgnoreAspect {
			width, height = fitAspect(width, height, src.Width, src.Height)
			if width != cfg.Width || height != cfg.Height {
				log.Info("adjusted target size to input aspect ratio",
					"width", width, "height", height)
			}
		}
	}

	scaler, err := toolkit.NewScaler(src, codec.VideoParams{
		Width:  width,
		Height: height,
		Format: media.PixelNV21,
	})
	if err != nil {
		closeAll(dec)
		return nil, fmt.Errorf("open scaler: %w", err)
	}

	capacity := cfg.BufferFrames
	if capacity == 0 {
		capacity = media.VideoBufferFrames
	}

	return &frameProducer{
		log:    log,
		index:  info.Index,
		dec:    dec,
		scaler: scaler,
		// One full-resolution Y plane plus two interleaved quarter-resolution
		// chroma planes per item.
		ring:        ringbuf.New(width*height*3/2, capacity),
		width:       width,
		height:      height,
		framePeriod: float64(cfg.FPSDen) / float64(cfg.FPSNum),
	}, nil
}

// fitAspect shrinks one target dimension so the output aspect ratio matches
// the source, rounding to a multiple of 16.
func fitAspect(dstW, dstH, srcW, srcH int) (int, int) {
	srcRatio := float64(srcW) / float64(srcH)
	dstRatio := float64(dstW) / float64(dstH)

	if srcRatio < dstRatio {
		dstW = int(float64(dstH)*srcRatio+15.0) &^ 15
	} else {
		dstH = int(float64(dstW)/srcRatio+15.0) &^ 15
	}
	return dstW, dstH
}

// consume decodes one packet and queues zero or more output frames,
// retiming the stream onto the fixed output frame rate.
func (p *frameProducer) consume(pkt *media.Packet) {
	frame, ok := receiveVideo(p.dec, pkt)
	if !ok {
		p.log.Debug("video packet dropped")
		return
	}
	if !frame.Valid() {
		return
	}

	pts := frame.TimeBase.Seconds(frame.PTS)

	// Note: some inputs carry otherwise valid timestamps starting from a
	// negative value; they are deliberately passed through unfiltered.

	if p.ring.Count() == 0 {
		// Time origin: never drop the first frame.
		p.nextPTS = pts
	} else if pts < p.nextPTS {
		// Input frame rate exceeds the output rate.
		return
	}

	// Input frame rate below the output rate: fill the gap by duplicating
	// the most recently queued frame.
	for p.nextPTS+p.framePeriod <= pts {
		last := p.ring.Tail(1)
		dupe := p.ring.Tail(0)
		copy(dupe[:p.ring.ItemSize()], last[:p.ring.ItemSize()])
		p.ring.Append(1)
		p.nextPTS += p.framePeriod
	}

	// Scale the decoded frame directly into a fresh tail slot.
	slot := p.ring.Tail(0)
	planeSize := p.width * p.height
	dst := [][]byte{
		slot[:planeSize],
		slot[planeSize : planeSize*3/2],
	}
	dstStrides := []int{p.width, p.width}

	if err := p.scaler.Scale(frame, dst, dstStrides); err != nil {
		p.log.Debug("scale failed", "error", err)
		return
	}
	p.ring.Append(1)
	p.nextPTS += p.framePeriod
}

// receiveVideo mirrors receiveAudio for the video decoder.
func receiveVideo(dec codec.VideoDecoder, pkt *media.Packet) (*media.VideoFrame, bool) {
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

func (p *frameProducer) close() error {
	err := closeAll(p.dec, p.scaler)
	p.ring.Destroy()
	return err
}
