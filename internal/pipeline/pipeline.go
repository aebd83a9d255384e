// Package pipeline implements the pull-driven decode core: it reads
// compressed packets from a demuxer, decodes and converts them into
// fixed-format raw samples and frames through the codec capabilities, and
// buffers the results in ring buffers that a downstream consumer drains at
// its own pace.
//
// The central type is [Session]. Consumers call [Session.Ensure] to demand a
// minimum amount of buffered media, read items through the ring buffers'
// head accessors, and release them with Remove. Everything runs
// synchronously on the calling goroutine; there is no internal concurrency.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
	"github.com/zsiec/decant/internal/ringbuf"
)

// AudioConfig selects and shapes the audio path of a session.
type AudioConfig struct {
	Channels   int
	SampleRate int

	// BufferSamples overrides the audio ring capacity in sample frames.
	// Zero means media.AudioBufferSamples.
	BufferSamples int
}

// VideoConfig selects and shapes the video path of a session.
type VideoConfig struct {
	Width  int
	Height int
	FPSNum int
	FPSDen int

	// IgnoreAspect skips the one-time aspect-ratio correction, keeping the
	// configured Width and Height exactly.
	IgnoreAspect bool

	// BufferFrames overrides the video ring capacity in frames. Zero means
	// media.VideoBufferFrames.
	BufferFrames int
}

// Config describes what a session should decode. A nil AudioConfig or
// VideoConfig leaves that whole path disabled: matching streams are ignored
// and the corresponding ring stays unallocated.
type Config struct {
	Audio *AudioConfig
	Video *VideoConfig

	// AudioRequired and VideoRequired make Open fail when the input lacks a
	// stream of that type. Without the flag a missing stream simply leaves
	// the path idle.
	AudioRequired bool
	VideoRequired bool
}

// Session owns one input's decode state: the demuxer, the per-stream
// producers with their codec collaborators, and the two ring buffers the
// consumer drains. Create it with Open and release it with Close.
type Session struct {
	log     *slog.Logger
	demuxer codec.Demuxer

	audio *sampleProducer
	video *frameProducer

	// Rings exist even for disabled paths (capacity zero) so consumers can
	// query counts without nil checks.
	audioRing *ringbuf.Ring
	videoRing *ringbuf.Ring

	drained bool
	closed  bool
}

// Open selects the session's streams from the demuxer, builds decoders and
// converters through the toolkit, and allocates both ring buffers. On
// failure the partially built session is torn down and must not be used.
//
// The session takes ownership of the demuxer; Close releases it along with
// every collaborator the toolkit produced.
func Open(cfg Config, demuxer codec.Demuxer, toolkit codec.Toolkit, log *slog.Logger) (*Session, error) {
	if log == nil {
		log = slog.Default()
	}

	s := &Session{
		log:       log.With("component", "pipeline"),
		demuxer:   demuxer,
		audioRing: ringbuf.New(1, 0),
		videoRing: ringbuf.New(1, 0),
	}

	audioStream, videoStream, err := selectStreams(cfg, demuxer.Streams())
	if err != nil {
		s.Close()
		return nil, err
	}

	if audioStream != nil {
		s.audio, err = newSampleProducer(*cfg.Audio, *audioStream, toolkit, s.log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("audio path: %w", err)
		}
		s.audioRing = s.audio.ring
	}

	if videoStream != nil {
		s.video, err = newFrameProducer(*cfg.Video, *videoStream, toolkit, s.log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("video path: %w", err)
		}
		s.videoRing = s.video.ring
	}

	return s, nil
}

// selectStreams picks at most one audio and one video stream according to
// the config. A second stream of a selected type is always an error, even
// when the type is merely used rather than required.
func selectStreams(cfg Config, streams []codec.StreamInfo) (audio, video *codec.StreamInfo, err error) {
	for i := range streams {
		info := &streams[i]
		switch info.Type {
		case media.TypeAudio:
			if cfg.Audio == nil {
				continue
			}
			if audio != nil {
				return nil, nil, ErrMultipleAudioTracks
			}
			audio = info
		case media.TypeVideo:
			if cfg.Video == nil {
				continue
			}
			if video != nil {
				return nil, nil, ErrMultipleVideoTracks
			}
			video = info
		}
	}

	if cfg.AudioRequired && audio == nil {
		return nil, nil, ErrNoAudioTrack
	}
	if cfg.VideoRequired && video == nil {
		return nil, nil, ErrNoVideoTrack
	}
	return audio, video, nil
}

// Samples returns the ring holding decoded audio, one interleaved sample
// frame per item. The consumer reads via Head and releases via Remove; it
// must never Append.
func (s *Session) Samples() *ringbuf.Ring { return s.audioRing }

// Frames returns the ring holding decoded video, one frame per item laid
// out as a full-resolution luma plane followed by the interleaved
// quarter-resolution chroma plane.
func (s *Session) Frames() *ringbuf.Ring { return s.videoRing }

// FrameSize returns the output frame geometry after aspect correction, or
// zeros when the video path is disabled.
func (s *Session) FrameSize() (width, height int) {
	if s.video == nil {
		return 0, 0
	}
	return s.video.width, s.video.height
}

// Drained reports whether the input has been exhausted. Buffered items may
// still remain after draining.
func (s *Session) Drained() bool { return s.drained }

// Close releases the demuxer, every codec collaborator, and both ring
// buffers. It is safe to call more than once; only the first call does
// work. Close errors from collaborators are collected but do not stop the
// teardown.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.audio != nil {
		errs = append(errs, s.audio.close())
	}
	if s.video != nil {
		errs = append(errs, s.video.close())
	}
	if s.demuxer != nil {
		errs = append(errs, s.demuxer.Close())
	}
	s.audioRing.Destroy()
	s.videoRing.Destroy()

	return errors.Join(errs...)
}

// closeAll closes collaborators in order, tolerating nils. Used by the
// producers' teardown paths.
func closeAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
