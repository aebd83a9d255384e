// Command decant decodes a media file into fixed-format raw output: 16-bit
// interleaved PCM written as WAV, and NV21 frames at a constant frame rate
// written as a raw plane dump. It is a thin consumer around the pipeline
// package: one goroutine pumps and drains the session while another reports
// progress.
package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/decant/internal/mediafile"
	"github.com/zsiec/decant/internal/pipeline"
)

var version = "dev"

// audioChunkSamples is how much decoded audio Ensure demands per pump
// round. Small enough to keep memory flat, large enough to amortize the
// per-write overhead of the WAV encoder.
const audioChunkSamples = 2048

func main() {
	audioOut := flag.String("audio-out", "", "write decoded audio to this WAV file")
	videoOut := flag.String("video-out", "", "write decoded video to this raw NV21 file")
	channels := flag.Int("channels", 2, "audio output channel count")
	sampleRate := flag.Int("sample-rate", 44100, "audio output sample rate in Hz")
	width := flag.Int("width", 320, "video output frame width")
	height := flag.Int("height", 240, "video output frame height")
	fps := flag.String("fps", "15", "video output frame rate, integer or num/den")
	ignoreAspect := flag.Bool("ignore-aspect", false, "keep the configured frame size even when the source aspect ratio differs")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: decant [flags] <input file>\n\nsupported inputs: %s\n\n",
			strings.Join(mediafile.Extensions(), " "))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println("decant", version)
		return
	}

	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	if *audioOut == "" && *videoOut == "" {
		slog.Error("nothing to do: pass --audio-out, --video-out, or both")
		os.Exit(2)
	}

	cfg := pipeline.Config{}
	if *audioOut != "" {
		cfg.Audio = &pipeline.AudioConfig{Channels: *channels, SampleRate: *sampleRate}
		cfg.AudioRequired = true
	}
	if *videoOut != "" {
		fpsNum, fpsDen, err := parseRate(*fps)
		if err != nil {
			slog.Error("invalid frame rate", "fps", *fps, "error", err)
			os.Exit(2)
		}
		cfg.Video = &pipeline.VideoConfig{
			Width:        *width,
			Height:       *height,
			FPSNum:       fpsNum,
			FPSDen:       fpsDen,
			IgnoreAspect: *ignoreAspect,
		}
		cfg.VideoRequired = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, stopping", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, flag.Arg(0), *audioOut, *videoOut); err != nil {
		slog.Error("decode failed", "error", err)
		os.Exit(1)
	}
}

// parseRate accepts "25" or "30000/1001".
func parseRate(s string) (num, den int, err error) {
	numStr, denStr, ok := strings.Cut(s, "/")
	den = 1
	if ok {
		if den, err = strconv.Atoi(denStr); err != nil {
			return 0, 0, err
		}
	}
	if num, err = strconv.Atoi(numStr); err != nil {
		return 0, 0, err
	}
	if num <= 0 || den <= 0 {
		return 0, 0, fmt.Errorf("frame rate %d/%d is not positive", num, den)
	}
	return num, den, nil
}

func run(ctx context.Context, cfg pipeline.Config, input, audioOut, videoOut string) error {
	demuxer, err := mediafile.Open(input)
	if err != nil {
		return err
	}

	sess, err := pipeline.Open(cfg, demuxer, mediafile.Toolkit{}, slog.Default())
	if err != nil {
		demuxer.Close()
		return err
	}
	defer sess.Close()

	var wavFile, rawFile *os.File
	var enc *wav.Encoder
	if audioOut != "" {
		if wavFile, err = os.Create(audioOut); err != nil {
			return err
		}
		defer wavFile.Close()
		enc = wav.NewEncoder(wavFile, cfg.Audio.SampleRate, 16, cfg.Audio.Channels, 1)
	}
	if videoOut != "" {
		if rawFile, err = os.Create(videoOut); err != nil {
			return err
		}
		defer rawFile.Close()
		w, h := sess.FrameSize()
		slog.Info("video output geometry", "width", w, "height", h)
	}

	var samplesOut, framesOut atomic.Int64
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	done := make(chan struct{})

	g.Go(func() error {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				slog.Info("decoding",
					"samples", samplesOut.Load(),
					"frames", framesOut.Load(),
					"elapsed", time.Since(start).Round(time.Second),
				)
			}
		}
	})

	g.Go(func() error {
		defer close(done)

		needAudio, needVideo := 0, 0
		if cfg.Audio != nil {
			needAudio = audioChunkSamples
		}
		if cfg.Video != nil {
			needVideo = 1
		}

		for {
			if err := ctx.Err(); err != nil {
				return err
			}

			sess.Ensure(needAudio, needVideo)

			if enc != nil {
				if err := drainAudio(enc, sess, &samplesOut); err != nil {
					return fmt.Errorf("write audio: %w", err)
				}
			}
			if rawFile != nil {
				if err := drainVideo(rawFile, sess, &framesOut); err != nil {
					return fmt.Errorf("write video: %w", err)
				}
			}

			if sess.Drained() && sess.Samples().Count() == 0 && sess.Frames().Count() == 0 {
				return nil
			}
		}
	})

	runErr := g.Wait()

	if enc != nil {
		if err := enc.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("finalize wav: %w", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	slog.Info("decode complete",
		"samples", samplesOut.Load(),
		"frames", framesOut.Load(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// drainAudio writes every buffered sample frame to the WAV encoder. Items
// are consumed in at most two runs per lap of the ring.
func drainAudio(enc *wav.Encoder, sess *pipeline.Session, written *atomic.Int64) error {
	ring := sess.Samples()
	itemSize := ring.ItemSize()
	channels := itemSize / 2

	for ring.Count() > 0 {
		head := ring.Head(0)
		n := len(head) / itemSize
		if n > ring.Count() {
			n = ring.Count()
		}

		buf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: enc.SampleRate},
			SourceBitDepth: 16,
			Data:           make([]int, n*channels),
		}
		for i := range buf.Data {
			buf.Data[i] = int(int16(binary.LittleEndian.Uint16(head[i*2:])))
		}
		if err := enc.Write(buf); err != nil {
			return err
		}

		ring.Remove(n)
		written.Add(int64(n))
	}
	return nil
}

// drainVideo appends every buffered frame to the raw output file.
func drainVideo(w io.Writer, sess *pipeline.Session, written *atomic.Int64) error {
	ring := sess.Frames()
	for ring.Count() > 0 {
		if _, err := w.Write(ring.Head(0)[:ring.ItemSize()]); err != nil {
			return err
		}
		ring.Remove(1)
		written.Add(1)
	}
	return nil
}
