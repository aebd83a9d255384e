package mediafile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

func init() {
	Register(".y4m", openY4M)
}

// y4mDemuxer reads uncompressed YUV4MPEG2 streams. Each packet carries one
// whole I420 frame; the Toolkit's rawvideo decoder unwraps it without any
// bitstream work, which makes y4m the reference input for exercising the
// video path end to end.
type y4mDemuxer struct {
	file *os.File
	br   *bufio.Reader

	width  int
	height int
	fps    media.Rational
	frame  int64
}

func openY4M(path string) (codec.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	d := &y4mDemuxer{file: f, br: bufio.NewReaderSize(f, 1<<16)}
	if err := d.parseHeader(); err != nil {
		f.Close()
		return nil, fmt.Errorf("mediafile: %s: %w", path, err)
	}
	return d, nil
}

func (d *y4mDemuxer) parseHeader() error {
	line, err := d.br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read y4m header: %w", err)
	}
	fields := strings.Fields(strings.TrimSuffix(line, "\n"))
	if len(fields) == 0 || fields[0] != "YUV4MPEG2" {
		return fmt.Errorf("not a YUV4MPEG2 stream")
	}

	d.fps = media.Rational{Num: 25, Den: 1}
	for _, f := range fields[1:] {
		if len(f) < 2 {
			continue
		}
		val := f[1:]
		switch f[0] {
		case 'W':
			d.width, err = strconv.Atoi(val)
		case 'H':
			d.height, err = strconv.Atoi(val)
		case 'F':
			num, den, ok := strings.Cut(val, ":")
			if !ok {
				return fmt.Errorf("malformed frame rate %q", val)
			}
			if d.fps.Num, err = strconv.Atoi(num); err == nil {
				d.fps.Den, err = strconv.Atoi(den)
			}
		case 'C':
			if !strings.HasPrefix(val, "420") {
				return fmt.Errorf("unsupported chroma subsampling %q, need 4:2:0", val)
			}
		}
		if err != nil {
			return fmt.Errorf("malformed y4m parameter %q: %w", f, err)
		}
	}

	if d.width <= 0 || d.height <= 0 {
		return fmt.Errorf("missing frame dimensions")
	}
	if d.fps.Num <= 0 || d.fps.Den <= 0 {
		return fmt.Errorf("invalid frame rate %d:%d", d.fps.Num, d.fps.Den)
	}
	return nil
}

func (d *y4mDemuxer) Streams() []codec.StreamInfo {
	return []codec.StreamInfo{{
		Index: 0,
		Type:  media.TypeVideo,
		Codec: CodecRawVideo,
		// One tick per frame: pts n lands at n*Den/Num seconds.
		TimeBase: media.Rational{Num: d.fps.Den, Den: d.fps.Num},
		Video:    &codec.VideoParams{Width: d.width, Height: d.height, Format: media.PixelI420},
	}}
}

func (d *y4mDemuxer) ReadPacket() (*media.Packet, error) {
	line, err := d.br.ReadString('\n')
	if err == io.EOF && line == "" {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("mediafile: read y4m frame marker: %w", err)
	}
	if !strings.HasPrefix(line, "FRAME") {
		return nil, fmt.Errorf("mediafile: malformed y4m frame marker %q", strings.TrimSuffix(line, "\n"))
	}

	data := make([]byte, d.width*d.height*3/2)
	if _, err := io.ReadFull(d.br, data); err != nil {
		return nil, fmt.Errorf("mediafile: short y4m frame: %w", err)
	}

	pkt := &media.Packet{
		StreamIndex: 0,
		Data:        data,
		PTS:         d.frame,
		TimeBase:    media.Rational{Num: d.fps.Den, Den: d.fps.Num},
	}
	d.frame++
	return pkt, nil
}

func (d *y4mDemuxer) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
