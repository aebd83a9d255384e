package mediafile

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nareix/joy4/av"
	"github.com/nareix/joy4/format/flv"
	"github.com/nareix/joy4/format/mp4"
	"github.com/nareix/joy4/format/ts"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

func init() {
	for _, ext := range []string{".mp4", ".m4v", ".mov"} {
		Register(ext, func(path string) (codec.Demuxer, error) {
			return openJoy4(path, func(f *os.File) av.Demuxer { return mp4.NewDemuxer(f) })
		})
	}
	Register(".ts", func(path string) (codec.Demuxer, error) {
		return openJoy4(path, func(f *os.File) av.Demuxer { return ts.NewDemuxer(f) })
	})
	Register(".flv", func(path string) (codec.Demuxer, error) {
		return openJoy4(path, func(f *os.File) av.Demuxer { return flv.NewDemuxer(f) })
	})
}

// joy4Demuxer adapts joy4 container demuxers (mp4, mpeg-ts, flv) to the
// pipeline's Demuxer interface. Packets come out still compressed; whether
// a session can use a stream depends on the Toolkit it was opened with.
type joy4Demuxer struct {
	file    *os.File
	dem     av.Demuxer
	streams []codec.StreamInfo
}

func openJoy4(path string, newDemuxer func(*os.File) av.Demuxer) (codec.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dem := newDemuxer(f)
	codecs, err := dem.Streams()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mediafile: %s: read container streams: %w", path, err)
	}

	d := &joy4Demuxer{file: f, dem: dem}
	for i, cd := range codecs {
		d.streams = append(d.streams, streamInfoFromJoy4(i, cd))
	}
	return d, nil
}

func streamInfoFromJoy4(index int, cd av.CodecData) codec.StreamInfo {
	info := codec.StreamInfo{
		Index:    index,
		Codec:    joy4CodecName(cd.Type()),
		TimeBase: media.Rational{Num: 1, Den: int(1e9)},
	}
	switch {
	case cd.Type().IsAudio():
		info.Type = media.TypeAudio
		if acd, ok := cd.(av.AudioCodecData); ok {
			info.Audio = &codec.AudioParams{
				SampleRate: acd.SampleRate(),
				Channels:   acd.ChannelLayout().Count(),
				Format:     joy4SampleFormat(acd.SampleFormat()),
			}
		}
	case cd.Type().IsVideo():
		info.Type = media.TypeVideo
		if vcd, ok := cd.(av.VideoCodecData); ok {
			info.Video = &codec.VideoParams{
				Width:  vcd.Width(),
				Height: vcd.Height(),
				Format: media.PixelI420,
			}
		}
	default:
		info.Type = media.TypeOther
	}
	return info
}

func joy4CodecName(t av.CodecType) string {
	return strings.ToLower(t.String())
}

func joy4SampleFormat(f av.SampleFormat) media.SampleFormat {
	switch f {
	case av.FLT, av.FLTP:
		return media.SampleF32
	default:
		return media.SampleS16
	}
}

func (d *joy4Demuxer) Streams() []codec.StreamInfo {
	return d.streams
}

func (d *joy4Demuxer) ReadPacket() (*media.Packet, error) {
	pkt, err := d.dem.ReadPacket()
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("mediafile: read container packet: %w", err)
	}
	return &media.Packet{
		StreamIndex: int(pkt.Idx),
		Data:        pkt.Data,
		PTS:         int64(pkt.Time + pkt.CompositionTime),
		TimeBase:    media.Rational{Num: 1, Den: int(1e9)},
	}, nil
}

func (d *joy4Demuxer) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
