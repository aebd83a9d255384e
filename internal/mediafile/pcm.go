package mediafile

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

// pcmChunkSamples is how many sample frames one demuxed packet carries.
// Kept well below media.ResampleBufferSamples so even aggressive upsampling
// of a single packet fits the pipeline's scratch area.
const pcmChunkSamples = 512

func init() {
	Register(".wav", openWAV)
	Register(".mp3", openMP3)
	Register(".ogg", openOgg)
	Register(".oga", openOgg)
}

// pcmSource yields interleaved raw sample bytes for one audio file format.
// The demuxer turns its output into packets; decoding effectively happens
// at the demux boundary, paired with the Toolkit's passthrough decoder.
type pcmSource interface {
	params() codec.AudioParams
	// read returns raw bytes for up to max sample frames, or io.EOF once
	// the file is exhausted.
	read(max int) ([]byte, error)
}

// pcmDemuxer presents a single-stream audio file as a demuxer.
type pcmDemuxer struct {
	file  *os.File
	src   pcmSource
	codec string
	pos   int64
}

func newPCMDemuxer(file *os.File, src pcmSource, codecName string) *pcmDemuxer {
	return &pcmDemuxer{file: file, src: src, codec: codecName}
}

func (d *pcmDemuxer) Streams() []codec.StreamInfo {
	p := d.src.params()
	return []codec.StreamInfo{{
		Index:    0,
		Type:     media.TypeAudio,
		Codec:    d.codec,
		TimeBase: media.Rational{Num: 1, Den: p.SampleRate},
		Audio:    &p,
	}}
}

func (d *pcmDemuxer) ReadPacket() (*media.Packet, error) {
	data, err := d.src.read(pcmChunkSamples)
	if len(data) == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	p := d.src.params()
	pkt := &media.Packet{
		StreamIndex: 0,
		Data:        data,
		PTS:         d.pos,
		TimeBase:    media.Rational{Num: 1, Den: p.SampleRate},
	}
	d.pos += int64(len(data) / (p.Channels * p.Format.Bytes()))
	return pkt, nil
}

func (d *pcmDemuxer) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// WAV via go-audio: ints at the source bit depth, normalized to s16.

type wavSource struct {
	dec   *wav.Decoder
	buf   *audio.IntBuffer
	shift func(int) int16
}

func openWAV(path string) (codec.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("mediafile: %s is not a valid WAV file", path)
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("mediafile: %s: %w", path, err)
	}

	var shift func(int) int16
	switch dec.BitDepth {
	case 8:
		shift = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		shift = func(v int) int16 { return int16(v) }
	case 24:
		shift = func(v int) int16 { return int16(v >> 8) }
	case 32:
		shift = func(v int) int16 { return int16(v >> 16) }
	default:
		f.Close()
		return nil, fmt.Errorf("mediafile: %s: unsupported WAV bit depth %d", path, dec.BitDepth)
	}

	src := &wavSource{
		dec:   dec,
		shift: shift,
		buf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: int(dec.NumChans),
				SampleRate:  int(dec.SampleRate),
			},
			SourceBitDepth: int(dec.BitDepth),
		},
	}
	return newPCMDemuxer(f, src, CodecPCMS16), nil
}

func (s *wavSource) params() codec.AudioParams {
	return codec.AudioParams{
		SampleRate: int(s.dec.SampleRate),
		Channels:   int(s.dec.NumChans),
		Format:     media.SampleS16,
	}
}

func (s *wavSource) read(max int) ([]byte, error) {
	want := max * int(s.dec.NumChans)
	if cap(s.buf.Data) < want {
		s.buf.Data = make([]int, want)
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}

	out := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s.shift(s.buf.Data[i])))
	}
	return out, err
}

// MP3 via go-mp3: always 16-bit stereo at the file's sample rate.

type mp3Source struct {
	dec *mp3.Decoder
}

func openMP3(path string) (codec.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mediafile: %s: %w", path, err)
	}
	return newPCMDemuxer(f, &mp3Source{dec: dec}, CodecPCMS16), nil
}

func (s *mp3Source) params() codec.AudioParams {
	return codec.AudioParams{
		SampleRate: s.dec.SampleRate(),
		Channels:   2,
		Format:     media.SampleS16,
	}
}

func (s *mp3Source) read(max int) ([]byte, error) {
	buf := make([]byte, max*4)
	n, err := io.ReadFull(s.dec, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	n -= n % 4 // whole sample frames only
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return nil, err
	}
	return buf[:n], err
}

// Ogg Vorbis via oggvorbis: float32 samples, forwarded as f32 frames and
// converted by the resampler.

type oggSource struct {
	dec      *oggvorbis.Reader
	pending  []float32
	channels int
}

func openOgg(path string) (codec.Demuxer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mediafile: %s: %w", path, err)
	}
	return newPCMDemuxer(f, &oggSource{dec: dec, channels: dec.Channels()}, CodecPCMF32), nil
}

func (s *oggSource) params() codec.AudioParams {
	return codec.AudioParams{
		SampleRate: s.dec.SampleRate(),
		Channels:   s.channels,
		Format:     media.SampleF32,
	}
}

func (s *oggSource) read(max int) ([]byte, error) {
	want := max * s.channels
	var readErr error
	for len(s.pending) < want && readErr == nil {
		chunk := make([]float32, want-len(s.pending))
		n, err := s.dec.Read(chunk)
		s.pending = append(s.pending, chunk[:n]...)
		readErr = err
	}

	// Emit whole sample frames; a torn frame stays pending for next time.
	n := len(s.pending)
	if n > want {
		n = want
	}
	n -= n % s.channels
	if n == 0 {
		if readErr == nil {
			readErr = io.EOF
		}
		return nil, readErr
	}

	out := make([]byte, n*4)
	for i, v := range s.pending[:n] {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	s.pending = s.pending[n:]
	if len(s.pending) > 0 {
		readErr = nil
	}
	return out, readErr
}
