// Package mediafile provides file-backed implementations of the codec
// capabilities: container demuxing through joy4 (MP4, FLV, MPEG-TS), audio
// demux-decoding for WAV, MP3, and Ogg Vorbis files, and raw YUV4MPEG2
// video. It also supplies the default [Toolkit] wiring the resample and
// scale packages behind the codec interfaces.
//
// Demuxers are selected by file extension through a registry; each format
// file registers its extensions at init time.
package mediafile

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zsiec/decant/internal/codec"
)

// Codec names carried in codec.StreamInfo so the Toolkit can match streams
// with decoders. Compressed codecs coming out of the container demuxer keep
// their own names and need a caller-provided decoder.
const (
	CodecPCMS16   = "pcm_s16le"
	CodecPCMF32   = "pcm_f32le"
	CodecRawVideo = "rawvideo"
)

// OpenFunc opens one input file as a demuxer.
type OpenFunc func(path string) (codec.Demuxer, error)

var registry = map[string]OpenFunc{}

// Register associates a file extension (with leading dot, lowercase) with a
// demuxer constructor.
func Register(ext string, open OpenFunc) {
	registry[ext] = open
}

// Extensions returns the registered file extensions, sorted.
func Extensions() []string {
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Open opens path with the demuxer registered for its extension.
func Open(path string) (codec.Demuxer, error) {
	ext := strings.ToLower(filepath.Ext(path))
	open, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("mediafile: unsupported input format %q (supported: %s)",
			ext, strings.Join(Extensions(), " "))
	}
	return open(path)
}
