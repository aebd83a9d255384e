package pipeline

import (
	"errors"
	"testing"

	"github.com/zsiec/decant/internal/codec"
	"github.com/zsiec/decant/internal/media"
)

func TestOpenStreamSelection(t *testing.T) {
	t.Parallel()

	baseCfg := Config{
		Audio: &AudioConfig{Channels: 1, SampleRate: 8000},
		Video: &VideoConfig{Width: 16, Height: 16, FPSNum: 30, FPSDen: 1},
	}

	cases := []struct {
		name    string
		cfg     Config
		streams []codec.StreamInfo
		wantErr error
	}{
		{
			name:    "one of each",
			cfg:     baseCfg,
			streams: []codec.StreamInfo{audioStream(0), videoStream(1)},
		},
		{
			name:    "duplicate audio",
			cfg:     baseCfg,
			streams: []codec.StreamInfo{audioStream(0), audioStream(1)},
			wantErr: ErrMultipleAudioTracks,
		},
		{
			name:    "duplicate video",
			cfg:     baseCfg,
			streams: []codec.StreamInfo{videoStream(0), videoStream(1)},
			wantErr: ErrMultipleVideoTracks,
		},
		{
			name:    "missing required audio",
			cfg:     Config{Audio: &AudioConfig{Channels: 1, SampleRate: 8000}, AudioRequired: true},
			streams: []codec.StreamInfo{videoStream(0)},
			wantErr: ErrNoAudioTrack,
		},
		{
			name:    "missing required video",
			cfg:     Config{Video: &VideoConfig{Width: 16, Height: 16, FPSNum: 30, FPSDen: 1}, VideoRequired: true},
			streams: []codec.StreamInfo{audioStream(0)},
			wantErr: ErrNoVideoTrack,
		},
		{
			name:    "duplicate audio ignored when path disabled",
			cfg:     Config{Video: &VideoConfig{Width: 16, Height: 16, FPSNum: 30, FPSDen: 1}},
			streams: []codec.StreamInfo{audioStream(0), audioStream(1), videoStream(2)},
		},
		{
			name:    "missing optional stream is fine",
			cfg:     baseCfg,
			streams: []codec.StreamInfo{audioStream(0)},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			demuxer := &fakeDemuxer{streams: tc.streams}
			s, err := Open(tc.cfg, demuxer, &fakeToolkit{}, nil)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Open: got error %v, want %v", err, tc.wantErr)
			}
			if tc.wantErr != nil {
				if demuxer.closed != 1 {
					t.Errorf("failed Open must close the demuxer, closed %d times", demuxer.closed)
				}
				return
			}
			defer s.Close()

			if s.Samples() == nil || s.Frames() == nil {
				t.Fatal("rings must exist even for disabled paths")
			}
		})
	}
}

func TestCloseIdempotent(t *testing.T) {
	t.Parallel()

	demuxer := &fakeDemuxer{streams: []codec.StreamInfo{audioStream(0), videoStream(1)}}
	toolkit := &fakeToolkit{}
	cfg := Config{
		Audio: &AudioConfig{Channels: 1, SampleRate: 8000},
		Video: &VideoConfig{Width: 16, Height: 16, FPSNum: 30, FPSDen: 1},
	}
	s, err := Open(cfg, demuxer, toolkit, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if demuxer.closed != 1 {
		t.Errorf("demuxer closed %d times, want 1", demuxer.closed)
	}
	if toolkit.audioDec.closed != 1 || toolkit.videoDec.closed != 1 {
		t.Errorf("decoders closed %d/%d times, want 1/1", toolkit.audioDec.closed, toolkit.videoDec.closed)
	}
	if toolkit.resampler.closed != 1 || toolkit.scaler.closed != 1 {
		t.Errorf("resampler/scaler closed %d/%d times, want 1/1", toolkit.resampler.closed, toolkit.scaler.closed)
	}
}

func TestPollRoutesByStreamIndex(t *testing.T) {
	t.Parallel()

	demuxer := &fakeDemuxer{
		streams: []codec.StreamInfo{audioStream(0), videoStream(1)},
		packets: []*media.Packet{
			audioPacket(0, 4),
			videoPacket(1, 0xaa, 0),
			{StreamIndex: 7, Data: []byte{1}}, // unselected track, ignored
			audioPacket(0, 2),
		},
	}
	cfg := Config{
		Audio: &AudioConfig{Channels: 1, SampleRate: 8000},
		Video: &VideoConfig{Width: 16, Height: 16, FPSNum: 30, FPSDen: 1},
	}
	s, err := Open(cfg, demuxer, &fakeToolkit{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	for i := 0; i < 4; i++ {
		if !s.Poll() {
			t.Fatalf("Poll %d: unexpected drain", i)
		}
	}
	if s.Poll() {
		t.Error("Poll past end of input: got true, want false")
	}
	if !s.Drained() {
		t.Error("expected drained state")
	}
	if s.Poll() {
		t.Error("Poll after drain must stay false without reading")
	}

	if got := s.Samples().Count(); got != 6 {
		t.Errorf("audio samples: got %d, want 6", got)
	}
	if got := s.Frames().Count(); got != 1 {
		t.Errorf("video frames: got %d, want 1", got)
	}
}

func TestEnsurePumpsOnePastThreshold(t *testing.T) {
	t.Parallel()

	demuxer := &fakeDemuxer{
		streams: []codec.StreamInfo{audioStream(0)},
		packets: []*media.Packet{
			audioPacket(0, 1), audioPacket(0, 1), audioPacket(0, 1),
			audioPacket(0, 1), audioPacket(0, 1), audioPacket(0, 1),
		},
	}
	s, err := Open(Config{Audio: &AudioConfig{Channels: 1, SampleRate: 8000}}, demuxer, &fakeToolkit{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if !s.Ensure(3, 0) {
		t.Fatal("Ensure: got false, want true")
	}
	// The loop keeps pumping while count <= needed, so it settles one item
	// past the requested threshold.
	if got := s.Samples().Count(); got != 4 {
		t.Errorf("buffered samples: got %d, want 4", got)
	}
}

func TestEnsureZeroRequirementNeverBlocks(t *testing.T) {
	t.Parallel()

	// Audio only; the video requirement of zero must not keep Ensure
	// looping on the empty, unallocated video ring.
	demuxer := &fakeDemuxer{
		streams: []codec.StreamInfo{audioStream(0)},
		packets: []*media.Packet{audioPacket(0, 8)},
	}
	s, err := Open(Config{Audio: &AudioConfig{Channels: 1, SampleRate: 8000}}, demuxer, &fakeToolkit{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if !s.Ensure(4, 0) {
		t.Error("Ensure(4, 0): got false, want true")
	}

	// Symmetrically, a drained session with only residual audio satisfies
	// a video requirement of zero.
	for !s.Drained() {
		s.Poll()
	}
	if !s.Ensure(1000, 0) {
		t.Error("Ensure with residual audio after drain: got false, want true")
	}
}

func TestEnsureDrainedResidualSemantics(t *testing.T) {
	t.Parallel()

	demuxer := &fakeDemuxer{
		streams: []codec.StreamInfo{audioStream(0)},
		packets: []*media.Packet{audioPacket(0, 6)},
	}
	s, err := Open(Config{Audio: &AudioConfig{Channels: 1, SampleRate: 8000}}, demuxer, &fakeToolkit{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// More demanded than the input holds: Ensure drains the input but keeps
	// returning true while residual items remain.
	if !s.Ensure(100, 0) {
		t.Error("Ensure with residual items: got false, want true")
	}
	if !s.Drained() {
		t.Error("expected drained state")
	}

	s.Samples().Remove(s.Samples().Count())
	if s.Ensure(100, 0) {
		t.Error("Ensure with empty required ring after drain: got true, want false")
	}
}

func TestEnsureAudioDecodeFailureSilentlySkips(t *testing.T) {
	t.Parallel()

	demuxer := &fakeDemuxer{
		streams: []codec.StreamInfo{audioStream(0)},
		packets: []*media.Packet{audioPacket(0, 4), audioPacket(0, 4)},
	}
	s, err := Open(Config{Audio: &AudioConfig{Channels: 1, SampleRate: 8000}}, demuxer,
		&fakeToolkit{failAudioSend: true}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	// Every packet fails to decode; the stream still pumps to completion
	// and Ensure reports the required ring as empty.
	if s.Ensure(1, 0) {
		t.Error("Ensure: got true, want false")
	}
	if got := s.Samples().Count(); got != 0 {
		t.Errorf("samples after failed decodes: got %d, want 0", got)
	}
}
