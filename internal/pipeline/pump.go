package pipeline

import (
	"errors"
	"io"
)

// Poll reads one packet from the demuxer and routes it to the matching
// producer; packets from unselected streams are discarded. It returns false
// exactly when the input has transitioned to (or already was in) the
// drained state; no further reads are attempted after that.
func (s *Session) Poll() bool {
	if s.drained {
		return false
	}

	pkt, err := s.demuxer.ReadPacket()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.log.Warn("input ended with read error", "error", err)
		}
		s.drained = true
		return false
	}

	switch {
	case s.audio != nil && pkt.StreamIndex == s.audio.index:
		s.audio.consume(pkt)
	case s.video != nil && pkt.StreamIndex == s.video.index:
		s.video.consume(pkt)
	}
	return true
}

// Ensure pumps the input until the audio ring holds more than neededAudio
// sample frames and the video ring more than neededVideo frames. A zero
// requirement leaves that ring out of consideration entirely.
//
// The loop deliberately keeps pumping while a required count is still equal
// to the threshold, one unit past what was asked for, so the drained
// transition is observed as soon as the input ends rather than one call
// late.
//
// After the input drains, Ensure keeps returning true as long as every
// required ring still holds at least one item; it returns false only once a
// required ring is completely empty.
func (s *Session) Ensure(neededAudio, neededVideo int) bool {
	for (neededAudio > 0 && s.audioRing.Count() <= neededAudio) ||
		(neededVideo > 0 && s.videoRing.Count() <= neededVideo) {
		if !s.Poll() {
			return (s.audioRing.Count() > 0 || neededAudio == 0) &&
				(s.videoRing.Count() > 0 || neededVideo == 0)
		}
	}
	return true
}
