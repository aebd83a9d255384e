package pipeline

import "errors"

// Open failure reasons. All are setup errors: the session is unusable and
// already torn down when one of these is returned.
var (
	ErrMultipleAudioTracks = errors.New("pipeline: input must have a single audio track")
	ErrMultipleVideoTracks = errors.New("pipeline: input must have a single video track")
	ErrNoAudioTrack        = errors.New("pipeline: input has no audio data")
	ErrNoVideoTrack        = errors.New("pipeline: input has no video data")
)
