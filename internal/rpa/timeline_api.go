package rpa

import (
	"github.com/rpa-review/sessioncore/internal/delegate"
	"github.com/rpa-review/sessioncore/internal/signal"
	"github.com/rpa-review/sessioncore/internal/timeline"
)

// TimelineAPI moves the current frame and edits the playback and audio state.
type TimelineAPI struct {
	*delegate.Manager
	c *Core
}

func (a *TimelineAPI) tl() *timeline.Index {
	return a.c.Session.Timeline
}

func (a *TimelineAPI) modified() {
	a.c.emit(signal.Event{Kind: signal.TimelineModified})
}

// GotoFrame moves to a sequence frame, clamped to the range, and returns the
// frame actually set.
func (a *TimelineAPI) GotoFrame(seq int) int {
	return delegate.Call(a.Manager, "GotoFrame", a.tl().Current(), func() int {
		a.c.Handlers.FrameChanged(seq)
		return a.tl().Current()
	}, seq)
}

// GetCurrentFrame returns the current sequence frame.
func (a *TimelineAPI) GetCurrentFrame() int {
	return a.tl().Current()
}

// GetFrameRange returns the first and last sequence frames.
func (a *TimelineAPI) GetFrameRange() (int, int) {
	return a.tl().Range()
}

// GetSeqFrames maps source frames of a clip to sequence frames.
func (a *TimelineAPI) GetSeqFrames(clipID string, frames []int) []timeline.SeqFrame {
	return a.tl().SeqFrames(clipID, frames)
}

// GetClipFrames maps sequence frames to clip frames.
func (a *TimelineAPI) GetClipFrames(seqs []int) []timeline.ClipFrame {
	return a.tl().ClipFrames(seqs)
}

// GetClipStart returns the first sequence frame of a clip.
func (a *TimelineAPI) GetClipStart(clipID string) (int, bool) {
	return a.tl().ClipStart(clipID)
}

// SetPlaying starts or stops playback in the given direction.
func (a *TimelineAPI) SetPlaying(playing, forward bool) bool {
	return delegate.Call(a.Manager, "SetPlaying", false, func() bool {
		tl := a.tl()
		if tl.Playing == playing && tl.Forward == forward {
			return false
		}
		tl.Playing, tl.Forward = playing, forward
		a.c.emit(signal.Event{Kind: signal.PlayStatusChanged, Playing: playing})
		a.modified()
		return true
	}, playing, forward)
}

// SetPlaybackMode sets what happens at the end of the range.
func (a *TimelineAPI) SetPlaybackMode(mode timeline.PlaybackMode) bool {
	return delegate.Call(a.Manager, "SetPlaybackMode", false, func() bool {
		a.tl().Mode = mode
		a.modified()
		return true
	}, mode)
}

// SetVolume sets the audio volume; values outside 0..100 are refused.
func (a *TimelineAPI) SetVolume(volume int) (bool, error) {
	return delegate.CallErr(a.Manager, "SetVolume", false, func() (bool, error) {
		if err := a.tl().SetVolume(volume); err != nil {
			return false, err
		}
		a.modified()
		return true, nil
	}, volume)
}

// SetMute mutes or unmutes audio.
func (a *TimelineAPI) SetMute(mute bool) bool {
	return delegate.Call(a.Manager, "SetMute", false, func() bool {
		a.tl().Audio.Mute = mute
		a.modified()
		return true
	}, mute)
}

// SetScrubbing turns audio scrubbing on or off.
func (a *TimelineAPI) SetScrubbing(on bool) bool {
	return delegate.Call(a.Manager, "SetScrubbing", false, func() bool {
		a.tl().Audio.Scrubbing = on
		a.modified()
		return true
	}, on)
}

// GetAudio returns the audio state.
func (a *TimelineAPI) GetAudio() timeline.Audio {
	return a.tl().Audio
}
