// Package timeline maps clip-local source frames to the global sequence
// frames produced by concatenating the active clips' key ranges.
package timeline

import (
	"fmt"

	"github.com/rpa-review/sessioncore/internal/value"
)

// ClipRange is the keyed range of one active clip.
type ClipRange struct {
	ID     string
	KeyIn  int
	KeyOut int
}

// ClipFrame is a position inside a clip.
type ClipFrame struct {
	ClipID string
	Frame  int
	Found  bool
}

// SeqFrame is a position on the sequence; Found is false for unmapped lookups.
type SeqFrame struct {
	Frame int
	Found bool
}

// PlaybackMode is what happens when playback reaches the end of the range.
type PlaybackMode int

const (
	Repeat PlaybackMode = iota
	Once
	Swing
)

func (m PlaybackMode) String() string {
	switch m {
	case Once:
		return "ONCE"
	case Swing:
		return "SWING"
	}
	return "REPEAT"
}

// ParsePlaybackMode converts a mode name.
func ParsePlaybackMode(s string) (PlaybackMode, error) {
	switch s {
	case "REPEAT":
		return Repeat, nil
	case "ONCE":
		return Once, nil
	case "SWING":
		return Swing, nil
	}
	return Repeat, fmt.Errorf("%w: playback mode %q", value.ErrInvalidArgument, s)
}

// Audio is the audio sub-state. Volume is 0..100.
type Audio struct {
	Volume    int
	Mute      bool
	Scrubbing bool
}

// Index is the two-way frame map plus the playback sub-state.
type Index struct {
	seqToClip []ClipFrame // seqToClip[i] is sequence frame i+1
	clipToSeq map[string]map[int]int

	current int
	Playing bool
	Forward bool
	Mode    PlaybackMode
	Audio   Audio
}

// New returns an empty index positioned at frame 0.
func New() *Index {
	return &Index{
		clipToSeq: make(map[string]map[int]int),
		Forward:   true,
		Audio:     Audio{Volume: 100},
	}
}

// Rebuild renumbers the sequence from the given active clips in order and
// clamps the current frame to the new range. A clip whose key out is before
// its key in contributes no frames.
func (x *Index) Rebuild(clips []ClipRange) {
	x.seqToClip = x.seqToClip[:0]
	x.clipToSeq = make(map[string]map[int]int, len(clips))
	seq := 1
	for _, c := range clips {
		m := make(map[int]int, max(0, c.KeyOut-c.KeyIn+1))
		for cf := c.KeyIn; cf <= c.KeyOut; cf++ {
			x.seqToClip = append(x.seqToClip, ClipFrame{ClipID: c.ID, Frame: cf, Found: true})
			m[cf] = seq
			seq++
		}
		x.clipToSeq[c.ID] = m
	}
	x.current = x.clamp(x.current)
}

// Range returns the first and last sequence frames, or 0,0 when empty.
func (x *Index) Range() (first, last int) {
	if len(x.seqToClip) == 0 {
		return 0, 0
	}
	return 1, len(x.seqToClip)
}

// Len returns the number of sequence frames.
func (x *Index) Len() int {
	return len(x.seqToClip)
}

func (x *Index) clamp(f int) int {
	first, last := x.Range()
	if f < first {
		return first
	}
	if f > last {
		return last
	}
	return f
}

// Current returns the current sequence frame.
func (x *Index) Current() int {
	return x.current
}

// Goto moves to seq frame, clamped, and returns the frame actually set.
func (x *Index) Goto(seq int) int {
	x.current = x.clamp(seq)
	return x.current
}

// ClipFrame returns what is shown at sequence frame seq.
func (x *Index) ClipFrame(seq int) ClipFrame {
	if seq < 1 || seq > len(x.seqToClip) {
		return ClipFrame{}
	}
	return x.seqToClip[seq-1]
}

// CurrentClipFrame returns what is shown at the current frame.
func (x *Index) CurrentClipFrame() ClipFrame {
	return x.ClipFrame(x.current)
}

// ClipFrames looks up each sequence frame in order.
func (x *Index) ClipFrames(seqs []int) []ClipFrame {
	out := make([]ClipFrame, len(seqs))
	for i, s := range seqs {
		out[i] = x.ClipFrame(s)
	}
	return out
}

// SeqFrames looks up each frame of clip in order.
func (x *Index) SeqFrames(clipID string, frames []int) []SeqFrame {
	out := make([]SeqFrame, len(frames))
	m := x.clipToSeq[clipID]
	for i, f := range frames {
		if s, ok := m[f]; ok {
			out[i] = SeqFrame{Frame: s, Found: true}
		}
	}
	return out
}

// ClipStart returns the first sequence frame of clip.
func (x *Index) ClipStart(clipID string) (int, bool) {
	for i, cf := range x.seqToClip {
		if cf.ClipID == clipID {
			return i + 1, true
		}
	}
	return 0, false
}

// Clips returns the ids of the indexed clips in sequence order.
func (x *Index) Clips() []string {
	var out []string
	last := ""
	for _, cf := range x.seqToClip {
		if cf.ClipID != last {
			out = append(out, cf.ClipID)
			last = cf.ClipID
		}
	}
	return out
}

// SetVolume sets the audio volume, 0..100.
func (x *Index) SetVolume(v int) error {
	if err := value.RangeInt("volume", v, 0, 100); err != nil {
		return err
	}
	x.Audio.Volume = v
	return nil
}
