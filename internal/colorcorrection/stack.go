package colorcorrection

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rpa-review/sessioncore/internal/uid"
	"github.com/rpa-review/sessioncore/internal/value"
)

// ErrDuplicateID is returned when a caller-supplied id is already taken.
var ErrDuplicateID = errors.New("duplicate color correction id")

// DefaultName is the name of the clip correction every stack starts with.
const DefaultName = "Clip"

// Placed pairs a correction with its scope. A nil Frame means clip scope.
type Placed struct {
	Frame *int
	CC    *ColorCorrection
}

// Stack is the color-correction stack of one clip.
type Stack struct {
	ccs      map[string]*ColorCorrection
	clipCCs  []string
	frameCCs map[int][]string
	muteAll  bool

	gen *uid.Generator
	ids *uid.Registry
}

// NewStack returns a stack holding the default clip correction. gen supplies
// ids for corrections appended without one; ids tracks uniqueness across the
// session. Either may be shared between stacks.
func NewStack(gen *uid.Generator, ids *uid.Registry) *Stack {
	if gen == nil {
		gen = uid.NewGenerator("")
	}
	if ids == nil {
		ids = uid.NewRegistry()
	}
	s := &Stack{
		ccs:      make(map[string]*ColorCorrection),
		frameCCs: make(map[int][]string),
		gen:      gen,
		ids:      ids,
	}
	def := NewColorCorrection(s.nextID(), DefaultName, NewColorTimer(), NewGrade())
	s.ccs[def.ID] = def
	s.clipCCs = []string{def.ID}
	return s
}

func (s *Stack) nextID() string {
	for {
		id := s.gen.Next()
		if s.ids.Reserve(id) {
			return id
		}
	}
}

func (s *Stack) list(frame *int) []string {
	if frame == nil {
		return s.clipCCs
	}
	return s.frameCCs[*frame]
}

func (s *Stack) setList(frame *int, ids []string) {
	if frame == nil {
		s.clipCCs = ids
		return
	}
	if len(ids) == 0 {
		delete(s.frameCCs, *frame)
		return
	}
	s.frameCCs[*frame] = ids
}

// Append adds corrections to the clip list or to a frame list and returns
// their ids. Nothing is added when any supplied id is already taken.
func (s *Stack) Append(frame *int, ccs []*ColorCorrection) ([]string, error) {
	seen := make(map[string]bool, len(ccs))
	for _, cc := range ccs {
		if cc.ID == "" {
			continue
		}
		if seen[cc.ID] || s.ids.Taken(cc.ID) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, cc.ID)
		}
		seen[cc.ID] = true
	}

	out := make([]string, 0, len(ccs))
	list := append([]string(nil), s.list(frame)...)
	for _, cc := range ccs {
		if cc.ID == "" {
			cc.ID = s.nextID()
		} else {
			s.ids.Reserve(cc.ID)
		}
		s.ccs[cc.ID] = cc
		list = append(list, cc.ID)
		out = append(out, cc.ID)
	}
	s.setList(frame, list)
	return out, nil
}

// Delete removes corrections by id and returns the ids that were present.
func (s *Stack) Delete(ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := s.ccs[id]; !ok {
			continue
		}
		s.drop(id)
		out = append(out, id)
	}
	return out
}

func (s *Stack) drop(id string) {
	delete(s.ccs, id)
	s.ids.Release(id)
	s.clipCCs = without(s.clipCCs, id)
	for f, list := range s.frameCCs {
		if l := without(list, id); len(l) != len(list) {
			fr := f
			s.setList(&fr, l)
		}
	}
}

func without(list []string, id string) []string {
	out := list[:0:0]
	for _, v := range list {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Move pops the correction at from in the clip or frame list and inserts it
// at to. An out-of-range from is ignored; to past the end appends.
func (s *Stack) Move(from, to int, frame *int) bool {
	list := append([]string(nil), s.list(frame)...)
	if from < 0 || from >= len(list) {
		return false
	}
	id := list[from]
	list = append(list[:from], list[from+1:]...)
	if to < 0 {
		to = 0
	}
	if to > len(list) {
		to = len(list)
	}
	list = append(list[:to], append([]string{id}, list[to:]...)...)
	s.setList(frame, list)
	return true
}

// MuteAll sets the stack flag and mutes or unmutes every correction.
func (s *Stack) MuteAll(m bool) {
	s.muteAll = m
	for _, cc := range s.ccs {
		cc.SetMute(m)
	}
}

// SetMuteAllFlag sets the stack flag without touching the corrections.
func (s *Stack) SetMuteAllFlag(m bool) {
	s.muteAll = m
}

// IsMuteAll reports the stack flag.
func (s *Stack) IsMuteAll() bool {
	return s.muteAll
}

// Get returns the correction with id, or nil.
func (s *Stack) Get(id string) *ColorCorrection {
	return s.ccs[id]
}

// Locate returns the scope and index of id.
func (s *Stack) Locate(id string) (frame *int, index int, ok bool) {
	for i, v := range s.clipCCs {
		if v == id {
			return nil, i, true
		}
	}
	for _, f := range s.Frames() {
		for i, v := range s.frameCCs[f] {
			if v == id {
				fr := f
				return &fr, i, true
			}
		}
	}
	return nil, 0, false
}

// IDs returns the ordered ids of the clip list or a frame list.
func (s *Stack) IDs(frame *int) []string {
	return append([]string(nil), s.list(frame)...)
}

// CCs returns the ordered corrections of the clip list or a frame list.
func (s *Stack) CCs(frame *int) []*ColorCorrection {
	ids := s.list(frame)
	out := make([]*ColorCorrection, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.ccs[id])
	}
	return out
}

// Applicable returns the clip corrections followed by those of frame.
func (s *Stack) Applicable(frame int) []*ColorCorrection {
	return append(s.CCs(nil), s.CCs(&frame)...)
}

// Frames returns every frame that holds a frame list, ascending.
func (s *Stack) Frames() []int {
	out := make([]int, 0, len(s.frameCCs))
	for f := range s.frameCCs {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Len returns the number of corrections in the stack.
func (s *Stack) Len() int {
	return len(s.ccs)
}

// RWFrames returns frames holding at least one modified, editable correction.
func (s *Stack) RWFrames() []int {
	return s.framesWhere(false)
}

// ROFrames returns frames holding at least one modified, read-only correction.
func (s *Stack) ROFrames() []int {
	return s.framesWhere(true)
}

func (s *Stack) framesWhere(readOnly bool) []int {
	out := []int{}
	for _, f := range s.Frames() {
		for _, id := range s.frameCCs[f] {
			cc := s.ccs[id]
			if cc.ReadOnly == readOnly && cc.IsModified() {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

// SetROCCs replaces every read-only correction with placed.
func (s *Stack) SetROCCs(placed []Placed) ([]string, error) {
	return s.replace(true, placed)
}

// SetRWCCs replaces every editable correction with placed.
func (s *Stack) SetRWCCs(placed []Placed) ([]string, error) {
	return s.replace(false, placed)
}

// foreign reports whether id is claimed by someone else sharing the registry.
func (s *Stack) foreign(id string) bool {
	_, own := s.ccs[id]
	return !own && s.ids.Taken(id)
}

// replace drops the read-only or editable subset and adopts placed in its
// place. Supplied ids are kept and reserved; empty ones are generated. Nothing
// changes when a supplied id repeats or is held outside this stack.
func (s *Stack) replace(readOnly bool, placed []Placed) ([]string, error) {
	seen := make(map[string]bool, len(placed))
	for _, p := range placed {
		if p.CC == nil {
			return nil, fmt.Errorf("%w: nil color correction", value.ErrInvalidArgument)
		}
		id := p.CC.ID
		if id == "" {
			continue
		}
		if seen[id] || s.foreign(id) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
		}
		seen[id] = true
	}

	for id, cc := range s.ccs {
		if cc.ReadOnly == readOnly {
			s.drop(id)
		}
	}
	out := make([]string, 0, len(placed))
	for _, p := range placed {
		cc := p.CC
		cc.ReadOnly = readOnly
		if _, ok := s.ccs[cc.ID]; ok && cc.ID != "" {
			s.drop(cc.ID)
		}
		if cc.ID == "" {
			cc.ID = s.nextID()
		} else {
			s.ids.Reserve(cc.ID)
		}
		s.ccs[cc.ID] = cc
		s.setList(p.Frame, append(append([]string(nil), s.list(p.Frame)...), cc.ID))
		out = append(out, cc.ID)
	}
	return out, nil
}

// Release frees every id held by the stack. Called when the clip is destroyed.
func (s *Stack) Release() {
	for id := range s.ccs {
		s.ids.Release(id)
	}
}
