package colorcorrection

import (
	"fmt"
	"sort"

	"github.com/rpa-review/sessioncore/internal/value"
)

// NodeRecord is the primitive-only state of a node.
type NodeRecord struct {
	Class  string               `json:"class"`
	Values map[string][]float64 `json:"values"`
	Mute   bool                 `json:"mute"`
}

// RegionRecord is the primitive-only state of a region.
type RegionRecord struct {
	Falloff float64         `json:"falloff"`
	Shapes  [][]value.Point `json:"shapes"`
}

// CCRecord is the primitive-only state of a color correction.
type CCRecord struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Nodes    []NodeRecord  `json:"nodes"`
	Region   *RegionRecord `json:"region,omitempty"`
	Mute     bool          `json:"mute"`
	ReadOnly bool          `json:"read_only"`
}

// StackRecord is the state of a whole stack.
type StackRecord struct {
	CCs      []CCRecord       `json:"ccs"`
	ClipCCs  []string         `json:"clip_ccs"`
	FrameCCs map[int][]string `json:"frame_ccs"`
	MuteAll  bool             `json:"mute_all"`
}

// State returns the correction's state record.
func (c *ColorCorrection) State() CCRecord {
	r := CCRecord{ID: c.ID, Name: c.Name, Mute: c.Mute, ReadOnly: c.ReadOnly}
	for _, n := range c.Nodes {
		r.Nodes = append(r.Nodes, NodeRecord{Class: n.Class(), Values: n.Values(), Mute: n.Muted()})
	}
	if c.Region != nil {
		rr := &RegionRecord{Falloff: c.Region.Falloff}
		for _, s := range c.Region.Shapes {
			rr.Shapes = append(rr.Shapes, append([]value.Point(nil), s.Points...))
		}
		r.Region = rr
	}
	return r
}

// CCFromState rebuilds a correction from its state record.
func CCFromState(r CCRecord) (*ColorCorrection, error) {
	cc := &ColorCorrection{ID: r.ID, Name: r.Name, Mute: r.Mute, ReadOnly: r.ReadOnly}
	for _, nr := range r.Nodes {
		n, err := NewNode(nr.Class)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(nr.Values))
		for k := range nr.Values {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if err := n.SetValue(k, nr.Values[k]); err != nil {
				return nil, fmt.Errorf("node %s: %w", nr.Class, err)
			}
		}
		n.SetMute(nr.Mute)
		cc.Nodes = append(cc.Nodes, n)
	}
	if r.Region != nil {
		cc.Region = &Region{Falloff: r.Region.Falloff}
		for _, pts := range r.Region.Shapes {
			cc.Region.Shapes = append(cc.Region.Shapes, Shape{Points: append([]value.Point(nil), pts...)})
		}
	}
	return cc, nil
}

// State returns the stack's state record.
func (s *Stack) State() StackRecord {
	r := StackRecord{
		ClipCCs:  s.IDs(nil),
		FrameCCs: make(map[int][]string, len(s.frameCCs)),
		MuteAll:  s.muteAll,
	}
	ids := make([]string, 0, len(s.ccs))
	for id := range s.ccs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.CCs = append(r.CCs, s.ccs[id].State())
	}
	for f, list := range s.frameCCs {
		r.FrameCCs[f] = append([]string(nil), list...)
	}
	return r
}

// SetState replaces the stack contents from a state record. Ids listed in
// the clip or frame lists without a matching correction are dropped. A
// correction id held outside this stack leaves the stack unchanged.
func (s *Stack) SetState(r StackRecord) error {
	ccs := make(map[string]*ColorCorrection, len(r.CCs))
	for _, cr := range r.CCs {
		cc, err := CCFromState(cr)
		if err != nil {
			return fmt.Errorf("color correction %s: %w", cr.ID, err)
		}
		if s.foreign(cc.ID) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, cc.ID)
		}
		ccs[cc.ID] = cc
	}
	keep := func(list []string) []string {
		var out []string
		for _, id := range list {
			if _, ok := ccs[id]; ok {
				out = append(out, id)
			}
		}
		return out
	}

	s.Release()
	s.ccs = ccs
	s.clipCCs = keep(r.ClipCCs)
	s.frameCCs = make(map[int][]string, len(r.FrameCCs))
	for f, list := range r.FrameCCs {
		if l := keep(list); len(l) > 0 {
			s.frameCCs[f] = l
		}
	}
	s.muteAll = r.MuteAll
	for id := range ccs {
		s.ids.Reserve(id)
	}
	return nil
}
