package session

import (
	"fmt"
	"math"
	"sort"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/value"
)

// Custom attribute keys written by the host synchronizer.
const (
	CustomSourceGroup   = "rv_source_group"
	CustomStackGroup    = "rv_stack_group"
	CustomSequenceGroup = "rv_sequence_group"
	CustomThumbnail     = "thumbnail"
)

// Clip is one media source within a playlist.
type Clip struct {
	ID         string
	PlaylistID string
	Custom     map[string]any
	// CCs is the clip's color-correction stack.
	CCs *colorcorrection.Stack
	// Annotations is the clip's annotation ledger, keyed by source frame.
	Annotations *annotation.Ledger

	attrs map[string]any
	keyed map[string]*attr.Keyed
	reg   *attr.Registry
}

func newClip(id, playlistID, path string, reg *attr.Registry, ccs *colorcorrection.Stack, user string) *Clip {
	c := &Clip{
		ID:          id,
		PlaylistID:  playlistID,
		Custom:      make(map[string]any),
		CCs:         ccs,
		Annotations: annotation.NewLedger(user),
		attrs:       make(map[string]any),
		keyed:       make(map[string]*attr.Keyed),
		reg:         reg,
	}
	c.attrs[attr.MediaPath] = path
	return c
}

// Path returns the media path.
func (c *Clip) Path() string {
	s, _ := c.attrs[attr.MediaPath].(string)
	return s
}

// Attr returns the stored value of id, its default when unset, or false when
// the attribute is unknown. Keyable attributes return their plain value.
func (c *Clip) Attr(id string) (any, bool) {
	if k, ok := c.keyed[id]; ok {
		return k.Value, true
	}
	if v, ok := c.attrs[id]; ok {
		return v, true
	}
	d, ok := c.reg.Get(id)
	if !ok {
		return nil, false
	}
	return d.Default, true
}

// AttrAt returns the value of id at a source frame. Keyed attributes are
// read from their dense table, everything else ignores frame.
func (c *Clip) AttrAt(id string, frame int) (any, bool) {
	if k, ok := c.keyed[id]; ok {
		return k.At(frame), true
	}
	return c.Attr(id)
}

// Int returns an integer attribute or 0.
func (c *Clip) Int(id string) int {
	v, _ := c.Attr(id)
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

// Float returns a numeric attribute or 0.
func (c *Clip) Float(id string) float64 {
	v, _ := c.Attr(id)
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// IsSet reports whether id holds an explicit value.
func (c *Clip) IsSet(id string) bool {
	_, ok := c.attrs[id]
	if !ok {
		_, ok = c.keyed[id]
	}
	return ok
}

// Keyed returns the keyed record of a keyable attribute, or nil.
func (c *Clip) Keyed(id string) *attr.Keyed {
	return c.keyed[id]
}

// SetAttr assigns an attribute value. Read-only attributes are refused unless
// force is set; the host synchronizer forces media metadata.
func (c *Clip) SetAttr(id string, v any, force bool) error {
	d, ok := c.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: attribute %s", ErrNotFound, id)
	}
	if d.ReadOnly && !force {
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	if n, ok := v.(float64); ok && d.Type == attr.Int && n == math.Trunc(n) {
		v = int(n)
	}
	if err := d.Check(v); err != nil {
		return err
	}
	if d.Keyable {
		f, _ := toFloat(v)
		c.keyedOrCreate(d).Value = f
		return nil
	}
	c.attrs[id] = v
	return nil
}

// SetAttrKeys replaces the key table of a keyable attribute.
func (c *Clip) SetAttrKeys(id string, keys map[int]float64) error {
	d, ok := c.reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: attribute %s", ErrNotFound, id)
	}
	if !d.Keyable {
		return fmt.Errorf("%w: %s is not keyable", value.ErrInvalidArgument, id)
	}
	return c.keyedOrCreate(d).SetKeys(keys)
}

func (c *Clip) keyedOrCreate(d attr.Descriptor) *attr.Keyed {
	k, ok := c.keyed[d.ID]
	if !ok {
		def, _ := toFloat(d.Default)
		k = attr.NewKeyed(def, d.Angular)
		c.keyed[d.ID] = k
	}
	return k
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// AttrIDs returns the ids holding explicit values, sorted.
func (c *Clip) AttrIDs() []string {
	out := make([]string, 0, len(c.attrs)+len(c.keyed))
	for id := range c.attrs {
		out = append(out, id)
	}
	for id := range c.keyed {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// KeyRange returns the key-in and key-out frames, falling back to the media
// range when unset.
func (c *Clip) KeyRange() (int, int) {
	in := c.Int(attr.MediaStartFrame)
	out := c.Int(attr.MediaEndFrame)
	if c.IsSet(attr.KeyIn) {
		in = c.Int(attr.KeyIn)
	}
	if c.IsSet(attr.KeyOut) {
		out = c.Int(attr.KeyOut)
	}
	return in, out
}

// clone copies attributes, custom values and annotations into a new clip.
// Color corrections are re-added to ccs so they get fresh ids.
func (c *Clip) clone(id, playlistID string, ccs *colorcorrection.Stack) *Clip {
	n := newClip(id, playlistID, c.Path(), c.reg, ccs, c.Annotations.User())
	for k, v := range c.attrs {
		n.attrs[k] = v
	}
	for k, v := range c.keyed {
		cp := attr.NewKeyed(v.Value, v.Angular())
		_ = cp.SetKeys(v.KeyValues)
		n.keyed[k] = cp
	}
	for k, v := range c.Custom {
		switch k {
		case CustomSourceGroup, CustomStackGroup:
			continue
		}
		n.Custom[k] = v
	}
	_ = n.Annotations.SetState(c.Annotations.State())

	var placed []colorcorrection.Placed
	for _, cc := range c.CCs.CCs(nil) {
		placed = append(placed, colorcorrection.Placed{CC: freshCopy(cc)})
	}
	for _, f := range c.CCs.Frames() {
		fr := f
		for _, cc := range c.CCs.CCs(&fr) {
			placed = append(placed, colorcorrection.Placed{Frame: &fr, CC: freshCopy(cc)})
		}
	}
	var ro, rw []colorcorrection.Placed
	for _, p := range placed {
		if p.CC.ReadOnly {
			ro = append(ro, p)
		} else {
			rw = append(rw, p)
		}
	}
	_, _ = n.CCs.SetRWCCs(rw)
	_, _ = n.CCs.SetROCCs(ro)
	n.CCs.SetMuteAllFlag(c.CCs.IsMuteAll())
	return n
}

func freshCopy(cc *colorcorrection.ColorCorrection) *colorcorrection.ColorCorrection {
	cp := cc.Clone()
	cp.ID = ""
	return cp
}
