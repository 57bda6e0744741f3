package session

import (
	"sort"

	"github.com/rpa-review/sessioncore/internal/attr"
)

// Playlist is an ordered collection of clips. Clip ownership lives here.
type Playlist struct {
	ID     string
	Name   string
	Custom map[string]any

	clips  []*Clip
	active []string
}

func newPlaylist(id, name string) *Playlist {
	return &Playlist{ID: id, Name: name, Custom: make(map[string]any)}
}

// Clips returns the clips in playlist order.
func (p *Playlist) Clips() []*Clip {
	return append([]*Clip(nil), p.clips...)
}

// ClipIDs returns the clip ids in playlist order.
func (p *Playlist) ClipIDs() []string {
	out := make([]string, len(p.clips))
	for i, c := range p.clips {
		out[i] = c.ID
	}
	return out
}

// Clip returns a clip of this playlist by id.
func (p *Playlist) Clip(id string) *Clip {
	if i := p.indexOf(id); i >= 0 {
		return p.clips[i]
	}
	return nil
}

// Len returns the number of clips.
func (p *Playlist) Len() int {
	return len(p.clips)
}

func (p *Playlist) indexOf(id string) int {
	for i, c := range p.clips {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// ActiveIDs returns the explicit active set; empty means every clip is active.
func (p *Playlist) ActiveIDs() []string {
	return append([]string(nil), p.active...)
}

// ActiveClips returns the active clips in play order, or every clip when no
// active set was given.
func (p *Playlist) ActiveClips() []*Clip {
	if len(p.active) == 0 {
		return p.Clips()
	}
	out := make([]*Clip, 0, len(p.active))
	for _, id := range p.active {
		if c := p.Clip(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// setActive stores ids that belong to the playlist, sorted by play order.
func (p *Playlist) setActive(ids []string) {
	seen := make(map[string]bool, len(ids))
	active := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] || p.Clip(id) == nil {
			continue
		}
		seen[id] = true
		active = append(active, id)
	}
	sort.SliceStable(active, func(i, j int) bool {
		return p.Clip(active[i]).Int(attr.PlayOrder) < p.Clip(active[j]).Int(attr.PlayOrder)
	})
	p.active = active
}

// insert places clips at index; a negative or too large index appends.
func (p *Playlist) insert(index int, clips []*Clip) {
	if index < 0 || index > len(p.clips) {
		index = len(p.clips)
	}
	tail := append([]*Clip(nil), p.clips[index:]...)
	p.clips = append(append(p.clips[:index], clips...), tail...)
	for _, c := range clips {
		c.PlaylistID = p.ID
	}
	p.renumber()
}

// remove takes clips out of the playlist and the active set.
func (p *Playlist) remove(ids []string) []*Clip {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var removed []*Clip
	kept := p.clips[:0]
	for _, c := range p.clips {
		if drop[c.ID] {
			removed = append(removed, c)
			continue
		}
		kept = append(kept, c)
	}
	p.clips = kept
	active := p.active[:0]
	for _, id := range p.active {
		if !drop[id] {
			active = append(active, id)
		}
	}
	p.active = active
	p.renumber()
	return removed
}

// renumber rewrites play_order from playlist position, starting at 1.
func (p *Playlist) renumber() {
	for i, c := range p.clips {
		c.attrs[attr.PlayOrder] = i + 1
	}
	if len(p.active) > 0 {
		p.setActive(p.active)
	}
}
