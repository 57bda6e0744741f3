package hostsync

import (
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

// Picture-in-picture placement of the background, in host units.
const (
	PIPScale   = 0.37
	PIPOffsetX = 0.3
	PIPOffsetY = -0.3
)

// Audio input selections written to the compositing node.
const (
	AudioAll   = ".all."
	AudioFirst = ".first."
)

func (s *Syncer) ensureNode(nodeType, name string) bool {
	if s.host.NodeExists(name) {
		return true
	}
	_, err := s.host.NewNode(nodeType, name)
	return !s.suppress("NewNode", err, "node", name)
}

func (s *Syncer) set(name string, v any) {
	s.setN(name, v, 1)
}

func (s *Syncer) setN(name string, v any, dim int) {
	s.suppress("SetProperty", hostinterface.SetProperty(s.host, name, v, dim), "property", name)
}

// ApplyBgMode rewires the view for a background mode. With no background
// playlist every mode shows the foreground alone.
func (s *Syncer) ApplyBgMode(mode session.BgMode, fg, bg *session.Playlist) {
	if fg == nil {
		return
	}
	fgSeq := SequenceGroup(fg)
	bgSeq := ""
	if bg != nil {
		bgSeq = SequenceGroup(bg)
	}
	if bgSeq == "" {
		mode = session.BgNone
	}

	s.resetPIP()
	if s.ensureNode(hostinterface.NodeStackGroup, DefaultStack) {
		s.set(hostinterface.PropertyName(DefaultStack, "ui", "wipes"), 0)
	}

	switch mode {
	case session.BgNone:
		if s.host.NodeExists(DefaultStack) {
			s.set(hostinterface.PropertyName(DefaultStack, "stack", "chosenAudioInput"), AudioAll)
		}
		s.view(fgSeq)

	case session.BgWipe:
		if !s.host.NodeExists(DefaultStack) {
			return
		}
		s.suppress("SetNodeInputs", s.host.SetNodeInputs(DefaultStack, []string{fgSeq, bgSeq}), "node", DefaultStack)
		s.set(hostinterface.PropertyName(DefaultStack, "stack", "chosenAudioInput"), AudioFirst)
		s.set(hostinterface.PropertyName(DefaultStack, "ui", "wipes"), 1)
		s.view(DefaultStack)

	case session.BgSideBySide, session.BgTopBottom, session.BgPIP:
		if !s.ensureNode(hostinterface.NodeLayoutGroup, DefaultLayout) {
			return
		}
		s.suppress("SetNodeInputs", s.host.SetNodeInputs(DefaultLayout, []string{fgSeq, bgSeq}), "node", DefaultLayout)
		s.set(hostinterface.PropertyName(DefaultLayout, "stack", "chosenAudioInput"), AudioFirst)
		s.set(hostinterface.PropertyName(DefaultLayout, "layout", "mode"), layoutMode(mode))
		if mode == session.BgPIP {
			s.placePIP(bg)
		}
		s.view(DefaultLayout)
	}
}

func layoutMode(mode session.BgMode) string {
	switch mode {
	case session.BgSideBySide:
		return "row"
	case session.BgTopBottom:
		return "column"
	}
	return "static"
}

func (s *Syncer) view(node string) {
	if node == "" {
		return
	}
	s.suppress("SetViewNode", s.host.SetViewNode(node), "node", node)
}

// TransformNode returns the 2D transform node of a clip's source group, or "".
func TransformNode(c *session.Clip) string {
	if sg := SourceGroup(c); sg != "" {
		return sg + "_transform2D"
	}
	return ""
}

func (s *Syncer) placePIP(bg *session.Playlist) {
	for _, c := range bg.Clips() {
		node := TransformNode(c)
		if s.setTransform(node, PIPScale, PIPOffsetX, PIPOffsetY) {
			s.pipTransforms = append(s.pipTransforms, node)
		}
	}
}

// resetPIP restores the transforms moved by the last picture-in-picture.
func (s *Syncer) resetPIP() {
	for _, node := range s.pipTransforms {
		s.setTransform(node, 1, 0, 0)
	}
	s.pipTransforms = nil
}

func (s *Syncer) setTransform(node string, scale, x, y float64) bool {
	if node == "" || !s.host.NodeExists(node) {
		return false
	}
	s.setN(hostinterface.PropertyName(node, "transform", "scale"), []float64{scale, scale}, 2)
	s.setN(hostinterface.PropertyName(node, "transform", "translate"), []float64{x, y}, 2)
	return true
}
