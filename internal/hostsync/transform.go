package hostsync

import (
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/pkg/hostinterface"
)

// DynamicTransform is a clip's keyed transform at one frame, in host units.
type DynamicTransform struct {
	Translate [2]float64
	Scale     [2]float64
	Rotate    float64
	FPS       float64
}

func floatAt(c *session.Clip, id string, frame int) float64 {
	v, _ := c.AttrAt(id, frame)
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

// DynamicTransformAt evaluates the clip's keyed transform attributes at a
// source frame. Translations are stored in image pixels and converted to
// host units by the image height. A zero fps override falls back to the
// media rate.
func DynamicTransformAt(c *session.Clip, frame int) DynamicTransform {
	_, h := imageSize(c)
	t := DynamicTransform{
		Translate: [2]float64{
			geo.TranslateItviewToRV(floatAt(c, attr.DynamicTranslateX, frame), h),
			geo.TranslateItviewToRV(floatAt(c, attr.DynamicTranslateY, frame), h),
		},
		Scale:  [2]float64{floatAt(c, attr.DynamicScaleX, frame), floatAt(c, attr.DynamicScaleY, frame)},
		Rotate: floatAt(c, attr.DynamicRotation, frame),
		FPS:    floatAt(c, attr.FPSOverride, frame),
	}
	if t.FPS <= 0 {
		t.FPS = c.Float(attr.FPS)
	}
	return t
}

// WriteDynamicTransform pushes the clip's transform and playback rate at
// frame to its host nodes. It returns false when the clip has no transform
// node.
func (s *Syncer) WriteDynamicTransform(c *session.Clip, frame int) bool {
	node := TransformNode(c)
	if node == "" || !s.host.NodeExists(node) {
		return false
	}
	t := DynamicTransformAt(c, frame)
	s.setN(hostinterface.PropertyName(node, "transform", "translate"), t.Translate[:], 2)
	s.setN(hostinterface.PropertyName(node, "transform", "scale"), t.Scale[:], 2)
	s.set(hostinterface.PropertyName(node, "transform", "rotate"), t.Rotate)
	if t.FPS > 0 {
		s.set(hostinterface.PropertyName(SourceGroup(c), "group", "fps"), t.FPS)
	}
	return true
}
