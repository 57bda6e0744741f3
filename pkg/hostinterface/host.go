// Package hostinterface is the boundary to the review host: its node graph,
// its typed property store and its event entry point. The core talks to the
// host only through Host, so a MemoryHost can stand in for it headless.
package hostinterface

import (
	"errors"

	"github.com/rpa-review/sessioncore/internal/value"
)

// ErrHostCall wraps every failure reported by the host.
var ErrHostCall = errors.New("host call failed")

// PropertyType is the element type of a host property.
type PropertyType int

const (
	IntType PropertyType = iota
	FloatType
	StringType
)

func (t PropertyType) String() string {
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case StringType:
		return "string"
	}
	return "unknown"
}

// PropertyInfo describes a property. Values are flat arrays read as N×Dim.
type PropertyInfo struct {
	Type PropertyType
	Dim  int
	Size int
}

// MediaInfo is what the host reports about a loaded source.
type MediaInfo struct {
	Path       string
	Width      int
	Height     int
	StartFrame int
	EndFrame   int
	FPS        float64
}

// Node types the core creates or looks up.
const (
	NodeSourceGroup   = "RVSourceGroup"
	NodeStackGroup    = "RVStackGroup"
	NodeSequenceGroup = "RVSequenceGroup"
	NodeLayoutGroup   = "RVLayoutGroup"
	NodePaint         = "RVPaint"
	NodeTransform     = "RVTransform2D"
)

// Host is the subset of the review host's command surface the core uses.
type Host interface {
	NewNode(nodeType, name string) (string, error)
	DeleteNode(name string) error
	NodeExists(name string) bool
	NodeType(name string) (string, error)
	NodesOfType(nodeType string) []string
	SetNodeInputs(node string, inputs []string) error
	NodeInputs(node string) ([]string, error)

	// AddSource loads media and returns the source group node name.
	AddSource(path string) (string, error)
	SourceMedia(sourceGroup string) (MediaInfo, error)

	SetViewNode(node string) error
	ViewNode() string
	// ImageGeometry returns the on-screen corners of the source image in
	// BL, BR, TR, TL order, in device pixels.
	ImageGeometry(sourceGroup string) ([4]value.Point, error)
	ViewSize() (width, height float64)

	PropertyExists(name string) bool
	PropertyInfo(name string) (PropertyInfo, error)
	NewProperty(name string, t PropertyType, dim int) error
	DeleteProperty(name string) error
	// Properties lists every property name under node.
	Properties(node string) []string

	IntProperty(name string) ([]int, error)
	FloatProperty(name string) ([]float64, error)
	StringProperty(name string) ([]string, error)
	SetIntProperty(name string, v []int) error
	SetFloatProperty(name string, v []float64) error
	SetStringProperty(name string, v []string) error
	InsertIntProperty(name string, v []int) error
	InsertFloatProperty(name string, v []float64) error
	InsertStringProperty(name string, v []string) error

	Redraw()
}
