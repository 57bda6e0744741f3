package hostinterface

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rpa-review/sessioncore/internal/value"
)

type memNode struct {
	typ    string
	inputs []string
}

type memProp struct {
	info   PropertyInfo
	ints   []int
	floats []float64
	strs   []string
}

func (p *memProp) size() int {
	switch p.info.Type {
	case IntType:
		return len(p.ints)
	case FloatType:
		return len(p.floats)
	}
	return len(p.strs)
}

// MemoryHost is an in-process Host. Headless runs and tests use it.
type MemoryHost struct {
	mu       sync.Mutex
	nodes    map[string]*memNode
	props    map[string]*memProp
	media    map[string]MediaInfo
	geometry map[string][4]value.Point
	fail     map[string]bool
	view     string
	viewW    float64
	viewH    float64
	serial   int
	redraws  int
}

// NewMemoryHost returns an empty host with a 1280×720 view.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		nodes:    make(map[string]*memNode),
		props:    make(map[string]*memProp),
		media:    make(map[string]MediaInfo),
		geometry: make(map[string][4]value.Point),
		fail:     make(map[string]bool),
		viewW:    1280,
		viewH:    720,
	}
}

// Fail makes the named method return ErrHostCall until cleared with on=false.
func (m *MemoryHost) Fail(method string, on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[method] = on
}

func (m *MemoryHost) check(method, subject string) error {
	if m.fail[method] {
		return fmt.Errorf("%w: %s %s", ErrHostCall, method, subject)
	}
	return nil
}

// SetMedia registers what AddSource reports for path.
func (m *MemoryHost) SetMedia(path string, info MediaInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info.Path = path
	m.media[path] = info
}

// SetImageGeometry fixes the on-screen corners reported for a source.
func (m *MemoryHost) SetImageGeometry(sourceGroup string, corners [4]value.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.geometry[sourceGroup] = corners
}

// SetViewSize changes the reported view size.
func (m *MemoryHost) SetViewSize(w, h float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewW, m.viewH = w, h
}

// Redraws returns how many redraws were requested.
func (m *MemoryHost) Redraws() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.redraws
}

func (m *MemoryHost) NewNode(nodeType, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("NewNode", name); err != nil {
		return "", err
	}
	if name == "" {
		name = fmt.Sprintf("%s%06d", strings.TrimPrefix(nodeType, "RV"), m.serial)
		m.serial++
	}
	if _, ok := m.nodes[name]; ok {
		return "", fmt.Errorf("%w: node %s exists", ErrHostCall, name)
	}
	m.nodes[name] = &memNode{typ: nodeType}
	return name, nil
}

func (m *MemoryHost) DeleteNode(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("DeleteNode", name); err != nil {
		return err
	}
	if _, ok := m.nodes[name]; !ok {
		return fmt.Errorf("%w: no node %s", ErrHostCall, name)
	}
	delete(m.nodes, name)
	for _, n := range m.nodes {
		n.inputs = removeString(n.inputs, name)
	}
	prefix := name + "."
	for p := range m.props {
		if strings.HasPrefix(p, prefix) {
			delete(m.props, p)
		}
	}
	return nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func (m *MemoryHost) NodeExists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[name]
	return ok
}

func (m *MemoryHost) NodeType(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[name]
	if !ok {
		return "", fmt.Errorf("%w: no node %s", ErrHostCall, name)
	}
	return n.typ, nil
}

func (m *MemoryHost) NodesOfType(nodeType string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name, n := range m.nodes {
		if n.typ == nodeType {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemoryHost) SetNodeInputs(node string, inputs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SetNodeInputs", node); err != nil {
		return err
	}
	n, ok := m.nodes[node]
	if !ok {
		return fmt.Errorf("%w: no node %s", ErrHostCall, node)
	}
	for _, in := range inputs {
		if _, ok := m.nodes[in]; !ok {
			return fmt.Errorf("%w: no input node %s", ErrHostCall, in)
		}
	}
	n.inputs = append([]string(nil), inputs...)
	return nil
}

func (m *MemoryHost) NodeInputs(node string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[node]
	if !ok {
		return nil, fmt.Errorf("%w: no node %s", ErrHostCall, node)
	}
	return append([]string(nil), n.inputs...), nil
}

// AddSource creates a source group with its paint and transform nodes.
func (m *MemoryHost) AddSource(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("AddSource", path); err != nil {
		return "", err
	}
	group := fmt.Sprintf("sourceGroup%06d", m.serial)
	m.serial++
	m.nodes[group] = &memNode{typ: NodeSourceGroup}
	m.nodes[group+"_paint"] = &memNode{typ: NodePaint}
	m.nodes[group+"_transform2D"] = &memNode{typ: NodeTransform}
	info, ok := m.media[path]
	if !ok {
		info = MediaInfo{Path: path, Width: 1920, Height: 1080, StartFrame: 1, EndFrame: 100, FPS: 24}
	}
	m.media[group] = info
	return group, nil
}

func (m *MemoryHost) SourceMedia(sourceGroup string) (MediaInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("SourceMedia", sourceGroup); err != nil {
		return MediaInfo{}, err
	}
	info, ok := m.media[sourceGroup]
	if !ok {
		return MediaInfo{}, fmt.Errorf("%w: no source %s", ErrHostCall, sourceGroup)
	}
	return info, nil
}

func (m *MemoryHost) SetViewNode(node string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[node]; !ok {
		return fmt.Errorf("%w: no node %s", ErrHostCall, node)
	}
	m.view = node
	return nil
}

func (m *MemoryHost) ViewNode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// ImageGeometry returns the registered corners, or the full view.
func (m *MemoryHost) ImageGeometry(sourceGroup string) ([4]value.Point, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ImageGeometry", sourceGroup); err != nil {
		return [4]value.Point{}, err
	}
	if g, ok := m.geometry[sourceGroup]; ok {
		return g, nil
	}
	return [4]value.Point{{X: 0, Y: 0}, {X: m.viewW, Y: 0}, {X: m.viewW, Y: m.viewH}, {X: 0, Y: m.viewH}}, nil
}

func (m *MemoryHost) ViewSize() (float64, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewW, m.viewH
}

func (m *MemoryHost) PropertyExists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.props[name]
	return ok
}

func (m *MemoryHost) PropertyInfo(name string) (PropertyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.props[name]
	if !ok {
		return PropertyInfo{}, fmt.Errorf("%w: no property %s", ErrHostCall, name)
	}
	info := p.info
	info.Size = p.size()
	return info, nil
}

func (m *MemoryHost) NewProperty(name string, t PropertyType, dim int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("NewProperty", name); err != nil {
		return err
	}
	node, _, _, ok := SplitPropertyName(name)
	if !ok {
		return fmt.Errorf("%w: bad property name %s", ErrHostCall, name)
	}
	if _, ok := m.nodes[node]; !ok {
		return fmt.Errorf("%w: no node %s", ErrHostCall, node)
	}
	if _, ok := m.props[name]; ok {
		return fmt.Errorf("%w: property %s exists", ErrHostCall, name)
	}
	m.props[name] = &memProp{info: PropertyInfo{Type: t, Dim: dim}}
	return nil
}

func (m *MemoryHost) DeleteProperty(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("DeleteProperty", name); err != nil {
		return err
	}
	if _, ok := m.props[name]; !ok {
		return fmt.Errorf("%w: no property %s", ErrHostCall, name)
	}
	delete(m.props, name)
	return nil
}

func (m *MemoryHost) Properties(node string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := node + "."
	var out []string
	for name := range m.props {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemoryHost) prop(name string, t PropertyType) (*memProp, error) {
	p, ok := m.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: no property %s", ErrHostCall, name)
	}
	if p.info.Type != t {
		return nil, fmt.Errorf("%w: %s holds %s, not %s", ErrHostCall, name, p.info.Type, t)
	}
	return p, nil
}

func (m *MemoryHost) IntProperty(name string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.prop(name, IntType)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), p.ints...), nil
}

func (m *MemoryHost) FloatProperty(name string) ([]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.prop(name, FloatType)
	if err != nil {
		return nil, err
	}
	return append([]float64(nil), p.floats...), nil
}

func (m *MemoryHost) StringProperty(name string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, err := m.prop(name, StringType)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.strs...), nil
}

func (m *MemoryHost) write(method, name string, t PropertyType, fn func(p *memProp)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(method, name); err != nil {
		return err
	}
	p, err := m.prop(name, t)
	if err != nil {
		return err
	}
	fn(p)
	return nil
}

func (m *MemoryHost) SetIntProperty(name string, v []int) error {
	return m.write("SetIntProperty", name, IntType, func(p *memProp) {
		p.ints = append([]int(nil), v...)
	})
}

func (m *MemoryHost) SetFloatProperty(name string, v []float64) error {
	return m.write("SetFloatProperty", name, FloatType, func(p *memProp) {
		p.floats = append([]float64(nil), v...)
	})
}

func (m *MemoryHost) SetStringProperty(name string, v []string) error {
	return m.write("SetStringProperty", name, StringType, func(p *memProp) {
		p.strs = append([]string(nil), v...)
	})
}

func (m *MemoryHost) InsertIntProperty(name string, v []int) error {
	return m.write("InsertIntProperty", name, IntType, func(p *memProp) {
		p.ints = append(p.ints, v...)
	})
}

func (m *MemoryHost) InsertFloatProperty(name string, v []float64) error {
	return m.write("InsertFloatProperty", name, FloatType, func(p *memProp) {
		p.floats = append(p.floats, v...)
	})
}

func (m *MemoryHost) InsertStringProperty(name string, v []string) error {
	return m.write("InsertStringProperty", name, StringType, func(p *memProp) {
		p.strs = append(p.strs, v...)
	})
}

func (m *MemoryHost) Redraw() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redraws++
}
