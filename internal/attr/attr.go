// Package attr describes clip attributes: their metadata registry and the
// keyed record stored for keyable attributes.
package attr

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rpa-review/sessioncore/internal/interp"
	"github.com/rpa-review/sessioncore/internal/value"
)

// DataType tags the value type of an attribute.
type DataType string

const (
	Int    DataType = "int"
	Float  DataType = "float"
	String DataType = "string"
	Bool   DataType = "bool"
	Path   DataType = "path"
)

// Category says who owns an attribute.
type Category string

const (
	CategoryCore        Category = "core"
	CategorySession     Category = "session"
	CategoryUserDefined Category = "user-defined"
)

// Attribute ids seeded into every registry.
const (
	PlayOrder         = "play_order"
	Comment           = "comment"
	MediaPath         = "media_path"
	MediaStartFrame   = "media_start_frame"
	MediaEndFrame     = "media_end_frame"
	Width             = "width"
	Height            = "height"
	KeyIn             = "key_in"
	KeyOut            = "key_out"
	FPS               = "media_fps"
	FPSOverride       = "fps_override"
	DynamicTranslateX = "dynamic_translate_x"
	DynamicTranslateY = "dynamic_translate_y"
	DynamicScaleX     = "dynamic_scale_x"
	DynamicScaleY     = "dynamic_scale_y"
	DynamicRotation   = "dynamic_rotation"
	ThumbnailURL      = "thumbnail_url"
	ReadyForReview    = "ready_for_review"
)

// Descriptor is the metadata of one attribute.
type Descriptor struct {
	ID       string
	Name     string
	Type     DataType
	ReadOnly bool
	Keyable  bool
	// Angular keyable attributes interpolate along the shortest arc.
	Angular  bool
	Default  any
	Category Category
}

// Registry is the session's attribute-metadata table.
type Registry struct {
	mu    sync.RWMutex
	attrs map[string]Descriptor
	order []string
}

// NewRegistry returns a registry seeded with the core and session attributes.
func NewRegistry() *Registry {
	r := &Registry{attrs: make(map[string]Descriptor)}
	for _, d := range defaultDescriptors() {
		r.put(d)
	}
	return r
}

func defaultDescriptors() []Descriptor {
	return []Descriptor{
		{ID: PlayOrder, Name: "Play Order", Type: Int, ReadOnly: true, Default: 0, Category: CategoryCore},
		{ID: Comment, Name: "Comment", Type: String, Default: "", Category: CategorySession},
		{ID: MediaPath, Name: "Media Path", Type: Path, ReadOnly: true, Default: "", Category: CategoryCore},
		{ID: MediaStartFrame, Name: "Media Start Frame", Type: Int, ReadOnly: true, Default: 1, Category: CategoryCore},
		{ID: MediaEndFrame, Name: "Media End Frame", Type: Int, ReadOnly: true, Default: 1, Category: CategoryCore},
		{ID: Width, Name: "Width", Type: Int, ReadOnly: true, Default: 0, Category: CategoryCore},
		{ID: Height, Name: "Height", Type: Int, ReadOnly: true, Default: 0, Category: CategoryCore},
		{ID: KeyIn, Name: "Key In", Type: Int, Default: 1, Category: CategoryCore},
		{ID: KeyOut, Name: "Key Out", Type: Int, Default: 1, Category: CategoryCore},
		{ID: FPS, Name: "Media FPS", Type: Float, ReadOnly: true, Default: 24.0, Category: CategoryCore},
		{ID: FPSOverride, Name: "FPS Override", Type: Float, Keyable: true, Default: 0.0, Category: CategoryCore},
		{ID: DynamicTranslateX, Name: "Dynamic Translate X", Type: Float, Keyable: true, Default: 0.0, Category: CategoryCore},
		{ID: DynamicTranslateY, Name: "Dynamic Translate Y", Type: Float, Keyable: true, Default: 0.0, Category: CategoryCore},
		{ID: DynamicScaleX, Name: "Dynamic Scale X", Type: Float, Keyable: true, Default: 1.0, Category: CategoryCore},
		{ID: DynamicScaleY, Name: "Dynamic Scale Y", Type: Float, Keyable: true, Default: 1.0, Category: CategoryCore},
		{ID: DynamicRotation, Name: "Dynamic Rotation", Type: Float, Keyable: true, Angular: true, Default: 0.0, Category: CategoryCore},
		{ID: ThumbnailURL, Name: "Thumbnail URL", Type: String, Default: "", Category: CategoryCore},
		{ID: ReadyForReview, Name: "Ready For Review", Type: Bool, Default: false, Category: CategorySession},
	}
}

func (r *Registry) put(d Descriptor) {
	if _, ok := r.attrs[d.ID]; !ok {
		r.order = append(r.order, d.ID)
	}
	r.attrs[d.ID] = d
}

// Add registers a user-defined attribute. Existing ids are left untouched and
// false is returned.
func (r *Registry) Add(d Descriptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attrs[d.ID]; ok {
		return false
	}
	if d.Category == "" {
		d.Category = CategoryUserDefined
	}
	r.put(d)
	return true
}

// Remove deletes a user-defined attribute; core and session attributes stay.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.attrs[id]
	if !ok || d.Category != CategoryUserDefined {
		return false
	}
	delete(r.attrs, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the descriptor for id.
func (r *Registry) Get(id string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.attrs[id]
	return d, ok
}

// IDs returns attribute ids in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Keyable returns the ids of every keyable attribute.
func (r *Registry) Keyable() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, id := range r.order {
		if r.attrs[id].Keyable {
			out = append(out, id)
		}
	}
	return out
}

// Check validates that v is acceptable for the attribute's data type.
func (d Descriptor) Check(v any) error {
	switch d.Type {
	case Int:
		if _, ok := v.(int); !ok {
			return fmt.Errorf("%w: %s expects int, got %T", value.ErrInvalidArgument, d.ID, v)
		}
	case Float:
		switch v.(type) {
		case float64, int:
		default:
			return fmt.Errorf("%w: %s expects float, got %T", value.ErrInvalidArgument, d.ID, v)
		}
	case String, Path:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: %s expects string, got %T", value.ErrInvalidArgument, d.ID, v)
		}
	case Bool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("%w: %s expects bool, got %T", value.ErrInvalidArgument, d.ID, v)
		}
	}
	return nil
}

// Keyed is the record kept for a keyable attribute. FrameValues is the dense
// table rebuilt from KeyValues on every key change.
type Keyed struct {
	Value       float64
	KeyValues   map[int]float64
	FrameValues map[int]float64
	angular     bool
}

// NewKeyed returns a record holding a plain value and no keys.
func NewKeyed(v float64, angular bool) *Keyed {
	return &Keyed{
		Value:       v,
		KeyValues:   make(map[int]float64),
		FrameValues: make(map[int]float64),
		angular:     angular,
	}
}

// SetKeys replaces the key table and rebuilds the dense table.
func (k *Keyed) SetKeys(keys map[int]float64) error {
	dense, err := interp.FrameValues(keys, k.angular)
	if err != nil {
		return err
	}
	k.KeyValues = make(map[int]float64, len(keys))
	for f, v := range keys {
		k.KeyValues[f] = v
	}
	k.FrameValues = dense
	return nil
}

// SetKey adds or replaces one key.
func (k *Keyed) SetKey(frame int, v float64) error {
	keys := k.copyKeys()
	keys[frame] = v
	return k.SetKeys(keys)
}

// DeleteKey removes one key.
func (k *Keyed) DeleteKey(frame int) error {
	keys := k.copyKeys()
	delete(keys, frame)
	return k.SetKeys(keys)
}

// ClearKeys drops every key.
func (k *Keyed) ClearKeys() {
	k.KeyValues = make(map[int]float64)
	k.FrameValues = make(map[int]float64)
}

func (k *Keyed) copyKeys() map[int]float64 {
	keys := make(map[int]float64, len(k.KeyValues)+1)
	for f, v := range k.KeyValues {
		keys[f] = v
	}
	return keys
}

// IsKeyed reports whether the record has keys.
func (k *Keyed) IsKeyed() bool {
	return len(k.KeyValues) > 0
}

// At returns the value at frame, clamping to the keyed range.
func (k *Keyed) At(frame int) float64 {
	if len(k.FrameValues) == 0 {
		return k.Value
	}
	if v, ok := k.FrameValues[frame]; ok {
		return v
	}
	frames := k.Frames()
	if frame < frames[0] {
		return k.FrameValues[frames[0]]
	}
	return k.FrameValues[frames[len(frames)-1]]
}

// Frames returns the keyed frames ascending.
func (k *Keyed) Frames() []int {
	out := make([]int, 0, len(k.KeyValues))
	for f := range k.KeyValues {
		out = append(out, f)
	}
	sort.Ints(out)
	return out
}

// Angular reports whether the record interpolates as an angle.
func (k *Keyed) Angular() bool {
	return k.angular
}
