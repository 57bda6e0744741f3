package render

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpa-review/sessioncore/internal/annotation"
	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/geo"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/value"
)

var viewQuad = geo.Quad{
	BL: value.Point{X: 0, Y: 0},
	BR: value.Point{X: 1280, Y: 0},
	TR: value.Point{X: 1280, Y: 720},
	TL: value.Point{X: 0, Y: 720},
}

type fixture struct {
	gl     *RecordingGL
	bridge *Bridge
	sess   *session.Session
	clip   *session.Clip
	now    time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{gl: NewRecordingGL(), now: time.Unix(1000, 0)}
	b, err := NewBridge(Dependencies{GL: f.gl, Config: cfg, Now: func() time.Time { return f.now }})
	require.NoError(t, err)
	f.bridge = b

	f.sess = session.New(session.Seeds{Playlist: "p", CC: "c"}, "alice")
	c, err := f.sess.CreateClip(f.sess.Fg().ID, "/a.exr", "", -1)
	require.NoError(t, err)
	require.NoError(t, c.SetAttr(attr.Width, 200, true))
	require.NoError(t, c.SetAttr(attr.Height, 100, true))
	f.clip = c
	f.sess.Viewport.Geometry = viewQuad
	return f
}

func (f *fixture) frame(src int) Frame {
	return Frame{Clip: f.clip, SourceFrame: src, Viewport: f.sess.Viewport, ViewWidth: 1280, ViewHeight: 720}
}

func square(x0, y0, x1, y1 float64) colorcorrection.Shape {
	return colorcorrection.Shape{Points: []value.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}}}
}

func regionCC(shapes ...colorcorrection.Shape) *colorcorrection.ColorCorrection {
	cc := colorcorrection.NewColorCorrection("", "region", colorcorrection.NewColorTimer())
	cc.Region = &colorcorrection.Region{Falloff: 12, Shapes: shapes}
	return cc
}

func TestBlurRadius(t *testing.T) {
	tests := []struct {
		falloff float64
		want    float64
	}{
		{0, MinBlurRadius},
		{3, MinBlurRadius},
		{10, 5},
		{511, 255.5},
		{10000, MaxBlurRadius},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BlurRadius(tt.falloff), "falloff %v", tt.falloff)
	}
}

func TestBlurWeights(t *testing.T) {
	w := BlurWeights(10)
	require.Len(t, w, 11)
	assert.InDelta(t, 1.0/5, w[5], 1e-12)
	assert.InDelta(t, 0, w[0], 1e-12)
	for i := range w {
		assert.InDelta(t, w[i], w[len(w)-1-i], 1e-12)
	}
}

func TestPackCCs(t *testing.T) {
	live := colorcorrection.NewColorCorrection("a", "a", colorcorrection.NewColorTimer(), colorcorrection.NewGrade())
	muted := colorcorrection.NewColorCorrection("b", "b", colorcorrection.NewColorTimer())
	muted.SetMute(true)
	masked := regionCC()

	data := PackCCs([]*colorcorrection.ColorCorrection{live, muted, masked})
	count, fields, err := UnpackCCs(data)
	require.NoError(t, err)
	assert.Equal(t, int32(2), count)
	assert.Equal(t, append(live.Pack(), masked.Pack()...), fields)
	assert.Equal(t, float32(0), fields[0], "is_region")
	assert.Equal(t, float32(2), fields[1], "node_count")

	empty := PackCCs(nil)
	assert.Equal(t, []byte{0, 0, 0, 0}, empty)
}

func TestPreRender_RegionMasks(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	_, err := f.clip.CCs.Append(nil, []*colorcorrection.ColorCorrection{
		regionCC(square(0.1, 0.1, 0.9, 0.9), square(0.4, 0.4, 0.6, 0.6)),
		regionCC(),
	})
	require.NoError(t, err)

	f.bridge.PreRender(context.Background(), f.frame(1))

	assert.NotZero(t, f.gl.TextureAt(16))
	assert.NotZero(t, f.gl.TextureAt(17))
	assert.Zero(t, f.gl.TextureAt(18))

	ops := f.gl.Find("StencilOp")
	require.NotEmpty(t, ops)
	assert.Equal(t, StencilInvert, ops[0].Args[0])
	assert.Equal(t, 1, f.gl.Count("EnableStencil")/2, "only the shaped region uses the stencil")

	assert.Equal(t, 1, f.gl.Count("CompileProgram"))
	assert.Equal(t, 2, f.gl.Count("UseProgram")/2)

	data, ok := f.gl.BoundBuffer(16)
	require.True(t, ok)
	count, _, err := UnpackCCs(data)
	require.NoError(t, err)
	assert.Equal(t, int32(3), count, "default correction plus two regions")

	f.bridge.PostRender()
	assert.Equal(t, Live{Programs: 1}, f.gl.Live())
	_, ok = f.gl.BoundBuffer(16)
	assert.False(t, ok)

	f.bridge.PreRender(context.Background(), f.frame(1))
	assert.Equal(t, 1, f.gl.Count("CompileProgram"), "blur program is reused")
	f.bridge.Close()
	assert.Equal(t, Live{}, f.gl.Live())
}

func TestPreRender_Feedback(t *testing.T) {
	tests := []struct {
		name  string
		set   func(*session.Feedback)
		masks int
		count int32
	}{
		{"all shown", func(*session.Feedback) {}, 1, 3},
		{"regions hidden", func(fb *session.Feedback) { fb.RegionCCs = false }, 0, 2},
		{"frame hidden", func(fb *session.Feedback) { fb.FrameCCs = false }, 1, 2},
		{"clip hidden", func(fb *session.Feedback) { fb.ClipCCs = false }, 0, 1},
		{"nothing", func(fb *session.Feedback) { fb.All = false }, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			_, err := f.clip.CCs.Append(nil, []*colorcorrection.ColorCorrection{regionCC(square(0, 0, 1, 1))})
			require.NoError(t, err)
			frame := 5
			_, err = f.clip.CCs.Append(&frame, []*colorcorrection.ColorCorrection{colorcorrection.NewColorCorrection("", "f", colorcorrection.NewGrade())})
			require.NoError(t, err)
			tt.set(&f.sess.Viewport.Feedback)

			f.bridge.PreRender(context.Background(), f.frame(5))
			data, ok := f.gl.BoundBuffer(16)
			require.True(t, ok)
			count, _, err := UnpackCCs(data)
			require.NoError(t, err)
			assert.Equal(t, tt.count, count)
			textures := 0
			if tt.masks > 0 {
				textures = 2*tt.masks + 1
			}
			assert.Equal(t, textures, f.gl.Live().Textures, "two mask targets each plus the shared stencil")
		})
	}
}

func TestPreRender_CompileFailure(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.gl.FailCompile = true
	_, err := f.clip.CCs.Append(nil, []*colorcorrection.ColorCorrection{regionCC(square(0, 0, 1, 1))})
	require.NoError(t, err)

	f.bridge.PreRender(context.Background(), f.frame(1))
	f.bridge.PostRender()
	f.bridge.PreRender(context.Background(), f.frame(1))

	assert.Equal(t, 1, f.gl.Count("CompileProgram"), "a failed compile is not retried")
	assert.Zero(t, f.gl.Count("UseProgram"))
	assert.NotZero(t, f.gl.TextureAt(16), "the unblurred mask is still bound")
}

func TestLaserExpiry(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	t0 := f.now
	f.sess.Viewport.SetLaser("p", value.Point{X: 0.5, Y: 0.5}, value.White, 0.01, t0)

	f.now = t0.Add(500 * time.Millisecond)
	f.bridge.Render(context.Background(), PassAnnotation, f.frame(1))
	assert.Equal(t, 3, f.gl.Count("Draw"), "outer circle, flair and inner disk")

	f.gl.Reset()
	f.now = t0.Add(1200 * time.Millisecond)
	f.bridge.Render(context.Background(), PassAnnotation, f.frame(1))
	assert.Empty(t, f.sess.Viewport.Lasers())
	assert.Zero(t, f.gl.Count("Draw"))
}

func TestLaserTrail(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	for i := 0; i < 4; i++ {
		f.sess.Viewport.SetLaser("p", value.Point{X: 0.1 * float64(i), Y: 0.5}, value.White, 0.01, f.now.Add(time.Duration(i)*10*time.Millisecond))
	}
	f.now = f.now.Add(30 * time.Millisecond)
	f.bridge.Render(context.Background(), PassAnnotation, f.frame(1))

	var strip []Vertex
	for _, c := range f.gl.Find("Draw") {
		if c.Args[0] == LineStrip {
			strip = c.Args[1].([]Vertex)
		}
	}
	require.Len(t, strip, 4)
	assert.InDelta(t, 0.25, strip[0].Color.A, 1e-9)
	assert.InDelta(t, 1, strip[3].Color.A, 1e-9)
	assert.Contains(t, f.gl.Find("SetBlend"), Call{Name: "SetBlend", Args: []any{BlendAdditive}})
}

func TestPenPreview(t *testing.T) {
	tests := []struct {
		mode    annotation.Mode
		stipple int
	}{
		{annotation.ModePen, 0},
		{annotation.ModeEraser, 2},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			f := newFixture(t, DefaultConfig())
			f.sess.Viewport.PenPreview = &session.PenPreview{Point: value.Point{X: 0.5, Y: 0.5}, Width: 0.1, Color: value.White, Mode: tt.mode}
			f.bridge.Render(context.Background(), PassAnnotation, f.frame(1))
			calls := f.gl.Find("LineStipple")
			assert.Len(t, calls, tt.stipple)
			if tt.stipple > 0 {
				assert.Equal(t, []any{1, StippleEraser}, calls[0].Args)
			}
			draws := f.gl.Find("Draw")
			require.Len(t, draws, 1)
			assert.Equal(t, LineLoop, draws[0].Args[0])
		})
	}
}

func TestOverlayTextures(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	vp := f.sess.Viewport
	vp.SetOverlay(&session.Overlay{ID: "o1", HTML: "<p>Shot 010</p>", X: 0.5, Y: 0.5, Width: 200, Height: 50, Visible: true})

	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	assert.Equal(t, 1, f.gl.Count("NewTexture"), "unchanged overlay keeps its texture")
	assert.Equal(t, 2, f.gl.Count("DrawTextured"))

	vp.SetOverlay(&session.Overlay{ID: "o1", HTML: "<p>Shot 020</p>", X: 0.5, Y: 0.5, Width: 200, Height: 50, Visible: true})
	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	assert.Equal(t, 2, f.gl.Count("NewTexture"))
	assert.Equal(t, 1, f.gl.Count("DeleteTexture"))

	vp.DeleteOverlays(nil)
	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	assert.Zero(t, f.gl.Live().Textures)
}

func TestDisplayMessage(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.sess.Viewport.Message = &session.Message{Text: "saved", Expires: f.now.Add(2 * time.Second)}

	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	assert.Equal(t, 1, f.gl.Count("DrawTextured"))
	f.bridge.PostRender()
	assert.Zero(t, f.gl.Live().Textures)

	f.now = f.now.Add(3 * time.Second)
	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	assert.Equal(t, 1, f.gl.Count("DrawTextured"))
	assert.Nil(t, f.sess.Viewport.Message)
}

func TestCursors(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.sess.Viewport.CrossHair = &value.Point{X: 0.5, Y: 0.5}
	f.sess.Viewport.TextCursor = &session.TextCursor{Position: value.Point{X: 0.5, Y: 0.5}, Size: 4}
	f.bridge.Render(context.Background(), PassViewport, f.frame(1))

	draws := f.gl.Find("Draw")
	require.Len(t, draws, 2)
	cross := draws[0].Args[1].([]Vertex)
	require.Len(t, cross, 4)
	assert.InDelta(t, 20, cross[1].X-cross[0].X, 1e-9)
	caret := draws[1].Args[1].([]Vertex)
	assert.InDelta(t, 20, caret[1].Y-caret[0].Y, 1e-9)
}

func TestDebugMaskThumbnails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebugMasks = true
	f := newFixture(t, cfg)
	_, err := f.clip.CCs.Append(nil, []*colorcorrection.ColorCorrection{regionCC(square(0, 0, 1, 1))})
	require.NoError(t, err)

	f.bridge.PreRender(context.Background(), f.frame(1))
	f.bridge.Render(context.Background(), PassViewport, f.frame(1))
	assert.Equal(t, 1, f.gl.Count("DrawTextured"))
	f.bridge.PostRender()
	assert.Equal(t, Live{Programs: 1}, f.gl.Live())
}

func TestMaskThumbnail_EvenOdd(t *testing.T) {
	img, err := MaskThumbnail(&colorcorrection.Region{Shapes: []colorcorrection.Shape{
		square(0.1, 0.1, 0.9, 0.9),
		square(0.4, 0.4, 0.6, 0.6),
	}})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, ThumbWidth, ThumbHeight), img.Bounds())
	assert.Greater(t, img.RGBAAt(19, 50).R, uint8(200), "inside the outer ring")
	assert.Less(t, img.RGBAAt(47, 50).R, uint8(50), "inside the hole")
	assert.Less(t, img.RGBAAt(2, 2).R, uint8(50), "outside")

	full, err := MaskThumbnail(nil)
	require.NoError(t, err)
	assert.Greater(t, full.RGBAAt(2, 2).R, uint8(200))
}

func TestHTMLLines(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"<p>Hello <b>world</b></p>tail", []string{"Hello world", "tail"}},
		{"one<br>two", []string{"one", "two"}},
		{"<div>a</div><script>alert(1)</script><style>p{}</style>", []string{"a"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := htmlLines(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRasterizeHTML(t *testing.T) {
	img, err := RasterizeHTML("<p>review notes for the lighting pass</p>", 60, 80)
	require.NoError(t, err)
	assert.Equal(t, 60, img.Bounds().Dx())

	lit := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
}

func TestFlipBGRA(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	img.SetRGBA(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 4})
	img.SetRGBA(0, 1, color.RGBA{R: 5, G: 6, B: 7, A: 8})
	assert.Equal(t, []byte{7, 6, 5, 8, 3, 2, 1, 4}, FlipBGRA(img))
}

func TestHoverOpacityAt(t *testing.T) {
	o := &session.Overlay{X: 0.5, Y: 0.5, Width: 128, Height: 72}
	assert.Equal(t, HoverOpacity, HoverOpacityAt(o, value.Point{X: 0.5, Y: 0.5}, 1280, 720))
	assert.Equal(t, IdleOpacity, HoverOpacityAt(o, value.Point{X: 0.1, Y: 0.1}, 1280, 720))
}
