package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/rpa-review/sessioncore/internal/attr"
	"github.com/rpa-review/sessioncore/internal/colorcorrection"
	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/value"
)

// Pass is one of the two render callbacks of a frame.
type Pass int

const (
	// PassAnnotation draws live review marks over the image.
	PassAnnotation Pass = iota
	// PassViewport draws overlays and cursors over the whole view.
	PassViewport
)

func (p Pass) String() string {
	if p == PassViewport {
		return "viewport"
	}
	return "annotation"
}

// Config holds bridge settings.
type Config struct {
	DebugMasks     bool
	MaskUnitBase   int
	SSBOBinding    int
	PointDelay     time.Duration
	TrailDelay     time.Duration
	TrailMaxPoints int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		MaskUnitBase:   16,
		SSBOBinding:    16,
		PointDelay:     time.Second,
		TrailDelay:     50 * time.Millisecond,
		TrailMaxPoints: 1000,
	}
}

// Frame is what a render callback needs from the session.
type Frame struct {
	Clip        *session.Clip
	SourceFrame int
	Viewport    *session.Viewport
	ViewWidth   float64
	ViewHeight  float64
}

// Dependencies holds what a Bridge needs.
type Dependencies struct {
	GL     GL
	Logger *slog.Logger
	Config Config
	// Now defaults to time.Now.
	Now func() time.Time
}

// frameResources are the GL objects owned by one frame.
type frameResources struct {
	masks        []*mask
	regions      []*colorcorrection.Region
	depthStencil uint32
	ssbo         uint32
	textures     []uint32
}

// Bridge runs the pre-render, render and post-render phases. Only the blur
// program and overlay textures outlive a frame.
type Bridge struct {
	gl  GL
	log *slog.Logger
	cfg Config
	now func() time.Time

	blurProgram uint32
	blurFailed  bool
	frame       *frameResources
	overlays    map[string]overlayTexture

	masksGenerated metric.Int64Counter
	ssboBytes      metric.Int64Counter
}

// NewBridge returns a bridge drawing through deps.GL.
func NewBridge(deps Dependencies) (*Bridge, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	b := &Bridge{
		gl:       deps.GL,
		log:      log.With("component", "render"),
		cfg:      deps.Config,
		now:      now,
		overlays: make(map[string]overlayTexture),
	}

	m := meter()
	var err error
	b.masksGenerated, err = m.Int64Counter(
		"render.masks.generated",
		metric.WithDescription("Region masks rasterized"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating masks counter: %w", err)
	}
	b.ssboBytes, err = m.Int64Counter(
		"render.ssbo.bytes",
		metric.WithDescription("Bytes uploaded to the color-correction buffer"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ssbo counter: %w", err)
	}
	return b, nil
}

// Applicable returns the corrections to draw for the frame: clip then frame
// corrections, unmuted, filtered by the feedback toggles.
func Applicable(f Frame) []*colorcorrection.ColorCorrection {
	if f.Clip == nil || f.Viewport == nil {
		return nil
	}
	fb := f.Viewport.Feedback
	if !fb.All {
		return nil
	}
	var all []*colorcorrection.ColorCorrection
	if fb.ClipCCs {
		all = append(all, f.Clip.CCs.CCs(nil)...)
	}
	if fb.FrameCCs {
		frame := f.SourceFrame
		all = append(all, f.Clip.CCs.CCs(&frame)...)
	}
	out := all[:0]
	for _, cc := range all {
		if cc.Mute || (cc.IsRegion() && !fb.RegionCCs) {
			continue
		}
		out = append(out, cc)
	}
	return out
}

func (b *Bridge) ensureBlur() bool {
	if b.blurProgram != 0 {
		return true
	}
	if b.blurFailed {
		return false
	}
	id, err := b.gl.CompileProgram(blurVertex, blurFragment)
	if err != nil {
		b.blurFailed = true
		b.log.Error("blur shader failed to compile", "error", err)
		return false
	}
	b.blurProgram = id
	return true
}

func imageSize(c *session.Clip) (int, int) {
	w, h := c.Int(attr.Width), c.Int(attr.Height)
	if w < 1 || h < 1 {
		return 1, 1
	}
	return w, h
}

// PreRender builds the region masks and the correction buffer for the frame.
// Anything left from an unfinished frame is released first.
func (b *Bridge) PreRender(ctx context.Context, f Frame) {
	if b.frame != nil {
		b.PostRender()
	}
	fr := &frameResources{}
	b.frame = fr

	ccs := Applicable(f)
	var regions []*colorcorrection.ColorCorrection
	for _, cc := range ccs {
		if cc.IsRegion() {
			regions = append(regions, cc)
		}
	}

	if len(regions) > 0 {
		w, h := imageSize(f.Clip)
		blurred := b.ensureBlur()
		fr.depthStencil = b.gl.NewTexture(Depth24Stencil8, w, h, nil)
		for i, cc := range regions {
			m := &mask{ccID: cc.ID, unit: b.cfg.MaskUnitBase + i}
			m.texture = b.gl.NewTexture(RGBA32F, w, h, nil)
			m.scratch = b.gl.NewTexture(RGBA32F, w, h, nil)
			m.fbo = b.gl.NewFramebuffer(m.texture, fr.depthStencil)
			m.scratchFBO = b.gl.NewFramebuffer(m.scratch, 0)
			fr.masks = append(fr.masks, m)
			fr.regions = append(fr.regions, cc.Region)

			b.gl.BindFramebuffer(m.fbo)
			b.gl.Viewport(0, 0, w, h)
			rasterize(b.gl, cc.Region)
			if blurred {
				blur(b.gl, b.blurProgram, m, cc.Region.Falloff, w, h)
			}
			b.gl.BindTextureUnit(m.unit, m.texture)
		}
		b.gl.BindFramebuffer(0)
		b.masksGenerated.Add(ctx, int64(len(regions)))
	}

	data := PackCCs(ccs)
	fr.ssbo = b.gl.NewBuffer(data, StaticDraw)
	b.gl.BindBufferBase(b.cfg.SSBOBinding, fr.ssbo)
	b.ssboBytes.Add(ctx, int64(len(data)))
}

// Render runs one render pass.
func (b *Bridge) Render(ctx context.Context, pass Pass, f Frame) {
	if f.Viewport == nil {
		return
	}
	switch pass {
	case PassAnnotation:
		b.renderAnnotation(f)
	case PassViewport:
		b.renderViewport(f)
	}
}

func (b *Bridge) renderAnnotation(f Frame) {
	vp := f.Viewport
	vp.ExpireLasers(b.now(), b.cfg.PointDelay, b.cfg.TrailDelay, b.cfg.TrailMaxPoints)
	q := vp.Geometry
	if q.IsZero() {
		return
	}
	for _, l := range vp.Lasers() {
		drawLaser(b.gl, q, l)
	}
	if vp.PenPreview != nil {
		drawPenPreview(b.gl, q, vp.PenPreview)
	}
}

func (b *Bridge) renderViewport(f Frame) {
	vp := f.Viewport
	b.drawOverlays(f)

	if q := vp.Geometry; !q.IsZero() {
		if vp.CrossHair != nil {
			drawCrossHair(b.gl, q, *vp.CrossHair)
		}
		if vp.TextCursor != nil {
			drawTextCursor(b.gl, q, vp.TextCursor)
		}
	}

	if text, ok := vp.ActiveMessage(b.now()); ok {
		img := RasterizeText(text)
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		tex := b.frameTexture(w, h, FlipBGRA(img))
		x := f.ViewWidth/2 - float64(w)/2
		y := 40.0
		b.gl.SetBlend(BlendAlpha)
		b.gl.DrawTextured(tex, rect(x, y, float64(w), float64(h)))
		b.gl.SetBlend(BlendNone)
	}

	if b.cfg.DebugMasks && b.frame != nil {
		for i, region := range b.frame.regions {
			img, err := MaskThumbnail(region)
			if err != nil {
				b.log.Debug("mask thumbnail failed", "error", err)
				continue
			}
			tex := b.frameTexture(ThumbWidth, ThumbHeight, FlipBGRA(img))
			b.gl.DrawTextured(tex, rect(10+float64(i*(ThumbWidth+5)), 10, ThumbWidth, ThumbHeight))
		}
	}
}

func rect(x, y, w, h float64) [4]value.Point {
	return [4]value.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
}

// frameTexture uploads pixels into a texture released after the frame.
func (b *Bridge) frameTexture(w, h int, pixels []byte) uint32 {
	tex := b.gl.NewTexture(BGRA8, w, h, pixels)
	if b.frame == nil {
		b.frame = &frameResources{}
	}
	b.frame.textures = append(b.frame.textures, tex)
	return tex
}

func (b *Bridge) drawOverlays(f Frame) {
	live := make(map[string]bool)
	for _, o := range f.Viewport.Overlays() {
		live[o.ID] = true
		if !o.Visible {
			continue
		}
		tex := b.overlayTexture(o)
		quad := overlayQuad(o, f.ViewWidth, f.ViewHeight)

		b.gl.SetBlend(BlendAlpha)
		bg := value.Color{A: o.BgOpacity}
		b.gl.Draw(TriangleFan, solid(bg, quad[:]...))
		b.gl.Draw(LineLoop, solid(overlayOutline, quad[:]...))
		if tex != 0 {
			b.gl.DrawTextured(tex, quad)
		}
		b.gl.SetBlend(BlendNone)
	}
	for id, t := range b.overlays {
		if !live[id] {
			b.gl.DeleteTexture(t.texture)
			delete(b.overlays, id)
		}
	}
}

// overlayTexture returns the texture of an overlay, re-rendering it when the
// overlay changed since the last upload.
func (b *Bridge) overlayTexture(o *session.Overlay) uint32 {
	t, ok := b.overlays[o.ID]
	if ok && t.revision == o.Revision {
		return t.texture
	}
	img, err := RasterizeHTML(o.HTML, int(o.Width), int(o.Height))
	if err != nil {
		b.log.Debug("overlay html rejected", "overlay", o.ID, "error", err)
		return 0
	}
	if ok {
		b.gl.DeleteTexture(t.texture)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	id := b.gl.NewTexture(BGRA8, w, h, FlipBGRA(img))
	b.overlays[o.ID] = overlayTexture{texture: id, revision: o.Revision}
	return id
}

// PostRender releases every object the frame created.
func (b *Bridge) PostRender() {
	fr := b.frame
	b.frame = nil
	if fr == nil {
		return
	}
	for _, m := range fr.masks {
		b.gl.BindTextureUnit(m.unit, 0)
		m.release(b.gl)
	}
	if fr.depthStencil != 0 {
		b.gl.DeleteTexture(fr.depthStencil)
	}
	if fr.ssbo != 0 {
		b.gl.DeleteBuffer(fr.ssbo)
	}
	for _, tex := range fr.textures {
		b.gl.DeleteTexture(tex)
	}
}

// Close releases everything, including the blur program.
func (b *Bridge) Close() {
	b.PostRender()
	for id, t := range b.overlays {
		b.gl.DeleteTexture(t.texture)
		delete(b.overlays, id)
	}
	if b.blurProgram != 0 {
		b.gl.DeleteProgram(b.blurProgram)
		b.blurProgram = 0
	}
	b.blurFailed = false
}
