package render

import (
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/rpa-review/sessioncore/internal/session"
	"github.com/rpa-review/sessioncore/internal/value"
)

// Overlay background opacity with and without the pointer over it.
const (
	HoverOpacity = 0.6
	IdleOpacity  = 0.0
)

const overlayPadding = 4

var overlayOutline = value.Gray

// HoverOpacityAt returns the background opacity of o for a pointer at the
// viewport-normalized point p.
func HoverOpacityAt(o *session.Overlay, p value.Point, viewW, viewH float64) float64 {
	if o.Hovered(p, viewW, viewH) {
		return HoverOpacity
	}
	return IdleOpacity
}

// htmlLines flattens an HTML fragment into text lines. Block elements and
// <br> start a new line; script and style content is dropped.
func htmlLines(src string) ([]string, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	var lines []string
	var cur strings.Builder
	flush := func() {
		if line := strings.Join(strings.Fields(cur.String()), " "); line != "" {
			lines = append(lines, line)
		}
		cur.Reset()
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			cur.WriteString(n.Data)
			cur.WriteByte(' ')
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				flush()
				return
			}
		}
		block := n.Type == html.ElementNode && isBlock(n.DataAtom)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(root)
	flush()
	return lines, nil
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Li, atom.Ul, atom.Ol, atom.Tr, atom.Table,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Pre, atom.Blockquote:
		return true
	}
	return false
}

// wrap breaks lines so none is wider than width pixels.
func wrap(face font.Face, lines []string, width int) []string {
	var out []string
	limit := fixed.I(width)
	for _, line := range lines {
		var cur string
		for _, word := range strings.Fields(line) {
			next := word
			if cur != "" {
				next = cur + " " + word
			}
			if cur != "" && font.MeasureString(face, next) > limit {
				out = append(out, cur)
				next = word
			}
			cur = next
		}
		if cur != "" {
			out = append(out, cur)
		}
	}
	return out
}

// RasterizeHTML renders an HTML fragment as white text on a transparent
// width by height image.
func RasterizeHTML(src string, width, height int) (*image.RGBA, error) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	lines, err := htmlLines(src)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	drawText(img, wrap(basicfont.Face7x13, lines, width-2*overlayPadding), color.White)
	return img, nil
}

func drawText(img *image.RGBA, lines []string, c color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(c), Face: face}
	y := overlayPadding + face.Ascent
	for _, line := range lines {
		if y > img.Bounds().Dy() {
			break
		}
		d.Dot = fixed.P(overlayPadding, y)
		d.DrawString(line)
		y += face.Height
	}
}

// RasterizeText renders one line of text on a translucent dark plate sized
// to fit it.
func RasterizeText(text string) *image.RGBA {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + 2*overlayPadding
	h := face.Height + 2*overlayPadding
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.NRGBA{A: 160}), image.Point{}, draw.Src)
	drawText(img, []string{text}, color.White)
	return img
}

// FlipBGRA returns the image bottom row first with red and blue swapped, the
// layout GL expects for a BGRA upload.
func FlipBGRA(img *image.RGBA) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]byte, 0, 4*w*h)
	for y := h - 1; y >= 0; y-- {
		row := img.Pix[y*img.Stride : y*img.Stride+4*w]
		for x := 0; x < w; x++ {
			px := row[4*x : 4*x+4]
			out = append(out, px[2], px[1], px[0], px[3])
		}
	}
	return out
}

// overlayTexture is the uploaded image of one overlay revision.
type overlayTexture struct {
	texture  uint32
	revision int
}

// overlayQuad returns the on-screen corners of o in viewport pixels.
func overlayQuad(o *session.Overlay, viewW, viewH float64) [4]value.Point {
	cx, cy := o.X*viewW, o.Y*viewH
	hw, hh := o.Width/2, o.Height/2
	return [4]value.Point{
		{X: cx - hw, Y: cy - hh},
		{X: cx + hw, Y: cy - hh},
		{X: cx + hw, Y: cy + hh},
		{X: cx - hw, Y: cy + hh},
	}
}
