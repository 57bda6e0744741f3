package render

import (
	"image"
	"image/draw"

	"github.com/gogpu/gg"

	"github.com/rpa-review/sessioncore/internal/colorcorrection"
)

// Debug mask thumbnail size in pixels.
const (
	ThumbWidth  = 95
	ThumbHeight = 100
)

// MaskThumbnail rasterizes a region on the CPU at thumbnail size with the
// even-odd rule, matching the stencil fill. Row 0 is the top of the image.
func MaskThumbnail(region *colorcorrection.Region) (*image.RGBA, error) {
	dc := gg.NewContext(ThumbWidth, ThumbHeight)
	defer dc.Close()

	dc.SetRGBA(0, 0, 0, 1)
	dc.DrawRectangle(0, 0, ThumbWidth, ThumbHeight)
	if err := dc.Fill(); err != nil {
		return nil, err
	}

	dc.SetRGBA(1, 1, 1, 1)
	if region == nil || len(region.Shapes) == 0 {
		dc.DrawRectangle(0, 0, ThumbWidth, ThumbHeight)
	} else {
		dc.SetFillRule(gg.FillRuleEvenOdd)
		for _, shape := range region.Shapes {
			if len(shape.Points) < 3 {
				continue
			}
			for i, p := range shape.Points {
				x, y := p.X*ThumbWidth, (1-p.Y)*ThumbHeight
				if i == 0 {
					dc.MoveTo(x, y)
				} else {
					dc.LineTo(x, y)
				}
			}
			dc.ClosePath()
		}
	}
	if err := dc.Fill(); err != nil {
		return nil, err
	}

	src := dc.Image()
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)
	return out, nil
}
