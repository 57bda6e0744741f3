package geo

import (
	"fmt"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/rpa-review/sessioncore/internal/value"
)

// MinShapePoints is the fewest points a region shape may have.
const MinShapePoints = 3

// ShapePolygon builds a closed polygon from a shape's outline.
func ShapePolygon(points []value.Point) (geom.Polygon, error) {
	if len(points) < MinShapePoints {
		return geom.Polygon{}, fmt.Errorf("%w: shape needs %d points, got %d", value.ErrInvalidArgument, MinShapePoints, len(points))
	}
	flat := make([]float64, 0, 2*len(points)+2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	if !points[0].Equal(points[len(points)-1], 0) {
		flat = append(flat, points[0].X, points[0].Y)
	}
	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("%w: shape outline: %v", value.ErrInvalidArgument, err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring})
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("%w: shape polygon: %v", value.ErrInvalidArgument, err)
	}
	return poly, nil
}

// ShapeArea returns the unsigned area of a shape in normalized units, or 0
// when the shape cannot form a polygon.
func ShapeArea(points []value.Point) float64 {
	poly, err := ShapePolygon(points)
	if err != nil {
		return 0
	}
	return poly.Area()
}

// SimpleShape reports whether the outline forms a valid, non self-crossing
// polygon.
func SimpleShape(points []value.Point) bool {
	_, err := ShapePolygon(points)
	return err == nil
}

// RegionContains applies the odd-winding rule across shapes: a point is
// covered when an odd number of shapes contain it. A region without shapes
// covers everything.
func RegionContains(shapes [][]value.Point, p value.Point) bool {
	if len(shapes) == 0 {
		return true
	}
	pt, err := geom.XY{X: p.X, Y: p.Y}.AsPoint()
	if err != nil {
		return false
	}
	inside := false
	for _, s := range shapes {
		poly, err := ShapePolygon(s)
		if err != nil {
			continue
		}
		if geom.Intersects(poly.AsGeometry(), pt.AsGeometry()) {
			inside = !inside
		}
	}
	return inside
}
