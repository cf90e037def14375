package extract

import (
	"strconv"
	"strings"

	"github.com/japaniel/tweetload/pkg/tweet"
)

// geoWKT builds a well-known-text geometry for a status: a POINT from an
// exact geotag, otherwise a MULTIPOLYGON from the place bounding box. A nil
// result is the explicit "unknown" marker; unresolved geometry is not an
// error.
func geoWKT(st *tweet.Status) *string {
	if st.Geo != nil && len(st.Geo.Coordinates) >= 2 {
		wkt := "POINT(" + coord(st.Geo.Coordinates[0]) + " " + coord(st.Geo.Coordinates[1]) + ")"
		return &wkt
	}
	if st.Place != nil && st.Place.BoundingBox != nil && len(st.Place.BoundingBox.Coordinates) > 0 {
		wkt := multiPolygon(st.Place.BoundingBox.Coordinates)
		return &wkt
	}
	return nil
}

// multiPolygon renders the bounding box polygons, closing each ring by
// repeating its first point.
func multiPolygon(polys [][][]float64) string {
	var b strings.Builder
	b.WriteString("MULTIPOLYGON((")
	for i, poly := range polys {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(")
		for _, pt := range poly {
			b.WriteString(point(pt))
			b.WriteString(",")
		}
		if len(poly) > 0 {
			b.WriteString(point(poly[0]))
		}
		b.WriteString(")")
	}
	b.WriteString("))")
	return b.String()
}

func point(pt []float64) string {
	if len(pt) < 2 {
		return ""
	}
	return coord(pt[0]) + " " + coord(pt[1])
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
