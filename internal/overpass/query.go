// Package overpass fetches candidate vacant-land polygons from an Overpass
// API endpoint and converts the OSM elements into a polygon layer.
package overpass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// DefaultBBox covers the Glasgow–Edinburgh belt.
const DefaultBBox = "55.5,-4.8,56.0,-2.8"

// DefaultTimeoutSecs is the server-side query timeout.
const DefaultTimeoutSecs = 300

// BBox is a south,west,north,east box in degrees.
type BBox struct {
	South, West, North, East float64
}

// ParseBBox parses "south,west,north,east".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, eris.Errorf("overpass: bbox %q must have 4 comma-separated values", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, eris.Wrapf(err, "overpass: bbox %q", s)
		}
		v[i] = f
	}
	b := BBox{South: v[0], West: v[1], North: v[2], East: v[3]}
	if b.South >= b.North || b.West >= b.East {
		return BBox{}, eris.Errorf("overpass: bbox %q is empty", s)
	}
	if b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return BBox{}, eris.Errorf("overpass: bbox %q out of range", s)
	}
	return b, nil
}

func (b BBox) String() string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(b.South) + "," + f(b.West) + "," + f(b.North) + "," + f(b.East)
}

// landuse values treated as vacant or redevelopable.
const vacantLanduse = "brownfield|greenfield|vacant|construction|landfill"

var wayFilters = []string{
	`["railway"]["disused"="yes"]`,
	`["landuse"="railway"]`,
	`["disused"="yes"]`,
	`["abandoned"="yes"]`,
	`["abandoned:landuse"]`,
	`["disused:landuse"]`,
	`["landuse"~"` + vacantLanduse + `"]`,
	`["brownfield"="yes"]`,
	`["vacant"="yes"]`,
	`["operator"~"Network Rail|network rail"]`,
	`["owner"~"Network Rail|network rail"]`,
}

// BuildQuery returns the Overpass QL query for vacant, disused and railway
// land inside b, with ways expanded to their nodes.
func BuildQuery(b BBox, timeoutSecs int) string {
	if timeoutSecs <= 0 {
		timeoutSecs = DefaultTimeoutSecs
	}
	box := "(" + b.String() + ")"

	var sb strings.Builder
	fmt.Fprintf(&sb, "[out:json][timeout:%d];\n(\n", timeoutSecs)
	for _, f := range wayFilters {
		fmt.Fprintf(&sb, "  way%s%s;\n", f, box)
	}
	fmt.Fprintf(&sb, "  node[\"landuse\"~\"%s\"]%s;\n", vacantLanduse, box)
	fmt.Fprintf(&sb, "  relation[\"landuse\"~\"%s\"]%s;\n", vacantLanduse, box)
	sb.WriteString(");\nout body;\n>;\nout skel qt;\n")
	return sb.String()
}
