package overpass

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/sells-group/landscore/internal/geometry"
	"github.com/sells-group/landscore/internal/layer"
)

// Element is one OSM node, way or relation in an Overpass JSON response.
type Element struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat,omitempty"`
	Lon   float64           `json:"lon,omitempty"`
	Nodes []int64           `json:"nodes,omitempty"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Response is the decoded Overpass JSON body.
type Response struct {
	Elements []Element `json:"elements"`
}

// Parse decodes a raw Overpass JSON body.
func Parse(data []byte) (*Response, error) {
	var r Response
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "overpass: decode response")
	}
	return &r, nil
}

// Polygons turns tagged ways into closed polygons. Node references that are
// missing from the response are skipped, ways left with fewer than 3 points
// are dropped, and open rings are closed. Untagged ways are outline members
// of other features and are ignored.
func (r *Response) Polygons() []*geojson.Feature {
	nodes := make(map[int64]orb.Point)
	for _, e := range r.Elements {
		if e.Type == "node" {
			nodes[e.ID] = orb.Point{e.Lon, e.Lat}
		}
	}

	var out []*geojson.Feature
	for _, e := range r.Elements {
		if e.Type != "way" || len(e.Tags) == 0 || len(e.Nodes) == 0 {
			continue
		}
		ring := make(orb.Ring, 0, len(e.Nodes)+1)
		for _, id := range e.Nodes {
			if p, ok := nodes[id]; ok {
				ring = append(ring, p)
			}
		}
		if len(ring) < 3 {
			continue
		}
		if !ring.Closed() {
			ring = append(ring, ring[0])
		}

		f := geojson.NewFeature(orb.Polygon{ring})
		f.ID = e.ID
		for k, v := range e.Tags {
			f.Properties[k] = v
		}
		out = append(out, f)
	}
	return out
}

// Layer returns the polygons as a WGS84 layer.
func (r *Response) Layer() *layer.Layer {
	return &layer.Layer{CRS: geometry.WGS84, Features: r.Polygons()}
}
