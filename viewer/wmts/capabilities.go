// Package wmts models the subset of an OGC WMTS 1.0.0 capability document the
// viewer needs, fetches it over HTTP and builds tile request URLs from it.
package wmts

import (
	"strings"
)

// WebMercator is the normalized identifier of the spherical mercator CRS.
const WebMercator = "EPSG:3857"

// Capabilities is a decoded capability document. It is never mutated after
// Decode returns; a new fetch produces a new value.
type Capabilities struct {
	Service        Service
	Layers         []Layer
	TileMatrixSets []*TileMatrixSet

	// GetTileKVP is the GET endpoint advertised for KVP GetTile requests, if any.
	GetTileKVP string
}

// Service is the ows:ServiceIdentification block.
type Service struct {
	Title    string
	Abstract string
}

// Layer is one dataset offered by the service. Decode guarantees at least one
// style and one tile matrix set.
type Layer struct {
	Identifier     string
	Title          string
	Abstract       string
	Styles         []Style
	TileMatrixSets []*TileMatrixSet
	Dimensions     []Dimension
	Formats        []string
	ResourceURLs   []ResourceURL

	// WGS84BoundingBox is nil when the layer does not advertise one.
	WGS84BoundingBox *BoundingBox
}

type Style struct {
	Identifier string
	Title      string
	IsDefault  bool
}

// Dimension is an axis of variation such as time, with its legal values.
type Dimension struct {
	Identifier string
	Default    string
	Values     []string
}

type ResourceURL struct {
	Format       string
	ResourceType string
	Template     string
}

// BoundingBox is a lon/lat box in degrees.
type BoundingBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}

// TileMatrixSet is a tiling scheme: one TileMatrix per zoom level.
type TileMatrixSet struct {
	Identifier   string
	SupportedCRS string // normalized, e.g. "EPSG:3857"
	TileMatrices []TileMatrix
}

type TileMatrix struct {
	Identifier       string
	ScaleDenominator float64
	TopLeftX         float64
	TopLeftY         float64
	TileWidth        int
	TileHeight       int
	MatrixWidth      int
	MatrixHeight     int
}

// Layer returns the layer with the given identifier.
func (c *Capabilities) Layer(id string) (*Layer, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Layers {
		if c.Layers[i].Identifier == id {
			return &c.Layers[i], true
		}
	}
	return nil, false
}

// LayerIDs returns layer identifiers in document order.
func (c *Capabilities) LayerIDs() []string {
	if c == nil {
		return nil
	}
	ids := make([]string, len(c.Layers))
	for i := range c.Layers {
		ids[i] = c.Layers[i].Identifier
	}
	return ids
}

func (l *Layer) StyleIDs() []string {
	ids := make([]string, len(l.Styles))
	for i, s := range l.Styles {
		ids[i] = s.Identifier
	}
	return ids
}

func (l *Layer) TileMatrixSetIDs() []string {
	ids := make([]string, len(l.TileMatrixSets))
	for i, s := range l.TileMatrixSets {
		ids[i] = s.Identifier
	}
	return ids
}

func (l *Layer) HasStyle(id string) bool {
	for _, s := range l.Styles {
		if s.Identifier == id {
			return true
		}
	}
	return false
}

// TileMatrixSet returns the linked matrix set with the given identifier.
func (l *Layer) TileMatrixSet(id string) (*TileMatrixSet, bool) {
	for _, s := range l.TileMatrixSets {
		if s.Identifier == id {
			return s, true
		}
	}
	return nil, false
}

// Dimension returns the dimension with the given identifier (case-insensitive,
// as templates frequently differ in case from the declaration).
func (l *Layer) Dimension(id string) (*Dimension, bool) {
	for i := range l.Dimensions {
		if strings.EqualFold(l.Dimensions[i].Identifier, id) {
			return &l.Dimensions[i], true
		}
	}
	return nil, false
}

// NormalizeCRS reduces the URN and URL spellings of an EPSG code to "EPSG:n".
// The legacy Google code 900913 maps to EPSG:3857. Unknown forms are returned
// trimmed but otherwise unchanged.
func NormalizeCRS(crs string) string {
	s := strings.TrimSpace(crs)
	lower := strings.ToLower(s)

	var code string
	switch {
	case strings.HasPrefix(lower, "urn:ogc:def:crs:epsg:"):
		// urn:ogc:def:crs:EPSG::3857 or urn:ogc:def:crs:EPSG:6.18.3:3857
		code = s[strings.LastIndex(s, ":")+1:]
	case strings.HasPrefix(lower, "http://www.opengis.net/def/crs/epsg/"),
		strings.HasPrefix(lower, "https://www.opengis.net/def/crs/epsg/"):
		code = s[strings.LastIndex(s, "/")+1:]
	case strings.HasPrefix(lower, "epsg:"):
		code = s[len("epsg:"):]
	default:
		return s
	}
	if code == "" {
		return s
	}
	if code == "900913" {
		code = "3857"
	}
	return "EPSG:" + code
}
