// Package params derives a valid layer/style/tile-matrix-set selection from a
// capability document.
package params

import (
	"globe/viewer/wmts"

	"github.com/juju/errors"
)

// ErrMalformedCapabilities means a document cannot yield any valid selection.
const ErrMalformedCapabilities = errors.ConstError("malformed capabilities")

// ErrInvalidSelection means a Set does not satisfy the document it is checked against.
const ErrInvalidSelection = errors.ConstError("invalid selection")

// Set is the user-facing parameter set. Layer, Style and TileMatrixSet are
// always members of the current document's option sets.
type Set struct {
	Source        string
	Layer         string
	Style         string
	TileMatrixSet string
	Dimensions    map[string]string
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	c := s
	c.Dimensions = make(map[string]string, len(s.Dimensions))
	for k, v := range s.Dimensions {
		c.Dimensions[k] = v
	}
	return c
}

// Derive selects the requested layer if the document has it, otherwise the
// first layer, then the layer's defaults. Source is left for the caller.
func Derive(doc *wmts.Capabilities, requestedLayer string) (Set, error) {
	if doc == nil || len(doc.Layers) == 0 {
		return Set{}, errors.Annotate(ErrMalformedCapabilities, "document has no layers")
	}
	layer, ok := doc.Layer(requestedLayer)
	if !ok {
		layer = &doc.Layers[0]
	}
	return forLayer(layer)
}

// ForLayer re-derives style and tile matrix set for another layer of the same
// document, keeping the source.
func ForLayer(doc *wmts.Capabilities, current Set, layerID string) (Set, error) {
	layer, ok := doc.Layer(layerID)
	if !ok {
		return Set{}, errors.Annotatef(ErrInvalidSelection, "layer %q not in document", layerID)
	}
	next, err := forLayer(layer)
	if err != nil {
		return Set{}, errors.Trace(err)
	}
	next.Source = current.Source
	return next, nil
}

func forLayer(layer *wmts.Layer) (Set, error) {
	if len(layer.Styles) == 0 || len(layer.TileMatrixSets) == 0 {
		return Set{}, errors.Annotatef(ErrMalformedCapabilities, "layer %q lacks styles or tile matrix sets", layer.Identifier)
	}
	return Set{
		Layer:         layer.Identifier,
		Style:         layer.Styles[0].Identifier,
		TileMatrixSet: PreferredTileMatrixSet(layer).Identifier,
		Dimensions:    map[string]string{},
	}, nil
}

// PreferredTileMatrixSet returns the web-mercator set if the layer offers one,
// otherwise the first set in document order.
func PreferredTileMatrixSet(layer *wmts.Layer) *wmts.TileMatrixSet {
	for _, s := range layer.TileMatrixSets {
		if s.SupportedCRS == wmts.WebMercator {
			return s
		}
	}
	return layer.TileMatrixSets[0]
}

// Validate checks that s references a layer of doc and one of its styles and
// tile matrix sets.
func Validate(doc *wmts.Capabilities, s Set) error {
	layer, ok := doc.Layer(s.Layer)
	if !ok {
		return errors.Annotatef(ErrInvalidSelection, "layer %q not in document", s.Layer)
	}
	if !layer.HasStyle(s.Style) {
		return errors.Annotatef(ErrInvalidSelection, "style %q not offered by layer %q", s.Style, s.Layer)
	}
	if _, ok := layer.TileMatrixSet(s.TileMatrixSet); !ok {
		return errors.Annotatef(ErrInvalidSelection, "tile matrix set %q not offered by layer %q", s.TileMatrixSet, s.Layer)
	}
	return nil
}
