package wmts

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("globe.wmts")

type xmlCapabilities struct {
	XMLName    xml.Name           `xml:"Capabilities"`
	Service    xmlService         `xml:"ServiceIdentification"`
	Operations []xmlOperation     `xml:"OperationsMetadata>Operation"`
	Layers     []xmlLayer         `xml:"Contents>Layer"`
	Sets       []xmlTileMatrixSet `xml:"Contents>TileMatrixSet"`
}

type xmlService struct {
	Title    string `xml:"Title"`
	Abstract string `xml:"Abstract"`
}

type xmlOperation struct {
	Name string   `xml:"name,attr"`
	Gets []xmlGet `xml:"DCP>HTTP>Get"`
}

type xmlGet struct {
	Href      string   `xml:"href,attr"`
	Encodings []string `xml:"Constraint>AllowedValues>Value"`
}

type xmlLayer struct {
	Identifier string           `xml:"Identifier"`
	Title      string           `xml:"Title"`
	Abstract   string           `xml:"Abstract"`
	BBox       *xmlBBox         `xml:"WGS84BoundingBox"`
	Styles     []xmlStyle       `xml:"Style"`
	Formats    []string         `xml:"Format"`
	Dimensions []xmlDimension   `xml:"Dimension"`
	Links      []xmlLink        `xml:"TileMatrixSetLink"`
	Resources  []xmlResourceURL `xml:"ResourceURL"`
}

type xmlBBox struct {
	Lower string `xml:"LowerCorner"`
	Upper string `xml:"UpperCorner"`
}

type xmlStyle struct {
	Identifier string `xml:"Identifier"`
	Title      string `xml:"Title"`
	IsDefault  bool   `xml:"isDefault,attr"`
}

type xmlDimension struct {
	Identifier string   `xml:"Identifier"`
	Default    string   `xml:"Default"`
	Values     []string `xml:"Value"`
}

type xmlLink struct {
	TileMatrixSet string `xml:"TileMatrixSet"`
}

type xmlResourceURL struct {
	Format       string `xml:"format,attr"`
	ResourceType string `xml:"resourceType,attr"`
	Template     string `xml:"template,attr"`
}

type xmlTileMatrixSet struct {
	Identifier   string          `xml:"Identifier"`
	SupportedCRS string          `xml:"SupportedCRS"`
	Matrices     []xmlTileMatrix `xml:"TileMatrix"`
}

type xmlTileMatrix struct {
	Identifier       string  `xml:"Identifier"`
	ScaleDenominator float64 `xml:"ScaleDenominator"`
	TopLeftCorner    string  `xml:"TopLeftCorner"`
	TileWidth        int     `xml:"TileWidth"`
	TileHeight       int     `xml:"TileHeight"`
	MatrixWidth      int     `xml:"MatrixWidth"`
	MatrixHeight     int     `xml:"MatrixHeight"`
}

// Decode reads a WMTS capability document. Layers without a style or without a
// resolvable tile matrix set are dropped so every returned layer is usable.
// A document with no usable layers still decodes; callers decide whether that
// is acceptable.
func Decode(r io.Reader) (*Capabilities, error) {
	var doc xmlCapabilities
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Annotate(err, "decoding capabilities")
	}

	caps := &Capabilities{
		Service: Service{
			Title:    strings.TrimSpace(doc.Service.Title),
			Abstract: strings.TrimSpace(doc.Service.Abstract),
		},
		GetTileKVP: getTileKVP(doc.Operations),
	}

	sets := make(map[string]*TileMatrixSet, len(doc.Sets))
	for _, xs := range doc.Sets {
		set := &TileMatrixSet{
			Identifier:   strings.TrimSpace(xs.Identifier),
			SupportedCRS: NormalizeCRS(xs.SupportedCRS),
		}
		for _, xm := range xs.Matrices {
			x, y := parsePair(xm.TopLeftCorner)
			set.TileMatrices = append(set.TileMatrices, TileMatrix{
				Identifier:       strings.TrimSpace(xm.Identifier),
				ScaleDenominator: xm.ScaleDenominator,
				TopLeftX:         x,
				TopLeftY:         y,
				TileWidth:        xm.TileWidth,
				TileHeight:       xm.TileHeight,
				MatrixWidth:      xm.MatrixWidth,
				MatrixHeight:     xm.MatrixHeight,
			})
		}
		caps.TileMatrixSets = append(caps.TileMatrixSets, set)
		sets[set.Identifier] = set
	}

	for _, xl := range doc.Layers {
		layer := Layer{
			Identifier: strings.TrimSpace(xl.Identifier),
			Title:      strings.TrimSpace(xl.Title),
			Abstract:   strings.TrimSpace(xl.Abstract),
			Formats:    xl.Formats,
		}
		for _, xs := range xl.Styles {
			layer.Styles = append(layer.Styles, Style{
				Identifier: strings.TrimSpace(xs.Identifier),
				Title:      strings.TrimSpace(xs.Title),
				IsDefault:  xs.IsDefault,
			})
		}
		for _, link := range xl.Links {
			id := strings.TrimSpace(link.TileMatrixSet)
			set, ok := sets[id]
			if !ok {
				logger.Debugf("layer %q links unknown tile matrix set %q", layer.Identifier, id)
				continue
			}
			layer.TileMatrixSets = append(layer.TileMatrixSets, set)
		}
		for _, xd := range xl.Dimensions {
			layer.Dimensions = append(layer.Dimensions, Dimension{
				Identifier: strings.TrimSpace(xd.Identifier),
				Default:    strings.TrimSpace(xd.Default),
				Values:     xd.Values,
			})
		}
		for _, xr := range xl.Resources {
			layer.ResourceURLs = append(layer.ResourceURLs, ResourceURL(xr))
		}
		if xl.BBox != nil {
			minLon, minLat := parsePair(xl.BBox.Lower)
			maxLon, maxLat := parsePair(xl.BBox.Upper)
			layer.WGS84BoundingBox = &BoundingBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
		}

		if layer.Identifier == "" || len(layer.Styles) == 0 || len(layer.TileMatrixSets) == 0 {
			logger.Warningf("dropping unusable layer %q (styles=%d matrix sets=%d)",
				layer.Identifier, len(layer.Styles), len(layer.TileMatrixSets))
			continue
		}
		caps.Layers = append(caps.Layers, layer)
	}
	return caps, nil
}

func getTileKVP(ops []xmlOperation) string {
	for _, op := range ops {
		if op.Name != "GetTile" {
			continue
		}
		for _, get := range op.Gets {
			if get.Href == "" {
				continue
			}
			if len(get.Encodings) == 0 {
				return get.Href
			}
			for _, enc := range get.Encodings {
				if strings.EqualFold(enc, "KVP") {
					return get.Href
				}
			}
		}
	}
	return ""
}

func parsePair(s string) (float64, float64) {
	f := strings.Fields(s)
	if len(f) != 2 {
		return 0, 0
	}
	a, _ := strconv.ParseFloat(f[0], 64)
	b, _ := strconv.ParseFloat(f[1], 64)
	return a, b
}
