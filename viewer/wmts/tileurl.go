package wmts

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// TileRequest addresses one tile of a layer.
type TileRequest struct {
	Layer         string
	Style         string
	TileMatrixSet string
	TileMatrix    string
	Row, Col      int

	// Dimensions overrides dimension defaults by identifier.
	Dimensions map[string]string
}

var templateVar = regexp.MustCompile(`\{([^}]+)\}`)

// TileURL builds the URL of a tile, preferring a RESTful ResourceURL template
// and falling back to KVP GetTile.
func (c *Capabilities) TileURL(req TileRequest) (string, error) {
	layer, ok := c.Layer(req.Layer)
	if !ok {
		return "", errors.NotFoundf("layer %q", req.Layer)
	}
	if tmpl := layer.tileTemplate(); tmpl != "" {
		return layer.expandTemplate(tmpl, req), nil
	}
	if c.GetTileKVP == "" {
		return "", errors.NotSupportedf("layer %q has no tile resource and service has no GetTile", req.Layer)
	}
	return layer.kvpURL(c.GetTileKVP, req)
}

// TileFormat is the image format requested for tiles of this layer.
func (l *Layer) TileFormat() string {
	for _, r := range l.ResourceURLs {
		if strings.EqualFold(r.ResourceType, "tile") && r.Format != "" {
			return r.Format
		}
	}
	if len(l.Formats) > 0 {
		return l.Formats[0]
	}
	return "image/png"
}

func (l *Layer) tileTemplate() string {
	var fallback string
	for _, r := range l.ResourceURLs {
		if !strings.EqualFold(r.ResourceType, "tile") || r.Template == "" {
			continue
		}
		switch r.Format {
		case "image/png", "image/jpeg":
			return r.Template
		}
		if fallback == "" {
			fallback = r.Template
		}
	}
	return fallback
}

func (l *Layer) expandTemplate(tmpl string, req TileRequest) string {
	return templateVar.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		switch strings.ToLower(name) {
		case "tilematrixset":
			return req.TileMatrixSet
		case "tilematrix":
			return req.TileMatrix
		case "tilerow":
			return strconv.Itoa(req.Row)
		case "tilecol":
			return strconv.Itoa(req.Col)
		case "style":
			return req.Style
		}
		if v, ok := l.dimensionValue(name, req.Dimensions); ok {
			return v
		}
		return m
	})
}

func (l *Layer) kvpURL(base string, req TileRequest) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Annotatef(err, "parsing GetTile endpoint %q", base)
	}
	q := u.Query()
	q.Set("SERVICE", "WMTS")
	q.Set("REQUEST", "GetTile")
	q.Set("VERSION", "1.0.0")
	q.Set("LAYER", req.Layer)
	q.Set("STYLE", req.Style)
	q.Set("TILEMATRIXSET", req.TileMatrixSet)
	q.Set("TILEMATRIX", req.TileMatrix)
	q.Set("TILEROW", strconv.Itoa(req.Row))
	q.Set("TILECOL", strconv.Itoa(req.Col))
	q.Set("FORMAT", l.TileFormat())
	for _, d := range l.Dimensions {
		if v, ok := l.dimensionValue(d.Identifier, req.Dimensions); ok {
			q.Set(strings.ToUpper(d.Identifier), v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *Layer) dimensionValue(name string, overrides map[string]string) (string, bool) {
	for k, v := range overrides {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	d, ok := l.Dimension(name)
	if !ok {
		return "", false
	}
	if d.Default != "" {
		return d.Default, true
	}
	if len(d.Values) > 0 {
		return d.Values[0], true
	}
	return "", false
}
