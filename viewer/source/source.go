// Package source holds the fixed registry of known WMTS services.
package source

import (
	"github.com/juju/errors"
)

// ErrUnknownSource is returned when a name is not in the registry.
const ErrUnknownSource = errors.ConstError("unknown source")

// Descriptor names a WMTS service and where to fetch its capabilities.
type Descriptor struct {
	Name         string `json:"name"`
	Endpoint     string `json:"url"`
	DefaultLayer string `json:"default_layer,omitempty"`
}

// Registry is an ordered, immutable list of descriptors.
type Registry struct {
	list []Descriptor
}

// NewRegistry copies descs into a registry. Names must be unique and endpoints set.
func NewRegistry(descs []Descriptor) (*Registry, error) {
	if len(descs) == 0 {
		return nil, errors.NotValidf("empty source registry")
	}
	seen := make(map[string]bool, len(descs))
	for _, d := range descs {
		if d.Name == "" {
			return nil, errors.NotValidf("source with empty name")
		}
		if d.Endpoint == "" {
			return nil, errors.NotValidf("source %q without endpoint", d.Name)
		}
		if seen[d.Name] {
			return nil, errors.NotValidf("duplicate source %q", d.Name)
		}
		seen[d.Name] = true
	}
	return &Registry{list: append([]Descriptor(nil), descs...)}, nil
}

// Lookup finds a descriptor by name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	for _, d := range r.list {
		if d.Name == name {
			return d, nil
		}
	}
	return Descriptor{}, errors.Annotatef(ErrUnknownSource, "%q", name)
}

// Names returns descriptor names in registry order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.list))
	for i, d := range r.list {
		names[i] = d.Name
	}
	return names
}

// All returns a copy of the descriptors.
func (r *Registry) All() []Descriptor {
	return append([]Descriptor(nil), r.list...)
}

// Builtin lists the Dutch services the viewer ships with.
func Builtin() []Descriptor {
	return []Descriptor{
		{
			Name:         "OpenBasisKaart",
			DefaultLayer: "osm-epsg3857",
			Endpoint:     "https://www.openbasiskaart.nl/mapcache/wmts/?SERVICE=WMTS&REQUEST=GETCAPABILITIES",
		},
		{
			Name:     "PDOK Luchtfoto",
			Endpoint: "https://service.pdok.nl/hwh/luchtfotorgb/wmts/v1_0?request=GetCapabilities&service=WMTS",
		},
		{
			Name:     "PDOK Achtergrondkaart",
			Endpoint: "https://service.pdok.nl/brt/achtergrondkaart/wmts/v2_0?request=GetCapabilities&service=WMTS",
		},
		{
			Name:     "PDOK Kadaster KadastraleKaart",
			Endpoint: "https://service.pdok.nl/kadaster/kadastralekaart/wmts/v5_0?request=GetCapabilities&service=WMTS",
		},
		{
			Name:     "PDOK Kadaster BGT",
			Endpoint: "https://service.pdok.nl/lv/bgt/wmts/v1_0?request=GetCapabilities&service=WMTS",
		},
	}
}

// DefaultSource is selected at startup when no -source flag is given.
const DefaultSource = "PDOK Luchtfoto"
