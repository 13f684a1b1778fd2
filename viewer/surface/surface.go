// Package surface exposes the parameter set as editable fields and routes
// edits to the reconfiguration handlers.
package surface

import (
	"slices"

	"globe/viewer/params"
	"globe/viewer/wmts"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("globe.surface")

// ErrInvalidOption is returned by Edit for a value outside the field's options.
const ErrInvalidOption = errors.ConstError("invalid option")

// Field identifies one editable parameter.
type Field string

const (
	FieldSource        Field = "wmtsSource"
	FieldLayer         Field = "layer"
	FieldTileMatrixSet Field = "tileMatrixSet"
	FieldStyle         Field = "style"
)

// Fields lists the fields in display order.
var Fields = []Field{FieldSource, FieldLayer, FieldTileMatrixSet, FieldStyle}

// Binding points at the parameter a widget shows. Widgets read it on every
// draw; only the Surface writes it.
type Binding = *string

// Handler reacts to an accepted edit of one field. It runs synchronously on
// the frame goroutine.
type Handler func(value string) error

// Toolkit draws the widgets and the info panel.
type Toolkit interface {
	Add(field Field, binding Binding, options []string, onChange func(value string) error)
	SetInfo(lines []string)
	Destroy()
}

// Surface binds a parameter set to a toolkit through a dispatch table.
type Surface struct {
	toolkit  Toolkit
	handlers map[Field]Handler

	set     *params.Set
	options map[Field][]string
	info    []string
	status  string
}

// New returns a surface dispatching edits through handlers. Fields without a
// handler are read-only.
func New(tk Toolkit, handlers map[Field]Handler) *Surface {
	return &Surface{
		toolkit:  tk,
		handlers: handlers,
		options:  make(map[Field][]string),
	}
}

// Build destroys the current widgets and creates one per field for set,
// with options taken from the source names and doc.
func (s *Surface) Build(sources []string, doc *wmts.Capabilities, set *params.Set) {
	s.toolkit.Destroy()
	s.set = set
	s.options = map[Field][]string{FieldSource: slices.Clone(sources)}
	s.info = nil

	if doc != nil {
		s.options[FieldLayer] = doc.LayerIDs()
		s.info = append(s.info, doc.Service.Title)
		if doc.Service.Abstract != "" {
			s.info = append(s.info, doc.Service.Abstract)
		}
		if layer, ok := doc.Layer(set.Layer); ok {
			s.options[FieldTileMatrixSet] = layer.TileMatrixSetIDs()
			s.options[FieldStyle] = layer.StyleIDs()
			title := layer.Title
			if title == "" {
				title = layer.Identifier
			}
			s.info = append(s.info, title)
		}
	}

	for _, f := range Fields {
		opts, ok := s.options[f]
		if !ok {
			continue
		}
		s.toolkit.Add(f, s.binding(f), opts, func(v string) error { return s.Edit(f, v) })
	}
	s.refreshInfo()
	logger.Debugf("surface built: %d sources, layer %q", len(sources), set.Layer)
}

// Destroy removes all widgets.
func (s *Surface) Destroy() {
	s.toolkit.Destroy()
	s.set = nil
	s.options = make(map[Field][]string)
}

// SetStatus replaces the status line under the info text. An empty status
// removes it.
func (s *Surface) SetStatus(status string) {
	s.status = status
	s.refreshInfo()
}

// Options returns the options currently offered for f.
func (s *Surface) Options(f Field) []string {
	return slices.Clone(s.options[f])
}

// Value returns the current value of f.
func (s *Surface) Value(f Field) string {
	if b := s.binding(f); b != nil {
		return *b
	}
	return ""
}

// Edit sets f to value and dispatches its handler. Setting a field to its
// current value does nothing. If the handler fails the previous value is
// restored.
func (s *Surface) Edit(f Field, value string) error {
	b := s.binding(f)
	if b == nil {
		return errors.NotFoundf("field %q", f)
	}
	if !slices.Contains(s.options[f], value) {
		return errors.Annotatef(ErrInvalidOption, "%s = %q", f, value)
	}
	if *b == value {
		return nil
	}
	h, ok := s.handlers[f]
	if !ok {
		return errors.NotSupportedf("editing %q", f)
	}

	prev := *b
	*b = value
	if err := h(value); err != nil {
		// The handler may have rebuilt the surface around another set.
		if nb := s.binding(f); nb == b {
			*b = prev
		}
		return errors.Trace(err)
	}
	return nil
}

func (s *Surface) binding(f Field) Binding {
	if s.set == nil {
		return nil
	}
	switch f {
	case FieldSource:
		return &s.set.Source
	case FieldLayer:
		return &s.set.Layer
	case FieldTileMatrixSet:
		return &s.set.TileMatrixSet
	case FieldStyle:
		return &s.set.Style
	}
	return nil
}

func (s *Surface) refreshInfo() {
	lines := slices.Clone(s.info)
	if s.status != "" {
		lines = append(lines, s.status)
	}
	s.toolkit.SetInfo(lines)
}
