// Package session holds the viewer's reconfiguration state: the current
// capability document, the parameter set derived from it and the in-flight
// source selection.
package session

import (
	"context"
	"fmt"
	"sync"

	"globe/internal/metrics"
	"globe/viewer/params"
	"globe/viewer/source"
	"globe/viewer/surface"
	"globe/viewer/wmts"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("globe.session")

const (
	// ErrStaleResult marks a fetch result superseded by a newer selection.
	// It is logged and counted, never returned.
	ErrStaleResult = errors.ConstError("stale fetch result")

	// ErrReconfiguring rejects layer, style and tile matrix set edits while
	// a source fetch is in flight.
	ErrReconfiguring = errors.ConstError("reconfiguration in progress")
)

// State is the phase of the reconfiguration state machine.
type State int

const (
	Idle State = iota
	Fetching
	Deriving
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Deriving:
		return "deriving"
	case Rebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Rebuilder replaces the live pipeline for a document and parameter set.
type Rebuilder interface {
	Rebuild(doc *wmts.Capabilities, set params.Set) error
}

// Config holds the collaborators of a Machine.
type Config struct {
	Sources   *source.Registry
	Fetcher   wmts.Fetcher
	Pipelines Rebuilder
	Toolkit   surface.Toolkit
	Metrics   *metrics.Collector

	// OnError, if set, receives every failed reconfiguration.
	OnError func(error)
}

// Validate checks that the required collaborators are set.
func (c Config) Validate() error {
	switch {
	case c.Sources == nil:
		return errors.NotValidf("nil Sources")
	case c.Fetcher == nil:
		return errors.NotValidf("nil Fetcher")
	case c.Pipelines == nil:
		return errors.NotValidf("nil Pipelines")
	case c.Toolkit == nil:
		return errors.NotValidf("nil Toolkit")
	}
	return nil
}

type fetchResult struct {
	generation uint64
	source     source.Descriptor
	doc        *wmts.Capabilities
	err        error
}

// Machine is the reconfiguration state machine. Apart from the fetch
// goroutines, which only send on a channel, it runs on the frame goroutine.
type Machine struct {
	cfg     Config
	surface *surface.Surface

	ctx     context.Context
	stop    context.CancelFunc
	wg      sync.WaitGroup
	results chan fetchResult

	state      State
	generation uint64
	cancel     context.CancelFunc
	discarded  int

	doc *wmts.Capabilities
	// set is bound to the surface widgets and only replaced in place.
	set       params.Set
	committed string
}

// New returns an idle machine with no document. The surface offers only the
// source field until a fetch succeeds.
func New(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	ctx, stop := context.WithCancel(context.Background())
	m := &Machine{
		cfg:     cfg,
		ctx:     ctx,
		stop:    stop,
		results: make(chan fetchResult, 8),
		set:     params.Set{Dimensions: map[string]string{}},
	}
	m.surface = surface.New(cfg.Toolkit, map[surface.Field]surface.Handler{
		surface.FieldSource:        m.SelectSource,
		surface.FieldLayer:         m.SelectLayer,
		surface.FieldStyle:         m.SetStyle,
		surface.FieldTileMatrixSet: m.SetTileMatrixSet,
	})
	m.surface.Build(cfg.Sources.Names(), nil, &m.set)
	return m, nil
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Generation returns the number of source selections made so far.
func (m *Machine) Generation() uint64 { return m.generation }

// Discarded returns how many stale fetch results were dropped.
func (m *Machine) Discarded() int { return m.discarded }

// Params returns a copy of the current parameter set.
func (m *Machine) Params() params.Set { return m.set.Clone() }

// Document returns the current capability document, or nil.
func (m *Machine) Document() *wmts.Capabilities { return m.doc }

// Surface returns the configuration surface bound to the parameter set.
func (m *Machine) Surface() *surface.Surface { return m.surface }

// SelectSource starts fetching the capabilities of the named source. A
// selection in flight is cancelled and its result will be discarded.
func (m *Machine) SelectSource(name string) error {
	desc, err := m.cfg.Sources.Lookup(name)
	if err != nil {
		return errors.Trace(err)
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.generation++
	gen := m.generation
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.state = Fetching
	m.set.Source = desc.Name
	m.surface.SetStatus("loading " + desc.Name + "...")
	logger.Infof("selecting source %q (generation %d)", desc.Name, gen)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		doc, err := m.cfg.Fetcher.Fetch(ctx, desc.Endpoint)
		select {
		case m.results <- fetchResult{generation: gen, source: desc, doc: doc, err: err}:
		case <-m.ctx.Done():
		}
	}()
	return nil
}

// Poll applies completed fetches. It never blocks.
func (m *Machine) Poll() {
	for {
		select {
		case res := <-m.results:
			m.apply(res)
		default:
			return
		}
	}
}

func (m *Machine) apply(res fetchResult) {
	if res.generation != m.generation {
		m.discarded++
		m.cfg.Metrics.StaleDiscarded()
		err := errors.Annotatef(ErrStaleResult, "%q generation %d, current %d", res.source.Name, res.generation, m.generation)
		logger.Debugf("%v", err)
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	if res.err != nil {
		m.cfg.Metrics.FetchCompleted(metrics.FetchFailure)
		m.fail(res.source, res.err)
		return
	}

	m.state = Deriving
	set, err := params.Derive(res.doc, res.source.DefaultLayer)
	if err != nil {
		m.cfg.Metrics.FetchCompleted(metrics.FetchMalformed)
		m.fail(res.source, err)
		return
	}
	m.cfg.Metrics.FetchCompleted(metrics.FetchOK)
	set.Source = res.source.Name

	m.state = Rebuilding
	m.doc, m.set, m.committed = res.doc, set, res.source.Name
	m.surface.Build(m.cfg.Sources.Names(), m.doc, &m.set)
	m.surface.SetStatus("")
	m.rebuild(metrics.RebuildFull)
	m.state = Idle
}

// fail returns to the last committed configuration.
func (m *Machine) fail(desc source.Descriptor, err error) {
	m.state = Idle
	m.set.Source = m.committed
	logger.Errorf("source %q: %v", desc.Name, err)
	m.surface.SetStatus(fmt.Sprintf("%s: %v", desc.Name, err))
	m.report(errors.Annotatef(err, "source %q", desc.Name))
}

func (m *Machine) report(err error) {
	if m.cfg.OnError != nil {
		m.cfg.OnError(err)
	}
}

// rebuild replaces the pipeline for the current set. A construction failure
// is reported and leaves the machine idle without a pipeline.
func (m *Machine) rebuild(kind string) {
	m.cfg.Metrics.Rebuilt(kind)
	if err := m.cfg.Pipelines.Rebuild(m.doc, m.set.Clone()); err != nil {
		m.surface.SetStatus(err.Error())
		m.report(err)
	}
}

func (m *Machine) checkEditable() error {
	if m.state == Fetching {
		return errors.Annotatef(ErrReconfiguring, "fetching %q", m.set.Source)
	}
	if m.doc == nil {
		return errors.NotFoundf("capabilities document")
	}
	return nil
}

// SelectLayer switches to another layer of the current document, re-deriving
// its style and tile matrix set without refetching.
func (m *Machine) SelectLayer(layerID string) error {
	if err := m.checkEditable(); err != nil {
		return errors.Trace(err)
	}
	next, err := params.ForLayer(m.doc, m.set, layerID)
	if err != nil {
		return errors.Trace(err)
	}
	m.state = Rebuilding
	m.set = next
	m.surface.Build(m.cfg.Sources.Names(), m.doc, &m.set)
	m.rebuild(metrics.RebuildLayer)
	m.state = Idle
	return nil
}

// SetStyle rebuilds the pipeline with another style of the current layer.
func (m *Machine) SetStyle(style string) error {
	return m.editPipeline(func(s *params.Set) { s.Style = style })
}

// SetTileMatrixSet rebuilds the pipeline with another tile matrix set of the
// current layer.
func (m *Machine) SetTileMatrixSet(id string) error {
	return m.editPipeline(func(s *params.Set) { s.TileMatrixSet = id })
}

func (m *Machine) editPipeline(edit func(*params.Set)) error {
	if err := m.checkEditable(); err != nil {
		return errors.Trace(err)
	}
	next := m.set.Clone()
	edit(&next)
	if err := params.Validate(m.doc, next); err != nil {
		return errors.Trace(err)
	}
	m.state = Rebuilding
	m.set = next
	m.rebuild(metrics.RebuildPipeline)
	m.state = Idle
	return nil
}

// Close cancels any fetch in flight and waits for it to finish.
func (m *Machine) Close() {
	m.stop()
	m.wg.Wait()
}
