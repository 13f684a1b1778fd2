package pipeline

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/juju/errors"

	"globe/hal"
	"globe/viewer/params"
	"globe/viewer/quarkgl"
	"globe/viewer/tiles"
	"globe/viewer/wmts"
)

type recorder struct {
	events []string
	live   int
	peak   int
}

func (r *recorder) add(format string, args ...any) {
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

type fakePipeline struct {
	id       int
	rec      *recorder
	group    *quarkgl.Group
	disposed bool
}

func (p *fakePipeline) SetCamera(*quarkgl.Camera)  {}
func (p *fakePipeline) SetResolution(int, int)     {}
func (p *fakePipeline) Update()                    {}
func (p *fakePipeline) Group() *quarkgl.Group      { return p.group }
func (p *fakePipeline) Ellipsoid() tiles.Ellipsoid { return tiles.WGS84 }

func (p *fakePipeline) Dispose() {
	if p.disposed {
		return
	}
	p.disposed = true
	p.rec.live--
	p.rec.add("dispose %d", p.id)
}

type fakeControls struct {
	cam      *quarkgl.Camera
	rec      *recorder
	disposed bool
}

func (c *fakeControls) SetEllipsoid(tiles.Ellipsoid, *quarkgl.Group) {
	// Controls typically reset the camera when bound.
	c.cam.Position = quarkgl.V3(0, 0, 1e7)
	c.cam.Rotation = quarkgl.Euler{}
}
func (c *fakeControls) HandleKey(hal.KeyEvent) bool { return false }
func (c *fakeControls) Update()                     {}
func (c *fakeControls) Dispose()                    { c.disposed = true; c.rec.add("dispose controls") }
func (c *fakeControls) Camera() *quarkgl.Camera     { return c.cam }

type harness struct {
	rec     *recorder
	scene   *quarkgl.Scene
	camera  *quarkgl.Camera
	fail    bool
	built   []Options
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{rec: &recorder{}, scene: quarkgl.NewScene(), camera: quarkgl.NewCamera(60, 1, 1, 1e8)}
	h.camera.Position = quarkgl.V3(3971364.93, 4968792.28, -250499.80)
	h.camera.Rotation = quarkgl.Euler{X: -1.62083, Y: 0.67041, Z: 1.64432}

	var n int
	m, err := NewManager(Config{
		Scene:  h.scene,
		Camera: h.camera,
		NewPipeline: func(opts Options) (Pipeline, error) {
			n++
			h.rec.add("construct %d", n)
			if h.fail {
				return nil, errors.New("boom")
			}
			h.built = append(h.built, opts)
			h.rec.live++
			h.rec.peak = max(h.rec.peak, h.rec.live)
			return &fakePipeline{id: n, rec: h.rec, group: quarkgl.NewGroup()}, nil
		},
		NewControls: func(scene *quarkgl.Scene, cam *quarkgl.Camera, _ Surface) Controls {
			return &fakeControls{cam: cam, rec: h.rec}
		},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	h.manager = m
	return h
}

var testSet = params.Set{Source: "a", Layer: "L1", Style: "default", TileMatrixSet: "WM", Dimensions: map[string]string{}}

func TestNewManagerValidates(t *testing.T) {
	if _, err := NewManager(Config{}); !errors.Is(err, errors.NotValid) {
		t.Fatalf("expected NotValid, got %v", err)
	}
}

func TestRebuildBuildsFixedOptions(t *testing.T) {
	h := newHarness(t)
	doc := &wmts.Capabilities{}
	if err := h.manager.Rebuild(doc, testSet); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	want := Options{
		Shape:         ShapeEllipsoid,
		Center:        true,
		Capabilities:  doc,
		Layer:         "L1",
		Style:         "default",
		TileMatrixSet: "WM",
		Dimensions:    map[string]string{},
		ErrorTarget:   1.5,
	}
	if diff := cmp.Diff([]Options{want}, h.built, cmp.Comparer(func(a, b *wmts.Capabilities) bool { return a == b })); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
	got, ok := h.manager.Options()
	if !ok || got.Layer != "L1" {
		t.Fatalf("Options() = %+v, %v", got, ok)
	}

	group := h.manager.Pipeline().Group()
	if group.Rotation.X != -math.Pi/2 {
		t.Fatalf("group rotation %v", group.Rotation)
	}
	if !h.scene.Contains(group) || h.scene.Groups() != 1 {
		t.Fatalf("scene does not hold exactly the live group")
	}
	if h.manager.Handle() == uuid.Nil {
		t.Fatal("live pipeline has no handle")
	}
}

func TestRebuildDisposesBeforeConstructing(t *testing.T) {
	h := newHarness(t)
	const n = 4
	handles := map[uuid.UUID]bool{}
	for i := 0; i < n; i++ {
		if err := h.manager.Rebuild(&wmts.Capabilities{}, testSet); err != nil {
			t.Fatalf("Rebuild %d: %v", i, err)
		}
		handles[h.manager.Handle()] = true
	}

	want := []string{"construct 1"}
	for i := 2; i <= n; i++ {
		want = append(want, fmt.Sprintf("dispose %d", i-1), "dispose controls", fmt.Sprintf("construct %d", i))
	}
	if diff := cmp.Diff(want, h.rec.events); diff != "" {
		t.Fatalf("event order mismatch (-want +got):\n%s", diff)
	}
	if h.rec.peak != 1 || h.rec.live != 1 {
		t.Fatalf("live pipelines: peak %d, now %d", h.rec.peak, h.rec.live)
	}
	if len(handles) != n {
		t.Fatalf("expected %d distinct handles, got %d", n, len(handles))
	}
	if h.scene.Groups() != 1 {
		t.Fatalf("expected 1 group in scene, got %d", h.scene.Groups())
	}
}

func TestRebuildPreservesViewpoint(t *testing.T) {
	h := newHarness(t)
	pos, rot := h.camera.Position, h.camera.Rotation

	for i := 0; i < 3; i++ {
		if err := h.manager.Rebuild(&wmts.Capabilities{}, testSet); err != nil {
			t.Fatalf("Rebuild: %v", err)
		}
		cam := h.manager.Controls().Camera()
		if cam.Position != pos || cam.Rotation != rot {
			t.Fatalf("rebuild %d moved the camera: %v %v", i, cam.Position, cam.Rotation)
		}
	}
}

func TestRebuildFailureLeavesNoPipeline(t *testing.T) {
	h := newHarness(t)
	if err := h.manager.Rebuild(&wmts.Capabilities{}, testSet); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	pos := h.camera.Position

	h.fail = true
	err := h.manager.Rebuild(&wmts.Capabilities{}, testSet)
	if !errors.Is(err, ErrPipelineConstruction) {
		t.Fatalf("expected ErrPipelineConstruction, got %v", err)
	}
	if h.manager.Pipeline() != nil || h.manager.Controls() != nil {
		t.Fatal("manager still holds a pipeline after a failed rebuild")
	}
	if h.rec.live != 0 || h.scene.Groups() != 0 {
		t.Fatalf("live %d, scene groups %d", h.rec.live, h.scene.Groups())
	}
	if h.manager.Handle() != uuid.Nil {
		t.Fatal("failed rebuild left a handle")
	}
	if h.camera.Position != pos {
		t.Fatal("failed rebuild moved the camera")
	}

	h.fail = false
	if err := h.manager.Rebuild(&wmts.Capabilities{}, testSet); err != nil {
		t.Fatalf("Rebuild after failure: %v", err)
	}
	if h.rec.live != 1 {
		t.Fatalf("expected 1 live pipeline, got %d", h.rec.live)
	}
}

func TestDispose(t *testing.T) {
	h := newHarness(t)
	if err := h.manager.Rebuild(&wmts.Capabilities{}, testSet); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	h.manager.Dispose()
	h.manager.Dispose()
	if h.rec.live != 0 || h.scene.Groups() != 0 || h.manager.Pipeline() != nil {
		t.Fatal("Dispose left state behind")
	}
	if _, ok := h.manager.Options(); ok {
		t.Fatal("Options reports a live pipeline after Dispose")
	}
}
