package loop

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/juju/clock/testclock"
	"github.com/juju/errors"

	"globe/hal"
	"globe/viewer/pipeline"
	"globe/viewer/quarkgl"
	"globe/viewer/tiles"
)

type testFramebuffer struct {
	w, h     int
	buf      []byte
	log      *[]string
	presents int
}

func (f *testFramebuffer) Width() int              { return f.w }
func (f *testFramebuffer) Height() int             { return f.h }
func (f *testFramebuffer) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFramebuffer) StrideBytes() int        { return f.w * 2 }
func (f *testFramebuffer) Buffer() []byte          { return f.buf }
func (f *testFramebuffer) ClearRGB(r, g, b uint8)  {}

func (f *testFramebuffer) Present() error {
	f.presents++
	*f.log = append(*f.log, "present")
	return nil
}

type fakePipeline struct {
	log    *[]string
	group  *quarkgl.Group
	seenAt quarkgl.Vec3
	w, h   int
}

func (p *fakePipeline) SetCamera(cam *quarkgl.Camera) {
	p.seenAt = cam.MatrixWorld().Translation()
	*p.log = append(*p.log, "pipeline.SetCamera")
}

func (p *fakePipeline) SetResolution(w, h int) {
	p.w, p.h = w, h
	*p.log = append(*p.log, "pipeline.SetResolution")
}

func (p *fakePipeline) Update()                    { *p.log = append(*p.log, "pipeline.Update") }
func (p *fakePipeline) Dispose()                   {}
func (p *fakePipeline) Group() *quarkgl.Group      { return p.group }
func (p *fakePipeline) Ellipsoid() tiles.Ellipsoid { return tiles.WGS84 }

type fakeControls struct {
	log *[]string
	cam *quarkgl.Camera
}

func (c *fakeControls) SetEllipsoid(tiles.Ellipsoid, *quarkgl.Group) {}
func (c *fakeControls) HandleKey(hal.KeyEvent) bool                  { return false }
func (c *fakeControls) Dispose()                                     {}
func (c *fakeControls) Camera() *quarkgl.Camera                      { return c.cam }

func (c *fakeControls) Update() {
	c.cam.Position = c.cam.Position.Add(quarkgl.V3(0, 0, 1))
	*c.log = append(*c.log, "controls.Update")
}

type live struct {
	p pipeline.Pipeline
	c pipeline.Controls
}

func (l *live) Pipeline() pipeline.Pipeline { return l.p }
func (l *live) Controls() pipeline.Controls { return l.c }

type overlayFunc func(hal.Framebuffer)

func (f overlayFunc) Draw(fb hal.Framebuffer) { f(fb) }

func TestFrameOrder(t *testing.T) {
	var log []string
	fb := &testFramebuffer{w: 8, h: 6, buf: make([]byte, 8*6*2), log: &log}
	cam := quarkgl.NewCamera(60, 1, 1, 100)
	p := &fakePipeline{log: &log, group: quarkgl.NewGroup()}
	l := &live{p: p, c: &fakeControls{log: &log, cam: cam}}

	d, err := New(Config{
		Framebuffer: fb,
		Scene:       quarkgl.NewScene(),
		Camera:      cam,
		Live:        l,
		Overlay:     overlayFunc(func(hal.Framebuffer) { log = append(log, "overlay") }),
		Clock:       testclock.NewClock(time.Unix(0, 0)),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Frame(); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	want := []string{
		"controls.Update",
		"pipeline.SetCamera",
		"pipeline.SetResolution",
		"pipeline.Update",
		"overlay",
		"present",
	}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Fatalf("frame order (-want +got):\n%s", diff)
	}
	if p.seenAt != quarkgl.V3(0, 0, 1) {
		t.Fatalf("pipeline saw a stale camera matrix: %v", p.seenAt)
	}
	if p.w != 8 || p.h != 6 {
		t.Fatalf("resolution %dx%d", p.w, p.h)
	}
	if d.Frames() != 1 {
		t.Fatalf("frames = %d", d.Frames())
	}
}

func TestFrameWithoutPipeline(t *testing.T) {
	var log []string
	fb := &testFramebuffer{w: 4, h: 4, buf: make([]byte, 4*4*2), log: &log}
	for i := range fb.buf {
		fb.buf[i] = 0xFF
	}
	r := quarkgl.NewRenderer()
	r.ClearColor = quarkgl.RGB(0, 0, 0)

	d, err := New(Config{
		Framebuffer: fb,
		Scene:       quarkgl.NewScene(),
		Camera:      quarkgl.NewCamera(60, 1, 1, 100),
		Live:        &live{},
		Renderer:    r,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := d.Frame(); err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
	}
	if fb.presents != 3 {
		t.Fatalf("presents = %d", fb.presents)
	}
	for i, b := range fb.buf {
		if b != 0 {
			t.Fatalf("byte %d not cleared: %#x", i, b)
		}
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, errors.NotValid) {
		t.Fatalf("expected NotValid, got %v", err)
	}
}
