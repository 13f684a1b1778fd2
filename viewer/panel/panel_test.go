package panel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/juju/errors"

	"globe/hal"
	"globe/viewer/fonts/font6x8"
	"globe/viewer/surface"
)

type testFramebuffer struct {
	w, h int
	buf  []byte
}

func newTestFramebuffer(w, h int) *testFramebuffer {
	return &testFramebuffer{w: w, h: h, buf: make([]byte, w*h*2)}
}

func (f *testFramebuffer) Width() int              { return f.w }
func (f *testFramebuffer) Height() int             { return f.h }
func (f *testFramebuffer) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFramebuffer) StrideBytes() int        { return f.w * 2 }
func (f *testFramebuffer) Buffer() []byte          { return f.buf }
func (f *testFramebuffer) ClearRGB(r, g, b uint8)  {}
func (f *testFramebuffer) Present() error          { return nil }

func (f *testFramebuffer) pixel(x, y int) uint16 {
	o := (y*f.w + x) * 2
	return uint16(f.buf[o]) | uint16(f.buf[o+1])<<8
}

func (f *testFramebuffer) fill(p uint16) {
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(p), byte(p>>8)
	}
}

func press(code hal.KeyCode) hal.KeyEvent { return hal.KeyEvent{Code: code, Press: true} }

type editLog struct {
	edits []string
	err   error
}

func newPanel(log *editLog) (*Panel, *string, *string) {
	p := New()
	source, style := "A", "default"
	p.Add(surface.FieldSource, &source, []string{"A", "B", "C"}, func(v string) error {
		log.edits = append(log.edits, "source="+v)
		if log.err != nil {
			return log.err
		}
		source = v
		return nil
	})
	p.Add(surface.FieldStyle, &style, []string{"default", "grey"}, func(v string) error {
		log.edits = append(log.edits, "style="+v)
		style = v
		return nil
	})
	return p, &source, &style
}

func TestTabTogglesFocus(t *testing.T) {
	p, _, _ := newPanel(&editLog{})
	if p.HandleKey(press(hal.KeyUp)) {
		t.Fatal("unfocused panel consumed an arrow key")
	}
	if !p.HandleKey(press(hal.KeyTab)) || !p.Focused() {
		t.Fatal("Tab did not focus the panel")
	}
	if !p.HandleKey(press(hal.KeyEscape)) || p.Focused() {
		t.Fatal("Escape did not release focus")
	}
}

func TestReleasesAreNotConsumed(t *testing.T) {
	p, _, _ := newPanel(&editLog{})
	p.HandleKey(press(hal.KeyTab))
	if p.HandleKey(hal.KeyEvent{Code: hal.KeyUp}) {
		t.Fatal("release consumed")
	}
}

func TestCycleEditsFocusedField(t *testing.T) {
	log := &editLog{}
	p, source, style := newPanel(log)
	p.HandleKey(press(hal.KeyTab))

	p.HandleKey(press(hal.KeyRight))
	p.HandleKey(press(hal.KeyLeft))
	p.HandleKey(press(hal.KeyLeft))
	p.HandleKey(press(hal.KeyDown))
	p.HandleKey(press(hal.KeyRight))

	want := []string{"source=B", "source=A", "source=C", "style=grey"}
	if diff := cmp.Diff(want, log.edits); diff != "" {
		t.Fatalf("edits (-want +got):\n%s", diff)
	}
	if *source != "C" || *style != "grey" {
		t.Fatalf("bindings %q %q", *source, *style)
	}
	if diff := cmp.Diff([]string{"wmtsSource: C", "style: grey"}, p.Rows()); diff != "" {
		t.Fatalf("rows (-want +got):\n%s", diff)
	}
}

func TestCursorWraps(t *testing.T) {
	log := &editLog{}
	p, _, _ := newPanel(log)
	p.HandleKey(press(hal.KeyTab))
	p.HandleKey(press(hal.KeyUp))
	p.HandleKey(press(hal.KeyRight))
	if diff := cmp.Diff([]string{"style=grey"}, log.edits); diff != "" {
		t.Fatalf("edits (-want +got):\n%s", diff)
	}
}

func TestEditErrorIsShown(t *testing.T) {
	log := &editLog{err: errors.New("reconfiguring")}
	p, source, _ := newPanel(log)
	p.SetInfo([]string{"Service"})
	p.HandleKey(press(hal.KeyTab))
	p.HandleKey(press(hal.KeyRight))

	if *source != "A" {
		t.Fatalf("source changed to %q", *source)
	}
	if diff := cmp.Diff([]string{"Service", "reconfiguring"}, p.infoLines(40)); diff != "" {
		t.Fatalf("info (-want +got):\n%s", diff)
	}
}

func TestRebuildDuringEdit(t *testing.T) {
	p := New()
	v := "x"
	p.Add(surface.FieldLayer, &v, []string{"x", "y"}, nil)
	p.Add(surface.FieldStyle, &v, []string{"x", "y"}, func(string) error {
		p.Destroy()
		p.Add(surface.FieldLayer, &v, []string{"x"}, nil)
		return nil
	})
	p.HandleKey(press(hal.KeyTab))
	p.HandleKey(press(hal.KeyDown))
	p.HandleKey(press(hal.KeyRight))
	if p.cursor != 0 {
		t.Fatalf("cursor %d after rebuild to one row", p.cursor)
	}
}

func TestDrawPaintsRowsAndInfo(t *testing.T) {
	p, _, _ := newPanel(&editLog{})
	p.SetInfo([]string{"PDOK Luchtfoto", "Actuele luchtfoto's van Nederland"})
	fb := newTestFramebuffer(160, 120)
	white := rgb565From888(255, 255, 255)
	fb.fill(white)

	p.Draw(fb)

	if fb.pixel(1, 1) != (white>>1)&0x7BEF {
		t.Fatalf("row box not shaded: %#x", fb.pixel(1, 1))
	}
	if fb.pixel(1, fb.h-2) != (white>>1)&0x7BEF {
		t.Fatalf("info box not shaded: %#x", fb.pixel(1, fb.h-2))
	}
	if fb.pixel(fb.w-1, fb.h/2) != white {
		t.Fatal("panel drew outside its boxes")
	}

	fg := rgb565From888(fgColor.R, fgColor.G, fgColor.B)
	found := false
	for y := margin; y < margin+font6x8.Height; y++ {
		for x := margin; x < margin+6*10; x++ {
			if fb.pixel(x, y) == fg {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("no text pixels in the first row")
	}
}

func TestWrap(t *testing.T) {
	got := Wrap("Actuele  luchtfoto's van Nederland", 12)
	want := []string{"Actuele", "luchtfoto's", "van", "Nederland"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("wrap (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"abcdef", "ghij"}, Wrap("abcdefghij", 6)); diff != "" {
		t.Fatalf("hard wrap (-want +got):\n%s", diff)
	}
}
