package app

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/stretchr/testify/require"

	"globe/hal"
	"globe/internal/httputil"
	"globe/viewer/source"
	"globe/viewer/viewpoint"
)

type lineLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *lineLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, s)
}

func (l *lineLogger) WriteLineBytes(b []byte) { l.WriteLineString(string(b)) }

func (l *lineLogger) contains(sub string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, sub) {
			return true
		}
	}
	return false
}

type testFramebuffer struct {
	w, h int
	buf  []byte
}

func (f *testFramebuffer) Width() int              { return f.w }
func (f *testFramebuffer) Height() int             { return f.h }
func (f *testFramebuffer) Format() hal.PixelFormat { return hal.PixelFormatRGB565 }
func (f *testFramebuffer) StrideBytes() int        { return f.w * 2 }
func (f *testFramebuffer) Buffer() []byte          { return f.buf }
func (f *testFramebuffer) Present() error          { return nil }

func (f *testFramebuffer) ClearRGB(r, g, b uint8) {
	p := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
	for i := 0; i+1 < len(f.buf); i += 2 {
		f.buf[i], f.buf[i+1] = byte(p), byte(p>>8)
	}
}

type keyboard chan hal.KeyEvent

func (k keyboard) Events() <-chan hal.KeyEvent { return k }

type testHAL struct {
	log *lineLogger
	fb  *testFramebuffer
	kbd keyboard
}

func newTestHAL() *testHAL {
	return &testHAL{
		log: &lineLogger{},
		fb:  &testFramebuffer{w: 64, h: 48, buf: make([]byte, 64*48*2)},
		kbd: make(keyboard, 16),
	}
}

func (h *testHAL) Logger() hal.Logger   { return h.log }
func (h *testHAL) Display() hal.Display { return h }
func (h *testHAL) Input() hal.Input     { return h }

func (h *testHAL) Framebuffer() hal.Framebuffer { return h.fb }
func (h *testHAL) Keyboard() hal.Keyboard       { return h.kbd }

// wmtsClient serves the test capabilities for every capabilities request and
// an empty body for tiles.
func wmtsClient(t *testing.T) *httputil.MockHTTPClient {
	t.Helper()
	caps, err := os.ReadFile("../viewer/wmts/testdata/capabilities.xml")
	require.NoError(t, err)
	return &httputil.MockHTTPClient{
		DoFunc: func(req *http.Request) (*http.Response, error) {
			body, status := caps, http.StatusOK
			if strings.HasPrefix(req.URL.String(), "https://example.test/") {
				body, status = nil, http.StatusNotFound
			}
			return &http.Response{
				StatusCode: status,
				Body:       io.NopCloser(bytes.NewReader(body)),
				Header:     make(http.Header),
				Request:    req,
			}, nil
		},
	}
}

func newViewer(t *testing.T, h *testHAL, cfg Config) *Viewer {
	t.Helper()
	t.Cleanup(loggo.ResetLogging)
	if cfg.Client == nil {
		cfg.Client = wmtsClient(t)
	}
	v, err := New(h, cfg)
	require.NoError(t, err)
	return v
}

func stepUntil(t *testing.T, v *Viewer, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		require.NoError(t, v.Step())
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestStartupBuildsPipeline(t *testing.T) {
	h := newTestHAL()
	v := newViewer(t, h, Config{})
	defer v.Close()

	stepUntil(t, v, func() bool { return v.manager.Pipeline() != nil })
	set := v.machine.Params()
	require.Equal(t, source.DefaultSource, set.Source)
	require.Equal(t, "Actueel_orthoHR", set.Layer)
	require.Equal(t, "EPSG:3857", set.TileMatrixSet)
	require.True(t, h.log.contains("globe.pipeline"))
}

func TestUnknownInitialSource(t *testing.T) {
	t.Cleanup(loggo.ResetLogging)
	_, err := New(newTestHAL(), Config{Source: "nope", Client: httputil.NewMockHTTPClient()})
	require.True(t, errors.Is(err, source.ErrUnknownSource))
}

func TestFetchFailureKeepsViewerRunning(t *testing.T) {
	h := newTestHAL()
	v := newViewer(t, h, Config{Client: httputil.NewMockHTTPClient()})
	defer v.Close()

	stepUntil(t, v, func() bool { return h.log.contains("reconfiguration failed") })
	require.Nil(t, v.manager.Pipeline())
	require.NoError(t, v.Step())
}

func TestTabFocusesPanel(t *testing.T) {
	h := newTestHAL()
	v := newViewer(t, h, Config{})
	defer v.Close()

	h.kbd <- hal.KeyEvent{Code: hal.KeyTab, Press: true}
	require.NoError(t, v.Step())
	require.True(t, v.panel.Focused())
}

func TestHomeRestoresInitialViewpoint(t *testing.T) {
	h := newTestHAL()
	v := newViewer(t, h, Config{})
	defer v.Close()

	v.camera.Position = v.camera.Position.Mul(2)
	h.kbd <- hal.KeyEvent{Code: hal.KeyHome, Press: true}
	v.handleInput()
	require.Equal(t, viewpoint.Initial, viewpoint.Capture(v.camera))
}

func TestViewpointFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viewpoint.json")
	h := newTestHAL()
	v := newViewer(t, h, Config{ViewpointFile: path})
	require.Equal(t, viewpoint.Initial, viewpoint.Capture(v.camera))

	v.camera.Position = v.camera.Position.Mul(1.5)
	want := viewpoint.Capture(v.camera)
	require.NoError(t, v.Close())

	v2 := newViewer(t, newTestHAL(), Config{ViewpointFile: path})
	defer v2.Close()
	require.Equal(t, want, viewpoint.Capture(v2.camera))
}

func TestFramePanicShowsPanicScreen(t *testing.T) {
	h := newTestHAL()
	v := newViewer(t, h, Config{})
	defer v.Close()

	v.driver = nil
	require.NoError(t, v.Step())
	require.True(t, v.crashed)
	require.True(t, h.log.contains("frame panic"))

	// The screen is white apart from text, and later steps leave it alone.
	last := len(h.fb.buf) - 2
	require.Equal(t, []byte{0xFF, 0xFF}, h.fb.buf[last:])
	h.fb.buf[last] = 0
	require.NoError(t, v.Step())
	require.Equal(t, byte(0), h.fb.buf[last])
}

func TestPanicLines(t *testing.T) {
	lines := panicLines("boom", []byte("goroutine 1\n\nmain.main()\n"))
	require.Equal(t, []string{"Globe panic:", "panic: boom", "stack:", "goroutine 1", "main.main()"}, lines)
	require.Equal(t, "stack: unavailable", panicLines("boom", nil)[2])
}
