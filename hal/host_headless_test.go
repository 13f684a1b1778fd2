package hal

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
)

func TestRunHeadlessStopsAfterFrames(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	h := newHost(HostConfig{Width: 8, Height: 4}, &bytes.Buffer{})

	steps := 0
	step := func() error {
		steps++
		return nil
	}

	done := make(chan error, 1)
	go func() {
		done <- runHeadless(context.Background(), h, step, HeadlessConfig{Hz: 50, Frames: 3, Clock: clk})
	}()

	for i := 0; i < 3; i++ {
		if err := clk.WaitAdvance(20*time.Millisecond, time.Second, 1); err != nil {
			t.Fatalf("WaitAdvance %d: %v", i, err)
		}
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runHeadless: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runHeadless did not return")
	}
	if steps != 3 {
		t.Fatalf("expected 3 steps, got %d", steps)
	}
}

func TestRunHeadlessCancel(t *testing.T) {
	clk := testclock.NewClock(time.Unix(0, 0))
	h := newHost(HostConfig{}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := runHeadless(ctx, h, nil, HeadlessConfig{Clock: clk})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFramebufferPresentPublishesBackBuffer(t *testing.T) {
	h := newHost(HostConfig{Width: 2, Height: 1}, &bytes.Buffer{})
	fb := h.fb

	fb.ClearRGB(255, 255, 255)
	snap := make([]byte, len(fb.buf))
	fb.snapshotRGB565(snap)
	if snap[0] != 0 || snap[1] != 0 {
		t.Fatalf("front buffer changed before Present: %v", snap)
	}

	if err := fb.Present(); err != nil {
		t.Fatalf("Present: %v", err)
	}
	fb.snapshotRGB565(snap)
	if snap[0] != 0xFF || snap[1] != 0xFF {
		t.Fatalf("expected white after Present, got %v", snap)
	}
	if fb.presents() != 1 {
		t.Fatalf("expected 1 present, got %d", fb.presents())
	}
}

func TestExpandRGB565(t *testing.T) {
	src := []byte{0x00, 0xF8} // pure red
	dst := make([]byte, 4)
	expandRGB565(dst, src)
	if dst[0] != 255 || dst[1] != 0 || dst[2] != 0 || dst[3] != 255 {
		t.Fatalf("unexpected pixel %v", dst)
	}
}

func TestHostLoggerWritesLines(t *testing.T) {
	var buf bytes.Buffer
	h := newHost(HostConfig{}, &buf)
	h.Logger().WriteLineString("hello")
	h.Logger().WriteLineBytes([]byte("world"))
	if got := buf.String(); got != "hello\nworld\n" {
		t.Fatalf("unexpected log output %q", got)
	}
}
