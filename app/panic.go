package app

import (
	"fmt"
	"image/color"
	"runtime/debug"
	"strings"

	"globe/hal"
	"globe/viewer/fonts/font6x8"
	"globe/viewer/panel"
)

// showPanic logs a recovered frame panic and draws it on the framebuffer.
func (v *Viewer) showPanic(value any) {
	stack := debug.Stack()
	logger.Criticalf("frame panic: %v", value)
	if l := v.hal.Logger(); l != nil {
		for _, line := range strings.Split(string(stack), "\n") {
			if line != "" {
				l.WriteLineString(line)
			}
		}
	}
	drawPanicScreen(v.fb, panicLines(value, stack))
	_ = v.fb.Present()
}

func panicLines(value any, stack []byte) []string {
	lines := []string{
		"Globe panic:",
		fmt.Sprintf("panic: %v", value),
	}
	if len(stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(stack), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// drawPanicScreen paints lines in black on white, wrapped to the screen
// width, until the screen is full.
func drawPanicScreen(fb hal.Framebuffer, lines []string) {
	if fb == nil {
		return
	}
	fb.ClearRGB(255, 255, 255)
	d := panel.NewDisplayer(fb)
	fg := color.RGBA{A: 255}

	cols := max(fb.Width()/font6x8.Width, 1)
	y := 0
	for _, line := range lines {
		for _, chunk := range panel.Wrap(line, cols) {
			if y+font6x8.Height > fb.Height() {
				return
			}
			panel.DrawText(d, 0, y, chunk, fg)
			y += font6x8.Height + 1
		}
	}
}
