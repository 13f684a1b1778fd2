// Package panel is a framebuffer widget toolkit: one selectable row per field
// plus an info box, drawn with a bitmap font over the rendered globe.
package panel

import (
	"image/color"
	"slices"
	"strings"
	"unicode/utf8"

	"globe/hal"
	"globe/viewer/fonts/font6x8"
	"globe/viewer/surface"

	"github.com/juju/loggo"
	"tinygo.org/x/tinyfont"
)

var logger = loggo.GetLogger("globe.panel")

const (
	margin   = 4
	lineGap  = 2
	maxCols  = 48
	rowPitch = font6x8.Height + lineGap
)

var (
	fgColor     = color.RGBA{R: 235, G: 235, B: 235, A: 255}
	dimColor    = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	accentColor = color.RGBA{R: 255, G: 200, B: 60, A: 255}
	errorColor  = color.RGBA{R: 255, G: 90, B: 90, A: 255}
	cursorColor = color.RGBA{R: 40, G: 70, B: 120, A: 255}
)

type widget struct {
	field    surface.Field
	binding  surface.Binding
	options  []string
	onChange func(string) error
}

// Panel implements surface.Toolkit. It is used from the frame goroutine only.
type Panel struct {
	widgets []*widget
	info    []string
	cursor  int
	focused bool
	lastErr string
}

// New returns an empty, unfocused panel.
func New() *Panel {
	return &Panel{}
}

// Add appends a widget row for field.
func (p *Panel) Add(field surface.Field, binding surface.Binding, options []string, onChange func(string) error) {
	p.widgets = append(p.widgets, &widget{
		field:    field,
		binding:  binding,
		options:  slices.Clone(options),
		onChange: onChange,
	})
}

// SetInfo replaces the info box text.
func (p *Panel) SetInfo(lines []string) {
	p.info = slices.Clone(lines)
}

// Destroy removes every widget. The info text and focus are kept.
func (p *Panel) Destroy() {
	p.widgets = nil
}

// Focused reports whether the panel takes the navigation keys.
func (p *Panel) Focused() bool { return p.focused }

// Rows returns the rendered widget rows, for logs and tests.
func (p *Panel) Rows() []string {
	rows := make([]string, len(p.widgets))
	for i, w := range p.widgets {
		rows[i] = w.label()
	}
	return rows
}

// HandleKey consumes navigation keys while the panel is focused. Tab toggles
// focus. Releases are never consumed so held keys elsewhere are released.
func (p *Panel) HandleKey(ev hal.KeyEvent) bool {
	if !ev.Press {
		return false
	}
	if ev.Code == hal.KeyTab {
		p.focused = !p.focused
		return true
	}
	if !p.focused {
		return false
	}
	switch ev.Code {
	case hal.KeyEscape:
		p.focused = false
	case hal.KeyUp:
		p.move(-1)
	case hal.KeyDown:
		p.move(1)
	case hal.KeyLeft:
		p.cycle(-1)
	case hal.KeyRight, hal.KeyEnter:
		p.cycle(1)
	default:
		return false
	}
	return true
}

func (p *Panel) move(d int) {
	if len(p.widgets) == 0 {
		p.cursor = 0
		return
	}
	p.cursor = (p.cursor + d + len(p.widgets)) % len(p.widgets)
}

func (p *Panel) cycle(d int) {
	if p.cursor >= len(p.widgets) {
		return
	}
	w := p.widgets[p.cursor]
	if len(w.options) == 0 || w.binding == nil {
		return
	}
	i := slices.Index(w.options, *w.binding)
	next := w.options[(i+d+len(w.options))%len(w.options)]
	if i < 0 && d < 0 {
		next = w.options[len(w.options)-1]
	}

	// onChange may rebuild the widgets; w must not be used afterwards.
	err := w.onChange(next)
	p.lastErr = ""
	if err != nil {
		p.lastErr = err.Error()
		logger.Warningf("%s = %q: %v", w.field, next, err)
	}
	if p.cursor >= len(p.widgets) {
		p.cursor = max(len(p.widgets)-1, 0)
	}
}

func (w *widget) label() string {
	v := ""
	if w.binding != nil {
		v = *w.binding
	}
	return string(w.field) + ": " + v
}

// Draw paints the widget rows at the top left and the info box at the bottom
// left of fb.
func (p *Panel) Draw(fb hal.Framebuffer) {
	if fb == nil || fb.Format() != hal.PixelFormatRGB565 {
		return
	}
	d := NewDisplayer(fb)
	cols := min((fb.Width()-2*margin)/font6x8.Width, maxCols)
	if cols <= 0 {
		return
	}
	boxW := cols*font6x8.Width + 2*margin

	if len(p.widgets) > 0 {
		rows := len(p.widgets)
		d.ShadeRectangle(0, 0, boxW, rows*rowPitch+2*margin)
		for i, w := range p.widgets {
			y := margin + i*rowPitch
			c := fgColor
			if p.focused && i == p.cursor {
				d.FillRectangle(0, y-1, boxW, rowPitch, cursorColor)
				c = accentColor
			}
			line, _ := takeRunes(w.label(), cols)
			DrawText(d, margin, y, line, c)
		}
	}

	lines := p.infoLines(cols)
	if len(lines) == 0 {
		return
	}
	top := fb.Height() - len(lines)*rowPitch - 2*margin
	d.ShadeRectangle(0, top, boxW, fb.Height()-top)
	for i, l := range lines {
		c := dimColor
		switch {
		case i == 0:
			c = fgColor
		case p.lastErr != "" && i == len(lines)-1:
			c = errorColor
		}
		DrawText(d, margin, top+margin+i*rowPitch, l, c)
	}
}

func (p *Panel) infoLines(cols int) []string {
	src := slices.Clone(p.info)
	if p.lastErr != "" {
		src = append(src, p.lastErr)
	}
	var out []string
	for _, s := range src {
		out = append(out, Wrap(s, cols)...)
	}
	return out
}

// DrawText writes s with its top-left corner at (x, y).
func DrawText(d *Displayer, x, y int, s string, c color.RGBA) {
	s = strings.Map(font6x8.Fold, s)
	tinyfont.WriteLine(d, font6x8.Font, int16(x), int16(y+font6x8.Height-1), s, c)
}

// Wrap breaks s into lines of at most cols runes, preferring spaces.
func Wrap(s string, cols int) []string {
	s = strings.Join(strings.Fields(s), " ")
	var out []string
	for s != "" {
		chunk, rest := takeRunes(s, cols)
		if rest != "" && !strings.HasPrefix(rest, " ") {
			if i := strings.LastIndexByte(chunk, ' '); i > 0 {
				chunk, rest = chunk[:i], chunk[i:]+rest
			}
		}
		out = append(out, chunk)
		s = strings.TrimLeft(rest, " ")
	}
	return out
}

func takeRunes(s string, n int) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	i, count := 0, 0
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
		count++
	}
	return s[:i], s[i:]
}
