package panel

import (
	"image/color"

	"globe/hal"
)

// Displayer adapts an RGB565 framebuffer to tinyfont's drivers.Displayer.
type Displayer struct {
	fb hal.Framebuffer
}

func NewDisplayer(fb hal.Framebuffer) *Displayer {
	return &Displayer{fb: fb}
}

func (d *Displayer) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *Displayer) SetPixel(x, y int16, c color.RGBA) {
	buf, ok := d.buffer()
	if !ok {
		return
	}
	ix, iy := int(x), int(y)
	if ix < 0 || ix >= d.fb.Width() || iy < 0 || iy >= d.fb.Height() {
		return
	}
	off := iy*d.fb.StrideBytes() + ix*2
	if off < 0 || off+1 >= len(buf) {
		return
	}
	pixel := rgb565From888(c.R, c.G, c.B)
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func (d *Displayer) Display() error { return nil }

// ShadeRectangle darkens the pixels under a rectangle, halving each channel.
func (d *Displayer) ShadeRectangle(x, y, width, height int) {
	buf, ok := d.buffer()
	if !ok {
		return
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0, y0 := clampInt(x, 0, w), clampInt(y, 0, h)
	x1, y1 := clampInt(x+width, 0, w), clampInt(y+height, 0, h)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			p := uint16(buf[off]) | uint16(buf[off+1])<<8
			// Shift each 565 channel right by one.
			p = (p >> 1) & 0x7BEF
			buf[off] = byte(p)
			buf[off+1] = byte(p >> 8)
		}
	}
}

func (d *Displayer) FillRectangle(x, y, width, height int, c color.RGBA) {
	buf, ok := d.buffer()
	if !ok {
		return
	}
	w, h := d.fb.Width(), d.fb.Height()
	x0, y0 := clampInt(x, 0, w), clampInt(y, 0, h)
	x1, y1 := clampInt(x+width, 0, w), clampInt(y+height, 0, h)
	pixel := rgb565From888(c.R, c.G, c.B)
	lo, hi := byte(pixel), byte(pixel>>8)
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			off := row + px*2
			if off+1 >= len(buf) {
				continue
			}
			buf[off] = lo
			buf[off+1] = hi
		}
	}
}

func (d *Displayer) buffer() ([]byte, bool) {
	if d.fb == nil || d.fb.Format() != hal.PixelFormatRGB565 {
		return nil, false
	}
	buf := d.fb.Buffer()
	return buf, buf != nil
}

func rgb565From888(r, g, b uint8) uint16 {
	return uint16((uint16(r>>3)&0x1F)<<11 | (uint16(g>>2)&0x3F)<<5 | (uint16(b>>3) & 0x1F))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
