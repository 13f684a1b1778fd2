package quarkgl

// Color is an RGBA color in 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b, A: 0xFF} }

// MulScalar scales the RGB channels by s, clamped to 0..1.
func (c Color) MulScalar(s float64) Color {
	t := Clamp01(s)
	mul := func(ch uint8) uint8 { return uint8(float64(ch) * t) }
	return Color{R: mul(c.R), G: mul(c.G), B: mul(c.B), A: c.A}
}
