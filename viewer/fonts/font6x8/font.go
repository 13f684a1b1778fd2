package font6x8

import (
	"image/color"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
)

// Font is the panel's monospace 6x8 bitmap font covering printable ASCII.
//
// It implements tinyfont.Fonter. Accented Latin letters are folded to their base
// letter; anything else renders as '?'. Concurrent use is not safe because the
// glyph value is reused between calls.
var Font tinyfont.Fonter = &font6x8{}

// Width and Height are the cell size in pixels.
const (
	Width  = 6
	Height = 8
)

type font6x8 struct {
	g glyph
}

type glyph struct {
	r rune
}

func (g *glyph) Draw(display drivers.Displayer, x, y int16, c color.RGBA) {
	cols := glyphColumns(g.r)
	// Columns are stored top-down with bit0 as the top row; y is the baseline.
	for col, bits := range cols {
		for row := 0; row < Height; row++ {
			if bits&(1<<row) == 0 {
				continue
			}
			display.SetPixel(x+int16(col), y-int16(7-row), c)
		}
	}
}

func (g *glyph) Info() tinyfont.GlyphInfo {
	return tinyfont.GlyphInfo{
		Rune:     g.r,
		Width:    Width,
		Height:   Height,
		XAdvance: Width,
		YOffset:  -7,
	}
}

func (f *font6x8) GetYAdvance() uint8 { return Height }

func (f *font6x8) GetGlyph(r rune) tinyfont.Glypher {
	f.g.r = r
	return &f.g
}

func glyphColumns(r rune) []byte {
	r = Fold(r)
	if r < 0x20 || r > 0x7e {
		r = '?'
	}
	i := int(r-0x20) * 5
	return glyphData[i : i+5]
}

// Fold maps runes outside printable ASCII to the closest printable ASCII rune,
// or returns r unchanged when there is none.
func Fold(r rune) rune {
	if r >= 0x20 && r <= 0x7e {
		return r
	}
	if f, ok := folds[r]; ok {
		return f
	}
	return r
}

var folds = func() map[rune]rune {
	m := map[rune]rune{
		' ': ' ', '–': '-', '—': '-', '‘': '\'', '’': '\'',
		'“': '"', '”': '"', '…': '.', '·': '.', '\t': ' ',
		'ç': 'c', 'Ç': 'C', 'ñ': 'n', 'Ñ': 'N', 'ß': 's',
	}
	for base, variants := range map[rune]string{
		'a': "àáâãäå", 'A': "ÀÁÂÃÄÅ",
		'e': "èéêë", 'E': "ÈÉÊË",
		'i': "ìíîï", 'I': "ÌÍÎÏ",
		'o': "òóôõöø", 'O': "ÒÓÔÕÖØ",
		'u': "ùúûü", 'U': "ÙÚÛÜ",
		'y': "ýÿ", 'Y': "Ý",
	} {
		for _, v := range variants {
			m[v] = base
		}
	}
	return m
}()
