// Package icon renders the tray icon bitmap. Rendering allocates a pixel
// buffer, draws text and encodes a PNG, which is expensive next to the tick
// budget, so the renderer only redraws when the temperature moved by at
// least the configured delta. Exactly one icon resource is live at a time.
package icon

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	iconSize  = 32
	errorText = "--"
)

// Band is the temperature color band shown behind the reading.
type Band int

const (
	BandGreen Band = iota
	BandYellow
	BandOrange
	BandRed
)

// Inclusive upper bounds per band, in °C.
const (
	greenMax  = 60
	yellowMax = 75
	orangeMax = 90
)

// BandFor maps a temperature to its color band.
func BandFor(temperature float64) Band {
	switch {
	case temperature <= greenMax:
		return BandGreen
	case temperature <= yellowMax:
		return BandYellow
	case temperature <= orangeMax:
		return BandOrange
	default:
		return BandRed
	}
}

func (b Band) String() string {
	switch b {
	case BandGreen:
		return "green"
	case BandYellow:
		return "yellow"
	case BandOrange:
		return "orange"
	default:
		return "red"
	}
}

func (b Band) color() color.RGBA {
	switch b {
	case BandGreen:
		return color.RGBA{0x2e, 0xcc, 0x40, 0xff}
	case BandYellow:
		return color.RGBA{0xff, 0xdc, 0x00, 0xff}
	case BandOrange:
		return color.RGBA{0xff, 0x85, 0x1b, 0xff}
	default:
		return color.RGBA{0xff, 0x41, 0x36, 0xff}
	}
}

// Icon is one rendered tray icon resource. Release frees the pixel data;
// it must be called exactly once per replaced icon.
type Icon struct {
	data     []byte
	text     string
	band     Band
	released bool
	onFree   func()
}

// Data returns the encoded PNG bytes. Nil after release.
func (i *Icon) Data() []byte { return i.data }

func (i *Icon) Text() string { return i.text }
func (i *Icon) Band() Band   { return i.band }

// Release frees the resource. A second call is a no-op so a replacement
// can never double-free.
func (i *Icon) Release() {
	if i == nil || i.released {
		return
	}
	i.released = true
	i.data = nil
	if i.onFree != nil {
		i.onFree()
	}
}

// Renderer owns the live icon and the delta gate.
type Renderer struct {
	delta        float64
	current      *Icon
	lastRendered float64
	hasLast      bool
	errorShown   bool
	releases     int
}

func NewRenderer(delta float64) *Renderer {
	return &Renderer{delta: delta}
}

// Update re-renders the icon when the reading moved by at least the delta
// since the last render. It returns the freshly installed icon, or nil when
// the existing icon still represents the reading.
func (r *Renderer) Update(temperature float64) *Icon {
	if r.hasLast && !r.errorShown && math.Abs(temperature-r.lastRendered) < r.delta {
		return nil
	}

	band := BandFor(temperature)
	next := r.render(fmt.Sprintf("%d", int(math.Round(temperature))), band)
	r.install(next)
	r.lastRendered = temperature
	r.hasLast = true
	r.errorShown = false

	return next
}

// ShowError switches the icon to the error glyph. The next successful
// Update always re-renders, reverting the display automatically.
func (r *Renderer) ShowError() *Icon {
	if r.errorShown {
		return nil
	}

	next := r.render(errorText, BandRed)
	r.install(next)
	r.errorShown = true

	return next
}

// Close releases the cached icon on shutdown.
func (r *Renderer) Close() {
	r.install(nil)
}

// Releases reports how many icon resources have been freed.
func (r *Renderer) Releases() int { return r.releases }

// install replaces the live icon, releasing the previous resource exactly
// once, immediately after the replacement is in place.
func (r *Renderer) install(next *Icon) {
	prev := r.current
	r.current = next
	prev.Release()
}

// render draws text in the band color onto a fresh bitmap and encodes it.
// Deterministic for identical inputs.
func (r *Renderer) render(text string, band Band) *Icon {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	draw.Draw(img, img.Bounds(), image.Transparent, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(band.color()),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I((iconSize - width) / 2),
			Y: fixed.I((iconSize + face.Ascent) / 2),
		},
	}
	drawer.DrawString(text)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Encoding a valid in-memory RGBA cannot fail; keep the contract total
		return &Icon{text: text, band: band, onFree: r.onFree}
	}

	return &Icon{data: buf.Bytes(), text: text, band: band, onFree: r.onFree}
}

func (r *Renderer) onFree() {
	r.releases++
}
