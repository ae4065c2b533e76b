// Package overlay rasterizes timer readings into a heads-up display image.
//
// The HUD lists one line per timer name with its CPU and GPU averages:
//
//	hud, _ := overlay.New(overlay.WithFontSize(14))
//	defer hud.Close()
//	img := hud.Render(timer.Snapshot())
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/gputimer"
)

// Default HUD appearance.
const (
	DefaultFontSize = 12.0
	DefaultPadding  = 4
)

// HUD draws readings with a fixed face and palette.
type HUD struct {
	face    font.Face
	ownFace bool

	fg, bg  color.Color
	padding int
}

// Option configures a HUD.
type Option func(*config)

type config struct {
	face    font.Face
	size    float64
	fg, bg  color.Color
	padding int
}

// WithFace draws with face instead of the built-in Go Regular face. The
// caller keeps ownership of face.
func WithFace(face font.Face) Option {
	return func(c *config) {
		c.face = face
	}
}

// WithFontSize sets the size in points of the built-in face.
func WithFontSize(size float64) Option {
	return func(c *config) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithColors sets the text and background colors. A nil background
// leaves the destination visible behind the text.
func WithColors(fg, bg color.Color) Option {
	return func(c *config) {
		if fg != nil {
			c.fg = fg
		}
		c.bg = bg
	}
}

// WithPadding sets the margin around the text in pixels.
func WithPadding(px int) Option {
	return func(c *config) {
		if px >= 0 {
			c.padding = px
		}
	}
}

// New creates a HUD.
func New(opts ...Option) (*HUD, error) {
	c := config{
		size:    DefaultFontSize,
		fg:      color.White,
		bg:      color.RGBA{A: 0xC0},
		padding: DefaultPadding,
	}
	for _, opt := range opts {
		opt(&c)
	}

	h := &HUD{face: c.face, fg: c.fg, bg: c.bg, padding: c.padding}
	if h.face == nil {
		f, err := opentype.Parse(goregular.TTF)
		if err != nil {
			return nil, fmt.Errorf("overlay: failed to parse font: %w", err)
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    c.size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("overlay: failed to create face: %w", err)
		}
		h.face = face
		h.ownFace = true
	}
	return h, nil
}

// Close releases the built-in face.
func (h *HUD) Close() error {
	if h.ownFace {
		h.ownFace = false
		return h.face.Close()
	}
	return nil
}

// Lines formats readings as HUD text, one line per reading.
func Lines(readings []gputimer.Reading) []string {
	lines := make([]string, 0, len(readings))
	for _, r := range readings {
		lines = append(lines, fmt.Sprintf("%s  cpu %s  gpu %s", r.Name, millis(r.CPU, r.HasCPU), millis(r.GPU, r.HasGPU)))
	}
	return lines
}

func millis(v float64, ok bool) string {
	if !ok {
		return "   -    "
	}
	return fmt.Sprintf("%5.2fms", v)
}

// Size returns the pixel size of the HUD for readings.
func (h *HUD) Size(readings []gputimer.Reading) image.Point {
	lines := Lines(readings)
	if len(lines) == 0 {
		return image.Point{}
	}

	var width fixed.Int26_6
	for _, line := range lines {
		if w := font.MeasureString(h.face, line); w > width {
			width = w
		}
	}
	lineHeight := h.face.Metrics().Height.Ceil()
	return image.Point{
		X: width.Ceil() + 2*h.padding,
		Y: lineHeight*len(lines) + 2*h.padding,
	}
}

// Draw draws the HUD for readings onto dst with its top-left corner at
// at, and returns the rectangle it covered.
func (h *HUD) Draw(dst draw.Image, at image.Point, readings []gputimer.Reading) image.Rectangle {
	size := h.Size(readings)
	if size == (image.Point{}) {
		return image.Rectangle{}
	}
	area := image.Rectangle{Min: at, Max: at.Add(size)}.Intersect(dst.Bounds())

	if h.bg != nil {
		draw.Draw(dst, area, image.NewUniform(h.bg), image.Point{}, draw.Over)
	}

	m := h.face.Metrics()
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(h.fg),
		Face: h.face,
	}
	y := at.Y + h.padding + m.Ascent.Ceil()
	for _, line := range Lines(readings) {
		d.Dot = fixed.P(at.X+h.padding, y)
		d.DrawString(line)
		y += m.Height.Ceil()
	}
	return area
}

// Render returns a new image holding only the HUD.
func (h *HUD) Render(readings []gputimer.Reading) *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: h.Size(readings)})
	h.Draw(img, image.Point{}, readings)
	return img
}

// RenderScaled renders the HUD and enlarges it by an integer factor with
// nearest-neighbor sampling, for high-density displays.
func (h *HUD) RenderScaled(readings []gputimer.Reading, factor int) *image.RGBA {
	src := h.Render(readings)
	if factor <= 1 {
		return src
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst
}
