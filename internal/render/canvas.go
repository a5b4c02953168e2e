package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

var loadFonts = sync.OnceValues(func() ([2]*opentype.Font, error) {
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return [2]*opentype.Font{}, fmt.Errorf("parsing regular font: %w", err)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return [2]*opentype.Font{}, fmt.Errorf("parsing bold font: %w", err)
	}
	return [2]*opentype.Font{regular, bold}, nil
})

type faceKey struct {
	bold bool
	size int
}

// Canvas draws in logical coordinates that are mapped onto a region of
// an RGBA image by an offset and a scale. Faces are cached per canvas
// because font.Face values are not safe for concurrent use.
type Canvas struct {
	img   *image.RGBA
	ox    float64
	oy    float64
	scale float64
	fonts [2]*opentype.Font
	faces map[faceKey]font.Face
	calls []DrawCall
}

// NewCanvas creates a canvas of the given pixel size with identity
// transform.
func NewCanvas(width, height int) (*Canvas, error) {
	fonts, err := loadFonts()
	if err != nil {
		return nil, err
	}
	return &Canvas{
		img:   image.NewRGBA(image.Rect(0, 0, width, height)),
		scale: 1,
		fonts: fonts,
		faces: make(map[faceKey]font.Face),
	}, nil
}

// Image returns the backing image.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Calls returns the element draw log.
func (c *Canvas) Calls() []DrawCall {
	return c.calls
}

// Sub returns a canvas sharing the image and font cache whose logical
// origin sits at pixel (x, y) and whose units are scaled by scale.
func (c *Canvas) Sub(x, y, scale float64) *Canvas {
	return &Canvas{
		img:   c.img,
		ox:    c.ox + x*c.scale,
		oy:    c.oy + y*c.scale,
		scale: c.scale * scale,
		fonts: c.fonts,
		faces: c.faces,
	}
}

func (c *Canvas) logCall(elementType, label string) {
	c.calls = append(c.calls, DrawCall{Type: elementType, Label: label})
}

func (c *Canvas) px(x, y float64) (float32, float32) {
	return float32(c.ox + x*c.scale), float32(c.oy + y*c.scale)
}

func (c *Canvas) pixelRect(x, y, w, h float64) image.Rectangle {
	x0, y0 := c.px(x, y)
	x1, y1 := c.px(x+w, y+h)
	return image.Rect(int(math.Round(float64(x0))), int(math.Round(float64(y0))), int(math.Round(float64(x1))), int(math.Round(float64(y1))))
}

// FillRect fills an axis-aligned rectangle.
func (c *Canvas) FillRect(x, y, w, h float64, col color.Color) {
	r := c.pixelRect(x, y, w, h).Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	draw.Draw(c.img, r, image.NewUniform(col), image.Point{}, draw.Over)
}

// StrokeRect outlines a rectangle with a line of width lw.
func (c *Canvas) StrokeRect(x, y, w, h, lw float64, col color.Color) {
	c.FillRect(x, y, w, lw, col)
	c.FillRect(x, y+h-lw, w, lw, col)
	c.FillRect(x, y, lw, h, col)
	c.FillRect(x+w-lw, y, lw, h, col)
}

// Polygon fills a closed polygon given in logical coordinates.
func (c *Canvas) Polygon(points [][2]float64, col color.Color) {
	if len(points) < 3 {
		return
	}
	px := make([][2]float32, len(points))
	minX, minY := float32(math.MaxFloat32), float32(math.MaxFloat32)
	maxX, maxY := float32(-math.MaxFloat32), float32(-math.MaxFloat32)
	for i, p := range points {
		x, y := c.px(p[0], p[1])
		px[i] = [2]float32{x, y}
		minX, minY = min(minX, x), min(minY, y)
		maxX, maxY = max(maxX, x), max(maxY, y)
	}

	bounds := image.Rect(int(math.Floor(float64(minX))), int(math.Floor(float64(minY))), int(math.Ceil(float64(maxX)))+1, int(math.Ceil(float64(maxY)))+1)
	clipped := bounds.Intersect(c.img.Bounds())
	if clipped.Empty() {
		return
	}

	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	ox, oy := float32(bounds.Min.X), float32(bounds.Min.Y)
	z.MoveTo(px[0][0]-ox, px[0][1]-oy)
	for _, p := range px[1:] {
		z.LineTo(p[0]-ox, p[1]-oy)
	}
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	draw.DrawMask(c.img, clipped, image.NewUniform(col), image.Point{}, mask, clipped.Min.Sub(bounds.Min), draw.Over)
}

// FillCircle fills a circle.
func (c *Canvas) FillCircle(cx, cy, r float64, col color.Color) {
	c.Polygon(arcPoints(cx, cy, r, 0, 2*math.Pi), col)
}

// StrokeCircle outlines a circle.
func (c *Canvas) StrokeCircle(cx, cy, r, lw float64, col color.Color) {
	c.Arc(cx, cy, r, 0, 2*math.Pi, lw, col)
}

// Arc strokes a circular arc from start to end radians (clockwise in
// screen coordinates).
func (c *Canvas) Arc(cx, cy, r, start, end, lw float64, col color.Color) {
	outer := arcPoints(cx, cy, r+lw/2, start, end)
	inner := arcPoints(cx, cy, max(r-lw/2, 0), start, end)
	ring := make([][2]float64, 0, len(outer)+len(inner))
	ring = append(ring, outer...)
	for i := len(inner) - 1; i >= 0; i-- {
		ring = append(ring, inner[i])
	}
	c.Polygon(ring, col)
}

func arcPoints(cx, cy, r, start, end float64) [][2]float64 {
	steps := max(8, int(math.Abs(end-start)*r/4))
	steps = min(steps, 180)
	pts := make([][2]float64, 0, steps+1)
	for i := 0; i <= steps; i++ {
		a := start + (end-start)*float64(i)/float64(steps)
		pts = append(pts, [2]float64{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	return pts
}

// Line strokes a straight segment of width lw.
func (c *Canvas) Line(x1, y1, x2, y2, lw float64, col color.Color) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	nx, ny := -dy/length*lw/2, dx/length*lw/2
	c.Polygon([][2]float64{
		{x1 + nx, y1 + ny},
		{x2 + nx, y2 + ny},
		{x2 - nx, y2 - ny},
		{x1 - nx, y1 - ny},
	}, col)
}

// Arrow draws a line from (x1,y1) to (x2,y2) ending in a filled head.
func (c *Canvas) Arrow(x1, y1, x2, y2, lw, head float64, col color.Color) {
	dx, dy := x2-x1, y2-y1
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	bx, by := x2-ux*head, y2-uy*head
	c.Line(x1, y1, bx, by, lw, col)
	c.Polygon([][2]float64{
		{x2, y2},
		{bx - uy*head/2, by + ux*head/2},
		{bx + uy*head/2, by - ux*head/2},
	}, col)
}

func (c *Canvas) face(size float64, bold bool) font.Face {
	px := max(6, int(math.Round(size*c.scale)))
	key := faceKey{bold: bold, size: px}
	if f, ok := c.faces[key]; ok {
		return f
	}
	idx := 0
	if bold {
		idx = 1
	}
	f, err := opentype.NewFace(c.fonts[idx], &opentype.FaceOptions{Size: float64(px), DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		panic(fmt.Sprintf("creating font face: %v", err))
	}
	c.faces[key] = f
	return f
}

// TextWidth is the logical width of s.
func (c *Canvas) TextWidth(s string, size float64, bold bool) float64 {
	return float64(font.MeasureString(c.face(size, bold), s).Ceil()) / c.scale
}

// Text draws s with its baseline at logical (x, y).
func (c *Canvas) Text(x, y float64, s string, size float64, bold bool, col color.Color) {
	px, py := c.px(x, y)
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: c.face(size, bold),
		Dot:  fixed.Point26_6{X: fixed.Int26_6(px * 64), Y: fixed.Int26_6(py * 64)},
	}
	d.DrawString(s)
}

// TextIn draws s truncated to width w, centered vertically in a box of
// height h at (x, y). align is -1 left, 0 center, 1 right.
func (c *Canvas) TextIn(x, y, w, h float64, s string, size float64, bold bool, align int, col color.Color) {
	s = c.Fit(s, w, size, bold)
	tw := c.TextWidth(s, size, bold)
	tx := x
	switch align {
	case 0:
		tx = x + (w-tw)/2
	case 1:
		tx = x + w - tw
	}
	m := c.face(size, bold).Metrics()
	ascent := float64(m.Ascent.Ceil()) / c.scale
	descent := float64(m.Descent.Ceil()) / c.scale
	ty := y + (h+ascent-descent)/2
	c.Text(tx, ty, s, size, bold, col)
}

// Fit shortens s with an ellipsis until it fits in w.
func (c *Canvas) Fit(s string, w, size float64, bold bool) string {
	if c.TextWidth(s, size, bold) <= w {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "…"
		if c.TextWidth(candidate, size, bold) <= w {
			return candidate
		}
	}
	return ""
}
