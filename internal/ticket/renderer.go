// Package ticket renders the registration ticket sent after a class sign-up.
package ticket

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// ErrTemplateMissing is returned when there is no template for the activity
var ErrTemplateMissing = errors.New("ticket template missing")

var ink = color.RGBA{R: 0x3B, G: 0x36, B: 0x28, A: 0xFF}

// Ticket holds the texts printed on the template
type Ticket struct {
	Day      string
	Month    string
	Time     string
	Activity string
}

type textSlot struct {
	size float64
	x, y int
}

// positions on the 1080px wide templates
var (
	daySlot   = textSlot{size: 350, x: 32, y: 1164}
	monthSlot = textSlot{size: 158, x: 460, y: 1180}
	timeSlot  = textSlot{size: 153, x: 460, y: 1331}
)

// Renderer draws tickets on PNG templates
type Renderer struct {
	templateDir string
	day         font.Face
	month       font.Face
	clock       font.Face
}

// NewRenderer loads the font. An empty fontPath uses a built-in bitmap face.
func NewRenderer(templateDir, fontPath string) (*Renderer, error) {
	r := &Renderer{templateDir: templateDir}
	if fontPath == "" {
		r.day, r.month, r.clock = basicfont.Face7x13, basicfont.Face7x13, basicfont.Face7x13
		return r, nil
	}

	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	faces := make([]font.Face, 0, 3)
	for _, slot := range []textSlot{daySlot, monthSlot, timeSlot} {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    slot.size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create font face: %w", err)
		}
		faces = append(faces, face)
	}
	r.day, r.month, r.clock = faces[0], faces[1], faces[2]
	return r, nil
}

// TemplatePath returns the template file for an activity
func (r *Renderer) TemplatePath(activity string) string {
	return filepath.Join(r.templateDir, "inspira-registration-"+ActivitySlug(activity)+".png")
}

// Render draws the ticket and returns PNG bytes
func (r *Renderer) Render(t Ticket) ([]byte, error) {
	path := r.TemplatePath(t.Activity)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrTemplateMissing)
		}
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode template: %w", err)
	}

	canvas := image.NewRGBA(src.Bounds())
	draw.Draw(canvas, canvas.Bounds(), src, src.Bounds().Min, draw.Src)

	drawText(canvas, r.day, daySlot, t.Day)
	drawText(canvas, r.month, monthSlot, t.Month)
	drawText(canvas, r.clock, timeSlot, t.Time)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("failed to encode ticket: %w", err)
	}
	return buf.Bytes(), nil
}

// drawText places text with its top-left corner at the slot position
func drawText(dst draw.Image, face font.Face, slot textSlot, text string) {
	origin := dst.Bounds().Min
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.P(origin.X+slot.x, origin.Y+slot.y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}

// ActivitySlug maps an activity name to its template suffix
func ActivitySlug(activity string) string {
	switch strings.ToLower(strings.TrimSpace(activity)) {
	case "modeling", "лепка":
		return "modeling"
	case "painting", "живопись":
		return "painting"
	}
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(activity), " ", "-"))
}
