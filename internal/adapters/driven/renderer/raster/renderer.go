// Package raster renders document unit previews as PNG images.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	_ "image/gif" // register decoders for data-URI payloads
	_ "image/jpeg"
	"image/png"
	"strings"
	"sync"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
	"github.com/pagecraft/pagecraft/internal/logger"
)

// Ensure Renderer implements the interface.
var _ driven.ThumbnailRenderer = (*Renderer)(nil)

// Thumbnail dimensions, portrait A4 proportions.
const (
	ThumbWidth  = 320
	ThumbHeight = 452
)

// Layout constants.
const (
	margin     = 12
	lineHeight = 14
	blockGap   = 8
)

var (
	canvasColor = color.White
	frameColor  = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	textColor   = color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff}
	imageColor  = color.RGBA{R: 0xe8, G: 0xee, B: 0xf6, A: 0xff}
)

// Renderer rasterizes a document unit into a small PNG preview:
// the page title, text blocks as wrapped lines, and image elements
// as scaled-down bitmaps when their payload is a decodable data URI.
type Renderer struct {
	fallbackOnce sync.Once
	fallback     []byte
}

// New creates a raster renderer.
func New() *Renderer {
	return &Renderer{}
}

// Render produces a PNG preview for the unit.
func (r *Renderer) Render(_ context.Context, unit domain.DocumentUnit) ([]byte, error) {
	if !unit.Valid() {
		return nil, fmt.Errorf("render: %w", domain.ErrInvalidInput)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, ThumbWidth, ThumbHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(canvasColor), image.Point{}, draw.Src)

	y := margin
	switch unit.Type {
	case domain.UnitPage:
		if unit.Page.Title != "" {
			y = drawText(canvas, unit.Page.Title, margin, y)
			y += blockGap
		}
		for _, el := range unit.Page.Elements {
			y = drawElement(canvas, el, y)
			if y >= ThumbHeight-margin {
				break
			}
		}
	case domain.UnitComponent:
		drawElement(canvas, *unit.Component, y)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}

// Fallback returns a neutral placeholder PNG, rendered once and
// reused for every caller.
func (r *Renderer) Fallback() []byte {
	r.fallbackOnce.Do(func() {
		canvas := image.NewRGBA(image.Rect(0, 0, ThumbWidth, ThumbHeight))
		draw.Draw(canvas, canvas.Bounds(), image.NewUniform(frameColor), image.Point{}, draw.Src)
		drawText(canvas, "Generating preview...", margin, ThumbHeight/2)

		var buf bytes.Buffer
		if err := png.Encode(&buf, canvas); err != nil {
			logger.Warn("raster: fallback encode failed: %v", err)
			return
		}
		r.fallback = buf.Bytes()
	})
	return r.fallback
}

// drawElement draws one element starting at vertical offset y and
// returns the offset below it.
func drawElement(canvas *image.RGBA, el domain.Component, y int) int {
	if el.Type == domain.TypeImagePlaceholder {
		return drawImageElement(canvas, el, y)
	}

	text := domain.PropString(el.Properties, "content")
	if text == "" {
		text = domain.PropString(el.Properties, "title")
	}
	if text == "" {
		return y
	}
	for _, line := range wrapText(text, (ThumbWidth-2*margin)/basicfont.Face7x13.Advance) {
		y = drawText(canvas, line, margin, y)
		if y >= ThumbHeight-margin {
			break
		}
	}
	return y + blockGap
}

// drawImageElement scales a decodable image payload into a box, or
// draws an empty frame when the payload is absent or not an image.
func drawImageElement(canvas *image.RGBA, el domain.Component, y int) int {
	boxWidth := ThumbWidth - 2*margin
	boxHeight := boxWidth * 3 / 4
	if y+boxHeight > ThumbHeight-margin {
		boxHeight = ThumbHeight - margin - y
	}
	if boxHeight <= 0 {
		return y
	}
	box := image.Rect(margin, y, margin+boxWidth, y+boxHeight)

	src := decodeDataURI(domain.PropString(el.Properties, domain.PropURL))
	if src == nil {
		draw.Draw(canvas, box, image.NewUniform(imageColor), image.Point{}, draw.Src)
		drawFrame(canvas, box)
	} else {
		draw.ApproxBiLinear.Scale(canvas, box, src, src.Bounds(), draw.Src, nil)
	}
	return y + boxHeight + blockGap
}

// decodeDataURI decodes a base64 image data URI into an image, or
// nil when the payload is not decodable.
func decodeDataURI(payload string) image.Image {
	if !strings.HasPrefix(payload, "data:image/") {
		return nil
	}
	_, data, found := strings.Cut(payload, ";base64,")
	if !found {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	return img
}

// drawText renders one line and returns the offset below it.
func drawText(canvas *image.RGBA, text string, x, y int) int {
	drawer := font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(textColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y+basicfont.Face7x13.Ascent),
	}
	drawer.DrawString(text)
	return y + lineHeight
}

// drawFrame outlines a rectangle.
func drawFrame(canvas *image.RGBA, box image.Rectangle) {
	for x := box.Min.X; x < box.Max.X; x++ {
		canvas.Set(x, box.Min.Y, frameColor)
		canvas.Set(x, box.Max.Y-1, frameColor)
	}
	for y := box.Min.Y; y < box.Max.Y; y++ {
		canvas.Set(box.Min.X, y, frameColor)
		canvas.Set(box.Max.X-1, y, frameColor)
	}
}

// wrapText splits text into lines of at most maxChars characters,
// breaking on spaces where possible.
func wrapText(text string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1
	}
	words := strings.Fields(text)
	var lines []string
	var current string
	for _, word := range words {
		for len(word) > maxChars {
			if current != "" {
				lines = append(lines, current)
				current = ""
			}
			lines = append(lines, word[:maxChars])
			word = word[maxChars:]
		}
		switch {
		case current == "":
			current = word
		case len(current)+1+len(word) <= maxChars:
			current += " " + word
		default:
			lines = append(lines, current)
			current = word
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}
