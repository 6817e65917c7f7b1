// Package media обработка медиафайлов: водяные знаки на изображениях и разбор WAV.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Position угол или центр для размещения знака.
type Position string

const (
	TopLeft     Position = "top-left"
	TopRight    Position = "top-right"
	BottomLeft  Position = "bottom-left"
	BottomRight Position = "bottom-right"
	Center      Position = "center"
)

// Format формат результата.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
)

var (
	ErrNotImage      = errors.New("media: файл не является изображением")
	ErrEmptyText     = errors.New("media: пустой текст водяного знака")
	ErrInvalidOption = errors.New("media: недопустимые параметры водяного знака")
)

// TextOptions параметры текстового знака.
type TextOptions struct {
	Text     string
	Color    color.NRGBA
	Opacity  float64
	Position Position
	Margin   int
	// Scale увеличение базового шрифта 7x13. 0 подбирает масштаб по ширине.
	Scale int
	Tiled bool
}

// LogoOptions параметры знака-логотипа.
type LogoOptions struct {
	Logo image.Image
	// WidthRatio доля ширины исходного изображения.
	WidthRatio float64
	Opacity    float64
	Position   Position
	Margin     int
}

// DefaultTextOptions белый полупрозрачный текст в правом нижнем углу.
func DefaultTextOptions(text string) TextOptions {
	return TextOptions{
		Text:     text,
		Color:    color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		Opacity:  0.5,
		Position: BottomRight,
		Margin:   16,
	}
}

// ParsePosition разбирает позицию; пустая строка даёт bottom-right.
func ParsePosition(s string) (Position, error) {
	switch p := Position(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return BottomRight, nil
	case TopLeft, TopRight, BottomLeft, BottomRight, Center:
		return p, nil
	default:
		return "", fmt.Errorf("%w: позиция %q", ErrInvalidOption, s)
	}
}

// ParseHexColor разбирает цвет вида #rrggbb.
func ParseHexColor(s string) (color.NRGBA, error) {
	c := color.NRGBA{A: 255}
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return c, fmt.Errorf("%w: цвет %q", ErrInvalidOption, s)
	}
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
		return c, fmt.Errorf("%w: цвет %q", ErrInvalidOption, s)
	}
	return c, nil
}

// Decode читает изображение, предварительно проверив сигнатуру файла.
func Decode(data []byte) (image.Image, error) {
	if !filetype.IsImage(data) {
		return nil, ErrNotImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("media: не удалось декодировать изображение: %w", err)
	}
	return img, nil
}

// Encode пишет изображение в PNG или JPEG с заданным качеством.
func Encode(w io.Writer, img image.Image, format Format, quality int) error {
	switch format {
	case FormatJPEG:
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG, "":
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return fmt.Errorf("%w: формат %q", ErrInvalidOption, format)
	}
}

// ApplyText накладывает текст базовым растровым шрифтом.
func ApplyText(base image.Image, opts TextOptions) (*image.NRGBA, error) {
	text := strings.TrimSpace(opts.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := checkOpacity(opts.Opacity); err != nil {
		return nil, err
	}

	stamp := renderText(text, opts.Color)
	scale := opts.Scale
	if scale <= 0 {
		// Текст занимает примерно четверть ширины.
		scale = base.Bounds().Dx() / (stamp.Bounds().Dx() * 4)
	}
	if scale > 1 {
		b := stamp.Bounds()
		stamp = imaging.Resize(stamp, b.Dx()*scale, b.Dy()*scale, imaging.NearestNeighbor)
	}

	out := imaging.Clone(base)
	if opts.Tiled {
		return tile(out, stamp, opts.Opacity, opts.Margin), nil
	}
	at := anchor(out.Bounds(), stamp.Bounds().Size(), opts.Position, opts.Margin)
	return imaging.Overlay(out, stamp, at, opts.Opacity), nil
}

// ApplyLogo масштабирует логотип к доле ширины и накладывает его.
func ApplyLogo(base image.Image, opts LogoOptions) (*image.NRGBA, error) {
	if opts.Logo == nil {
		return nil, fmt.Errorf("%w: нет логотипа", ErrInvalidOption)
	}
	if err := checkOpacity(opts.Opacity); err != nil {
		return nil, err
	}
	ratio := opts.WidthRatio
	if ratio <= 0 {
		ratio = 0.2
	}
	if ratio > 1 {
		return nil, fmt.Errorf("%w: width_ratio больше 1", ErrInvalidOption)
	}

	width := int(float64(base.Bounds().Dx()) * ratio)
	if width < 1 {
		width = 1
	}
	logo := imaging.Resize(opts.Logo, width, 0, imaging.Lanczos)

	out := imaging.Clone(base)
	at := anchor(out.Bounds(), logo.Bounds().Size(), opts.Position, opts.Margin)
	return imaging.Overlay(out, logo, at, opts.Opacity), nil
}

func renderText(text string, c color.NRGBA) *image.NRGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	metrics := face.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil()

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
	}
	d.DrawString(text)
	return img
}

func tile(dst *image.NRGBA, stamp *image.NRGBA, opacity float64, margin int) *image.NRGBA {
	size := stamp.Bounds().Size()
	stepX := size.X + 2*margin + size.X/2
	stepY := size.Y + 2*margin + size.Y
	b := dst.Bounds()
	row := 0
	for y := b.Min.Y + margin; y < b.Max.Y; y += stepY {
		// Нечётные ряды сдвинуты на половину шага.
		shift := 0
		if row%2 == 1 {
			shift = stepX / 2
		}
		for x := b.Min.X + margin - shift; x < b.Max.X; x += stepX {
			dst = imaging.Overlay(dst, stamp, image.Pt(x, y), opacity)
		}
		row++
	}
	return dst
}

func anchor(bounds image.Rectangle, size image.Point, pos Position, margin int) image.Point {
	switch pos {
	case TopLeft:
		return image.Pt(bounds.Min.X+margin, bounds.Min.Y+margin)
	case TopRight:
		return image.Pt(bounds.Max.X-size.X-margin, bounds.Min.Y+margin)
	case BottomLeft:
		return image.Pt(bounds.Min.X+margin, bounds.Max.Y-size.Y-margin)
	case Center:
		return image.Pt(bounds.Min.X+(bounds.Dx()-size.X)/2, bounds.Min.Y+(bounds.Dy()-size.Y)/2)
	default:
		return image.Pt(bounds.Max.X-size.X-margin, bounds.Max.Y-size.Y-margin)
	}
}

func checkOpacity(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: opacity от 0 до 1", ErrInvalidOption)
	}
	return nil
}
