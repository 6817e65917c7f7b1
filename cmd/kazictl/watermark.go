package main

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ignatzorin/kazi-backend/internal/media"
)

var wm struct {
	in       string
	out      string
	text     string
	logo     string
	position string
	color    string
	opacity  float64
	ratio    float64
	tiled    bool
	quality  int
}

var watermarkCmd = &cobra.Command{
	Use:   "watermark",
	Short: "Наложить водяной знак на изображение",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (wm.text == "") == (wm.logo == "") {
			return errors.New("нужен ровно один из флагов --text или --logo")
		}

		base, err := decodeFile(wm.in)
		if err != nil {
			return err
		}
		pos, err := media.ParsePosition(wm.position)
		if err != nil {
			return err
		}

		var out *image.NRGBA
		if wm.text != "" {
			opts := media.DefaultTextOptions(wm.text)
			opts.Position = pos
			opts.Opacity = wm.opacity
			opts.Tiled = wm.tiled
			if wm.color != "" {
				if opts.Color, err = media.ParseHexColor(wm.color); err != nil {
					return err
				}
			}
			out, err = media.ApplyText(base, opts)
		} else {
			var logo image.Image
			if logo, err = decodeFile(wm.logo); err != nil {
				return err
			}
			out, err = media.ApplyLogo(base, media.LogoOptions{
				Logo:       logo,
				WidthRatio: wm.ratio,
				Opacity:    wm.opacity,
				Position:   pos,
				Margin:     16,
			})
		}
		if err != nil {
			return err
		}

		f, err := os.Create(wm.out)
		if err != nil {
			return err
		}
		defer f.Close()

		if err := media.Encode(f, out, formatFor(wm.out), wm.quality); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "written %s (%dx%d)\n", wm.out, out.Bounds().Dx(), out.Bounds().Dy())
		return nil
	},
}

func init() {
	f := watermarkCmd.Flags()
	f.StringVar(&wm.in, "in", "", "Исходное изображение")
	f.StringVar(&wm.out, "out", "", "Файл результата (.png или .jpg)")
	f.StringVar(&wm.text, "text", "", "Текст водяного знака")
	f.StringVar(&wm.logo, "logo", "", "Изображение-логотип")
	f.StringVar(&wm.position, "position", "bottom-right", "top-left, top-right, bottom-left, bottom-right или center")
	f.StringVar(&wm.color, "color", "", "Цвет текста #rrggbb")
	f.Float64Var(&wm.opacity, "opacity", 0.5, "Непрозрачность 0..1")
	f.Float64Var(&wm.ratio, "width-ratio", 0.2, "Ширина логотипа относительно изображения")
	f.BoolVar(&wm.tiled, "tiled", false, "Замостить изображение текстом")
	f.IntVar(&wm.quality, "quality", 90, "Качество JPEG")
	_ = watermarkCmd.MarkFlagRequired("in")
	_ = watermarkCmd.MarkFlagRequired("out")
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return media.Decode(data)
}

func formatFor(path string) media.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return media.FormatJPEG
	default:
		return media.FormatPNG
	}
}
