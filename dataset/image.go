package dataset

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // デコーダ登録
	_ "image/jpeg" //   〃
	"image/png"
	"os"

	"github.com/Lan-st/caffe-1/blas32/tensor/3d"
	"github.com/Lan-st/caffe-1/mathx"
)

func clampUint8(v float32) uint8 {
	return uint8(mathx.Clamp(v, 0, 255) + 0.5)
}

// DecodeImage は画素値を[0, 1]に正規化したCHW画像にする。グレースケールは1ch、それ以外は3ch。
func DecodeImage(src image.Image) tensor3d.General {
	bounds := src.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()

	chs := 3
	if _, ok := src.(*image.Gray); ok {
		chs = 1
	}

	img := tensor3d.NewZeros(chs, rows, cols)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA() // 0-65535
			r8, g8, b8 := float32(r>>8), float32(g>>8), float32(b>>8)

			row, col := y-bounds.Min.Y, x-bounds.Min.X
			switch chs {
			case 1:
				img.Data[img.At(0, row, col)] = mathx.ConvertScale(r8, 0, 255, 0, 1)
			case 3:
				img.Data[img.At(0, row, col)] = mathx.ConvertScale(r8, 0, 255, 0, 1)
				img.Data[img.At(1, row, col)] = mathx.ConvertScale(g8, 0, 255, 0, 1)
				img.Data[img.At(2, row, col)] = mathx.ConvertScale(b8, 0, 255, 0, 1)
			}
		}
	}
	return img
}

func LoadImage(path string) (tensor3d.General, error) {
	f, err := os.Open(path)
	if err != nil {
		return tensor3d.General{}, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return tensor3d.General{}, fmt.Errorf("dataset: decode %s: %w", path, err)
	}
	return DecodeImage(src), nil
}

// EncodeImage は[0, 1]の値を0-255に戻す。範囲外は切り詰める。
func EncodeImage(img tensor3d.General) (image.Image, error) {
	rect := image.Rect(0, 0, img.Cols, img.Rows)
	px := func(ch, row, col int) uint8 {
		return clampUint8(mathx.ConvertScale(img.Data[img.At(ch, row, col)], 0, 1, 0, 255))
	}

	switch img.Channels {
	case 1:
		dst := image.NewGray(rect)
		for y := 0; y < img.Rows; y++ {
			for x := 0; x < img.Cols; x++ {
				dst.SetGray(x, y, color.Gray{Y: px(0, y, x)})
			}
		}
		return dst, nil

	case 3, 4:
		dst := image.NewRGBA(rect)
		for y := 0; y < img.Rows; y++ {
			for x := 0; x < img.Cols; x++ {
				a := uint8(255)
				if img.Channels == 4 {
					a = px(3, y, x)
				}
				dst.SetRGBA(x, y, color.RGBA{R: px(0, y, x), G: px(1, y, x), B: px(2, y, x), A: a})
			}
		}
		return dst, nil
	}
	return nil, fmt.Errorf("dataset: unsupported channel count: %d", img.Channels)
}

func SavePNG(path string, img tensor3d.General) error {
	dst, err := EncodeImage(img)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
