package dataset

import (
	"fmt"

	"github.com/Lan-st/caffe-1/blas32/tensor/3d"
	"github.com/Lan-st/caffe-1/blas32/tensor/4d"
)

// Batch は同じ形の画像を1つのバッチにまとめる。
func Batch(imgs []tensor3d.General) (tensor4d.General, error) {
	if len(imgs) == 0 {
		return tensor4d.General{}, fmt.Errorf("dataset: no images to batch")
	}
	first := imgs[0]
	batch := tensor4d.NewZeros(len(imgs), first.Channels, first.Rows, first.Cols)
	for i, img := range imgs {
		if img.Channels != first.Channels || img.Rows != first.Rows || img.Cols != first.Cols {
			return tensor4d.General{}, fmt.Errorf(
				"dataset: image %d is %dx%dx%d, image 0 is %dx%dx%d",
				i, img.Channels, img.Rows, img.Cols, first.Channels, first.Rows, first.Cols,
			)
		}
		copy(batch.Sample(i), img.Data)
	}
	return batch, nil
}

func Unbatch(batch tensor4d.General) ([]tensor3d.General, error) {
	imgs := make([]tensor3d.General, batch.Batches)
	for i := range imgs {
		img, err := tensor3d.FromBatch(batch, i)
		if err != nil {
			return nil, err
		}
		imgs[i] = img
	}
	return imgs, nil
}

func LoadImages(paths []string) (tensor4d.General, error) {
	imgs := make([]tensor3d.General, len(paths))
	for i, path := range paths {
		img, err := LoadImage(path)
		if err != nil {
			return tensor4d.General{}, err
		}
		imgs[i] = img
	}
	return Batch(imgs)
}
