package vision

import (
	"image"
	_ "image/jpeg"
	"os"

	"github.com/yungbote/clipindex/internal/indexerrors"
)

// ImageEmbedder produces a fixed-length vector from a single keyframe
// for layer 1's "already searchable by image vector" guarantee (§4.9).
type ImageEmbedder interface {
	Name() string
	Dims() int
	EmbedImage(path string) ([]float32, error)
}

// HistogramImageEmbedder is a deterministic, dependency-free image
// embedding: an L1-normalized RGB color histogram. No multimodal
// embedding SDK appears anywhere in the pack (the GCP Vision client
// classifies/labels, it does not expose embedding vectors), so this
// stands in as the image-vector capability using only the stdlib image
// decoding already used by internal/keyframe.
type HistogramImageEmbedder struct {
	binsPerChannel int
}

func NewHistogramImageEmbedder() *HistogramImageEmbedder {
	return &HistogramImageEmbedder{binsPerChannel: 8}
}

func (h *HistogramImageEmbedder) Name() string { return "color-histogram-v1" }

func (h *HistogramImageEmbedder) Dims() int { return h.binsPerChannel * h.binsPerChannel * h.binsPerChannel }

func (h *HistogramImageEmbedder) EmbedImage(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &indexerrors.ImageEncodingFailedError{Detail: err.Error()}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &indexerrors.ImageEncodingFailedError{Detail: err.Error()}
	}

	bins := h.binsPerChannel
	hist := make([]float32, bins*bins*bins)
	bounds := img.Bounds()
	var total float32
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			ri := int(r>>8) * bins / 256
			gi := int(g>>8) * bins / 256
			bi := int(b>>8) * bins / 256
			idx := ri*bins*bins + gi*bins + bi
			hist[idx]++
			total++
		}
	}
	if total == 0 {
		return hist, nil
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist, nil
}
