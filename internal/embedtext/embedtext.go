// Package embedtext implements EmbeddingCoordinator (§4.6): composing
// clip text per the field registry's group separators, batch-embedding
// with per-clip degradation on batch failure, and little-endian float32
// vector serialization.
package embedtext

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/platform/logger"
	"github.com/yungbote/clipindex/internal/platform/openai"
	"github.com/yungbote/clipindex/internal/vision"
)

type Coordinator struct {
	client *openai.Client
	model  string
	dims   int
	log    *logger.Logger
}

func New(client *openai.Client, model string, dims int, log *logger.Logger) *Coordinator {
	return &Coordinator{client: client, model: model, dims: dims, log: log.With("component", "EmbeddingCoordinator")}
}

type EmbedOutcome struct {
	ClipID    int64
	Vector    []byte // little-endian float32, length = dims*4
	Model     string
	Succeeded bool
	Err       error
}

// ComposeText builds the embedding input text for one clip from its
// current field values, following the field registry's group separators.
func (c *Coordinator) ComposeText(clip domain.Clip) string {
	fv := vision.ExtractFromClip(&clip)
	return vision.ComposeEmbeddingText(fv)
}

// EmbedClips embeds every clip with non-empty composed text. It tries a
// single batch call first; on batch failure it degrades to per-clip calls,
// accumulating failures non-fatally rather than aborting the whole set.
func (c *Coordinator) EmbedClips(ctx context.Context, clips []domain.Clip) []EmbedOutcome {
	type pending struct {
		clip domain.Clip
		text string
	}
	var work []pending
	for _, clip := range clips {
		text := c.ComposeText(clip)
		if text == "" {
			continue
		}
		work = append(work, pending{clip: clip, text: text})
	}
	if len(work) == 0 {
		return nil
	}

	texts := make([]string, len(work))
	for i, w := range work {
		texts[i] = w.text
	}

	vectors, err := c.client.Embed(ctx, texts)
	if err == nil {
		out := make([]EmbedOutcome, 0, len(work))
		for i, w := range work {
			blob, serErr := SerializeVector(vectors[i], c.dims)
			if serErr != nil {
				out = append(out, EmbedOutcome{ClipID: w.clip.ID, Succeeded: false, Err: serErr})
				continue
			}
			out = append(out, EmbedOutcome{ClipID: w.clip.ID, Vector: blob, Model: c.model, Succeeded: true})
		}
		return out
	}

	c.log.Warn("batch embedding failed, degrading to per-clip calls", "err", err, "count", len(work))
	out := make([]EmbedOutcome, 0, len(work))
	for _, w := range work {
		vecs, perErr := c.client.Embed(ctx, []string{w.text})
		if perErr != nil {
			out = append(out, EmbedOutcome{ClipID: w.clip.ID, Succeeded: false, Err: perErr})
			continue
		}
		blob, serErr := SerializeVector(vecs[0], c.dims)
		if serErr != nil {
			out = append(out, EmbedOutcome{ClipID: w.clip.ID, Succeeded: false, Err: serErr})
			continue
		}
		out = append(out, EmbedOutcome{ClipID: w.clip.ID, Vector: blob, Model: c.model, Succeeded: true})
	}
	return out
}

// SerializeVector packs a float32 vector little-endian and checks the
// byte-length invariant: len(blob) == dims*4 (§3, §8).
func SerializeVector(v []float32, dims int) ([]byte, error) {
	if len(v) != dims {
		return nil, fmt.Errorf("embedding dims mismatch: got %d, want %d", len(v), dims)
	}
	buf := make([]byte, dims*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], math.Float32bits(f))
	}
	return buf, nil
}

// DeserializeVector is the inverse of SerializeVector, used by tests and
// any future consumer that needs the float32 slice back.
func DeserializeVector(blob []byte) []float32 {
	n := len(blob) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}
	return out
}
