package vision

import (
	"context"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

// GoogleFastEngine is the local fast analyzer (priority 3, §4.5): a
// platform image-classification capability that fills scene, subjects,
// objects and colors from label, object and image-property annotations;
// shotType and lighting are always set to "unknown". Grounded on the teacher's
// internal/services/vision_provider.go client construction.
type GoogleFastEngine struct {
	client *vision.ImageAnnotatorClient
	log    *logger.Logger
}

func NewGoogleFastEngine(ctx context.Context, log *logger.Logger) (*GoogleFastEngine, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return nil, &indexerrors.NetworkError{Err: err}
	}
	return &GoogleFastEngine{client: client, log: log.With("component", "GoogleFastEngine")}, nil
}

func (e *GoogleFastEngine) Name() string { return "local_vision" }

func (e *GoogleFastEngine) Close() error { return e.client.Close() }

func (e *GoogleFastEngine) AnalyzeFast(ctx context.Context, keyframePaths []string) (FieldValues, error) {
	fv := NewFieldValues()
	if len(keyframePaths) == 0 {
		return fv, nil
	}
	data, err := os.ReadFile(keyframePaths[0])
	if err != nil {
		return fv, &indexerrors.ImageEncodingFailedError{Detail: err.Error()}
	}
	img := &visionpb.Image{Content: data}
	req := &visionpb.AnnotateImageRequest{
		Image: img,
		Features: []*visionpb.Feature{
			{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: 10},
			{Type: visionpb.Feature_IMAGE_PROPERTIES},
			{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: 10},
		},
	}
	resp, err := e.client.AnnotateImage(ctx, req)
	if err != nil {
		return fv, &indexerrors.NetworkError{Err: err}
	}

	var subjects, objects []string
	for _, label := range resp.GetLabelAnnotations() {
		subjects = append(subjects, label.GetDescription())
	}
	for _, obj := range resp.GetLocalizedObjectAnnotations() {
		objects = append(objects, obj.GetName())
	}
	fv.Arrays["subjects"] = subjects
	fv.Arrays["objects"] = objects

	if len(subjects) > 0 {
		scene := strings.Join(subjects[:minInt(3, len(subjects))], ", ")
		fv.Scalars["scene"] = &scene
	}

	colors := colorsFromProperties(resp.GetImagePropertiesAnnotation())
	fv.Arrays["colors"] = colors

	shotType := "unknown"
	fv.Scalars["shotType"] = &shotType
	lighting := "unknown"
	fv.Scalars["lighting"] = &lighting

	return fv, nil
}

func colorsFromProperties(props *visionpb.ImageProperties) []string {
	if props == nil || props.DominantColors == nil {
		return nil
	}
	var out []string
	for _, c := range props.DominantColors.Colors {
		out = append(out, colorName(c.Color.GetRed(), c.Color.GetGreen(), c.Color.GetBlue()))
	}
	return out
}

func colorName(r, g, b float32) string {
	switch {
	case r > 200 && g > 200 && b > 200:
		return "white"
	case r < 50 && g < 50 && b < 50:
		return "black"
	case r > g && r > b:
		return "red"
	case g > r && g > b:
		return "green"
	case b > r && b > g:
		return "blue"
	default:
		return "gray"
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
