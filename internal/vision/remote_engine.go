package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/openai"
)

// OpenAIRemoteEngine is the remote cloud engine (priority 1, §4.5),
// grounded on the teacher's openai client GenerateJSON path.
type OpenAIRemoteEngine struct {
	client *openai.Client
}

func NewOpenAIRemoteEngine(client *openai.Client) *OpenAIRemoteEngine {
	return &OpenAIRemoteEngine{client: client}
}

func (e *OpenAIRemoteEngine) Name() string { return "gemini" }

func (e *OpenAIRemoteEngine) Analyze(ctx context.Context, keyframePaths []string) (FieldValues, error) {
	dataURLs := make([]string, 0, len(keyframePaths))
	for _, p := range keyframePaths {
		url, err := encodeImageDataURL(p)
		if err != nil {
			return FieldValues{}, &indexerrors.ImageEncodingFailedError{Detail: err.Error()}
		}
		dataURLs = append(dataURLs, url)
	}

	systemPrompt := "You are a video clip analyst. Describe the scene using exactly the requested fields.\n" + strings.Join(BuildPromptLines(), "\n")
	userPrompt := "Analyze the attached keyframes and return the nine structured fields."

	var raw map[string]interface{}
	if err := e.client.GenerateJSON(ctx, systemPrompt, userPrompt, dataURLs, "clip_vision_fields", BuildJSONSchema(), &raw); err != nil {
		return FieldValues{}, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return FieldValues{}, indexerrors.InvalidResponse
	}
	return ParseFieldValues(b)
}

func encodeImageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:image/jpeg;base64,%s", base64.StdEncoding.EncodeToString(data)), nil
}
