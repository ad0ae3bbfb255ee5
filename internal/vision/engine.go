package vision

import "context"

// RemoteEngine is the cloud vision capability (priority 1, §4.5).
type RemoteEngine interface {
	Name() string
	Analyze(ctx context.Context, keyframePaths []string) (FieldValues, error)
}

// LocalVLMEngine is the local vision-language-model capability (priority
// 2). Loading is single-flight guarded by VLMLoader.
type LocalVLMEngine interface {
	Name() string
	Analyze(ctx context.Context, keyframePaths []string) (FieldValues, error)
	Close() error
}

// LocalFastEngine is the platform image-classification capability
// (priority 3); it fills only a subset of fields (scene, subjects,
// objects, shotType, lighting, colors per §4.5).
type LocalFastEngine interface {
	Name() string
	AnalyzeFast(ctx context.Context, keyframePaths []string) (FieldValues, error)
}

// VLMLoaderFunc constructs a LocalVLMEngine; expensive, invoked at most
// once across concurrent callers.
type VLMLoaderFunc func(ctx context.Context) (LocalVLMEngine, error)
