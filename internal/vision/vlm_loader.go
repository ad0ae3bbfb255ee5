package vision

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/yungbote/clipindex/internal/platform/logger"
)

// LazyVLM is the async-mutex-guarded lazy cell of §9: the local VLM
// container is loaded at most once across concurrent callers; second
// arrivals await the same in-flight load.
type LazyVLM struct {
	loader VLMLoaderFunc
	group  singleflight.Group
	log    *logger.Logger

	mu     sync.Mutex
	loaded LocalVLMEngine
}

func NewLazyVLM(loader VLMLoaderFunc, log *logger.Logger) *LazyVLM {
	return &LazyVLM{loader: loader, log: log.With("component", "LazyVLM")}
}

// Get returns the loaded engine, loading it on first call. Concurrent
// callers during the in-flight load all receive the same result.
func (l *LazyVLM) Get(ctx context.Context) (LocalVLMEngine, error) {
	l.mu.Lock()
	if l.loaded != nil {
		defer l.mu.Unlock()
		return l.loaded, nil
	}
	l.mu.Unlock()

	v, err, _ := l.group.Do("vlm", func() (interface{}, error) {
		engine, err := l.loader(ctx)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded = engine
		l.mu.Unlock()
		return engine, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(LocalVLMEngine), nil
}

func (l *LazyVLM) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.loaded != nil {
		return l.loaded.Close()
	}
	return nil
}
