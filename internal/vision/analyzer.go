package vision

import (
	"context"

	"github.com/yungbote/clipindex/internal/domain"
	"github.com/yungbote/clipindex/internal/indexerrors"
	"github.com/yungbote/clipindex/internal/platform/logger"
)

// RateLimitSignaler lets the analyzer inform the shared rate limiter
// without importing internal/ratelimit directly; cmd/indexer passes the
// concrete *ratelimit.Limiter in.
type RateLimitSignaler interface {
	ReportRateLimit()
	ReportSuccess()
}

type Analyzer struct {
	remote   RemoteEngine // nil if no credentials resolvable
	vlm      *LazyVLM     // nil if no VLM loader configured
	fast     LocalFastEngine
	limiter  RateLimitSignaler
	log      *logger.Logger
}

func NewAnalyzer(remote RemoteEngine, vlm *LazyVLM, fast LocalFastEngine, limiter RateLimitSignaler, log *logger.Logger) *Analyzer {
	return &Analyzer{remote: remote, vlm: vlm, fast: fast, limiter: limiter, log: log.With("component", "VisionAnalyzer")}
}

// AnalyzeLocal runs only the local fast analyzer (layer 1, §4.9).
func (a *Analyzer) AnalyzeLocal(ctx context.Context, keyframePaths []string) (FieldValues, string, error) {
	if a.fast == nil {
		return NewFieldValues(), "", nil
	}
	fv, err := a.fast.AnalyzeFast(ctx, keyframePaths)
	if err != nil {
		return NewFieldValues(), "", err
	}
	return fv, a.fast.Name(), nil
}

// AnalyzeAndMerge runs the priority-ordered remote/VLM engine (layer 3,
// §4.9) and merges its result with the clip's existing (layer-1) field
// values per the registry's merge strategies. A rate-limit error is
// reported to the limiter and returned unmodified so the caller can skip
// this clip without failing the video (§4.5, §7).
func (a *Analyzer) AnalyzeAndMerge(ctx context.Context, c *domain.Clip, keyframePaths []string) (FieldValues, string, error) {
	local := ExtractFromClip(c)

	if a.remote != nil {
		remote, err := a.remote.Analyze(ctx, keyframePaths)
		if err != nil {
			if err == indexerrors.RateLimitExceeded {
				a.limiter.ReportRateLimit()
				return FieldValues{}, "", err
			}
			a.log.Warn("remote vision analysis failed, clip skipped", "video", c.VideoID, "clip", c.ID, "err", err)
			return FieldValues{}, "", err
		}
		a.limiter.ReportSuccess()
		return Merge(local, remote), a.remote.Name(), nil
	}

	if a.vlm != nil {
		engine, err := a.vlm.Get(ctx)
		if err != nil {
			a.log.Warn("vlm load failed, clip skipped", "video", c.VideoID, "clip", c.ID, "err", err)
			return FieldValues{}, "", err
		}
		remote, err := engine.Analyze(ctx, keyframePaths)
		if err != nil {
			a.log.Warn("vlm analysis failed, clip skipped", "video", c.VideoID, "clip", c.ID, "err", err)
			return FieldValues{}, "", err
		}
		return Merge(local, remote), engine.Name(), nil
	}

	// Neither remote nor VLM available: layer-1 local result stands.
	return local, "", nil
}

// HasRemoteOrVLM reports whether layer 3 has any engine to run, used by
// LayeredIndexer to decide whether layer 3 is applicable.
func (a *Analyzer) HasRemoteOrVLM() bool {
	return a.remote != nil || a.vlm != nil
}

// UsesRemote reports whether the next AnalyzeAndMerge call will take the
// cloud path, which is the only path gated by the rate limiter.
func (a *Analyzer) UsesRemote() bool {
	return a.remote != nil
}
