package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Backend translates a batch of segments. The result has one entry per input.
type Backend interface {
	Name() string
	Translate(ctx context.Context, texts []string, src, tgt string) ([]string, error)
}

// Cache stores backend output per language pair and input segment.
type Cache interface {
	Get(ctx context.Context, pair, text string) (string, bool)
	Set(ctx context.Context, pair, text, translation string) error
}

// BackendError reports a failed backend call.
type BackendError struct {
	Backend string
	Message string
	Cause   error
}

func (e *BackendError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("translate backend %s: %s: %v", e.Backend, e.Message, e.Cause)
	}
	return fmt.Sprintf("translate backend %s: %s", e.Backend, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Cause
}

// translateStage sends segments to the backend, skipping cached and blank
// ones.
type translateStage struct {
	backend Backend
	cache   Cache
	limiter *rate.Limiter
	src     string
	tgt     string
	timeout time.Duration
	logger  *zap.Logger
}

func newTranslateStage(settings Settings) (Stage, error) {
	backend, err := newBackend(settings)
	if err != nil {
		return nil, err
	}

	s := &translateStage{
		backend: backend,
		cache:   settings.Cache,
		src:     settings.SourceLang,
		tgt:     settings.TargetLang,
		timeout: settings.Translate.Timeout,
		logger:  settings.Logger,
	}
	if settings.Translate.RateLimit > 0 {
		burst := settings.Translate.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(settings.Translate.RateLimit), burst)
	}

	settings.Logger.Info("Translate stage configured",
		zap.String("backend", backend.Name()),
		zap.String("pair", s.pair()),
		zap.Bool("cache", s.cache != nil),
		zap.Float64("rate_limit", settings.Translate.RateLimit))
	return s, nil
}

// newBackend selects the backend named by settings.Translate.Method.
func newBackend(settings Settings) (Backend, error) {
	if settings.Backend != nil {
		return settings.Backend, nil
	}
	switch settings.Translate.Method {
	case "openai":
		return newOpenAIBackend(settings)
	case "echo":
		return echoBackend{}, nil
	default:
		return nil, &ConfigError{
			Stage:   "translate",
			Message: fmt.Sprintf("unsupported translate method %q (supported: openai, echo)", settings.Translate.Method),
		}
	}
}

func (s *translateStage) Name() string { return "translate" }

func (s *translateStage) pair() string { return s.src + "-" + s.tgt }

func (s *translateStage) Process(ctx context.Context, segments []string) ([]string, error) {
	out := make([]string, len(segments))
	var pending []int
	for i, seg := range segments {
		if strings.TrimSpace(seg) == "" {
			out[i] = seg
			continue
		}
		if s.cache != nil {
			if cached, ok := s.cache.Get(ctx, s.pair(), seg); ok {
				out[i] = cached
				continue
			}
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, &BackendError{Backend: s.backend.Name(), Message: "rate limit wait aborted", Cause: err}
		}
	}

	callCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	texts := make([]string, len(pending))
	for j, i := range pending {
		texts[j] = segments[i]
	}

	start := time.Now()
	translated, err := s.backend.Translate(callCtx, texts, s.src, s.tgt)
	if err != nil {
		return nil, err
	}
	if len(translated) != len(texts) {
		return nil, &BackendError{
			Backend: s.backend.Name(),
			Message: fmt.Sprintf("expected %d translations, got %d", len(texts), len(translated)),
		}
	}

	for j, i := range pending {
		out[i] = translated[j]
		if s.cache != nil {
			// Cache errors are logged by the cache and do not fail the request.
			_ = s.cache.Set(ctx, s.pair(), segments[i], translated[j])
		}
	}

	s.logger.Debug("Segments translated",
		zap.String("backend", s.backend.Name()),
		zap.Int("segments", len(texts)),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// echoBackend returns its input unchanged. It serves development setups
// without a model.
type echoBackend struct{}

func (echoBackend) Name() string { return "echo" }

func (echoBackend) Translate(_ context.Context, texts []string, _, _ string) ([]string, error) {
	out := make([]string, len(texts))
	copy(out, texts)
	return out, nil
}
