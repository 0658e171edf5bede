// Package pipeline threads request text through the configured processing
// stages: preprocessing, sentence splitting, translation, joining and
// postprocessing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stage transforms the segments of one request. Stages must be safe for
// concurrent use and must not keep per-request state.
type Stage interface {
	Name() string
	Process(ctx context.Context, segments []string) ([]string, error)
}

// Constructor builds a stage from the pipeline settings.
type Constructor func(settings Settings) (Stage, error)

// TranslateSettings configures the translate stage.
type TranslateSettings struct {
	Method      string        `yaml:"method" mapstructure:"method"`
	Model       string        `yaml:"model" mapstructure:"model"`
	APIKey      string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string        `yaml:"base_url" mapstructure:"base_url"`
	Temperature float32       `yaml:"temperature" mapstructure:"temperature"`
	Timeout     time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// RateLimit is the number of backend calls per second; zero disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// Settings carries everything a stage constructor may need.
type Settings struct {
	SourceLang string
	TargetLang string
	MaxSentLen int
	Marker     string
	Translate  TranslateSettings

	// Backend, when set, replaces the backend selected by Translate.Method.
	Backend Backend
	// Cache, when set, is consulted before every backend call.
	Cache  Cache
	Logger *zap.Logger
}

// ConfigError reports a pipeline that cannot be built from the configuration.
type ConfigError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pipeline stage %q: %s: %v", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("pipeline stage %q: %s", e.Stage, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Registry maps stage names to constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[name] = c
}

// Names returns the registered stage names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.constructors))
	for name := range r.constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build constructs the named stages in order.
func (r *Registry) Build(names []string, settings Settings) (*Pipeline, error) {
	if settings.Logger == nil {
		settings.Logger = zap.NewNop()
	}

	stages := make([]Stage, 0, len(names))
	for _, name := range names {
		r.mu.RLock()
		construct, ok := r.constructors[name]
		r.mu.RUnlock()
		if !ok {
			return nil, &ConfigError{
				Stage:   name,
				Message: fmt.Sprintf("unknown stage (available: %s)", strings.Join(r.Names(), ", ")),
			}
		}

		stage, err := construct(settings)
		if err != nil {
			var cfgErr *ConfigError
			if errors.As(err, &cfgErr) {
				return nil, err
			}
			return nil, &ConfigError{Stage: name, Message: "failed to build stage", Cause: err}
		}
		stages = append(stages, stage)
	}

	settings.Logger.Info("Pipeline built", zap.Strings("stages", names))
	return New(settings.Logger, stages...), nil
}

// Pipeline runs a fixed sequence of stages.
type Pipeline struct {
	stages []Stage
	logger *zap.Logger
}

// New creates a pipeline from already built stages.
func New(logger *zap.Logger, stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages, logger: logger}
}

// Run passes text through every stage. The text enters as a single segment
// and the resulting segments are joined with a space.
func (p *Pipeline) Run(ctx context.Context, text string) (string, error) {
	segments := []string{text}
	for _, stage := range p.stages {
		start := time.Now()

		out, err := stage.Process(ctx, segments)
		if err != nil {
			return "", fmt.Errorf("stage %s failed: %w", stage.Name(), err)
		}
		segments = out

		p.logger.Debug("Stage processed",
			zap.String("stage", stage.Name()),
			zap.Int("segments", len(segments)),
			zap.Duration("duration", time.Since(start)))
	}
	return strings.Join(segments, " "), nil
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// DefaultRegistry returns a registry holding every built-in stage.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register("normalize", newMapStage("normalize", normalizeText))
	r.Register("fullwidth", newMapStage("fullwidth", narrowText))
	r.Register("cjk_split", newMapStage("cjk_split", splitCJK))
	r.Register("squeeze_whitespace", newMapStage("squeeze_whitespace", squeezeWhitespace))

	r.Register("sentence_split", newSentenceSplitter)
	r.Register("sentence_join", func(Settings) (Stage, error) { return joinStage{}, nil })

	r.Register("translate", newTranslateStage)

	r.Register("remove_whitespace", newMapStage("remove_whitespace", removeWhitespace))
	r.Register("chinese_punc", newMapStage("chinese_punc", chinesePunctuation))
	r.Register("detruecase", newMapStage("detruecase", detruecase))

	return r
}

// mapStage applies a pure string function to every segment.
type mapStage struct {
	name string
	fn   func(string) string
}

func newMapStage(name string, fn func(string) string) Constructor {
	return func(Settings) (Stage, error) {
		return mapStage{name: name, fn: fn}, nil
	}
}

func (s mapStage) Name() string { return s.name }

func (s mapStage) Process(_ context.Context, segments []string) ([]string, error) {
	out := make([]string, len(segments))
	for i, seg := range segments {
		out[i] = s.fn(seg)
	}
	return out, nil
}
