// Package registry maps service names to their constructors so the runner
// can assemble a pipeline from configuration without knowing any concrete
// service type.
package registry

import (
	"fmt"
	"sort"

	"github.com/submit4201/candor/internal/analysis"
	"github.com/submit4201/candor/internal/services"
)

// Factory constructs one service from the shared dependencies.
type Factory func(services.Deps) (analysis.Service, error)

// Registry holds the known service factories.
type Registry struct {
	factories map[string]Factory
}

// llmDimensions maps each LLM-backed dimension to its word-count gate.
// No dimension gates below 10 words: under that floor a model call cannot
// say anything defensible about the speaker.
var llmDimensions = map[string]int{
	"manipulation":           10,
	"argument":               15,
	"psychological":          10,
	"conversation_flow":      10,
	"enhanced_understanding": 15,
	"linguistic":             10,
	"speaker_attitude":       10,
}

// Default returns a registry with every built-in service registered.
func Default() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register("transcription", func(d services.Deps) (analysis.Service, error) {
		return services.NewTranscription(d), nil
	})
	r.Register("audio_quality", func(d services.Deps) (analysis.Service, error) {
		return services.NewAudioQuality(d), nil
	})
	r.Register("quantitative_metrics", func(d services.Deps) (analysis.Service, error) {
		return services.NewQuantMetrics(d), nil
	})
	r.Register("enhanced_acoustic", func(d services.Deps) (analysis.Service, error) {
		return services.NewEnhancedAcoustic(d), nil
	})
	r.Register("linguistic_enhancement", func(d services.Deps) (analysis.Service, error) {
		return services.NewLinguisticEnhancement(d), nil
	})
	r.Register("session_insights", func(d services.Deps) (analysis.Service, error) {
		return services.NewSessionInsights(d), nil
	})
	r.Register("credibility", func(d services.Deps) (analysis.Service, error) {
		return services.NewCredibility(d), nil
	})

	for name, minWords := range llmDimensions {
		r.Register(name, func(d services.Deps) (analysis.Service, error) {
			return services.NewDimension(d, name, minWords)
		})
	}
	return r
}

// Register adds or replaces a factory under the given name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// Build constructs the named service.
func (r *Registry) Build(name string, deps services.Deps) (analysis.Service, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("registry: unknown service %q", name)
	}
	return f(deps)
}

// BuildAll constructs every named service, failing on the first unknown name.
func (r *Registry) BuildAll(names []string, deps services.Deps) ([]analysis.Service, error) {
	out := make([]analysis.Service, 0, len(names))
	for _, name := range names {
		svc, err := r.Build(name, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

// Names returns every registered service name, sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
