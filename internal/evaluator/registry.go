package evaluator

import (
	"fmt"

	"github.com/samijaber1/vigil-ml/internal/drift"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// UnknownTypeError indicates a configured evaluator type has no registered
// factory.
type UnknownTypeError struct {
	Type string
}

// Error implements the error interface
func (e UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown evaluator type: %s", e.Type)
}

// ConfigError indicates a malformed evaluator configuration. It is fatal at
// orchestrator construction, before any run.
type ConfigError struct {
	Type    string
	Field   string
	Message string
}

// Error implements the error interface
func (e ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("evaluator %s: %s: %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("evaluator %s: %s", e.Type, e.Message)
}

// Options carries collaborator hooks that cannot travel through YAML config.
type Options struct {
	// DriftScorer backs the ml_model drift method. Nil disables it.
	DriftScorer drift.ScoreFunc
}

// Factory constructs an evaluator from its configuration.
type Factory func(cfg suite.EvaluatorConfig, opts Options) (Evaluator, error)

var registry = map[string]Factory{}

// Register adds a factory under a type identifier. Built-ins register in
// init; the map is not safe for concurrent mutation after startup.
func Register(name string, f Factory) {
	registry[name] = f
}

// New constructs an evaluator with default options.
func New(cfg suite.EvaluatorConfig) (Evaluator, error) {
	return NewWithOptions(cfg, Options{})
}

// NewWithOptions constructs an evaluator from config, failing with
// UnknownTypeError for unregistered types and ConfigError for malformed
// configuration.
func NewWithOptions(cfg suite.EvaluatorConfig, opts Options) (Evaluator, error) {
	factory, ok := registry[cfg.Type]
	if !ok {
		return nil, UnknownTypeError{Type: cfg.Type}
	}
	return factory(cfg, opts)
}

func init() {
	Register(string(TypeReliability), newReliability)
	Register(string(TypePerformance), newPerformance)
	Register(string(TypeSafety), newSafety)
	Register(string(TypeDrift), newDrift)
	Register(string(TypeCompliance), newCompliance)
}
