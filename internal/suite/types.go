package suite

// Suite represents a parsed evaluation suite definition
type Suite struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Spec       Spec     `yaml:"spec"`
}

// Metadata contains suite metadata
type Metadata struct {
	ID          string `yaml:"id"`
	Service     string `yaml:"service"`
	Owner       string `yaml:"owner,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Spec contains the suite specification
type Spec struct {
	Environment        string            `yaml:"environment"`
	EvaluationInterval string            `yaml:"evaluationInterval"`
	SnapshotWindow     string            `yaml:"snapshotWindow"`
	EvaluatorTimeout   string            `yaml:"evaluatorTimeout,omitempty"`
	Evaluators         []EvaluatorConfig `yaml:"evaluators"`
	AlertRules         []AlertRule       `yaml:"alertRules,omitempty"`
}

// EvaluatorConfig configures one evaluator instance. Exactly one of the
// type-specific sections applies depending on Type.
type EvaluatorConfig struct {
	Type       string      `yaml:"type"`
	MinSamples int         `yaml:"minSamples,omitempty"`
	SLOs       []SLO       `yaml:"slos,omitempty"`
	Thresholds []Threshold `yaml:"thresholds,omitempty"`
	Drift      *DriftSpec  `yaml:"drift,omitempty"`
	Standard   string      `yaml:"standard,omitempty"`
}

// SLO defines a single service level objective. Ratio SLOs carry a Target in
// (0, 1] over success-indicator samples; max-type SLOs carry Max plus an
// explicit BudgetFraction (the allowed violation fraction).
type SLO struct {
	Name           string   `yaml:"name"`
	Metric         string   `yaml:"metric"`
	Target         float64  `yaml:"target,omitempty"`
	Max            *float64 `yaml:"max,omitempty"`
	BudgetFraction float64  `yaml:"budgetFraction,omitempty"`
	ErrorBudget    *float64 `yaml:"errorBudget,omitempty"`
	Window         string   `yaml:"window"`
	Description    string   `yaml:"description,omitempty"`
}

// IsRatio reports whether the SLO is a ratio objective (as opposed to
// max-type).
func (s SLO) IsRatio() bool { return s.Max == nil }

// ErrorBudgetFraction returns the allowed violation fraction: 1 - target for
// ratio SLOs, the supplied budgetFraction for max-type SLOs.
func (s SLO) ErrorBudgetFraction() float64 {
	if s.IsRatio() {
		return 1 - s.Target
	}
	return s.BudgetFraction
}

// Threshold defines a static bound on an aggregate metric value.
type Threshold struct {
	Metric    string   `yaml:"metric"`
	Aggregate string   `yaml:"aggregate,omitempty"` // mean (default), p50, p90, p95, p99, rate
	Min       *float64 `yaml:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty"`
	Critical  bool     `yaml:"critical,omitempty"`
}

// DriftSpec configures drift detection for a set of metrics.
type DriftSpec struct {
	Metrics             []string `yaml:"metrics"`
	DetectionMethods    []string `yaml:"detectionMethods"`
	AdaptationThreshold float64  `yaml:"adaptationThreshold"`
	MinSamples          int      `yaml:"minSamples,omitempty"`
}

// AlertRule maps failed threshold results to a severity. Rules are evaluated
// in configured order; the first match wins per condition.
type AlertRule struct {
	Name      string `yaml:"name"`
	Evaluator string `yaml:"evaluator,omitempty"` // empty matches any evaluator
	Metric    string `yaml:"metric,omitempty"`    // empty matches any metric
	Severity  string `yaml:"severity"`
}

// SuiteWithFile pairs a suite with its source file path
type SuiteWithFile struct {
	Suite *Suite
	File  string
}

// ValidationError represents a validation error for a specific file
type ValidationError struct {
	File    string
	Path    string
	Message string
}

// Error implements the error interface
func (e ValidationError) Error() string {
	if e.Path != "" {
		return e.File + ": " + e.Path + ": " + e.Message
	}
	return e.File + ": " + e.Message
}
