package suite

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

var knownEvaluatorTypes = map[string]bool{
	"reliability": true,
	"performance": true,
	"safety":      true,
	"drift":       true,
	"compliance":  true,
}

var knownAggregates = map[string]bool{
	"":     true, // defaults to mean
	"mean": true,
	"p50":  true,
	"p90":  true,
	"p95":  true,
	"p99":  true,
	"rate": true,
}

var knownDriftMethods = map[string]bool{
	"statistical": true,
	"ml_model":    true,
}

var knownSeverities = map[string]bool{
	"info":      true,
	"warning":   true,
	"critical":  true,
	"emergency": true,
}

// Validator handles suite validation
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator creates a new validator with the given schema file
func NewValidator(schemaPath string) (*Validator, error) {
	compiler := jsonschema.NewCompiler()

	schema, err := compiler.Compile(schemaPath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: schema}, nil
}

// ValidateDirectory loads and validates all suite files in a directory
func (v *Validator) ValidateDirectory(dirPath string) []ValidationError {
	suiteFiles, loadErrors := LoadFromDirectory(dirPath)

	var allErrors []ValidationError
	allErrors = append(allErrors, loadErrors...)

	if len(suiteFiles) == 0 {
		return allErrors
	}

	for _, sf := range suiteFiles {
		schemaErrors := v.validateSchema(sf.File, sf.Suite)
		allErrors = append(allErrors, schemaErrors...)
	}

	allErrors = append(allErrors, v.validateExtraRules(suiteFiles)...)

	return allErrors
}

// validateSchema validates a single suite against the JSON schema
func (v *Validator) validateSchema(file string, s *Suite) []ValidationError {
	var errors []ValidationError

	// Round-trip through YAML to get plain maps for schema validation
	yamlBytes, err := yaml.Marshal(s)
	if err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to marshal suite: %v", err),
		})
		return errors
	}

	var jsonData interface{}
	if err := yaml.Unmarshal(yamlBytes, &jsonData); err != nil {
		errors = append(errors, ValidationError{
			File:    file,
			Message: fmt.Sprintf("failed to convert to JSON: %v", err),
		})
		return errors
	}

	if err := v.schema.Validate(jsonData); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			errors = append(errors, extractSchemaErrors(file, validationErr)...)
		} else {
			errors = append(errors, ValidationError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	return errors
}

// extractSchemaErrors converts JSON schema validation errors to ValidationErrors
func extractSchemaErrors(file string, err *jsonschema.ValidationError) []ValidationError {
	var errors []ValidationError

	path := strings.Join(err.InstanceLocation, ".")
	if path == "" {
		path = "(root)"
	}

	errors = append(errors, ValidationError{
		File:    file,
		Path:    path,
		Message: err.Error(),
	})

	for _, cause := range err.Causes {
		errors = append(errors, extractSchemaErrors(file, cause)...)
	}

	return errors
}

// validateExtraRules applies semantic validation beyond the JSON schema
func (v *Validator) validateExtraRules(suiteFiles []SuiteWithFile) []ValidationError {
	var errors []ValidationError

	idSeen := make(map[string]string)
	for _, sf := range suiteFiles {
		id := sf.Suite.Metadata.ID
		if prevFile, exists := idSeen[id]; exists {
			errors = append(errors, ValidationError{
				File:    sf.File,
				Path:    "metadata.id",
				Message: fmt.Sprintf("duplicate ID %q (also in %s)", id, filepath.Base(prevFile)),
			})
		} else {
			idSeen[id] = sf.File
		}

		errors = append(errors, validateSpec(sf.File, sf.Suite)...)
	}

	return errors
}

// validateSpec checks durations, evaluator sections and alert rules of one suite
func validateSpec(file string, s *Suite) []ValidationError {
	var errors []ValidationError

	addErr := func(path, format string, args ...interface{}) {
		errors = append(errors, ValidationError{File: file, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := ParseDuration(s.Spec.EvaluationInterval); err != nil {
		addErr("spec.evaluationInterval", "invalid duration: %v", err)
	}
	if _, err := ParseDuration(s.Spec.SnapshotWindow); err != nil {
		addErr("spec.snapshotWindow", "invalid duration: %v", err)
	}
	if s.Spec.EvaluatorTimeout != "" {
		if _, err := ParseDuration(s.Spec.EvaluatorTimeout); err != nil {
			addErr("spec.evaluatorTimeout", "invalid duration: %v", err)
		}
	}

	if len(s.Spec.Evaluators) == 0 {
		addErr("spec.evaluators", "at least one evaluator is required")
	}

	for i, ec := range s.Spec.Evaluators {
		base := fmt.Sprintf("spec.evaluators[%d]", i)

		if !knownEvaluatorTypes[ec.Type] {
			addErr(base+".type", "unknown evaluator type %q", ec.Type)
			continue
		}

		switch ec.Type {
		case "reliability":
			if len(ec.SLOs) == 0 {
				addErr(base+".slos", "reliability evaluator requires at least one SLO")
			}
			for j, slo := range ec.SLOs {
				errors = append(errors, validateSLO(file, fmt.Sprintf("%s.slos[%d]", base, j), slo)...)
			}

		case "performance", "safety", "compliance":
			if len(ec.Thresholds) == 0 {
				addErr(base+".thresholds", "%s evaluator requires at least one threshold", ec.Type)
			}
			for j, th := range ec.Thresholds {
				p := fmt.Sprintf("%s.thresholds[%d]", base, j)
				if th.Metric == "" {
					addErr(p+".metric", "metric name is required")
				}
				if th.Min == nil && th.Max == nil {
					addErr(p, "at least one of min/max is required")
				}
				if !knownAggregates[th.Aggregate] {
					addErr(p+".aggregate", "unknown aggregate %q", th.Aggregate)
				}
			}
			if ec.Type == "compliance" && ec.Standard == "" {
				addErr(base+".standard", "compliance evaluator requires a standard identifier")
			}

		case "drift":
			if ec.Drift == nil {
				addErr(base+".drift", "drift evaluator requires a drift section")
				continue
			}
			if len(ec.Drift.Metrics) == 0 {
				addErr(base+".drift.metrics", "at least one metric is required")
			}
			if len(ec.Drift.DetectionMethods) == 0 {
				addErr(base+".drift.detectionMethods", "at least one detection method is required")
			}
			for _, m := range ec.Drift.DetectionMethods {
				if !knownDriftMethods[m] {
					addErr(base+".drift.detectionMethods", "unknown detection method %q", m)
				}
			}
			if ec.Drift.AdaptationThreshold <= 0 {
				addErr(base+".drift.adaptationThreshold", "must be > 0, got %f", ec.Drift.AdaptationThreshold)
			}
		}
	}

	for i, rule := range s.Spec.AlertRules {
		base := fmt.Sprintf("spec.alertRules[%d]", i)
		if rule.Name == "" {
			addErr(base+".name", "rule name is required")
		}
		if !knownSeverities[rule.Severity] {
			addErr(base+".severity", "unknown severity %q", rule.Severity)
		}
		if rule.Evaluator != "" && !knownEvaluatorTypes[rule.Evaluator] {
			addErr(base+".evaluator", "unknown evaluator type %q", rule.Evaluator)
		}
	}

	return errors
}

// validateSLO checks a single SLO definition, including the explicit
// errorBudget override against the derived value.
func validateSLO(file, path string, slo SLO) []ValidationError {
	var errors []ValidationError

	addErr := func(p, format string, args ...interface{}) {
		errors = append(errors, ValidationError{File: file, Path: p, Message: fmt.Sprintf(format, args...)})
	}

	if slo.Name == "" {
		addErr(path+".name", "SLO name is required")
	}
	if slo.Metric == "" {
		addErr(path+".metric", "SLO metric is required")
	}
	if _, err := ParseDuration(slo.Window); err != nil {
		addErr(path+".window", "invalid duration: %v", err)
	}

	if slo.IsRatio() {
		if slo.Target <= 0 || slo.Target > 1 {
			addErr(path+".target", "ratio SLO target must be in (0, 1], got %f", slo.Target)
		}
		if slo.BudgetFraction != 0 {
			addErr(path+".budgetFraction", "budgetFraction only applies to max-type SLOs")
		}
	} else {
		if slo.Target != 0 {
			addErr(path+".target", "target and max are mutually exclusive")
		}
		if slo.BudgetFraction <= 0 || slo.BudgetFraction > 1 {
			addErr(path+".budgetFraction", "max-type SLO requires budgetFraction in (0, 1], got %f", slo.BudgetFraction)
		}
	}

	// An explicit errorBudget is accepted only when it agrees with the
	// derived value.
	if slo.ErrorBudget != nil {
		derived := slo.ErrorBudgetFraction()
		if math.Abs(*slo.ErrorBudget-derived) > 1e-9 {
			addErr(path+".errorBudget", "explicit errorBudget %g disagrees with derived value %g", *slo.ErrorBudget, derived)
		}
	}

	return errors
}
