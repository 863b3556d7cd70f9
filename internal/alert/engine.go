package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samijaber1/vigil-ml/internal/evaluator"
	"github.com/samijaber1/vigil-ml/internal/suite"
)

// Severity classifies an alert.
type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

var severityRank = map[Severity]int{
	SeverityInfo:      0,
	SeverityWarning:   1,
	SeverityCritical:  2,
	SeverityEmergency: 3,
}

// Alert is a severity-classified condition derived from one evaluation run.
// It has no lifecycle beyond the run; cross-run escalation belongs to the
// incident-response subsystem.
type Alert struct {
	Name          string         `json:"name"`
	Severity      Severity       `json:"severity"`
	Condition     string         `json:"condition"`
	Metric        string         `json:"metric"`
	EvaluatorType evaluator.Type `json:"evaluatorType"`
	TriggeredAt   time.Time      `json:"triggeredAt"`
}

// Rule maps failed thresholds to a severity. Rules apply in configured
// order; the first match wins per condition.
type Rule struct {
	Name      string
	Evaluator evaluator.Type // empty matches any evaluator
	Metric    string         // empty matches any metric
	Severity  Severity
}

// RulesFromConfig converts suite alert rules, rejecting unknown severities.
func RulesFromConfig(cfgRules []suite.AlertRule) ([]Rule, error) {
	rules := make([]Rule, 0, len(cfgRules))
	for i, cr := range cfgRules {
		sev := Severity(cr.Severity)
		if _, ok := severityRank[sev]; !ok {
			return nil, fmt.Errorf("alert rule %d (%s): unknown severity %q", i, cr.Name, cr.Severity)
		}
		rules = append(rules, Rule{
			Name:      cr.Name,
			Evaluator: evaluator.Type(cr.Evaluator),
			Metric:    cr.Metric,
			Severity:  sev,
		})
	}
	return rules, nil
}

// Engine derives alerts from evaluation results.
type Engine struct {
	rules []Rule
}

// NewEngine creates an alert engine with the given ordered rules.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: rules}
}

// Derive maps failed threshold verdicts to alerts. Within one run at most one
// alert is emitted per (evaluator type, metric, severity) tuple. Safety
// failures floor at critical; non-recoverable safety results escalate to
// emergency.
func (e *Engine) Derive(results []*evaluator.Result, now time.Time) []Alert {
	var alerts []Alert
	seen := make(map[string]struct{})

	for _, result := range results {
		if result == nil {
			continue
		}

		// Map iteration order is random; sort keys so alert ordering is
		// reproducible across runs.
		keys := make([]string, 0, len(result.Thresholds))
		for key := range result.Thresholds {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			tr := result.Thresholds[key]
			if tr.Status != evaluator.ThresholdFail {
				continue
			}

			metricName := baseMetric(key)
			ruleName, severity := e.match(result.EvaluatorType, metricName)

			if result.EvaluatorType == evaluator.TypeSafety {
				if severityRank[severity] < severityRank[SeverityCritical] {
					severity = SeverityCritical
				}
				if result.NonRecoverable {
					severity = SeverityEmergency
				}
			}

			dedupKey := fmt.Sprintf("%s|%s|%s", result.EvaluatorType, metricName, severity)
			if _, dup := seen[dedupKey]; dup {
				continue
			}
			seen[dedupKey] = struct{}{}

			condition := tr.Reason
			if condition == "" {
				condition = fmt.Sprintf("threshold %s failed: observed %.4f, threshold %.4f", key, tr.Observed, tr.Threshold)
			}

			alerts = append(alerts, Alert{
				Name:          ruleName,
				Severity:      severity,
				Condition:     condition,
				Metric:        metricName,
				EvaluatorType: result.EvaluatorType,
				TriggeredAt:   now,
			})
		}
	}

	return alerts
}

// match returns the name and severity of the first rule matching the failed
// condition. Unmatched conditions default to warning.
func (e *Engine) match(etype evaluator.Type, metricName string) (string, Severity) {
	for _, rule := range e.rules {
		if rule.Evaluator != "" && rule.Evaluator != etype {
			continue
		}
		if rule.Metric != "" && rule.Metric != metricName {
			continue
		}
		return rule.Name, rule.Severity
	}
	return fmt.Sprintf("%s/%s", etype, metricName), SeverityWarning
}

// baseMetric strips the aggregate or method suffix from a threshold key.
func baseMetric(key string) string {
	if idx := strings.Index(key, ":"); idx >= 0 {
		return key[:idx]
	}
	return key
}
