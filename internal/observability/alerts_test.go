package observability

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertFile struct {
	Groups []alertGroup `yaml:"groups"`
}

var metricRef = regexp.MustCompile(`\b(?:ledger|odyssey|inventory)_[a-z_]+`)

func loadLedgerRules(t *testing.T) []alertRule {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "ledger.yml"))
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}
	var rules alertFile
	if err := yaml.Unmarshal(data, &rules); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}
	for _, group := range rules.Groups {
		if group.Name == "ledger" {
			return group.Rules
		}
	}
	t.Fatal("ledger alert group missing")
	return nil
}

func TestLedgerAlertRules(t *testing.T) {
	rules := loadLedgerRules(t)

	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"LedgerInvariantViolation": {severity: "critical", runbook: "docs/runbook-ledger.md#invariant-violation"},
		"PostingFailureRate":       {severity: "warning", runbook: "docs/runbook-ledger.md#posting-failures"},
		"HighLatency":              {severity: "warning", runbook: "docs/runbook-ledger.md#high-latency"},
		"IntegrityJobFailing":      {severity: "warning", runbook: "docs/runbook-ledger.md#integrity-job"},
		"IntegrityScanStale":       {severity: "warning", runbook: "docs/runbook-ledger.md#integrity-job"},
	}

	if len(rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(rules))
	}

	for _, rule := range rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if rule.Expr == "" {
			t.Fatalf("rule %s must define an expression", rule.Alert)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}

// Every metric an alert queries must be one the binaries export.
func TestAlertExpressionsReferenceExportedMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObservePosting(accounting.ResultPosted, 2)
	m.ObservePosting(accounting.ResultFailed, 0)
	m.Jobs.AddViolations("unbalanced_batch", 1, 1)
	_ = m.Jobs.Track("ledger:gl_integrity").End(nil)
	_ = m.Jobs.Track("ledger:gl_integrity").End(errors.New("boom"))
	m.requestDuration.WithLabelValues("/api/v1/reports/trial-balance").Observe(0.2)

	families, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	exported := make(map[string]bool, len(families))
	for _, f := range families {
		exported[f.GetName()] = true
	}

	for _, rule := range loadLedgerRules(t) {
		for _, name := range metricRef.FindAllString(rule.Expr, -1) {
			name = strings.TrimSuffix(name, "_bucket")
			if !exported[name] {
				t.Errorf("rule %s queries %s which is not exported", rule.Alert, name)
			}
		}
	}
}
