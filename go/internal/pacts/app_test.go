package pacts

import (
	"testing"

	"github.com/focuspact/focuspact/go/internal/models"
)

func TestResolveRulesDefaults(t *testing.T) {
	rules := resolveRules(PactInput{}, models.DefaultPointRules())
	if rules.Violation != -100 || rules.Completion != 20 {
		t.Fatalf("rules = %+v, want defaults {-100 20}", rules)
	}
}

func TestResolveRulesOverrides(t *testing.T) {
	violation := -50
	completion := 35
	rules := resolveRules(PactInput{
		ViolationPoints:  &violation,
		CompletionPoints: &completion,
	}, models.DefaultPointRules())

	if rules.Violation != -50 {
		t.Fatalf("violation = %d, want -50", rules.Violation)
	}
	if rules.Completion != 35 {
		t.Fatalf("completion = %d, want 35", rules.Completion)
	}
}

func TestResolveRulesPartialOverride(t *testing.T) {
	completion := 50
	base := models.PointRules{Violation: -10, Completion: 10}
	rules := resolveRules(PactInput{CompletionPoints: &completion}, base)

	if rules.Violation != -10 {
		t.Fatalf("violation = %d, want base -10 preserved", rules.Violation)
	}
	if rules.Completion != 50 {
		t.Fatalf("completion = %d, want 50", rules.Completion)
	}
}

func TestZeroOverrideIsHonored(t *testing.T) {
	zero := 0
	rules := resolveRules(PactInput{ViolationPoints: &zero}, models.DefaultPointRules())
	if rules.Violation != 0 {
		t.Fatalf("violation = %d, want explicit 0", rules.Violation)
	}
}
