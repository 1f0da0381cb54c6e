package deduction

import (
	"strings"
	"testing"
)

func TestParseRulesRoundTrip(t *testing.T) {
	raw := `[
		{
			"id": "r1",
			"name": "Perfume masculino 30ml",
			"conditions": [
				{"field": "genero", "operator": "eq", "value": "masculino"},
				{"field": "botella", "operator": "contains", "value": "30"}
			],
			"deductions": [
				{"type": "fixed", "inventario_id": "bot-30", "quantity": 1},
				{"type": "dynamic_essence", "quantity": 3}
			]
		}
	]`

	rules, err := ParseRules(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("expected 1 rule, got %d", len(rules))
	}
	rule := rules[0]
	if rule.ID != "r1" || len(rule.Conditions) != 2 || len(rule.Deductions) != 2 {
		t.Fatalf("unexpected rule shape: %+v", rule)
	}
	if rule.Deductions[0].InventarioID != "bot-30" {
		t.Fatalf("expected fixed target bot-30, got %q", rule.Deductions[0].InventarioID)
	}
}

func TestParseRulesRejectsMalformedJSON(t *testing.T) {
	if _, err := ParseRules(`{"not": "a list"`); err == nil {
		t.Fatalf("expected malformed configuration to fail parsing")
	}
	if _, err := ParseRules(`{"id": "r1"}`); err == nil {
		t.Fatalf("expected non-array configuration to fail parsing")
	}
}

func TestLintRulesFlagsUnknownField(t *testing.T) {
	warnings := LintRules([]Rule{{
		ID:         "r1",
		Name:       "regla rara",
		Conditions: []Condition{{Field: "color_tapa", Operator: OpEquals, Value: "dorado"}},
		Deductions: []Deduction{{Type: DeductFixed, InventarioID: "x", Quantity: 1}},
	}})

	found := false
	for _, w := range warnings {
		if strings.Contains(w, "color_tapa") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a warning naming the unknown field, got %v", warnings)
	}
}

func TestLintRulesFlagsAuthoringMistakes(t *testing.T) {
	warnings := LintRules([]Rule{
		{
			ID:         "r1",
			Conditions: []Condition{{Field: "genero", Operator: "regex", Value: "masc.*"}},
			Deductions: []Deduction{{Type: DeductFixed, Quantity: 0}},
		},
		{ID: "r2"},
	})

	wantFragments := []string{"operador", "inventario_id", "cantidad", "no tiene descuentos"}
	for _, fragment := range wantFragments {
		found := false
		for _, w := range warnings {
			if strings.Contains(w, fragment) {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("expected a warning containing %q, got %v", fragment, warnings)
		}
	}
}

func TestLintRulesCleanRuleSetHasNoWarnings(t *testing.T) {
	warnings := LintRules([]Rule{{
		ID:         "r1",
		Name:       "etiqueta por unidad",
		Conditions: []Condition{{Field: "devolvio_envase", Operator: OpEquals, Value: "No"}},
		Deductions: []Deduction{{Type: DeductDynamicLabel, Quantity: 1}},
	}})
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}
}
