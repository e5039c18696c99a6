package proactive

import "testing"

func TestParseDecision_ExtractsFirstBalancedObject(t *testing.T) {
	text := `Sure, here's what I'll do next.
{"action": "meditate", "certainty": 0.9, "significance": 0.1, "type": "internal", "details": {"duration": 120}}
Hope that helps.`

	d, ok := ParseDecision(text)
	if !ok {
		t.Fatalf("expected decision to parse")
	}
	if d.Action != ActionMeditate || d.Certainty != 0.9 {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDecision_NoObject(t *testing.T) {
	if _, ok := ParseDecision("no json here"); ok {
		t.Fatalf("expected parse failure")
	}
}

func TestValidateDecision(t *testing.T) {
	cases := []struct {
		name    string
		d       Decision
		wantErr bool
	}{
		{
			name: "valid meditate",
			d: Decision{Action: ActionMeditate, Certainty: 0.5, Significance: 0.1, Type: DecisionInternal,
				Details: map[string]any{"duration": 60}},
			wantErr: false,
		},
		{
			name:    "unknown action",
			d:       Decision{Action: "dance", Certainty: 0.5, Type: DecisionInternal, Details: map[string]any{}},
			wantErr: true,
		},
		{
			name: "certainty out of range",
			d: Decision{Action: ActionMeditate, Certainty: 1.5, Type: DecisionInternal,
				Details: map[string]any{"duration": 1}},
			wantErr: true,
		},
		{
			name:    "invalid type",
			d:       Decision{Action: ActionMeditate, Certainty: 0.5, Type: "sideways", Details: map[string]any{"duration": 1}},
			wantErr: true,
		},
		{
			name: "missing required detail field",
			d: Decision{Action: ActionAskMaster, Certainty: 0.5, Type: DecisionExternal,
				Details: map[string]any{"question": "why?"}},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDecision(&tc.d)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateDecision() err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestShouldExecuteAutonomously(t *testing.T) {
	if !ShouldExecuteAutonomously(&Decision{Certainty: 0.8}) {
		t.Fatalf("0.8 should clear the autonomy threshold")
	}
	if ShouldExecuteAutonomously(&Decision{Certainty: 0.79}) {
		t.Fatalf("0.79 should not clear the autonomy threshold")
	}
}

func TestShouldNotifyOperator(t *testing.T) {
	if !ShouldNotifyOperator(&Decision{Significance: 0.8}) {
		t.Fatalf("0.8 should clear the significance threshold")
	}
	if ShouldNotifyOperator(&Decision{Significance: 0.79}) {
		t.Fatalf("0.79 should not clear the significance threshold")
	}
}
