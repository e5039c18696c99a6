package tasks

import "testing"

func TestParseVerification(t *testing.T) {
	cases := []struct {
		name string
		resp string
		want bool
	}{
		{"yes first line", "YES\nlooks complete", true},
		{"no first line", "NO\nmissing a step", false},
		{"lowercase yes", "yes, looks good", true},
		{"majority fallback yes", "Hmm. YES it seems so, definitely YES, though a NO concern remains", true},
		{"majority fallback no", "NO this failed, NO retry needed, not a YES", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseVerification(tc.resp); got != tc.want {
				t.Errorf("parseVerification(%q) = %v, want %v", tc.resp, got, tc.want)
			}
		})
	}
}

func TestParseDecomposition_Valid(t *testing.T) {
	resp := `Sure, here's the plan.
{"decompose": true, "subtasks": [{"title": "step one"}, {"title": "step two", "description": "do the thing"}]}
Let me know if that works.`

	specs, ok := parseDecomposition(resp)
	if !ok {
		t.Fatalf("expected decomposition to be recognized")
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(specs))
	}
	if specs[0].Title != "step one" || specs[1].Description != "do the thing" {
		t.Fatalf("unexpected subtask contents: %+v", specs)
	}
}

func TestParseDecomposition_TooFewSubtasks(t *testing.T) {
	resp := `{"decompose": true, "subtasks": [{"title": "only one"}]}`
	if _, ok := parseDecomposition(resp); ok {
		t.Fatalf("expected decomposition to be rejected with < 2 subtasks")
	}
}

func TestParseDecomposition_NotDecompose(t *testing.T) {
	resp := `I did the task directly, no JSON here.`
	if _, ok := parseDecomposition(resp); ok {
		t.Fatalf("expected no decomposition to be recognized")
	}
}

func TestParseDecomposition_BlankTitlesFiltered(t *testing.T) {
	resp := `{"decompose": true, "subtasks": [{"title": "real"}, {"title": "  "}, {"title": "also real"}]}`
	specs, ok := parseDecomposition(resp)
	if !ok {
		t.Fatalf("expected decomposition to be recognized with 2 valid titles")
	}
	if len(specs) != 2 {
		t.Fatalf("expected blank title filtered out, got %d subtasks", len(specs))
	}
}

func TestSubtaskTitles(t *testing.T) {
	specs := []subtaskSpec{{Title: "step one"}, {Title: "step two"}}
	if got := subtaskTitles(specs); got != "step one, step two" {
		t.Fatalf("subtaskTitles() = %q, want %q", got, "step one, step two")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected unchanged string, got %q", got)
	}
	if got := truncate("this is way too long", 7); got != "this is" {
		t.Fatalf("expected truncated string, got %q", got)
	}
}

func TestExtractJSON(t *testing.T) {
	s := `prose before {"a": {"b": 1}} prose after`
	if got := extractJSON(s); got != `{"a": {"b": 1}}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
	if got := extractJSON("no json here"); got != "" {
		t.Fatalf("expected empty extraction, got %q", got)
	}
}
