package reactive

import "testing"

func TestClassificationNormalize(t *testing.T) {
	cases := []struct {
		name           string
		in             classification
		wantIntent     string
		wantConfidence float64
	}{
		{"valid intent passes through", classification{Intent: "command", Confidence: 0.5}, "command", 0.5},
		{"unknown intent coerced to other", classification{Intent: "sing_a_song", Confidence: 0.5}, "other", 0.5},
		{"negative confidence clamped to 0", classification{Intent: "question", Confidence: -0.2}, "question", 0},
		{"confidence above 1 clamped to 1", classification{Intent: "task", Confidence: 1.4}, "task", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := tc.in
			c.normalize()
			if c.Intent != tc.wantIntent {
				t.Errorf("Intent = %q, want %q", c.Intent, tc.wantIntent)
			}
			if c.Confidence != tc.wantConfidence {
				t.Errorf("Confidence = %v, want %v", c.Confidence, tc.wantConfidence)
			}
		})
	}
}

func TestExtractJSON_BalancedObjectWithProseWrapper(t *testing.T) {
	in := `Here's my answer: {"intent":"question","confidence":0.9} thanks!`
	got := extractJSON(in)
	want := `{"intent":"question","confidence":0.9}`
	if got != want {
		t.Fatalf("extractJSON() = %q, want %q", got, want)
	}
}

func TestExtractJSON_NoObjectReturnsInput(t *testing.T) {
	in := "no json anywhere"
	if got := extractJSON(in); got != in {
		t.Fatalf("extractJSON() = %q, want input unchanged %q", got, in)
	}
}

func TestExtractJSON_NestedBraces(t *testing.T) {
	in := `{"task": {"nested": true}, "ok": 1}`
	if got := extractJSON(in); got != in {
		t.Fatalf("extractJSON() = %q, want %q", got, in)
	}
}
