// Package proactive implements the Proactive Scheduler (C7), Decision
// Engine (C8), and Action Handlers (C9): the idle-time loop that decides
// what an always-on agent should do next and carries it out, grounded on
// original_source/app/workers/proactive.py, decision_engine.py, and
// app/actions/*.py — consolidated here into one package rather than the
// original's worker/engine/actions split, since none of the three pieces
// has a life of its own outside this loop.
package proactive

import (
	"encoding/json"
	"fmt"
)

// Action is the closed set of things a decision can ask for.
type Action string

const (
	ActionDevelopSkill      Action = "develop_skill"
	ActionWorkOnTask        Action = "work_on_task"
	ActionCommunicate       Action = "communicate"
	ActionMeditate          Action = "meditate"
	ActionAskMaster         Action = "ask_master"
	ActionProactiveOutreach Action = "proactive_outreach"
)

// DecisionType distinguishes an action that stays within the agent
// (internal) from one that reaches the operator or outside world (external).
type DecisionType string

const (
	DecisionInternal DecisionType = "internal"
	DecisionExternal DecisionType = "external"
)

const (
	// CertaintyThreshold gates autonomous execution: below this, the
	// decision goes to the operator for approval instead.
	CertaintyThreshold = 0.8
	// SignificanceThreshold gates an operator notification of the result.
	SignificanceThreshold = 0.8
)

// Decision is Claude's structured answer to "what should I do next",
// parsed from strict JSON.
type Decision struct {
	Action       Action         `json:"action"`
	Certainty    float64        `json:"certainty"`
	Significance float64        `json:"significance"`
	Type         DecisionType   `json:"type"`
	Reasoning    string         `json:"reasoning,omitempty"`
	Details      map[string]any `json:"details"`
}

// requiredDetailFields mirrors decision_engine.py's required_fields table
// exactly — every action's detail payload must carry these keys or the
// decision is rejected before dispatch.
var requiredDetailFields = map[Action][]string{
	ActionDevelopSkill:      {"skill_name", "approach"},
	ActionWorkOnTask:        {"task_id", "approach"},
	ActionCommunicate:       {"recipient", "message"},
	ActionMeditate:          {"duration"},
	ActionAskMaster:         {"question", "context"},
	ActionProactiveOutreach: {"chat_id", "message", "purpose"},
}

var validActions = map[Action]bool{
	ActionDevelopSkill:      true,
	ActionWorkOnTask:        true,
	ActionCommunicate:       true,
	ActionMeditate:          true,
	ActionAskMaster:         true,
	ActionProactiveOutreach: true,
}

// ParseDecision extracts the first balanced JSON object from an LLM
// response and decodes it into a Decision. Returns ok=false when no
// object is found or it doesn't decode, rather than an error — a
// malformed decision is an unremarkable, expected outcome of an LLM call,
// not a program fault.
func ParseDecision(text string) (*Decision, bool) {
	raw := extractJSON(text)
	if raw == "" {
		return nil, false
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, false
	}
	return &d, true
}

// ValidateDecision checks the decision against the closed action/type
// vocabularies, the certainty/significance ranges, and the per-action
// required detail fields.
func ValidateDecision(d *Decision) error {
	if !validActions[d.Action] {
		return fmt.Errorf("invalid action %q", d.Action)
	}
	if d.Certainty < 0 || d.Certainty > 1 {
		return fmt.Errorf("certainty %v out of range [0,1]", d.Certainty)
	}
	if d.Significance < 0 || d.Significance > 1 {
		return fmt.Errorf("significance %v out of range [0,1]", d.Significance)
	}
	if d.Type != DecisionInternal && d.Type != DecisionExternal {
		return fmt.Errorf("invalid type %q", d.Type)
	}
	for _, field := range requiredDetailFields[d.Action] {
		if _, ok := d.Details[field]; !ok {
			return fmt.Errorf("action %q missing required detail field %q", d.Action, field)
		}
	}
	return nil
}

// ShouldExecuteAutonomously reports whether the decision is confident
// enough to act on without operator approval.
func ShouldExecuteAutonomously(d *Decision) bool {
	return d.Certainty >= CertaintyThreshold
}

// ShouldNotifyOperator reports whether a successful result is significant
// enough to push to the operator rather than execute quietly.
func ShouldNotifyOperator(d *Decision) bool {
	return d.Significance >= SignificanceThreshold
}

// extractJSON trims a model response down to its first balanced JSON
// object, tolerating prose wrappers. Duplicated from the same
// brace-depth scanner used in internal/reactive and internal/tasks —
// each package keeps its own copy rather than sharing one, consistent
// with this codebase's existing convention for this particular helper.
func extractJSON(s string) string {
	start := -1
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				return s[start: i+1]
			}
		}
	}
	return ""
}
