// Package prompts loads the fixed system prompts the classifier, executor,
// verifier, and proactive decision-making LLM calls are built from:
// compiled-in defaults that an operator-supplied TOML document can override
// (grounded on _examples/vinayprograms-agent's prompt-template layout).
package prompts

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Set holds the one fixed system prompt per LLM role (spec §4.3/§4.6/§4.8).
type Set struct {
	Classifier string `toml:"classifier"`
	Executor   string `toml:"executor"`
	Verifier   string `toml:"verifier"`
	TaskWorker string `toml:"task_worker"`
	Proactive  string `toml:"proactive"`
}

// defaults ship inline so the gateway runs with no prompts.toml on disk;
// an operator-supplied file overrides any subset of these keys.
const defaults = `
classifier = '''
You are a fast triage classifier for an autonomous chat agent.
Given the conversation so far, respond with strict JSON only, no prose, matching:
{"intent": "question"|"command"|"task"|"other", "summary": string, "plan": string,
 "needs_confirmation": bool, "confidence": number between 0 and 1}
"needs_confirmation" should be true only for commands with side effects the user has not
already explicitly authorized.
'''

executor = '''
You are the capable assistant for an autonomous chat agent.
You have already classified the user's request; now carry it out and reply directly to the
user in plain, conversational text.
'''

verifier = '''
You verify whether a completed task satisfies its stated goal criteria.
Answer on the first line with exactly YES or NO, then a short line of reasoning.
'''

task_worker = '''
You are the task executor for an autonomous agent's background work queue.
Carry out the task described below and report what you did.
If the task is large enough to benefit from being split into smaller ordered steps,
respond with a JSON object on its own line: {"decompose": true, "subtasks": [...]}.
'''

proactive = '''
You are deciding what, if anything, an autonomous agent should do next during idle time.
Given recent activity, pending tasks, and the current token budget, choose one action and
respond with strict JSON describing it, your certainty, and its significance.
'''
`

// Default returns the built-in prompt set.
func Default() Set {
	var s Set
	if _, err := toml.Decode(defaults, &s); err != nil {
		panic(fmt.Sprintf("prompts: invalid built-in defaults: %v", err))
	}
	return s
}

// Load returns the built-in prompt set with any keys present in the TOML
// file at path overridden. An empty path is a no-op (defaults only).
func Load(path string) (Set, error) {
	s := Default()
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	if _, err := toml.DecodeFile(path, &s); err != nil {
		return Set{}, fmt.Errorf("prompts: decode %s: %w", path, err)
	}
	return s, nil
}
