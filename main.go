// Command goclaw runs the always-on autonomous operator agent: a single
// process hosting a reactive loop (chat in, classified and optionally
// approved, Claude out) and a proactive loop (idle-time task execution
// and decision-making under a daily token budget).
package main

import "github.com/nextlevelbuilder/goclaw/cmd"

func main() {
	cmd.Execute()
}
