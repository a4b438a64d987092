// Package agent owns the per-world agent roster and its mutable turn budget
// state. The package focuses on three concerns:
//
//  1. Manager: arena + id lookup for agent profiles, with a per-agent turn
//     slot that serializes the turns of one agent
//  2. Governor: the only mutator of LLM call counters (reset on human input,
//     increment on successful calls, limit checks and redirect messages)
//  3. Instruction: static or dynamic system prompt resolution
//
// Design principles:
//   - Minimal hidden global state, explicit wiring via engine.World
//   - Single writer per agent: counters change under that agent's lock only
//   - Snapshots out: callers never hold pointers into the arena
package agent
