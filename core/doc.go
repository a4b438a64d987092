// Package core provides the foundational domain types and interfaces used by
// agentworld. It defines the core abstractions for:
//
//   - Messages (immutable, addressed chat records)
//   - Agent profiles (identity, provider config and turn budget counters)
//   - Memory entries (per-agent, perspective-framed copies of messages)
//   - Events (outbound notifications handed to a Publisher)
//   - Pluggable stores for agent memory and chat logs
//
// The package intentionally keeps implementation concerns (routing, storage
// engines, provider SDKs) out of scope, exposing small interfaces to enable
// custom backends and extensions.
package core
