// Package model defines the provider-agnostic abstractions used to obtain an
// agent's next utterance from a language model.
//
// Core pieces:
//   - Model unifies streaming and non-streaming generation for a provider
//   - ChatCompleter is the narrow collaborator the engine calls per turn
//   - Router implements ChatCompleter by dispatching on an agent's provider
//   - MockModel gives deterministic output for tests and demos
//
// Providers (openai, anthropic subpackages) implement Model so the engine
// remains decoupled from vendor SDKs.
package model
