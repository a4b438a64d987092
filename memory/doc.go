// Package memory replicates chat messages into the private memories of every
// agent in a world and provides the process-local core.MemoryStore.
//
// Durable backends live in the sqlite and redis subpackages. Code depends on
// core.MemoryStore and selects a backend at wiring time.
package memory
