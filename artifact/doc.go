// Package artifact stores exported conversation transcripts.
//
// A Transcript is a frozen copy of a conversation view (global or filtered)
// taken at a point in time. Stores keep transcripts grouped by world and
// chat; InMemoryStore serves tests and single-process use, DirStore keeps one
// JSON document per transcript on disk.
package artifact
