// Package core defines the shared domain types for ClinSight: tabular
// previews, question tabs, visualization payloads, statistics rows, and
// the persisted session snapshot.
//
// The Golden Rule: core holds Domain Data only. It imports nothing but
// the standard library, so every other package can depend on it without
// dragging in transport, storage, or rendering concerns.
package core
