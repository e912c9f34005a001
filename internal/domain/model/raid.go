// Package model holds the domain types of the synchronization engine: the
// raid structure, credentials and their fetched facts, per-account clear
// state, and the friend-sharing protocol state.
package model

// EncounterKind classifies an encounter within a raid wing.
type EncounterKind string

const (
	EncounterKindBoss       EncounterKind = "boss"
	EncounterKindCheckpoint EncounterKind = "checkpoint"
	EncounterKindUnknown    EncounterKind = "unknown"
)

// RaidEncounter is a single completable encounter.
type RaidEncounter struct {
	ID   string
	Kind EncounterKind
}

// RaidWing is an ordered list of encounters.
type RaidWing struct {
	ID         string
	Encounters []RaidEncounter
}

// RaidWings is the flattened raid structure: wings in release order, with the
// raid grouping of the remote API discarded. The structure is fetched once
// per process lifetime and treated as immutable.
type RaidWings struct {
	Wings []RaidWing
}

// EncounterCount returns the total number of encounters across all wings.
func (r *RaidWings) EncounterCount() int {
	n := 0
	for _, wing := range r.Wings {
		n += len(wing.Encounters)
	}
	return n
}
