package model

import "time"

// resetAnchor is a known weekly raid reset instant: Monday 07:30 UTC. All
// other resets are exact multiples of a week away from it.
var resetAnchor = time.Date(2019, time.June, 10, 7, 30, 0, 0, time.UTC)

const week = 7 * 24 * time.Hour

// LastRaidReset returns the most recent weekly reset at or before now.
func LastRaidReset(now time.Time) time.Time {
	rem := now.Sub(resetAnchor) % week
	if rem < 0 {
		rem += week
	}
	return now.Add(-rem)
}

// RaidClearState is one account's cached clear progress. CheckedAt is when
// this process fetched it; LastModified is the remote account's own
// last-update instant, which decides whether the record predates the current
// weekly reset.
type RaidClearState struct {
	FinishedEncounterIDs []string
	CheckedAt            time.Time
	LastModified         time.Time
}

// IsFresh reports whether the record postdates the most recent weekly reset.
// A record modified exactly at the reset instant counts as stale: the remote
// update cannot have observed the wiped week.
func (s RaidClearState) IsFresh(now time.Time) bool {
	return LastRaidReset(now).Before(s.LastModified)
}

// EffectiveFinished returns the finished encounter ids, or nil when the
// record predates the current reset and every encounter must be presented as
// unfinished. The raw cached list is never discarded.
func (s RaidClearState) EffectiveFinished(now time.Time) []string {
	if !s.IsFresh(now) {
		return nil
	}
	return s.FinishedEncounterIDs
}

// IsFinished reports whether the raw cached list contains the encounter.
func (s RaidClearState) IsFinished(encounterID string) bool {
	for _, id := range s.FinishedEncounterIDs {
		if id == encounterID {
			return true
		}
	}
	return false
}
