package models

import "time"

// ReEntryType controls whether a contact may be enrolled again after a
// previous run through the same journey.
type ReEntryType string

const (
	ReEntryAlways   ReEntryType = "always"   // No restriction
	ReEntryOnce     ReEntryType = "once"     // One execution ever, regardless of outcome
	ReEntryCooldown ReEntryType = "cooldown" // Re-entry after a quiet period
)

// ReEntryRule is the re-entry policy attached to a journey. An empty Type
// is allowed on drafts and defaulted by the service; the type is concrete
// by the time a version is published.
type ReEntryRule struct {
	Type         ReEntryType `json:"type"                    validate:"omitempty,oneof=always once cooldown"`
	CooldownDays int         `json:"cooldown_days,omitempty" validate:"min=0"`
}

// Cooldown returns the cooldown period as a duration.
func (r ReEntryRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownDays) * 24 * time.Hour
}

// FrequencyCap limits how many executions a contact may enter within a
// sliding window.
type FrequencyCap struct {
	MaxCount   int `json:"max_count"   validate:"min=1"`
	WindowDays int `json:"window_days" validate:"min=1"`
}

// Window returns the cap window as a duration.
func (f FrequencyCap) Window() time.Duration {
	return time.Duration(f.WindowDays) * 24 * time.Hour
}

// Goal describes the conversion condition of a journey. When ExitOnComplete
// is set, an execution whose contact satisfies the goal is exited before the
// next step dispatch.
type Goal struct {
	Predicate      *Predicate `json:"predicate"`
	ExitOnComplete bool       `json:"exit_on_complete"`
}

// JourneySettings groups the admission and goal policy for a journey. They
// are snapshotted into each published version.
type JourneySettings struct {
	ReEntry      ReEntryRule   `json:"re_entry"`
	FrequencyCap *FrequencyCap `json:"frequency_cap,omitempty"`
	Goal         *Goal         `json:"goal,omitempty"`
}
