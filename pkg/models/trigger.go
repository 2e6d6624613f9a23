package models

// TriggerType is the kind of admission rule a trigger expresses.
type TriggerType string

const (
	TriggerTypeEvent    TriggerType = "event"    // External event of a given type
	TriggerTypeSchedule TriggerType = "schedule" // Cron schedule
	TriggerTypeSegment  TriggerType = "segment"  // Segment membership change
)

// JourneyTrigger binds an admission rule to a journey, not to a version.
// Triggers can be edited independently of graph publishing; edits take effect
// for future evaluations only.
type JourneyTrigger struct {
	ID        string      `json:"id"   validate:"required"`
	JourneyID string      `json:"journey_id"`
	Type      TriggerType `json:"type" validate:"required,oneof=event schedule segment"`
	// EventType filters event triggers; SegmentID filters segment triggers.
	EventType string `json:"event_type,omitempty"`
	SegmentID string `json:"segment_id,omitempty"`
	// CronExpr drives schedule triggers (robfig/cron syntax).
	CronExpr string `json:"cron_expr,omitempty"`
	Enabled  bool   `json:"enabled"`
}
