// Package events defines the commands and lifecycle notifications exchanged
// over the journey event bus.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/campaignkit/journey/pkg/models"
)

type EventType string

// Bus topics. Commands drive the engine; events report what it did.
const CommandTopic = "journey.commands"
const EventTopic = "journey.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Commands in.
	ContactTriggeredEvent EventType = "journey.contact.triggered"
	ExecuteStepEvent      EventType = "journey.step.execute"

	// Execution lifecycle events out.
	ExecutionStartedEvent   EventType = "journey.execution.started"
	ExecutionCompletedEvent EventType = "journey.execution.completed"
	ExecutionExitedEvent    EventType = "journey.execution.exited"
	ExecutionFailedEvent    EventType = "journey.execution.failed"
	EntryDeniedEvent        EventType = "journey.entry.denied"
	StepCompletedEvent      EventType = "journey.step.completed"

	// Journey lifecycle events out.
	JourneyPublishedEvent EventType = "journey.published"
	JourneyPausedEvent    EventType = "journey.paused"
	JourneyResumedEvent   EventType = "journey.resumed"
)

type BaseEvent struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Timestamp      time.Time      `json:"timestamp"`
	OrganizationID string         `json:"organization_id"`
	JourneyID      string         `json:"journey_id"`
	WorkerID       string         `json:"worker_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, organizationID, journeyID string) BaseEvent {
	return BaseEvent{
		ID:             uuid.New().String(),
		Type:           eventType,
		Timestamp:      time.Now().UTC(),
		OrganizationID: organizationID,
		JourneyID:      journeyID,
		Metadata:       make(map[string]any),
	}
}

// ContactTriggered is the enrollment command: a contact matched one of the
// journey's triggers and should be run through the entry guard.
type ContactTriggered struct {
	BaseEvent

	TriggerID   string         `json:"trigger_id"`
	ContactID   string         `json:"contact_id"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func (c ContactTriggered) GetType() EventType {
	return ContactTriggeredEvent
}

// ExecuteStep is the advance command. (ExecutionID, StepID, Attempt) is the
// idempotency key; the transport may deliver it more than once and out of
// order, the executor absorbs duplicates.
type ExecuteStep struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	Attempt     int    `json:"attempt"`
}

func (e ExecuteStep) GetType() EventType {
	return ExecuteStepEvent
}

// ExecutionStarted is published after a contact is admitted and an execution
// is created at the version's entry step.
type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	VersionID   string `json:"version_id"`
	ContactID   string `json:"contact_id"`
	EntryStepID string `json:"entry_step_id"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// EntryDenied records a negative admission decision. It is a normal outcome,
// not an error.
type EntryDenied struct {
	BaseEvent

	ContactID string `json:"contact_id"`
	Reason    string `json:"reason"`
}

func (e EntryDenied) GetType() EventType {
	return EntryDeniedEvent
}

type StepCompleted struct {
	BaseEvent

	ExecutionID string                     `json:"execution_id"`
	StepID      string                     `json:"step_id"`
	Attempt     int                        `json:"attempt"`
	Status      models.StepExecutionStatus `json:"status"`
	Result      map[string]any             `json:"result,omitempty"`
	DurationMs  int64                      `json:"duration_ms"`
}

func (s StepCompleted) GetType() EventType {
	return StepCompletedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	LastStepID  string `json:"last_step_id"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionExited struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	GoalMet     bool   `json:"goal_met"`
}

func (e ExecutionExited) GetType() EventType {
	return ExecutionExitedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	Attempt     int    `json:"attempt"`
	Error       string `json:"error"`
	// Permanent distinguishes configuration errors (never retried) from a
	// retry budget exhausted by transient dispatch failures.
	Permanent bool `json:"permanent"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type JourneyPublished struct {
	BaseEvent

	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
}

func (j JourneyPublished) GetType() EventType {
	return JourneyPublishedEvent
}

type JourneyPaused struct {
	BaseEvent
}

func (j JourneyPaused) GetType() EventType {
	return JourneyPausedEvent
}

type JourneyResumed struct {
	BaseEvent
}

func (j JourneyResumed) GetType() EventType {
	return JourneyResumedEvent
}
