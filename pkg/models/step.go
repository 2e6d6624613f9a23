package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StepType is the closed set of node kinds a journey graph may contain. The
// executor dispatches on it exhaustively; adding a type means touching every
// switch over StepType.
type StepType string

const (
	StepTypeAction         StepType = "action"
	StepTypeWait           StepType = "wait"
	StepTypeConditionSplit StepType = "condition-split"
	StepTypeRandomSplit    StepType = "random-split"
	StepTypeExit           StepType = "exit"
)

// JourneyStep is a node in the journey graph. Exactly one of the type-specific
// config fields is set, matching Type. Steps are owned by a single version;
// publishing copies them, never shares them.
type JourneyStep struct {
	ID     string      `json:"id"   validate:"required"`
	Type   StepType    `json:"type" validate:"required,oneof=action wait condition-split random-split exit"`
	Name   string      `json:"name" validate:"required,min=1"`
	Action *ActionSpec `json:"action,omitempty"`
	Wait   *WaitSpec   `json:"wait,omitempty"`
	Edges  []*StepEdge `json:"edges"`
}

// ActionSpec configures an action step. ActionType selects the registered
// action implementation; Parameters are validated against its JSON schema at
// publish time.
type ActionSpec struct {
	ActionType string         `json:"action_type" validate:"required"`
	Parameters map[string]any `json:"parameters"`
}

// WaitSpec configures a wait step. The delay is a scheduled re-delivery of
// the next advance command, never a blocking sleep.
type WaitSpec struct {
	DelaySeconds int64 `json:"delay_seconds" validate:"min=1"`
}

// Delay returns the wait delay as a duration.
func (w WaitSpec) Delay() time.Duration {
	return time.Duration(w.DelaySeconds) * time.Second
}

// StepEdge is an outgoing edge from a step. Condition-split edges carry a
// predicate (or are flagged as the default edge); random-split edges carry a
// weight. Edge order is significant for both split kinds.
type StepEdge struct {
	ID           string     `json:"id"             validate:"required"`
	TargetStepID string     `json:"target_step_id" validate:"required"`
	Predicate    *Predicate `json:"predicate,omitempty"`
	Default      bool       `json:"default,omitempty"`
	Weight       float64    `json:"weight,omitempty"`
}

// PredicateOp is the comparison operator of a predicate.
type PredicateOp string

const (
	OpEquals      PredicateOp = "eq"
	OpNotEquals   PredicateOp = "neq"
	OpGreaterThan PredicateOp = "gt"
	OpGreaterOrEq PredicateOp = "gte"
	OpLessThan    PredicateOp = "lt"
	OpLessOrEq    PredicateOp = "lte"
	OpContains    PredicateOp = "contains"
	OpExists      PredicateOp = "exists"
)

// Predicate is a single comparison against a contact attribute.
type Predicate struct {
	Attribute string      `json:"attribute" validate:"required"`
	Op        PredicateOp `json:"op"        validate:"required,oneof=eq neq gt gte lt lte contains exists"`
	Value     any         `json:"value,omitempty"`
}

// Matches evaluates the predicate against resolved contact attributes. A
// missing attribute fails every operator except "exists" (which it fails too)
// and "neq" (a missing value is not equal to anything).
func (p *Predicate) Matches(attrs map[string]any) (bool, error) {
	value, present := attrs[p.Attribute]

	switch p.Op {
	case OpExists:
		return present, nil
	case OpEquals:
		if !present {
			return false, nil
		}

		return compareEqual(value, p.Value), nil
	case OpNotEquals:
		if !present {
			return true, nil
		}

		return !compareEqual(value, p.Value), nil
	case OpContains:
		if !present {
			return false, nil
		}

		return strings.Contains(fmt.Sprintf("%v", value), fmt.Sprintf("%v", p.Value)), nil
	case OpGreaterThan, OpGreaterOrEq, OpLessThan, OpLessOrEq:
		if !present {
			return false, nil
		}

		left, err := toFloat(value)
		if err != nil {
			return false, fmt.Errorf("attribute %q: %w", p.Attribute, err)
		}

		right, err := toFloat(p.Value)
		if err != nil {
			return false, fmt.Errorf("predicate value for %q: %w", p.Attribute, err)
		}

		switch p.Op {
		case OpGreaterThan:
			return left > right, nil
		case OpGreaterOrEq:
			return left >= right, nil
		case OpLessThan:
			return left < right, nil
		default:
			return left <= right, nil
		}
	default:
		return false, fmt.Errorf("unsupported predicate operator: %s", p.Op)
	}
}

func compareEqual(left, right any) bool {
	lf, lerr := toFloat(left)
	rf, rerr := toFloat(right)

	if lerr == nil && rerr == nil {
		return lf == rf
	}

	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number: %w", v, err)
		}

		return f, nil
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}
