package dispatch

import "context"

// ContactDirectory resolves the current attributes of a contact. The executor
// reads it before every step so predicates and goals see fresh values.
type ContactDirectory interface {
	Attributes(ctx context.Context, organizationID, contactID string) (map[string]any, error)
}

// DeliveryClient sends messages to contacts. Returns the provider message id.
type DeliveryClient interface {
	SendEmail(ctx context.Context, organizationID, contactID, templateID string, variables map[string]any) (string, error)
}

// CRMClient writes contact attributes back to the system of record.
type CRMClient interface {
	UpdateAttribute(ctx context.Context, organizationID, contactID, attribute string, value any) error
}

// ScoringClient adjusts a contact's engagement score and returns the new
// value.
type ScoringClient interface {
	AdjustScore(ctx context.Context, organizationID, contactID string, delta float64) (float64, error)
}

// SegmentClient resolves segment membership for schedule and segment
// triggers.
type SegmentClient interface {
	ContactsInSegment(ctx context.Context, organizationID, segmentID string) ([]string, error)
}
