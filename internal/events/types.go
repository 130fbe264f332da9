package events

// EventType represents the type/severity of a Kubernetes Event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

const (
	// ReasonChildCreated indicates the operator created the child of a parent.
	ReasonChildCreated EventReason = "ChildCreated"

	// ReasonChildCreateFailed indicates creating the child failed.
	ReasonChildCreateFailed EventReason = "ChildCreateFailed"

	// ReasonStatusUpdated indicates a feedback loop patched a status.
	ReasonStatusUpdated EventReason = "StatusUpdated"

	// ReasonFeedbackFailed indicates a feedback loop or its patch failed.
	ReasonFeedbackFailed EventReason = "FeedbackFailed"

	// ReasonReconcilePanicked indicates a callback panicked during reconciliation.
	ReasonReconcilePanicked EventReason = "ReconcilePanicked"
)

// EventData holds the values substituted into message templates.
type EventData struct {
	Name      string
	Namespace string

	Operator  string
	ChildKind string
	ChildName string
	Target    string // parent or child, for status updates

	Error string
}

func getEventType(reason EventReason) EventType {
	switch reason {
	case ReasonChildCreateFailed, ReasonFeedbackFailed, ReasonReconcilePanicked:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
