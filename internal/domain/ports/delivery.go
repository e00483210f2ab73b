package ports

// DeliveryStatus is the outcome of delivering one event to one subscriber.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
	StatusDropped   DeliveryStatus = "dropped"
)

// DeliveryOutcome records what happened for one subscriber.
type DeliveryOutcome struct {
	SubscriberID string
	Status       DeliveryStatus
	Err          error
}

// DeliveryReport is the result of one Publish call.
type DeliveryReport struct {
	EventID  string
	Outcomes []DeliveryOutcome
}

// Outcome returns the outcome for a subscriber, if it was part of the dispatch.
func (r DeliveryReport) Outcome(subscriberID string) (DeliveryOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.SubscriberID == subscriberID {
			return o, true
		}
	}
	return DeliveryOutcome{}, false
}

// Count returns how many outcomes have the given status.
func (r DeliveryReport) Count(status DeliveryStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
