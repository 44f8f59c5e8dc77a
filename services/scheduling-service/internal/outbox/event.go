package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType (event per topic).
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// Event types emitted by the scheduling engine.
const (
	EventReservationPromoted = "scheduling.reservation.promoted.v1"
	EventBookingCancelled    = "scheduling.booking.cancelled.v1"
	EventWindowRestored      = "scheduling.window.restored.v1"
)
