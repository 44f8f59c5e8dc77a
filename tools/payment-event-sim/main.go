// payment-event-sim publishes a synthetic checkout-completed event so the
// promotion path can be exercised locally without the payment service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/tutorslot/tutorslot/libs/kafkax"
)

func main() {
	var (
		brokers       = flag.String("brokers", getenv("KAFKA_BROKERS", "localhost:9092"), "kafka brokers, comma separated")
		topic         = flag.String("topic", getenv("KAFKA_TOPIC", "payment.checkout.completed.v1"), "topic to publish to")
		reservationID = flag.String("reservation-id", getenv("RESERVATION_ID", ""), "reservation to promote")
		notes         = flag.String("notes", "", "booking notes")
	)
	flag.Parse()

	if strings.TrimSpace(*reservationID) == "" {
		fatal("RESERVATION_ID is required")
	}

	payload, err := json.Marshal(map[string]any{
		"reservation_id": *reservationID,
		"notes":          *notes,
		"completed_at":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		fatal(err.Error())
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(kafkax.SplitBrokers(*brokers)...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	eventID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(*reservationID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(*topic)},
		},
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published %s event_id=%s reservation_id=%s\n", *topic, eventID, *reservationID)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
