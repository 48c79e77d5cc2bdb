package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/healme/healme-chat/internal/chat"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher is the local echo outbox. Every echo the engine keeps locally is
// published so it can be reconciled with the backend later.
type Publisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

type EchoEvent struct {
	EventID       string    `json:"event_id"`
	PlaceholderID int64     `json:"placeholder_id"`
	PatientID     uint64    `json:"patient_id"`
	TherapistID   uint64    `json:"therapist_id"`
	SenderRole    chat.Role `json:"sender_type"`
	Content       string    `json:"contenu"`
	Date          time.Time `json:"date"`
}

// NewEchoEvent builds the outbox event of an echo. Its id is chat.EchoID, so the
// worker's insert and chatd's direct ledger write land on the same row.
func NewEchoEvent(m chat.Message) (EchoEvent, error) {
	id, err := chat.EchoID(m)
	if err != nil {
		return EchoEvent{}, err
	}
	return EchoEvent{
		EventID:       id,
		PlaceholderID: m.ID,
		PatientID:     m.PatientID,
		TherapistID:   m.TherapistID,
		SenderRole:    m.SenderRole,
		Content:       m.Content,
		Date:          m.Date,
	}, nil
}

// DecodeEchoEvent parses a delivery body and rejects events that cannot be stored.
func DecodeEchoEvent(body []byte) (EchoEvent, error) {
	var ev EchoEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return EchoEvent{}, err
	}
	if ev.EventID == "" {
		return EchoEvent{}, errors.New("echo event: missing event_id")
	}
	if ev.PatientID == 0 || ev.TherapistID == 0 {
		return EchoEvent{}, errors.New("echo event: missing conversation ids")
	}
	return ev, nil
}

// Record converts the event to a ledger row; the event id becomes the row id.
func (ev EchoEvent) Record() *chat.EchoRecord {
	return &chat.EchoRecord{
		ID:            ev.EventID,
		PlaceholderID: ev.PlaceholderID,
		PatientID:     ev.PatientID,
		TherapistID:   ev.TherapistID,
		SenderRole:    ev.SenderRole,
		Content:       ev.Content,
		SentAt:        ev.Date,
	}
}

// DeclareQueues sets up the main queue with its retry queue and DLQ.
func DeclareQueues(ch *amqp.Channel, queue string) error {
	mainQ := queue
	retryQ := queue + ".retry"
	dlqQ := queue + ".dlq"

	// DLQ
	if _, err := ch.QueueDeclare(
		dlqQ,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		return err
	}

	// Retry queue: message TTL -> dead-letter back to main queue
	if _, err := ch.QueueDeclare(
		retryQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": mainQ,
		},
	); err != nil {
		return err
	}

	// Main queue: dead-letter to DLQ on reject/nack(requeue=false)
	_, err := ch.QueueDeclare(
		mainQ,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": dlqQ,
		},
	)
	return err
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := DeclareQueues(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queue: queue}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RecordEcho satisfies chat.EchoSink.
func (p *Publisher) RecordEcho(ctx context.Context, m chat.Message) error {
	ev, err := NewEchoEvent(m)
	if err != nil {
		return err
	}
	return p.PublishEcho(ctx, ev)
}

func (p *Publisher) PublishEcho(ctx context.Context, ev EchoEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",      // default exchange
		p.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.EventID,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}
