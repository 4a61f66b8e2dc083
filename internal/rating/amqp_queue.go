package rating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/property-booking/backend/internal/storage"
)

// DefaultQueueName is the AMQP queue used when none is configured.
const DefaultQueueName = "rating_recalculations"

// RecalculationMessage is the body of a queued recalculation.
type RecalculationMessage struct {
	PropertyID int64     `json:"property_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// AMQPQueue publishes recalculations to a durable RabbitMQ queue and consumes
// them with manual acknowledgement. A failed recalculation is nacked with
// requeue, so every message is processed at least once.
type AMQPQueue struct {
	connection *amqp.Connection
	publishCh  *amqp.Channel
	consumeCh  *amqp.Channel
	queueName  string
	recalc     *Recalculator

	publishMu sync.Mutex
}

// NewAMQPQueue connects to RabbitMQ and declares the queue.
func NewAMQPQueue(url, queueName string, recalc *Recalculator) (*AMQPQueue, error) {
	if queueName == "" {
		queueName = DefaultQueueName
	}

	log.Printf("Connecting to RabbitMQ for rating queue %q", queueName)
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to RabbitMQ: %w", err)
	}

	publishCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening publish channel: %w", err)
	}

	consumeCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening consume channel: %w", err)
	}

	_, err = publishCh.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declaring queue: %w", err)
	}

	return &AMQPQueue{
		connection: conn,
		publishCh:  publishCh,
		consumeCh:  consumeCh,
		queueName:  queueName,
		recalc:     recalc,
	}, nil
}

// Enqueue publishes a persistent recalculation message.
func (q *AMQPQueue) Enqueue(ctx context.Context, propertyID int64) error {
	body, err := json.Marshal(RecalculationMessage{PropertyID: propertyID, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	err = q.publishCh.PublishWithContext(ctx,
		"",          // exchange
		q.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publishing rating job: %w", err)
	}
	return nil
}

// Start registers the consumer and processes messages until Close.
func (q *AMQPQueue) Start() error {
	log.Printf("Starting rating consumer for queue '%s'", q.queueName)

	if err := q.consumeCh.Qos(
		10,    // prefetch count
		0,     // prefetch size
		false, // global
	); err != nil {
		return fmt.Errorf("setting QoS: %w", err)
	}

	msgs, err := q.consumeCh.Consume(
		q.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("registering consumer: %w", err)
	}

	go func() {
		for msg := range msgs {
			q.processMessage(msg)
		}
		log.Printf("Rating consumer for queue '%s' stopped", q.queueName)
	}()

	return nil
}

// processMessage recalculates one property and acknowledges the delivery.
func (q *AMQPQueue) processMessage(msg amqp.Delivery) {
	var m RecalculationMessage
	if err := json.Unmarshal(msg.Body, &m); err != nil || m.PropertyID <= 0 {
		log.Printf("Discarding malformed rating message: %s", string(msg.Body))
		msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := q.recalc.Recalculate(ctx, m.PropertyID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Printf("Dropping rating message for missing property %d", m.PropertyID)
			msg.Ack(false)
			return
		}
		log.Printf("Rating recalculation failed for property %d, requeueing: %v", m.PropertyID, err)
		msg.Nack(false, true)
		return
	}

	if err := msg.Ack(false); err != nil {
		log.Printf("Error acknowledging rating message: %v", err)
	}
}

// Close stops consuming and closes the channels and connection.
func (q *AMQPQueue) Close() error {
	log.Printf("Closing rating queue connections")

	var errs []error
	if err := q.consumeCh.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing consume channel: %w", err))
	}
	if err := q.publishCh.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing publish channel: %w", err))
	}
	if err := q.connection.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing connection: %w", err))
	}

	return errors.Join(errs...)
}
