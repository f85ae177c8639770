package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"mistake-service/internal/feedback"
	"mistake-service/internal/metrics"
	"mistake-service/internal/models"
)

// FeedbackRecorder stores the mistakes extracted from one feedback event
type FeedbackRecorder interface {
	RecordMistakes(ctx context.Context, userID string, candidates []models.CandidateMistake) (models.RecordResult, error)
}

type ConsumerConfig struct {
	Exchange string
	Queue    string
	Prefetch int
}

type deliveryAction int

const (
	actionAck deliveryAction = iota
	actionRequeue
)

func (a deliveryAction) String() string {
	if a == actionRequeue {
		return "requeue"
	}
	return "ack"
}

// FeedbackConsumer drains the feedback work queue. Messages are acknowledged only
// after they are fully processed, so delivery is at-least-once.
type FeedbackConsumer struct {
	conn      *amqp091.Connection
	channel   *amqp091.Channel
	cfg       ConsumerConfig
	recorder  FeedbackRecorder
	dedup     DedupStore
	validate  *validator.Validate
	log       logrus.FieldLogger
	enabled   bool
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewFeedbackConsumer returns a disabled consumer when rabbitURI is empty.
// dedup may be nil, in which case redeliveries are processed again.
func NewFeedbackConsumer(rabbitURI string, cfg ConsumerConfig, recorder FeedbackRecorder, dedup DedupStore, log logrus.FieldLogger) (*FeedbackConsumer, error) {
	c := &FeedbackConsumer{
		cfg:      cfg,
		recorder: recorder,
		dedup:    dedup,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log.WithField("component", "feedback_consumer"),
		done:     make(chan struct{}),
	}

	if rabbitURI == "" {
		c.log.Warn("RabbitMQ URI is empty, feedback consumption is disabled")
		return c, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	queue, err := channel.QueueDeclare(
		cfg.Queue, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	err = channel.QueueBind(
		queue.Name,                      // queue name
		models.EventTypeFeedbackCreated, // routing key
		cfg.Exchange,                    // exchange
		false,                           // no-wait
		nil,                             // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to bind queue: %w", err)
	}

	c.conn = conn
	c.channel = channel
	c.cfg.Queue = queue.Name
	c.enabled = true
	return c, nil
}

func (c *FeedbackConsumer) Start() error {
	if !c.enabled {
		c.log.Info("feedback consumption is disabled")
		return nil
	}

	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 10
	}
	if err := c.channel.Qos(prefetch, 0, false); err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(
		c.cfg.Queue, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.wg.Add(1)
	go c.run(msgs)

	c.log.WithField("queue", c.cfg.Queue).Info("feedback consumer started, waiting for messages")
	return nil
}

func (c *FeedbackConsumer) run(msgs <-chan amqp091.Delivery) {
	defer c.wg.Done()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				c.log.Warn("delivery channel closed")
				return
			}
			c.handleDelivery(msg)
		}
	}
}

func (c *FeedbackConsumer) handleDelivery(msg amqp091.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	action := c.processMessage(ctx, msg.RoutingKey, msg.Body)

	var err error
	if action == actionRequeue {
		err = msg.Nack(false, true)
	} else {
		err = msg.Ack(false)
	}
	if err != nil {
		c.log.WithError(err).WithField("action", action.String()).Error("failed to settle delivery")
	}
}

// processMessage decides how a delivery is settled. Only transient store failures are
// requeued; anything that would fail again on redelivery is acknowledged and logged.
func (c *FeedbackConsumer) processMessage(ctx context.Context, routingKey string, body []byte) deliveryAction {
	log := c.log.WithField("routing_key", routingKey)

	if routingKey != models.EventTypeFeedbackCreated {
		log.Warn("unknown routing key, dropping message")
		metrics.FeedbackMessages.WithLabelValues("rejected").Inc()
		return actionAck
	}

	var evt models.FeedbackEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		log.WithError(err).Error("malformed feedback event, dropping message")
		metrics.FeedbackMessages.WithLabelValues("rejected").Inc()
		return actionAck
	}
	if err := c.validate.Struct(evt); err != nil {
		log.WithError(err).Error("invalid feedback event, dropping message")
		metrics.FeedbackMessages.WithLabelValues("rejected").Inc()
		return actionAck
	}

	log = log.WithFields(logrus.Fields{"event_id": evt.EventID, "user_id": evt.UserID})

	if evt.EventID != "" && c.dedup != nil {
		seen, err := c.dedup.Seen(ctx, evt.EventID)
		if err != nil {
			log.WithError(err).Warn("dedup lookup failed, processing anyway")
		} else if seen {
			log.Info("feedback event already processed, skipping")
			metrics.FeedbackMessages.WithLabelValues("duplicate").Inc()
			return actionAck
		}
	}

	detailed, err := feedback.Parse(evt.DetailedFeedback)
	if err != nil {
		log.WithError(err).Error("unreadable detailed feedback, dropping message")
		metrics.FeedbackMessages.WithLabelValues("rejected").Inc()
		return actionAck
	}

	candidates := feedback.Extract(evt.Transcription, detailed, evt.SituationContext)
	result, err := c.recorder.RecordMistakes(ctx, evt.UserID, candidates)
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			log.WithError(err).Error("feedback event rejected, dropping message")
			metrics.FeedbackMessages.WithLabelValues("rejected").Inc()
			return actionAck
		}
		log.WithError(err).WithField("processed", result.Processed).Error("failed to record mistakes, requeueing")
		metrics.FeedbackMessages.WithLabelValues("requeue").Inc()
		return actionRequeue
	}

	if evt.EventID != "" && c.dedup != nil {
		if err := c.dedup.MarkProcessed(ctx, evt.EventID); err != nil {
			log.WithError(err).Warn("failed to mark feedback event processed")
		}
	}

	log.WithFields(logrus.Fields{
		"processed": result.Processed,
		"created":   result.Created,
		"updated":   result.Updated,
		"skipped":   len(result.Skipped),
	}).Info("processed feedback event")
	metrics.FeedbackMessages.WithLabelValues("ack").Inc()
	return actionAck
}

// Close stops the worker, waits for the in-flight delivery and closes the connection
func (c *FeedbackConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()

		if !c.enabled {
			return
		}
		if c.channel != nil {
			if cerr := c.channel.Close(); cerr != nil {
				c.log.WithError(cerr).Warn("error closing RabbitMQ channel")
			}
		}
		if c.conn != nil {
			if cerr := c.conn.Close(); cerr != nil {
				err = fmt.Errorf("error closing RabbitMQ connection: %w", cerr)
			}
		}
	})
	return err
}
