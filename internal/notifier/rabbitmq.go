package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"portal_sync/internal/domain"
)

// RabbitMQ broadcasts publication state changes for out-of-core
// consumers (admin UI refresh, alerting). It is not the job queue: the
// queue is a Postgres table, and these events are best-effort.
type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// PublicationEvent is the wire shape of one state change.
type PublicationEvent struct {
	EventID    string                   `json:"event_id"`
	PortalID   int64                    `json:"portal_id"`
	PortalSlug string                   `json:"portal_slug"`
	ListingID  int64                    `json:"listing_id"`
	Status     domain.PublicationStatus `json:"status"`
	ExternalID *string                  `json:"external_id,omitempty"`
	LastError  *string                  `json:"last_error,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
}

func (r *RabbitMQ) PublicationChanged(ctx context.Context, portal *domain.Portal, pub *domain.Publication) error {
	event := PublicationEvent{
		EventID:    uuid.NewString(),
		PortalID:   portal.ID,
		PortalSlug: portal.Slug,
		ListingID:  pub.ListingID,
		Status:     pub.Status,
		ExternalID: pub.ExternalID,
		LastError:  pub.LastError,
		Timestamp:  time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	r.logger.Debug("published publication event",
		"portal", portal.Slug,
		"listing_id", pub.ListingID,
		"status", pub.Status,
	)

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
