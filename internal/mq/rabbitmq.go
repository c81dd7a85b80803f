package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bloglist/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes each channel to a fanout exchange of the same name.
// Subscribers consume from a queue bound to that exchange, so every consumer
// group receives every message.
type RabbitMQClient struct {
	conn *amqp.Connection

	mu        sync.Mutex
	publisher *amqp.Channel
	declared  map[string]bool

	queueDurable    bool
	queueAutoDelete bool
	queueSuffix     string
	prefetchCount   int
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQClient{
		conn:            conn,
		publisher:       ch,
		declared:        make(map[string]bool),
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		queueSuffix:     cfg.QueueSuffix,
		prefetchCount:   cfg.PrefetchCount,
	}, nil
}

// Publish sends a persistent message to the channel's exchange. The amqp
// channel is shared, so publishes are serialized.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.declared[channel] {
		if err := r.declareExchange(r.publisher, channel); err != nil {
			return "", err
		}
		r.declared[channel] = true
	}

	messageID := newMessageID()
	err := r.publisher.PublishWithContext(ctx, channel, "", false, false, amqp.Publishing{
		ContentType:  contentType(attrs),
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         attrs["event"],
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe consumes the channel on a dedicated amqp channel until ctx is
// done. A message whose handler fails is requeued once and dropped if it
// fails again on redelivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Close()
	}()

	if r.prefetchCount > 0 {
		if err := ch.Qos(r.prefetchCount, 0, false); err != nil {
			return err
		}
	}

	queue, err := r.bindQueue(ch, channel)
	if err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("consumer-%s", newMessageID())
	deliveries, err := ch.Consume(queue, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = ch.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the publishing channel and the connection.
func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.publisher != nil {
		_ = r.publisher.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(name, amqp.ExchangeFanout, true, false, false, false, nil)
}

func (r *RabbitMQClient) bindQueue(ch *amqp.Channel, channel string) (string, error) {
	if err := r.declareExchange(ch, channel); err != nil {
		return "", err
	}

	queue, err := ch.QueueDeclare(r.queueName(channel), r.queueDurable, r.queueAutoDelete, false, false, nil)
	if err != nil {
		return "", err
	}
	if err := ch.QueueBind(queue.Name, "", channel, false, nil); err != nil {
		return "", err
	}
	return queue.Name, nil
}

func (r *RabbitMQClient) queueName(channel string) string {
	return channel + r.queueSuffix
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}

func contentType(attrs map[string]string) string {
	if value := strings.TrimSpace(attrs["content_type"]); value != "" {
		return value
	}
	return "application/octet-stream"
}
