package worker

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/bloglist/apiserver/internal/mq"
	"github.com/bloglist/apiserver/internal/services"
)

// Subscriber is the read side of the message broker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// ActivityConsumer turns blog events into the activity log and keeps a running
// count per event type.
type ActivityConsumer struct {
	subscriber Subscriber
	channel    string
	logger     logrus.FieldLogger

	mu     sync.Mutex
	counts map[string]int
}

func NewActivityConsumer(subscriber Subscriber, channel string, logger logrus.FieldLogger) *ActivityConsumer {
	return &ActivityConsumer{
		subscriber: subscriber,
		channel:    channel,
		logger:     logger.WithField("channel", channel),
		counts:     make(map[string]int),
	}
}

// Run consumes events until ctx is cancelled.
func (c *ActivityConsumer) Run(ctx context.Context) error {
	c.logger.Info("activity consumer subscribed")

	err := c.subscriber.Subscribe(ctx, c.channel, c.handle)
	if errors.Is(err, context.Canceled) || (err == nil && ctx.Err() != nil) {
		c.logger.Info("activity consumer stopped")
		return nil
	}
	if err != nil {
		c.logger.WithError(err).Error("activity consumer subscribe failed")
	}
	return err
}

// Counts returns the number of events seen per type.
func (c *ActivityConsumer) Counts() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

func (c *ActivityConsumer) handle(_ context.Context, msg mq.Message) error {
	entry := c.logger.WithField("message_id", msg.ID)

	var event services.BlogEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// Redelivery cannot repair a malformed payload, so ack it.
		entry.WithError(err).Error("discarding undecodable blog event")
		return nil
	}
	if event.Type == "" || event.BlogID == 0 {
		entry.WithField("payload", string(msg.Data)).Warn("discarding incomplete blog event")
		return nil
	}

	c.mu.Lock()
	c.counts[event.Type]++
	c.mu.Unlock()

	entry.WithFields(logrus.Fields{
		"event":       event.Type,
		"blog_id":     event.BlogID,
		"actor_id":    event.ActorID,
		"likes":       event.Likes,
		"occurred_at": event.OccurredAt,
	}).Info("blog activity")
	return nil
}
