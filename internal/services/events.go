package services

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bloglist/apiserver/internal/mq"
	"github.com/bloglist/apiserver/types"
)

const (
	EventBlogCreated = "blog.created"
	EventBlogUpdated = "blog.updated"
	EventBlogLiked   = "blog.liked"
	EventBlogDeleted = "blog.deleted"

	publishTimeout = 5 * time.Second
)

// BlogEvent describes a committed change to a blog.
type BlogEvent struct {
	Type       string    `json:"type"`
	BlogID     int64     `json:"blog_id"`
	ActorID    int64     `json:"actor_id,omitempty"`
	Title      string    `json:"title,omitempty"`
	Likes      int64     `json:"likes"`
	OccurredAt time.Time `json:"occurred_at"`
}

func newBlogEvent(kind string, blog types.Blog, actor *types.Session) BlogEvent {
	event := BlogEvent{
		Type:       kind,
		BlogID:     blog.ID,
		Title:      blog.Title,
		Likes:      blog.Likes,
		OccurredAt: time.Now().UTC(),
	}
	if actor != nil {
		event.ActorID = actor.UserID
	}
	return event
}

// EventPublisher sends blog events to the configured broker. A nil
// *EventPublisher drops every event.
type EventPublisher struct {
	publisher mq.Publisher
	channel   string
	logger    logrus.FieldLogger
}

func NewEventPublisher(publisher mq.Publisher, channel string, logger logrus.FieldLogger) *EventPublisher {
	return &EventPublisher{
		publisher: publisher,
		channel:   channel,
		logger:    logger,
	}
}

// Publish sends the event. The change it describes is already committed, so
// failures are logged rather than returned.
func (p *EventPublisher) Publish(ctx context.Context, event BlogEvent) {
	if p == nil || p.publisher == nil {
		return
	}

	fields := logrus.Fields{"event": event.Type, "blog_id": event.BlogID, "channel": p.channel}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Error("encode blog event")
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	// Events of one blog share an ordering key so brokers that support it
	// keep them in commit order.
	id, err := p.publisher.Publish(ctx, p.channel, data, map[string]string{
		"content_type":     "application/json",
		"event":            event.Type,
		mq.OrderingKeyAttr: strconv.FormatInt(event.BlogID, 10),
	})
	if err != nil {
		p.logger.WithFields(fields).WithError(err).Warn("publish blog event failed")
		return
	}
	p.logger.WithFields(fields).WithField("message_id", id).Debug("blog event published")
}
