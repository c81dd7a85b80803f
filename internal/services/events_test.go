package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/bloglist/apiserver/internal/logging"
	"github.com/bloglist/apiserver/internal/mocks"
	"github.com/bloglist/apiserver/types"
)

const testChannel = "blog-events"

func decodeEvent(t *testing.T, data []byte) BlogEvent {
	t.Helper()

	var event BlogEvent
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("decode event: %s", err)
	}
	return event
}

func TestBlogServicePublishesEvents(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)

	var got []BlogEvent
	publisher.EXPECT().
		Publish(gomock.Any(), testChannel, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
			event := decodeEvent(t, data)
			if attrs["event"] != event.Type {
				t.Errorf("attribute event=%q, payload type %q", attrs["event"], event.Type)
			}
			if attrs["ordering_key"] != strconv.FormatInt(event.BlogID, 10) {
				t.Errorf("ordering key %q does not match blog %d", attrs["ordering_key"], event.BlogID)
			}
			if attrs["content_type"] != "application/json" {
				t.Errorf("unexpected content type %q", attrs["content_type"])
			}
			got = append(got, event)
			return "msg-1", nil
		}).
		Times(4)

	f := newFixture(t, NewEventPublisher(publisher, testChannel, logging.Discard()))
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")

	blog := f.createBlog(t, jhon, "Blog de Prueba")
	if _, err := f.blogs.Update(ctx, nil, blog.ID, types.BlogPatch{Title: strPtr("Blog de Prueba123")}); err != nil {
		t.Fatalf("update: %s", err)
	}
	if _, err := f.blogs.ToggleLike(ctx, jhon, blog.ID); err != nil {
		t.Fatalf("like: %s", err)
	}
	if err := f.blogs.Delete(ctx, jhon, blog.ID); err != nil {
		t.Fatalf("delete: %s", err)
	}

	wantTypes := []string{EventBlogCreated, EventBlogUpdated, EventBlogLiked, EventBlogDeleted}
	wantActors := []int64{jhon.UserID, 0, jhon.UserID, jhon.UserID}
	if len(got) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(got))
	}
	for i, event := range got {
		if event.Type != wantTypes[i] || event.BlogID != blog.ID || event.ActorID != wantActors[i] {
			t.Errorf("event %d: got %+v, want type %s actor %d", i, event, wantTypes[i], wantActors[i])
		}
	}
	if got[2].Likes != 1 {
		t.Errorf("like event should carry the new count, got %d", got[2].Likes)
	}
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	publisher.EXPECT().
		Publish(gomock.Any(), testChannel, gomock.Any(), gomock.Any()).
		Return("", errors.New("broker down")).
		AnyTimes()

	f := newFixture(t, NewEventPublisher(publisher, testChannel, logging.Discard()))
	jhon := f.login(t, "jhon botero", "jhon", "jhon123")

	blog, err := f.blogs.Create(ctx, jhon, "Blog de Prueba", "Autor", "http://blogprueba.com")
	if err != nil {
		t.Fatalf("create must succeed when publishing fails: %s", err)
	}
	if _, err := f.blogs.Get(ctx, blog.ID); err != nil {
		t.Errorf("blog must be stored: %s", err)
	}
}

func TestNilEventPublisherDropsEvents(t *testing.T) {
	var events *EventPublisher
	events.Publish(ctx, BlogEvent{Type: EventBlogCreated})

	NewEventPublisher(nil, testChannel, logging.Discard()).Publish(ctx, BlogEvent{Type: EventBlogCreated})
}
