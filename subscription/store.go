package subscription

import (
	"context"
	"github.com/pkg/errors"
)

var (
	ErrNotFound   = errors.New("entity not found")
	ErrIncomplete = errors.New("subscriber is incomplete")
)

// Store persists subscribers, their region and station indices, alert
// records and conversation states.
//
// UpsertSubscriber replaces the full record atomically and rewrites index
// membership to exactly match the new region and station sets. Readers never
// observe a partially written subscriber. Incomplete subscribers are rejected
// with ErrIncomplete.
type Store interface {
	GetSubscriber(ctx context.Context, id string) (Subscriber, error)
	UpsertSubscriber(ctx context.Context, s Subscriber) error
	DeleteSubscriber(ctx context.Context, id string) error
	SubscribersByRegion(ctx context.Context, region Region) ([]string, error)
	SubscribersByStation(ctx context.Context, stationID int) ([]string, error)
	// Watched returns every region and station that has at least one subscriber.
	Watched(ctx context.Context) ([]Region, []int, error)

	GetLastAlert(ctx context.Context, subscriberID string, stationID int) (AlertRecord, error)
	SetLastAlert(ctx context.Context, record AlertRecord) error
	ClearLastAlert(ctx context.Context, subscriberID string, stationID int) error

	GetConversationState(ctx context.Context, id string) (ConversationState, error)
	SetConversationState(ctx context.Context, id string, state ConversationState) error
	ClearConversationState(ctx context.Context, id string) error
}
