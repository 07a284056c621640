// Package registry routes outbox rows to Pub/Sub topics and decodes their
// typed payloads before the relay publishes them.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/vouchernet-backend/pkg/config"
	"github.com/angelmondragon/vouchernet-backend/pkg/db/models"
	"github.com/angelmondragon/vouchernet-backend/pkg/enums"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox"
	"github.com/angelmondragon/vouchernet-backend/pkg/outbox/payloads"
)

// Route binds one event type to its topic and payload schema.
type Route struct {
	EventType enums.OutboxEventType
	Topic     string
	decode    func(json.RawMessage) (any, error)
}

// Resolved is an outbox row that is ready to publish.
type Resolved struct {
	Route    Route
	Envelope outbox.Envelope
	Payload  any
}

type Registry struct {
	routes map[enums.OutboxEventType]Route
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as one retrying will never fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

func decodeInto[T any](data json.RawMessage) (any, error) {
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return nil, err
	}
	return v, nil
}

// New builds the routing table. Ledger events share a topic; coupons go to the
// notification topic and gift claims to the campaign topic.
func New(cfg config.PubSubConfig) (*Registry, error) {
	switch {
	case cfg.LedgerTopic == "":
		return nil, errors.New("ledger topic is required")
	case cfg.CampaignTopic == "":
		return nil, errors.New("campaign topic is required")
	case cfg.NotificationTopic == "":
		return nil, errors.New("notification topic is required")
	}

	routes := []Route{
		{EventType: enums.EventSaleRecorded, Topic: cfg.LedgerTopic, decode: decodeInto[payloads.SaleRecordedEvent]},
		{EventType: enums.EventStockAdded, Topic: cfg.LedgerTopic, decode: decodeInto[payloads.StockAddedEvent]},
		{EventType: enums.EventCustomerCouponIssued, Topic: cfg.NotificationTopic, decode: decodeInto[payloads.CustomerCouponIssuedEvent]},
		{EventType: enums.EventGiftClaimSubmitted, Topic: cfg.CampaignTopic, decode: decodeInto[payloads.GiftClaimSubmittedEvent]},
		{EventType: enums.EventGiftClaimReviewed, Topic: cfg.CampaignTopic, decode: decodeInto[payloads.GiftClaimReviewedEvent]},
	}
	r := &Registry{routes: make(map[enums.OutboxEventType]Route, len(routes))}
	for _, route := range routes {
		r.routes[route.EventType] = route
	}
	return r, nil
}

// Topic returns the topic an event type is published to.
func (r *Registry) Topic(eventType enums.OutboxEventType) (string, bool) {
	route, ok := r.routes[eventType]
	return route.Topic, ok
}

// Resolve validates row and decodes its payload. Every error it returns is
// permanent: the stored row will not change between attempts.
func (r *Registry) Resolve(row models.OutboxEvent) (*Resolved, error) {
	route, ok := r.routes[row.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("no route for event type %q", row.EventType))
	}
	if want := row.EventType.Aggregate(); want != row.AggregateType {
		return nil, Permanent(fmt.Errorf("%s belongs to %s, row says %s", row.EventType, want, row.AggregateType))
	}
	if row.AggregateID == uuid.Nil {
		return nil, Permanent(errors.New("missing aggregate id"))
	}

	env, err := outbox.DecodeEnvelope(row.Payload)
	if err != nil {
		return nil, Permanent(err)
	}
	payload, err := route.decode(env.Data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &Resolved{Route: route, Envelope: env, Payload: payload}, nil
}
