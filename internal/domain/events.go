package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderEventType names a committed change to an order.
type OrderEventType string

const (
	OrderEventCreated OrderEventType = "order.created"
	OrderEventUpdated OrderEventType = "order.updated"
	OrderEventDeleted OrderEventType = "order.deleted"
)

// OrderEvent is published after the transaction that produced it has committed.
type OrderEvent struct {
	ID          string         `json:"event_id"`
	Type        OrderEventType `json:"event_type"`
	OrderID     int64          `json:"order_id"`
	DetailCount int            `json:"detail_count"`
	OccurredAt  time.Time      `json:"timestamp"`
}

// NewOrderEvent stamps an event with a fresh id and the current time.
func NewOrderEvent(eventType OrderEventType, orderID int64, detailCount int) OrderEvent {
	return OrderEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		OrderID:     orderID,
		DetailCount: detailCount,
		OccurredAt:  time.Now().UTC(),
	}
}
