package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Channels carrying change notifications out of the integration facade.
const (
	ChannelPermissionChanged = "healthbridge.permission.changed"
	ChannelRecordsChanged    = "healthbridge.records.changed"
)

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
