// Package queue pulls CloudStack events from the event bus one message at a
// time.
package queue

import (
	"context"
	"errors"
)

// ErrConnectionClosed is returned when the broker connection was lost. The
// caller reconnects; unacknowledged messages are redelivered by the broker.
var ErrConnectionClosed = errors.New("queue connection closed")

// DefaultExchange is the exchange CloudStack publishes its events to
const DefaultExchange = "cloudstack-events"

// DefaultRoutingKeys select the VM and zone events the driver handles
var DefaultRoutingKeys = []string{
	"management-server.ActionEvent.VM-UPGRADE.VirtualMachine.*",
	"management-server.ResourceStateEvent.FollowAgentPowerOnReport.VirtualMachine.*",
	"management-server.ResourceStateEvent.OperationSucceeded.VirtualMachine.*",
	"management-server.UsageEvent.VM-CREATE.com-cloud-vm-VirtualMachine.*",
	"management-server.UsageEvent.VM-DESTROY.com-cloud-vm-VirtualMachine.*",
	"management-server.ActionEvent.ZONE-EDIT.DataCenter.*",
}

// Message is one pulled event with the token needed to settle it
type Message struct {
	ID          string
	Body        []byte
	Redelivered bool

	token interface{}
}

// NewMessage creates a message settled through token. It is used by Queue
// implementations and their tests.
func NewMessage(id string, body []byte, token interface{}) *Message {
	return &Message{ID: id, Body: body, token: token}
}

// Token returns the implementation specific settle token
func (m *Message) Token() interface{} {
	return m.token
}

// Queue is an event bus subscription
type Queue interface {
	// Pull returns the next message, or nil when the queue is drained
	Pull(ctx context.Context) (*Message, error)
	Ack(ctx context.Context, msg *Message) error
	// Nack returns msg to the queue for redelivery
	Nack(ctx context.Context, msg *Message) error
	// Reject drops msg without redelivery
	Reject(ctx context.Context, msg *Message) error
	Bind(ctx context.Context, exchange string, routingKeys []string) error
	Reconnect(ctx context.Context) error
	Close() error
}
