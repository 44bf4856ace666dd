// Package transport hides the broker client library behind a small
// capability: start, publish, lifecycle events. The production
// implementation is MQTT; tests use the channel-backed mock.
package transport

import (
	"context"

	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
	telemetry_config "github.com/edgesim/edgesim/telemetry/config"
)

// EventFunc receives lifecycle notifications. Implementations translate
// their native callback style into the telemetry.Event enum so the
// connection monitor never sees library types.
type EventFunc func(telemetry.Event)

// Transporter contract:
// - Start fails only with invalid config, network IO runs in background
// - Publish(wait=true) blocks until broker ack or network timeout
// - Publish(wait=false) is fire-and-forget
// - Close flushes a graceful-offline signal where the transport has one
type Transporter interface {
	Start(ctx context.Context, log *log2.Log, cfg telemetry_config.Config, onEvent EventFunc) error
	Publish(payload []byte, wait bool) error
	Close() error
}
