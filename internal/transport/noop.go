package transport

import (
	"context"

	"github.com/juju/errors"

	"github.com/edgesim/edgesim/log2"
	telemetry_config "github.com/edgesim/edgesim/telemetry/config"
)

// Noop satisfies Transporter when telemetry is disabled. It never emits a
// connect event, so every record accumulates in the cache.
type Noop struct{}

func (Noop) Start(ctx context.Context, log *log2.Log, cfg telemetry_config.Config, onEvent EventFunc) error {
	return nil
}
func (Noop) Publish(payload []byte, wait bool) error { return errors.New("transport disabled") }
func (Noop) Close() error                            { return nil }
