package transport

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"

	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
	telemetry_config "github.com/edgesim/edgesim/telemetry/config"
)

// Mock is a scriptable in-memory Transporter for tests: delivered payloads
// go to Out in publish order, failures are toggled with SetFail, lifecycle
// events are injected with Emit.
type Mock struct {
	mu      sync.Mutex
	log     *log2.Log
	onEvent EventFunc
	fail    bool
	closed  bool

	Out     chan []byte
	Timeout time.Duration
}

func NewMock(buffer int) *Mock {
	return &Mock{
		Out:     make(chan []byte, buffer),
		Timeout: 5 * time.Second,
	}
}

func (t *Mock) Start(ctx context.Context, log *log2.Log, cfg telemetry_config.Config, onEvent EventFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = log
	t.onEvent = onEvent
	return nil
}

func (t *Mock) Publish(payload []byte, wait bool) error {
	t.mu.Lock()
	fail := t.fail || t.closed
	t.mu.Unlock()
	if fail {
		return errors.New("mock transport: publish refused")
	}
	select {
	case t.Out <- payload:
		t.log.Debugf("mock transport: delivered payload=%d bytes wait=%t", len(payload), wait)
		return nil
	case <-time.After(t.Timeout):
		return errors.Timeoutf("mock transport: out buffer full")
	}
}

func (t *Mock) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// SetFail makes subsequent Publish calls return an error.
func (t *Mock) SetFail(fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fail = fail
}

// Emit injects a lifecycle event as if the broker link changed state.
func (t *Mock) Emit(e telemetry.Event) {
	t.mu.Lock()
	onEvent := t.onEvent
	t.mu.Unlock()
	if onEvent == nil {
		panic("code error Mock.Emit before Start")
	}
	onEvent(e)
}
