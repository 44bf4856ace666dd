package agent

import (
	"sync/atomic"

	"github.com/temoto/atomic_clock"

	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
)

// Monitor owns the connection state. It is the sole writer; readers use
// IsConnected without blocking. Events are applied last-write-wins, no
// queuing.
type Monitor struct {
	log           *log2.Log
	state         int32 // telemetry.State
	changedAt     atomic_clock.Clock
	everConnected uint32
	onConnected   func()
}

func NewMonitor(log *log2.Log, onConnected func()) *Monitor {
	m := &Monitor{
		log:         log,
		state:       int32(telemetry.StateDisconnected),
		onConnected: onConnected,
	}
	m.changedAt.SetNow()
	return m
}

func (m *Monitor) State() telemetry.State {
	return telemetry.State(atomic.LoadInt32(&m.state))
}

func (m *Monitor) IsConnected() bool { return m.State() == telemetry.StateConnected }

// Handle consumes one transport lifecycle event. Transition into Connected
// fires onConnected exactly once per transition.
func (m *Monitor) Handle(e telemetry.Event) {
	switch e {
	case telemetry.EventConnect:
		down := atomic_clock.Since(&m.changedAt)
		prev := m.swap(telemetry.StateConnected)
		if prev == telemetry.StateConnected {
			return
		}
		atomic.StoreUint32(&m.everConnected, 1)
		m.log.Infof("link connected downtime=%v", down)
		if m.onConnected != nil {
			m.onConnected()
		}

	case telemetry.EventError:
		// transient signal: demote from Connected, otherwise no change
		up := atomic_clock.Since(&m.changedAt)
		if atomic.CompareAndSwapInt32(&m.state, int32(telemetry.StateConnected), int32(telemetry.StateDisconnected)) {
			m.changedAt.SetNow()
			m.log.Errorf("alert: connection lost (transport error) uptime=%v", up)
		} else {
			m.log.Errorf("link error while %s", m.State())
		}

	case telemetry.EventDisconnect:
		m.demote(telemetry.StateDisconnected)

	case telemetry.EventOffline:
		m.demote(telemetry.StateOffline)

	case telemetry.EventReconnect:
		if m.swap(telemetry.StateConnecting) != telemetry.StateConnecting &&
			atomic.LoadUint32(&m.everConnected) == 0 {
			m.log.Errorf("alert: broker not available")
		}

	default:
		m.log.Errorf("unknown lifecycle event=%d", int(e))
	}
}

func (m *Monitor) swap(next telemetry.State) telemetry.State {
	prev := telemetry.State(atomic.SwapInt32(&m.state, int32(next)))
	if prev != next {
		m.changedAt.SetNow()
	}
	return prev
}

func (m *Monitor) demote(next telemetry.State) {
	up := atomic_clock.Since(&m.changedAt)
	prev := m.swap(next)
	if prev == telemetry.StateConnected {
		m.log.Errorf("alert: connection lost uptime=%v", up)
	} else if prev != next {
		m.log.Debugf("link %s -> %s", prev, next)
	}
}
