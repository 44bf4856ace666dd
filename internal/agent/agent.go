// Package agent is the decision core: on each tick one record is either
// published live or cached, and a transition into Connected replays the
// cached backlog in insertion order.
package agent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/edgesim/edgesim/helpers"
	"github.com/edgesim/edgesim/internal/cache"
	"github.com/edgesim/edgesim/internal/sensor"
	"github.com/edgesim/edgesim/internal/transport"
	"github.com/edgesim/edgesim/log2"
	telemetry_config "github.com/edgesim/edgesim/telemetry/config"
)

const DefaultTickInterval = 10 * time.Second

type Agent struct {
	alive        *alive.Alive
	log          *log2.Log
	cfg          telemetry_config.Config
	tickInterval time.Duration
	gen          *sensor.Generator
	store        *cache.Store
	tr           transport.Transporter
	mon          *Monitor
}

func New(log *log2.Log, cfg telemetry_config.Config, tickInterval time.Duration, store *cache.Store, tr transport.Transporter) *Agent {
	if tickInterval == 0 {
		tickInterval = DefaultTickInterval
	}
	a := &Agent{
		alive:        alive.NewAlive(),
		log:          log,
		cfg:          cfg,
		tickInterval: tickInterval,
		gen:          sensor.NewGenerator(cfg.DeviceID),
		store:        store,
		tr:           tr,
	}
	a.mon = NewMonitor(log, a.onConnected)
	return a
}

func (a *Agent) Monitor() *Monitor { return a.mon }

// Start loads persisted cache state and brings up the transport; the tick
// loop runs in background until Stop.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.store.Load(); err != nil {
		return errors.Annotate(err, "agent: cache load")
	}
	if err := a.tr.Start(ctx, a.log, a.cfg, a.mon.Handle); err != nil {
		return errors.Annotate(err, "agent: transport start")
	}
	if !a.alive.Add(1) {
		return errors.New("agent: already stopped")
	}
	go a.loop()
	return nil
}

func (a *Agent) loop() {
	defer a.alive.Done()
	ticker := time.NewTicker(a.tickInterval)
	defer ticker.Stop()
	stopch := a.alive.StopChan()
	for {
		select {
		case <-ticker.C:
			a.Tick()
		case <-stopch:
			return
		}
	}
}

// Tick generates one record and either publishes it live or caches it,
// never both. A failed live attempt is treated identically to being
// offline: the record goes to the cache and is only retried by the next
// reconnection replay.
func (a *Agent) Tick() {
	rec := a.gen.Generate()
	if a.mon.IsConnected() {
		err := a.tr.Publish(mustMarshal(rec), true)
		if err == nil {
			a.log.Debugf("agent: live publish seq=%d", rec.Seq)
			return
		}
		a.log.Errorf("agent: live publish seq=%d err=%v, caching", rec.Seq, err)
	}
	if err := a.store.Append(rec); err != nil {
		a.log.Errorf("agent: %v", err)
	}
	a.log.Debugf("agent: cached seq=%d pending=%d", rec.Seq, a.store.Len())
}

// onConnected fires once per transition into Connected. The drain snapshot
// is taken first; ticks arriving mid-replay go through the normal
// connected path and are never folded into this backlog.
func (a *Agent) onConnected() {
	backlog := a.store.DrainAll()
	if len(backlog) == 0 {
		return
	}
	a.log.Infof("agent: replaying cached records=%d", len(backlog))
	for _, rec := range backlog {
		// fire-and-forget: at-least-once intent, no per-entry ack wait
		if err := a.tr.Publish(mustMarshal(rec), false); err != nil {
			a.log.Errorf("agent: replay publish seq=%d err=%v", rec.Seq, err)
		}
	}
}

// Stop is the scoped shutdown: no new ticks, transport closed, final cache
// flush. Later steps run even when an earlier one faulted.
func (a *Agent) Stop() error {
	a.alive.Stop()
	a.alive.Wait()
	errs := make([]error, 0, 2)
	if err := a.tr.Close(); err != nil {
		errs = append(errs, errors.Annotate(err, "agent: transport close"))
	}
	if err := a.store.Flush(); err != nil {
		errs = append(errs, errors.Annotate(err, "agent: final flush"))
	}
	return helpers.FoldErrors(errs)
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Record is a plain value struct, this cannot happen
		panic("code error telemetry record marshal: " + err.Error())
	}
	return b
}
