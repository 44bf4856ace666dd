// edgesim simulates an edge device: one telemetry snapshot per tick goes
// to the MQTT broker when the link is up, to the durable cache when it is
// not, and the cache is replayed on reconnect.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/mattn/go-isatty"

	"github.com/edgesim/edgesim/internal/agent"
	"github.com/edgesim/edgesim/internal/state"
	"github.com/edgesim/edgesim/internal/transport"
	"github.com/edgesim/edgesim/log2"
)

var BuildVersion string = "unknown" // set by ldflags

func main() {
	flagConfig := flag.String("config", "edgesim.hcl", "")
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	if isatty.IsTerminal(os.Stderr.Fd()) {
		log.SetFlags(log2.LInteractiveFlags)
	} else {
		// assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	}
	log.Infof("edgesim version=%s", BuildVersion)
	sdnotify("STATUS=init")

	ctx, g := state.NewContext(log)
	cfg := state.MustReadConfig(log, state.NewOsFullReader(), *flagConfig)
	g.MustInit(ctx, cfg)

	var tr transport.Transporter
	if cfg.Tele.Enabled {
		tr = &transport.Mqtt{}
	} else {
		tr = transport.Noop{}
		log.Infof("tele disabled, cache-only mode")
	}

	a := agent.New(g.Log, cfg.Tele, g.TickInterval(), g.Store, tr)
	if err := a.Start(ctx); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	sdnotify(daemon.SdNotifyReady)
	log.Infof("init complete device=%s tick=%v", cfg.DeviceID, g.TickInterval())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Infof("signal=%v shutdown", sig)
	sdnotify(daemon.SdNotifyStopping)

	// scoped shutdown: faults are logged, exit status stays 0
	if err := a.Stop(); err != nil {
		log.Errorf("shutdown: %v", err)
	}
	g.Alive.Stop()
	log.Infof("shutdown complete")
}

func sdnotify(s string) {
	// not running under systemd is fine
	_, _ = daemon.SdNotify(false, s)
}
