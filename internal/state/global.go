package state

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"

	"github.com/edgesim/edgesim/helpers"
	"github.com/edgesim/edgesim/internal/agent"
	"github.com/edgesim/edgesim/internal/cache"
	"github.com/edgesim/edgesim/log2"
)

// Global is the session object owned by the process entry point. It
// replaces ambient globals: the coordinator, monitor and cache store all
// receive their collaborators from here.
type Global struct {
	Alive  *alive.Alive
	Config *Config
	Log    *log2.Log
	Store  *cache.Store
}

const ContextKey = "run/state-global"

func NewContext(log *log2.Log) (context.Context, *Global) {
	if log == nil {
		panic("code error state.NewContext log=nil")
	}
	g := &Global{
		Alive: alive.NewAlive(),
		Log:   log,
	}
	ctx := context.Background()
	ctx = context.WithValue(ctx, ContextKey, g) //nolint:staticcheck
	return ctx, g
}

func GetGlobal(ctx context.Context) *Global {
	v := ctx.Value(ContextKey)
	if v == nil {
		panic(fmt.Sprintf("context['%s'] is nil", ContextKey))
	}
	if g, ok := v.(*Global); ok {
		return g
	}
	panic(fmt.Sprintf("context['%s'] expected type *Global actual=%#v", ContextKey, v))
}

// If Init fails, consider Global is in broken state.
func (g *Global) Init(ctx context.Context, cfg *Config) error {
	g.Config = cfg

	if g.Config.DeviceID == "" {
		g.Config.DeviceID = "edgesim-dev"
		g.Log.Errorf("config: device_id=empty changed=%s", g.Config.DeviceID)
	}
	if g.Config.Persist.Root == "" {
		g.Config.Persist.Root = "./edgesim-db"
		g.Log.Errorf("config: persist.root=empty changed=%s", g.Config.Persist.Root)
	}
	g.Log.Debugf("config: persist.root=%s", g.Config.Persist.Root)

	if g.Config.Tele.LogDebug {
		g.Log.SetLevel(log2.LDebug)
	}
	g.Config.Tele.DeviceID = g.Config.DeviceID
	if g.Config.Tele.PersistPath == "" {
		g.Config.Tele.PersistPath = filepath.Join(g.Config.Persist.Root, "tele")
	}

	var err error
	g.Store, err = cache.NewStore(g.Config.Tele.PersistPath, g.Config.Persist.Guarded, g.Log)
	return errors.Annotate(err, "cache store init")
}

func (g *Global) MustInit(ctx context.Context, cfg *Config) {
	if err := g.Init(ctx, cfg); err != nil {
		g.Log.Fatal(errors.ErrorStack(err))
	}
}

func (g *Global) TickInterval() time.Duration {
	return helpers.IntSecondDefault(g.Config.TickIntervalSec, agent.DefaultTickInterval)
}
