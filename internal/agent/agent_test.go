package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgesim/edgesim/internal/cache"
	"github.com/edgesim/edgesim/internal/transport"
	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
	telemetry_config "github.com/edgesim/edgesim/telemetry/config"
)

type tenv struct {
	a     *Agent
	mock  *transport.Mock
	store *cache.Store
}

// long tick interval: tests drive Tick() by hand
func testAgent(t testing.TB, root string) *tenv {
	log := log2.NewTest(t, log2.LDebug)
	store, err := cache.NewStore(root, false, log)
	require.NoError(t, err)
	mock := transport.NewMock(32)
	cfg := telemetry_config.Config{Enabled: true, DeviceID: "sim-test"}
	a := New(log, cfg, time.Hour, store, mock)
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop() })
	return &tenv{a: a, mock: mock, store: store}
}

func decodeSeq(t testing.TB, payload []byte) uint64 {
	var rec telemetry.Record
	require.NoError(t, json.Unmarshal(payload, &rec))
	return rec.Seq
}

func TestTicksWhileDisconnected(t *testing.T) {
	t.Parallel()

	env := testAgent(t, t.TempDir())
	env.a.Tick()
	env.a.Tick()
	env.a.Tick()

	assert.Equal(t, 3, env.store.Len())
	assert.Len(t, env.mock.Out, 0)

	drained := env.store.DrainAll()
	require.Len(t, drained, 3)
	for i, rec := range drained {
		assert.Equal(t, uint64(i+1), rec.Seq)
	}
}

func TestReplayOnConnect(t *testing.T) {
	t.Parallel()

	env := testAgent(t, t.TempDir())
	env.a.Tick()
	env.a.Tick()
	env.a.Tick()
	require.Equal(t, 3, env.store.Len())

	env.mock.Emit(telemetry.EventConnect)

	require.Len(t, env.mock.Out, 3)
	for i := 1; i <= 3; i++ {
		assert.Equal(t, uint64(i), decodeSeq(t, <-env.mock.Out))
	}
	assert.Equal(t, 0, env.store.Len())
}

func TestEmptyDrainNoTransportActivity(t *testing.T) {
	t.Parallel()

	env := testAgent(t, t.TempDir())
	env.mock.Emit(telemetry.EventConnect)
	assert.Len(t, env.mock.Out, 0)
}

func TestLivePublishNotCached(t *testing.T) {
	t.Parallel()

	env := testAgent(t, t.TempDir())
	env.mock.Emit(telemetry.EventConnect)

	env.a.Tick()
	require.Len(t, env.mock.Out, 1)
	assert.Equal(t, uint64(1), decodeSeq(t, <-env.mock.Out))
	// delivered live and cached are mutually exclusive
	assert.Equal(t, 0, env.store.Len())
}

func TestFailedLivePublishCached(t *testing.T) {
	t.Parallel()

	env := testAgent(t, t.TempDir())
	env.mock.Emit(telemetry.EventConnect)
	env.mock.SetFail(true)

	env.a.Tick()
	assert.Len(t, env.mock.Out, 0)
	assert.Equal(t, 1, env.store.Len())

	// not retried until the next transition into Connected
	env.mock.SetFail(false)
	env.mock.Emit(telemetry.EventConnect) // same connected period, no drain
	assert.Equal(t, 1, env.store.Len())

	env.mock.Emit(telemetry.EventDisconnect)
	env.mock.Emit(telemetry.EventConnect)
	require.Len(t, env.mock.Out, 1)
	assert.Equal(t, uint64(1), decodeSeq(t, <-env.mock.Out))
	assert.Equal(t, 0, env.store.Len())
}

func TestOfflineTicksCached(t *testing.T) {
	t.Parallel()

	env := testAgent(t, t.TempDir())
	env.mock.Emit(telemetry.EventConnect)
	env.a.Tick()
	require.Len(t, env.mock.Out, 1)
	<-env.mock.Out

	env.mock.Emit(telemetry.EventOffline)
	env.a.Tick()
	env.a.Tick()
	assert.Equal(t, 2, env.store.Len())
	assert.Len(t, env.mock.Out, 0)

	env.mock.Emit(telemetry.EventConnect)
	require.Len(t, env.mock.Out, 2)
	assert.Equal(t, uint64(2), decodeSeq(t, <-env.mock.Out))
	assert.Equal(t, uint64(3), decodeSeq(t, <-env.mock.Out))
}

func TestShutdownFlushAfterFailedPersist(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	// a directory in place of the cache file makes every persist fail,
	// even running as root
	require.NoError(t, os.Mkdir(filepath.Join(root, "cache.json"), 0755))

	env := testAgent(t, root)
	env.a.Tick()
	env.a.Tick()
	require.Equal(t, 2, env.store.Len())

	err := env.a.Stop()
	// final flush was attempted and surfaced the persistence fault
	require.Error(t, err)
	assert.Contains(t, err.Error(), "final flush")
	// in-memory sequence survived to the end
	assert.Equal(t, 2, env.store.Len())
}

func TestRestartReplaysPersisted(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	env1 := testAgent(t, root)
	env1.a.Tick()
	env1.a.Tick()
	require.NoError(t, env1.a.Stop())

	// new process lifetime, same persist root
	env2 := testAgent(t, root)
	env2.mock.Emit(telemetry.EventConnect)
	require.Len(t, env2.mock.Out, 2)
	assert.Equal(t, uint64(1), decodeSeq(t, <-env2.mock.Out))
	assert.Equal(t, uint64(2), decodeSeq(t, <-env2.mock.Out))
}
