package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgesim/edgesim/log2"
	"github.com/edgesim/edgesim/telemetry"
)

func testRecord(seq uint64) telemetry.Record {
	return telemetry.Record{
		Device:  "sim-test",
		Seq:     seq,
		Time:    int64(seq) * 1000,
		Ambient: telemetry.Ambient{TemperatureC: 21.5},
	}
}

func testStore(t testing.TB) *Store {
	s, err := NewStore(t.TempDir(), false, log2.NewTest(t, log2.LDebug))
	require.NoError(t, err)
	require.NoError(t, s.Load())
	return s
}

func TestFIFOReplay(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	const n = 7
	for i := uint64(1); i <= n; i++ {
		require.NoError(t, s.Append(testRecord(i)))
	}
	assert.Equal(t, n, s.Len())

	drained := s.DrainAll()
	require.Len(t, drained, n)
	for i, r := range drained {
		assert.Equal(t, uint64(i+1), r.Seq)
	}
}

func TestDrainIdempotent(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	require.NoError(t, s.Append(testRecord(1)))
	require.NoError(t, s.Append(testRecord(2)))

	assert.Len(t, s.DrainAll(), 2)
	assert.Len(t, s.DrainAll(), 0)
	assert.Equal(t, 0, s.Len())
}

func TestLoadAbsent(t *testing.T) {
	t.Parallel()

	s := testStore(t)
	assert.Equal(t, 0, s.Len())
}

func TestLoadCorrupt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"garbage", "not json at all"},
		{"wrong-type", `{"device":"x"}`},
		{"truncated", `[{"device":"x","seq":1,`},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			root := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(root, "cache.json"), []byte(c.content), 0644))
			s, err := NewStore(root, false, log2.NewTest(t, log2.LDebug))
			require.NoError(t, err)
			require.NoError(t, s.Load())
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	log := log2.NewTest(t, log2.LDebug)

	s1, err := NewStore(root, false, log)
	require.NoError(t, err)
	require.NoError(t, s1.Load())
	require.NoError(t, s1.Append(testRecord(1)))
	require.NoError(t, s1.Append(testRecord(2)))

	// persisted form is a plain JSON array
	b, err := os.ReadFile(filepath.Join(root, "cache.json"))
	require.NoError(t, err)
	var raw []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Len(t, raw, 2)

	// process restart
	s2, err := NewStore(root, false, log)
	require.NoError(t, err)
	require.NoError(t, s2.Load())
	drained := s2.DrainAll()
	require.Len(t, drained, 2)
	assert.Equal(t, uint64(1), drained[0].Seq)
	assert.Equal(t, uint64(2), drained[1].Seq)

	// drain persisted the empty sequence too
	s3, err := NewStore(root, false, log)
	require.NoError(t, err)
	require.NoError(t, s3.Load())
	assert.Equal(t, 0, s3.Len())
}

func TestGuardedRoundTrip(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	log := log2.NewTest(t, log2.LDebug)

	s1, err := NewStore(root, true, log)
	require.NoError(t, err)
	require.NoError(t, s1.Load())
	require.NoError(t, s1.Append(testRecord(1)))

	s2, err := NewStore(root, true, log)
	require.NoError(t, err)
	require.NoError(t, s2.Load())
	drained := s2.DrainAll()
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(1), drained[0].Seq)
}

type brokenStorage struct {
	writes   int
	failNext bool
}

func (bs *brokenStorage) Read() ([]byte, error) { return nil, nil }
func (bs *brokenStorage) Write(b []byte) (int, error) {
	bs.writes++
	if bs.failNext {
		return 0, fmt.Errorf("disk on fire")
	}
	return len(b), nil
}

func TestNoLossOnFailedPersist(t *testing.T) {
	t.Parallel()

	bs := &brokenStorage{failNext: true}
	s := &Store{log: log2.NewTest(t, log2.LDebug), storage: bs}

	err := s.Append(testRecord(1))
	require.Error(t, err)

	// in-memory sequence is still the source of truth
	drained := s.DrainAll()
	require.Len(t, drained, 1)
	assert.Equal(t, uint64(1), drained[0].Seq)
}

func TestFlushRetriesPersist(t *testing.T) {
	t.Parallel()

	bs := &brokenStorage{failNext: true}
	s := &Store{log: log2.NewTest(t, log2.LDebug), storage: bs}

	require.Error(t, s.Append(testRecord(1)))
	require.Error(t, s.Append(testRecord(2)))
	writesBefore := bs.writes

	bs.failNext = false
	require.NoError(t, s.Flush())
	assert.Equal(t, writesBefore+1, bs.writes)
	assert.Equal(t, 2, s.Len())
}
