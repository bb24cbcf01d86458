package persistence

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"automated-kingdom/server/internal/sim"
	"automated-kingdom/server/internal/world"
)

const testLayout = `########
#......#
#......#
#......#
########`

func testSnapshot(t *testing.T) sim.Snapshot {
	t.Helper()
	w, err := sim.NewWorld(world.MustParseLayout(testLayout), "persist", sim.DefaultConfig(), sim.Deps{})
	require.NoError(t, err)
	w.AddPlayer(sim.ColorBlue).Credit(sim.OreGold, 12)
	oreID, err := w.AddOrePatch(sim.OreGold, world.GridCell{X: 5, Y: 2}, 1, 1, 9)
	require.NoError(t, err)
	a, err := w.Spawn(sim.ColorBlue, world.CellToWorld(world.GridCell{X: 1, Y: 1}))
	require.NoError(t, err)
	b, err := w.Spawn(sim.ColorBlue, world.CellToWorld(world.GridCell{X: 1, Y: 3}))
	require.NoError(t, err)
	_, err = w.RequestPath(a, world.GridCell{X: 6, Y: 3})
	require.NoError(t, err)
	require.NoError(t, w.AssignOre(b, oreID))
	for i := 0; i < 15; i++ {
		w.Step(1.0 / 30)
	}
	return w.Snapshot()
}

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCodecRoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	data, err := Encode(Record{Header: Header{Version: CodecVersion, SessionID: "s", Tick: snap.Tick}, Snapshot: snap})
	require.NoError(t, err)

	rec, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "s", rec.Header.SessionID)
	assert.Equal(t, snap, rec.Snapshot)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not zstd"))
	assert.Error(t, err)
}

func TestDecodeRejectsNewerVersion(t *testing.T) {
	data, err := Encode(Record{Header: Header{Version: CodecVersion + 1}})
	require.NoError(t, err)
	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSQLiteSaveLoad(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	snap := testSnapshot(t)

	entry, err := store.Save(ctx, "session-a", snap)
	require.NoError(t, err)
	assert.Equal(t, snap.Tick, entry.Tick)
	assert.Positive(t, entry.Size)

	loaded, err := store.Load(ctx, "session-a")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)

	restored, err := sim.Restore(loaded, sim.DefaultConfig(), sim.Deps{})
	require.NoError(t, err)
	assert.Equal(t, snap, restored.Snapshot())
}

func TestSQLiteSaveReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	snap := testSnapshot(t)

	_, err := store.Save(ctx, "session-a", snap)
	require.NoError(t, err)
	later := snap
	later.Tick = snap.Tick + 100
	_, err = store.Save(ctx, "session-a", later)
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, later.Tick, entries[0].Tick)
}

func TestSQLiteMissingSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "nope"), ErrNotFound)
}

func TestSQLiteListAndDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	snap := testSnapshot(t)

	sqlite := store.(*sqlStore)
	base := time.Unix(1700000000, 0)
	sqlite.now = func() time.Time { return base }
	_, err := store.Save(ctx, "b", snap)
	require.NoError(t, err)
	sqlite.now = func() time.Time { return base.Add(time.Second) }
	_, err = store.Save(ctx, "a", snap)
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].SessionID)
	assert.Equal(t, "a", entries[1].SessionID)
	assert.True(t, entries[0].SavedAt.Equal(base))

	require.NoError(t, store.Delete(ctx, "b"))
	entries, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestOpenPicksDriverFromDSN(t *testing.T) {
	store, err := Open("sqlite://"+filepath.Join(t.TempDir(), "nested", "db.sqlite"), nil)
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "sqlite", store.(*sqlStore).dialect.name)
}

func TestPostgresSaveLoad(t *testing.T) {
	dsn := os.Getenv("AK_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("AK_TEST_POSTGRES_DSN not set")
	}
	store, err := Open(dsn, nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	snap := testSnapshot(t)

	_, err = store.Save(ctx, "pg-session", snap)
	require.NoError(t, err)
	loaded, err := store.Load(ctx, "pg-session")
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
	require.NoError(t, store.Delete(ctx, "pg-session"))
}
