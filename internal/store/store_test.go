package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fieldrobotics/elevmap/internal/gridmap"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func snapshotGrid(frame gridmap.FrameID, fill float64) *gridmap.Map {
	g := gridmap.New(frame, 3, 3, 0.2, 1, -1)
	g.Add("elevation", fill)
	g.SetStamp(time.Unix(1000, 0))
	return g
}

func TestSaveAndLatestSnapshot(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveSnapshot(snapshotGrid("odom", 0.3))
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.LatestSnapshot("odom")
	require.NoError(t, err)
	require.Equal(t, gridmap.FrameID("odom"), got.Frame())
	require.Equal(t, 3, got.Rows())
	require.Equal(t, 0.2, got.Resolution())
	v, err := got.At("elevation", 2, 2)
	require.NoError(t, err)
	require.Equal(t, 0.3, v)
}

func TestLatestSnapshotReturnsNewest(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveSnapshot(snapshotGrid("odom", 0.1))
	require.NoError(t, err)
	_, err = s.SaveSnapshot(snapshotGrid("odom", 0.9))
	require.NoError(t, err)

	got, err := s.LatestSnapshot("odom")
	require.NoError(t, err)
	v, err := got.At("elevation", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 0.9, v)
}

func TestLatestSnapshotNoData(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LatestSnapshot("nothing")
	require.True(t, errors.Is(err, ErrNoSnapshot), "want ErrNoSnapshot, got %v", err)
}

func TestSnapshotsAreFrameScoped(t *testing.T) {
	s := openTestStore(t)
	_, err := s.SaveSnapshot(snapshotGrid("odom", 0.1))
	require.NoError(t, err)

	_, err = s.LatestSnapshot("map")
	require.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestPruneKeepsNewest(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		_, err := s.SaveSnapshot(snapshotGrid("odom", float64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.Prune("odom", 2))

	n, err := s.Count("odom")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	got, err := s.LatestSnapshot("odom")
	require.NoError(t, err)
	v, err := got.At("elevation", 0, 0)
	require.NoError(t, err)
	require.Equal(t, 4.0, v, "prune must keep the newest snapshots")
}

func TestPruneClampsKeep(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		_, err := s.SaveSnapshot(snapshotGrid("odom", float64(i)))
		require.NoError(t, err)
	}
	require.NoError(t, s.Prune("odom", 0))
	n, err := s.Count("odom")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSaveManyFramesIndependent(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 3; i++ {
		frame := gridmap.FrameID(fmt.Sprintf("sensor_%d", i))
		_, err := s.SaveSnapshot(snapshotGrid(frame, float64(i)))
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		n, err := s.Count(fmt.Sprintf("sensor_%d", i))
		require.NoError(t, err)
		require.Equal(t, 1, n)
	}
}
