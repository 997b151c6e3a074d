package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(0)
	assert.Equal(t, DefaultHistorySize, r.Capacity())
	assert.Equal(t, 0, r.Len())

	r = NewRegistry(SingleHistorySize)
	assert.Equal(t, SingleHistorySize, r.Capacity())
}

func TestRegistryUpsertCreatesDevice(t *testing.T) {
	r := NewRegistry(10)

	dev, isNew := r.Upsert(Sample{Index: 0, Utilization: 55, MemoryUsed: 2048, MemoryTotal: 8192, Temperature: 63, Name: "Card A"})

	require.NotNil(t, dev)
	assert.True(t, isNew)
	assert.Equal(t, 1, r.Len())

	snap := dev.Snapshot()
	assert.Equal(t, "Card A", snap.Name)
	assert.Equal(t, 8192.0, snap.TotalMemory)
	assert.Equal(t, []float64{55}, snap.Utilization)
	assert.Equal(t, []float64{25}, snap.Memory)
	assert.Equal(t, []float64{63}, snap.Temperature)
	assert.Equal(t, []int{0}, snap.Labels)
}

func TestRegistryUpsertSameIndexLastWriteWins(t *testing.T) {
	r := NewRegistry(10)

	_, firstNew := r.Upsert(Sample{Index: 1, Utilization: 10, MemoryUsed: 100, MemoryTotal: 1000, Temperature: 40, Name: "Old"})
	dev, secondNew := r.Upsert(Sample{Index: 1, Utilization: 20, MemoryUsed: 600, MemoryTotal: 2000, Temperature: 41, Name: "New"})

	assert.True(t, firstNew)
	assert.False(t, secondNew)
	assert.Equal(t, 1, r.Len())

	snap := dev.Snapshot()
	assert.Equal(t, "New", snap.Name)
	assert.Equal(t, 2000.0, snap.TotalMemory)
	assert.Equal(t, []float64{10, 20}, snap.Utilization)
	assert.Equal(t, []float64{10, 30}, snap.Memory)
	assert.Equal(t, []float64{40, 41}, snap.Temperature)
}

func TestRegistryMissingIndexRoutesToDeviceZero(t *testing.T) {
	r := NewRegistry(10)

	msg, err := Decode([]byte(`{"utilization.gpu":12,"name":"Solo"}`))
	require.NoError(t, err)
	for _, s := range msg.Samples {
		r.Upsert(s)
	}

	dev, ok := r.Get(0)
	require.True(t, ok)
	assert.Equal(t, "Solo", dev.Name)
}

func TestRegistryEvictsAtCapacity(t *testing.T) {
	r := NewRegistry(DefaultHistorySize)

	for i := 1; i <= 51; i++ {
		r.Upsert(Sample{Index: 0, Utilization: float64(i), MemoryUsed: float64(i), MemoryTotal: 100, Temperature: float64(i), Name: "GPU"})
	}

	dev, ok := r.Get(0)
	require.True(t, ok)
	snap := dev.Snapshot()

	want := make([]float64, 0, 50)
	for i := 2; i <= 51; i++ {
		want = append(want, float64(i))
	}
	assert.Len(t, snap.Utilization, 50)
	assert.Equal(t, want, snap.Utilization)
	assert.Equal(t, want, snap.Memory)
	assert.Equal(t, want, snap.Temperature)
	assert.Len(t, snap.Labels, 50)
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry(10)
	r.Upsert(Sample{Index: 0, MemoryTotal: 1})
	r.Upsert(Sample{Index: 1, MemoryTotal: 1})
	require.Equal(t, 2, r.Len())

	r.Clear()

	assert.Equal(t, 0, r.Len())
	_, ok := r.Get(0)
	assert.False(t, ok)

	_, isNew := r.Upsert(Sample{Index: 0, MemoryTotal: 1})
	assert.True(t, isNew, "a cleared device is created afresh")
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry(10)
	for _, idx := range []int{3, 0, 1} {
		r.Upsert(Sample{Index: idx, MemoryTotal: 1, Name: "GPU"})
	}

	seen := make(map[int]bool)
	for idx, dev := range r.All() {
		assert.Equal(t, idx, dev.Index)
		seen[idx] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 3: true}, seen)

	count := 0
	for range r.All() {
		count++
		break
	}
	assert.Equal(t, 1, count, "iteration stops when the consumer breaks")
}

func TestRegistrySnapshotsSortedByIndex(t *testing.T) {
	r := NewRegistry(10)
	for _, idx := range []int{2, 0, 1} {
		r.Upsert(Sample{Index: idx, MemoryTotal: 1})
	}

	snaps := r.Snapshots()
	require.Len(t, snaps, 3)
	assert.Equal(t, 0, snaps[0].Index)
	assert.Equal(t, 1, snaps[1].Index)
	assert.Equal(t, 2, snaps[2].Index)
}

func TestDeviceSnapshotLatest(t *testing.T) {
	var empty DeviceSnapshot
	_, _, _, ok := empty.Latest()
	assert.False(t, ok)

	r := NewRegistry(5)
	r.Upsert(Sample{Utilization: 1, MemoryUsed: 1, MemoryTotal: 4, Temperature: 30})
	dev, _ := r.Upsert(Sample{Utilization: 2, MemoryUsed: 2, MemoryTotal: 4, Temperature: 31})

	util, mem, temp, ok := dev.Snapshot().Latest()
	require.True(t, ok)
	assert.Equal(t, 2.0, util)
	assert.Equal(t, 50.0, mem)
	assert.Equal(t, 31.0, temp)
}

func TestDeviceSnapshotTotalMemoryGB(t *testing.T) {
	assert.Equal(t, 8.0, DeviceSnapshot{TotalMemory: 8192}.TotalMemoryGB())
	assert.Equal(t, 10.0, DeviceSnapshot{TotalMemory: 10240}.TotalMemoryGB())
	assert.Equal(t, 23.99, DeviceSnapshot{TotalMemory: 24564}.TotalMemoryGB())
}

func TestNewDeviceUsesUnknownName(t *testing.T) {
	dev := newDevice(4, 10)
	assert.Equal(t, UnknownDeviceName, dev.Name)
	assert.Equal(t, 4, dev.Index)
}
