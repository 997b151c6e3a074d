package telemetry

import (
	"iter"
	"sort"
)

// UnknownDeviceName is a device's name before its first sample is applied.
const UnknownDeviceName = "unknown"

// Device holds the identity and metric history of one GPU on a connection.
type Device struct {
	Index       int
	Name        string
	TotalMemory float64 // MiB, as reported on the wire

	utilization *RollingBuffer
	memory      *RollingBuffer // percent of TotalMemory
	temperature *RollingBuffer
}

func newDevice(index, capacity int) *Device {
	return &Device{
		Index:       index,
		Name:        UnknownDeviceName,
		utilization: NewRollingBuffer(capacity),
		memory:      NewRollingBuffer(capacity),
		temperature: NewRollingBuffer(capacity),
	}
}

// apply refreshes identity fields (last write wins) and appends the sample's metrics.
func (d *Device) apply(s Sample) {
	d.Name = s.Name
	d.TotalMemory = s.MemoryTotal
	d.utilization.Append(s.Utilization)
	d.memory.Append(s.MemoryPercent())
	d.temperature.Append(s.Temperature)
}

// Snapshot copies the device's state for a renderer.
func (d *Device) Snapshot() DeviceSnapshot {
	util := d.utilization.Snapshot()
	return DeviceSnapshot{
		Index:       d.Index,
		Name:        d.Name,
		TotalMemory: d.TotalMemory,
		Utilization: util,
		Memory:      d.memory.Snapshot(),
		Temperature: d.temperature.Snapshot(),
		Labels:      indexLabels(len(util)),
	}
}

// DeviceSnapshot is an immutable copy of a Device. Renderers own it outright.
type DeviceSnapshot struct {
	Index       int
	Name        string
	TotalMemory float64
	Utilization []float64
	Memory      []float64
	Temperature []float64
	Labels      []int
}

// Latest returns the most recent utilization, memory percent, and temperature.
// ok is false before the first sample.
func (s DeviceSnapshot) Latest() (util, mem, temp float64, ok bool) {
	n := len(s.Utilization)
	if n == 0 || len(s.Memory) != n || len(s.Temperature) != n {
		return 0, 0, 0, false
	}
	return s.Utilization[n-1], s.Memory[n-1], s.Temperature[n-1], true
}

// TotalMemoryGB converts the MiB total to GB rounded to two decimals.
func (s DeviceSnapshot) TotalMemoryGB() float64 {
	return MemoryGB(s.TotalMemory)
}

// MemoryGB converts MiB to GB rounded to two decimals.
func MemoryGB(mib float64) float64 {
	return float64(int64(mib/1024*100+0.5)) / 100
}

// Registry maps device index to Device for a single connection.
// Devices are created lazily on first sighting.
type Registry struct {
	capacity int
	devices  map[int]*Device
}

// NewRegistry creates an empty registry whose devices keep capacity points per metric.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	return &Registry{
		capacity: capacity,
		devices:  make(map[int]*Device),
	}
}

// Upsert applies s to the device at s.Index, creating it first if needed.
// isNew reports whether this call created the device.
func (r *Registry) Upsert(s Sample) (dev *Device, isNew bool) {
	dev, ok := r.devices[s.Index]
	if !ok {
		dev = newDevice(s.Index, r.capacity)
		r.devices[s.Index] = dev
		isNew = true
	}
	dev.apply(s)
	return dev, isNew
}

// Get returns the device at index.
func (r *Registry) Get(index int) (*Device, bool) {
	dev, ok := r.devices[index]
	return dev, ok
}

// Len returns the number of known devices.
func (r *Registry) Len() int {
	return len(r.devices)
}

// Capacity returns the per-metric history size for new devices.
func (r *Registry) Capacity() int {
	return r.capacity
}

// Clear drops every device.
func (r *Registry) Clear() {
	r.devices = make(map[int]*Device)
}

// All yields (index, device) pairs in no particular order.
func (r *Registry) All() iter.Seq2[int, *Device] {
	return func(yield func(int, *Device) bool) {
		for idx, dev := range r.devices {
			if !yield(idx, dev) {
				return
			}
		}
	}
}

// Snapshots copies every device, sorted by index.
func (r *Registry) Snapshots() []DeviceSnapshot {
	out := make([]DeviceSnapshot, 0, len(r.devices))
	for _, dev := range r.All() {
		out = append(out, dev.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
