package monitor

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miwatch/miwatch/pkg/config"
	"github.com/miwatch/miwatch/pkg/db"
	"github.com/miwatch/miwatch/pkg/mijia"
)

// fakeClient is a scriptable in-memory mijia.Client.
type fakeClient struct {
	mu        sync.Mutex
	available bool
	devices   []mijia.DeviceInfo
	specs     map[string]*mijia.DeviceSpec
	values    map[string]map[int]mijia.PropResult // did -> siid -> result
	blockCh   chan struct{}                       // If set, GetProps blocks until closed
}

func (c *fakeClient) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *fakeClient) ListDevices(ctx context.Context) ([]mijia.DeviceInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]mijia.DeviceInfo{}, c.devices...), nil
}

func (c *fakeClient) GetSpec(ctx context.Context, model string) (*mijia.DeviceSpec, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.specs[model]
	if !ok {
		return nil, mijia.ErrUnknownModel
	}
	return spec, nil
}

func (c *fakeClient) GetProps(ctx context.Context, reqs []mijia.PropRequest) ([]mijia.PropResult, error) {
	c.mu.Lock()
	block := c.blockCh
	c.mu.Unlock()
	if block != nil {
		<-block
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	results := make([]mijia.PropResult, 0, len(reqs))
	for _, req := range reqs {
		if res, ok := c.values[req.DID][req.SIID]; ok {
			results = append(results, res)
		} else {
			results = append(results, mijia.PropResult{Code: -1})
		}
	}
	return results, nil
}

func sensorSpec() *mijia.DeviceSpec {
	return &mijia.DeviceSpec{Properties: []mijia.SpecProperty{
		{Name: "temperature", RW: "r", SIID: 1, PIID: 1},
		{Name: "humidity", RW: "r", SIID: 2, PIID: 1},
		{Name: "battery", RW: "r", SIID: 3, PIID: 1},
		{Name: "unit", RW: "w", SIID: 4, PIID: 1},
	}}
}

func sensorDevice(did string) mijia.DeviceInfo {
	return mijia.DeviceInfo{
		DID:    did,
		Name:   "Bedroom Sensor",
		Model:  "miaomiaoce.sensor_ht.t2",
		Type:   "sensor",
		Online: true,
	}
}

func newTestConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func newTestMonitor(t *testing.T, cfg *config.Config, client mijia.Client) (*Monitor, *db.DB) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, database.Migrate(context.Background()))

	return New(cfg, database, client, zerolog.Nop()), database
}

// collectEvents subscribes to one kind and returns the received
// events through the pointer. Dispatch is synchronous, so no locking
// is needed when polling from the test goroutine.
func collectEvents(bus *Bus, kind EventKind, out *[]Event) {
	bus.Subscribe(kind, func(e Event) {
		*out = append(*out, e)
	})
}

func TestFetchDevices(t *testing.T) {
	client := &fakeClient{
		available: true,
		devices:   []mijia.DeviceInfo{sensorDevice("did-1"), sensorDevice("did-2")},
	}
	m, database := newTestMonitor(t, newTestConfig(t, ""), client)

	require.NoError(t, m.FetchDevices(context.Background()))

	devices := m.Devices()
	require.Len(t, devices, 2)
	// Insertion order is preserved.
	assert.Equal(t, "did-1", devices[0].DID)
	assert.Equal(t, "did-2", devices[1].DID)

	// Registry is mirrored into the store.
	stored, err := database.Devices().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	// A repeat fetch does not duplicate.
	require.NoError(t, m.FetchDevices(context.Background()))
	assert.Len(t, m.Devices(), 2)
}

func TestFetchDevicesUnavailable(t *testing.T) {
	m, _ := newTestMonitor(t, newTestConfig(t, ""), &fakeClient{})
	assert.ErrorIs(t, m.FetchDevices(context.Background()), ErrClientUnavailable)
}

func TestStartFailures(t *testing.T) {
	client := &fakeClient{available: true, devices: []mijia.DeviceInfo{sensorDevice("did-1")}}
	m, _ := newTestMonitor(t, newTestConfig(t, ""), client)

	// Empty registry: nothing to monitor.
	assert.ErrorIs(t, m.Start(), ErrNoDevices)

	require.NoError(t, m.FetchDevices(context.Background()))

	// Unknown ids are silently dropped; an all-unknown set is empty.
	assert.ErrorIs(t, m.Start("nope-1", "nope-2"), ErrNoDevices)

	// Unavailable client refuses to start.
	client.mu.Lock()
	client.available = false
	client.mu.Unlock()
	assert.ErrorIs(t, m.Start(), ErrClientUnavailable)
	assert.False(t, m.Running())
}

func TestStartStopLifecycle(t *testing.T) {
	client := &fakeClient{
		available: true,
		devices:   []mijia.DeviceInfo{sensorDevice("did-1")},
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values: map[string]map[int]mijia.PropResult{
			"did-1": {1: {Code: 0, Value: 21.5}, 2: {Code: 0, Value: 40.0}, 3: {Code: 0, Value: 95.0}},
		},
	}
	m, database := newTestMonitor(t, newTestConfig(t, "monitor:\n  worker_threads: 2\n"), client)
	require.NoError(t, m.FetchDevices(context.Background()))

	require.NoError(t, m.Start())
	assert.True(t, m.Running())

	// A second start without stop is rejected.
	assert.ErrorIs(t, m.Start(), ErrAlreadyRunning)

	// The immediate first tick polls the device.
	require.Eventually(t, func() bool {
		stats, err := database.Stats(context.Background())
		return err == nil && stats.StatusRecords >= 1
	}, 3*time.Second, 20*time.Millisecond)

	m.Stop()
	assert.False(t, m.Running())

	// Stopping again is a no-op.
	m.Stop()

	// The monitor can be restarted after a stop.
	require.NoError(t, m.Start())
	m.Stop()
}

func TestStopReturnsWhileWorkerBlocked(t *testing.T) {
	block := make(chan struct{})
	client := &fakeClient{
		available: true,
		devices:   []mijia.DeviceInfo{sensorDevice("did-1")},
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		blockCh:   block,
	}
	m, _ := newTestMonitor(t, newTestConfig(t, ""), client)
	require.NoError(t, m.FetchDevices(context.Background()))
	require.NoError(t, m.Start())

	// Give the first tick time to hand a task to a worker, which
	// then blocks inside GetProps.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	m.Stop()
	elapsed := time.Since(start)

	assert.Less(t, elapsed, stopTimeout+time.Second, "Stop must return within the join timeout")
	assert.False(t, m.Running())

	close(block)
}

func TestPollPartialSuccess(t *testing.T) {
	client := &fakeClient{
		available: true,
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values: map[string]map[int]mijia.PropResult{
			// humidity (siid 2) fails; temperature and battery read.
			"did-1": {1: {Code: 0, Value: 21.5}, 3: {Code: 0, Value: 95.0}},
		},
	}
	m, database := newTestMonitor(t, newTestConfig(t, ""), client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))

	var updates, offlines []Event
	collectEvents(m.Bus(), EventDeviceUpdate, &updates)
	collectEvents(m.Bus(), EventDeviceOffline, &offlines)

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	stats, err := database.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.StatusRecords)
	assert.Equal(t, int64(2), stats.PropertyRecords)

	d, err := database.Devices().Get(ctx, "did-1")
	require.NoError(t, err)
	assert.True(t, d.Online)

	require.Len(t, updates, 1)
	assert.Equal(t, 21.5, updates[0].Properties["temperature"])
	assert.NotContains(t, updates[0].Properties, "humidity")
	assert.Empty(t, offlines)
}

func TestPollSpecLookupFailure(t *testing.T) {
	client := &fakeClient{available: true, specs: map[string]*mijia.DeviceSpec{}}
	m, database := newTestMonitor(t, newTestConfig(t, ""), client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))

	var updates, offlines, errs []Event
	collectEvents(m.Bus(), EventDeviceUpdate, &updates)
	collectEvents(m.Bus(), EventDeviceOffline, &offlines)
	collectEvents(m.Bus(), EventError, &errs)

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	// Silent abort: no records, no events.
	stats, err := database.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.StatusRecords)
	assert.Equal(t, int64(0), stats.PropertyRecords)
	assert.Empty(t, updates)
	assert.Empty(t, offlines)
	assert.Empty(t, errs)
}

func TestPollZeroPropertiesMarksOffline(t *testing.T) {
	client := &fakeClient{
		available: true,
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values:    map[string]map[int]mijia.PropResult{}, // every read fails
	}
	m, database := newTestMonitor(t, newTestConfig(t, ""), client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))

	var offlines []Event
	collectEvents(m.Bus(), EventDeviceOffline, &offlines)

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	stats, err := database.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.StatusRecords)
	assert.Equal(t, int64(0), stats.PropertyRecords)

	d, err := database.Devices().Get(ctx, "did-1")
	require.NoError(t, err)
	assert.False(t, d.Online)

	latest, err := database.History().LatestStatus(ctx, "did-1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.False(t, latest.Online)
	assert.Empty(t, latest.Status)

	require.Len(t, offlines, 1)
	assert.Equal(t, "did-1", offlines[0].DID)
}

func TestPollEmitsDeviceOnlineAfterOffline(t *testing.T) {
	client := &fakeClient{
		available: true,
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values: map[string]map[int]mijia.PropResult{
			"did-1": {1: {Code: 0, Value: 21.5}},
		},
	}
	m, database := newTestMonitor(t, newTestConfig(t, ""), client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))
	require.NoError(t, database.History().AppendStatus(ctx, "did-1", nil, false))

	var onlines []Event
	collectEvents(m.Bus(), EventDeviceOnline, &onlines)

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	require.Len(t, onlines, 1)
	assert.Equal(t, "did-1", onlines[0].DID)

	// A second successful poll does not re-announce.
	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})
	assert.Len(t, onlines, 1)
}

func TestPollAlertNoDeduplication(t *testing.T) {
	client := &fakeClient{
		available: true,
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values: map[string]map[int]mijia.PropResult{
			"did-1": {1: {Code: 0, Value: 31.0}},
		},
	}
	cfg := newTestConfig(t, `
alerts:
  enabled: true
  rules:
    - name: high temperature
      device_type: sensor
      property: temperature
      condition: ">"
      threshold: 30
`)
	m, database := newTestMonitor(t, cfg, client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))

	var alerts []Event
	collectEvents(m.Bus(), EventPropertyAlert, &alerts)

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	require.Len(t, alerts, 1)
	assert.Equal(t, "temperature", alerts[0].Property)
	assert.Equal(t, 31.0, alerts[0].Value)
	require.NotNil(t, alerts[0].Rule)
	assert.Equal(t, "high temperature", alerts[0].Rule.Name)

	rows, err := database.Alerts().Unresolved(ctx, "did-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, db.SeverityWarning, rows[0].Severity)
	assert.Equal(t, "property_alert", rows[0].AlertType)
	assert.Contains(t, rows[0].Title, "high temperature")

	// The same condition fires again on the next poll: a second,
	// independent alert row.
	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	rows, err = database.Alerts().Unresolved(ctx, "did-1")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, alerts, 2)
}

func TestPollAlertsDisabled(t *testing.T) {
	client := &fakeClient{
		available: true,
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values: map[string]map[int]mijia.PropResult{
			"did-1": {1: {Code: 0, Value: 31.0}},
		},
	}
	cfg := newTestConfig(t, `
alerts:
  enabled: false
  rules:
    - name: high temperature
      device_type: sensor
      property: temperature
      condition: ">"
      threshold: 30
`)
	m, database := newTestMonitor(t, cfg, client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	rows, err := database.Alerts().Unresolved(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEffectiveIntervalResolution(t *testing.T) {
	cfg := newTestConfig(t, `
monitor:
  default_interval: 60
  device_intervals:
    sensor: 10
`)
	m, database := newTestMonitor(t, cfg, &fakeClient{available: true})
	ctx := context.Background()

	sensor := sensorDevice("did-1")
	require.NoError(t, database.Devices().Upsert(ctx, sensor))

	// Type default applies when no override is set.
	assert.Equal(t, 10*time.Second, m.effectiveInterval(sensor))

	// The per-device override wins over the type default.
	require.NoError(t, database.Devices().SetMonitorInterval(ctx, "did-1", 15))
	assert.Equal(t, 15*time.Second, m.effectiveInterval(sensor))

	// A zero override falls back to the type default.
	require.NoError(t, database.Devices().SetMonitorInterval(ctx, "did-1", 0))
	assert.Equal(t, 10*time.Second, m.effectiveInterval(sensor))

	// An unclassified model falls back to the global default.
	other := mijia.DeviceInfo{DID: "did-2", Name: "Widget", Model: "acme.widget.v1"}
	require.NoError(t, database.Devices().Upsert(ctx, other))
	assert.Equal(t, 60*time.Second, m.effectiveInterval(other))
}

func TestTickEnqueuesDueDevices(t *testing.T) {
	cfg := newTestConfig(t, "monitor:\n  default_interval: 60\n")
	m, database := newTestMonitor(t, cfg, &fakeClient{available: true})
	ctx := context.Background()

	info := mijia.DeviceInfo{DID: "did-1", Name: "Widget", Model: "acme.widget.v1"}
	require.NoError(t, database.Devices().Upsert(ctx, info))
	m.mu.Lock()
	m.devices["did-1"] = info
	m.order = append(m.order, "did-1")
	m.mu.Unlock()

	tasks := make(chan task, 16)
	lastEnqueue := make(map[string]time.Time)
	now := time.Now()

	// Never enqueued: due immediately.
	require.NoError(t, m.tick(now, []string{"did-1"}, lastEnqueue, tasks))
	require.Len(t, tasks, 1)
	got := <-tasks
	assert.Equal(t, "did-1", got.did)
	assert.Equal(t, "Widget", got.device.Name)

	// Interval not yet elapsed: nothing enqueued.
	require.NoError(t, m.tick(now.Add(30*time.Second), []string{"did-1"}, lastEnqueue, tasks))
	assert.Empty(t, tasks)

	// Interval elapsed: due again.
	require.NoError(t, m.tick(now.Add(61*time.Second), []string{"did-1"}, lastEnqueue, tasks))
	assert.Len(t, tasks, 1)

	// Unknown ids are skipped without enqueueing.
	<-tasks
	require.NoError(t, m.tick(now.Add(200*time.Second), []string{"missing"}, lastEnqueue, tasks))
	assert.Empty(t, tasks)
}

func TestPollAlertSuppressedByOverride(t *testing.T) {
	client := &fakeClient{
		available: true,
		specs:     map[string]*mijia.DeviceSpec{"miaomiaoce.sensor_ht.t2": sensorSpec()},
		values: map[string]map[int]mijia.PropResult{
			"did-1": {1: {Code: 0, Value: 31.0}},
		},
	}
	cfg := newTestConfig(t, `
alerts:
  enabled: true
  rules:
    - name: high temperature
      device_type: sensor
      property: temperature
      condition: ">"
      threshold: 30
`)
	m, database := newTestMonitor(t, cfg, client)
	ctx := context.Background()
	require.NoError(t, database.Devices().Upsert(ctx, sensorDevice("did-1")))
	require.NoError(t, database.Overrides().Set(ctx, db.Override{
		DID:          "did-1",
		PropertyName: "temperature",
		Enabled:      true,
		AlertEnabled: false,
	}))

	var alerts []Event
	collectEvents(m.Bus(), EventPropertyAlert, &alerts)

	m.poll(zerolog.Nop(), task{did: "did-1", device: sensorDevice("did-1")})

	rows, err := database.Alerts().Unresolved(ctx, "did-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Empty(t, alerts)
}
