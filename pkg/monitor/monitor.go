package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/miwatch/miwatch/pkg/config"
	"github.com/miwatch/miwatch/pkg/db"
	"github.com/miwatch/miwatch/pkg/mijia"
)

const (
	// tickInterval is the scheduler's evaluation cadence.
	tickInterval = time.Second

	// tickErrorBackoff is how long the scheduler pauses after a
	// failed tick before resuming.
	tickErrorBackoff = 5 * time.Second

	// stopTimeout bounds how long Stop waits for loops to drain.
	// Loops still blocked on a network call past the timeout are
	// abandoned; a late write is accepted as harmless staleness.
	stopTimeout = 5 * time.Second

	// queueCapacity sizes the task channel. A device whose enqueue
	// would block is skipped and retried on the next tick.
	queueCapacity = 1024
)

// task is one unit of polling work: a device id plus an immutable
// snapshot of its metadata taken at enqueue time, so workers never
// need the registry lock.
type task struct {
	did    string
	device mijia.DeviceInfo
}

// Monitor owns the device registry, the polling scheduler and the
// worker pool. One scheduler loop decides which devices are due each
// tick; N workers drain the shared task queue and poll devices.
type Monitor struct {
	cfg    *config.Config
	store  *db.DB
	client mijia.Client
	bus    *Bus
	logger zerolog.Logger

	mu      sync.Mutex
	devices map[string]mijia.DeviceInfo
	order   []string // Insertion order, for deterministic tick iteration
	running bool
	stopCh  chan struct{}
	tasks   chan task
	wg      *sync.WaitGroup
}

// New creates a Monitor. The client may be unavailable; monitoring
// simply cannot start until it is.
func New(cfg *config.Config, store *db.DB, client mijia.Client, logger zerolog.Logger) *Monitor {
	return &Monitor{
		cfg:     cfg,
		store:   store,
		client:  client,
		bus:     NewBus(logger),
		logger:  logger,
		devices: make(map[string]mijia.DeviceInfo),
	}
}

// Bus returns the monitor's event bus.
func (m *Monitor) Bus() *Bus {
	return m.bus
}

// Running reports whether monitoring is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// FetchDevices pulls the device list from the cloud, replaces the
// in-memory registry entries and mirrors each device into the store.
func (m *Monitor) FetchDevices(ctx context.Context) error {
	if !m.client.Available() {
		return ErrClientUnavailable
	}

	list, err := m.client.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, info := range list {
		if _, seen := m.devices[info.DID]; !seen {
			m.order = append(m.order, info.DID)
		}
		m.devices[info.DID] = info

		if err := m.store.Devices().Upsert(ctx, info); err != nil {
			m.logger.Error().Err(err).Str("did", info.DID).Msg("failed to upsert device")
		}
	}

	m.logger.Info().Int("count", len(list)).Msg("fetched devices")
	return nil
}

// Devices returns a snapshot of all registry devices in insertion
// order.
func (m *Monitor) Devices() []mijia.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	devices := make([]mijia.DeviceInfo, 0, len(m.order))
	for _, did := range m.order {
		devices = append(devices, m.devices[did])
	}
	return devices
}

// Device returns one registry device by id.
func (m *Monitor) Device(did string) (mijia.DeviceInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.devices[did]
	return info, ok
}

// Start begins monitoring. With no arguments all registry devices are
// monitored; otherwise only the given ids, silently dropping ids not
// present in the registry. Fails without spawning anything if the
// resulting set is empty, the client is unavailable, or monitoring is
// already running.
func (m *Monitor) Start(deviceIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return ErrAlreadyRunning
	}
	if !m.client.Available() {
		return ErrClientUnavailable
	}

	var monitorList []string
	if len(deviceIDs) == 0 {
		monitorList = append(monitorList, m.order...)
	} else {
		for _, did := range deviceIDs {
			if _, ok := m.devices[did]; ok {
				monitorList = append(monitorList, did)
			}
		}
	}
	if len(monitorList) == 0 {
		return ErrNoDevices
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.tasks = make(chan task, queueCapacity)
	m.wg = &sync.WaitGroup{}

	workers := m.cfg.WorkerThreads()
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i, m.wg, m.stopCh, m.tasks)
	}

	m.wg.Add(1)
	go m.scheduler(monitorList, m.wg, m.stopCh, m.tasks)

	m.logger.Info().
		Int("devices", len(monitorList)).
		Int("workers", workers).
		Msg("monitoring started")
	return nil
}

// Stop signals all loops to exit and waits for them up to
// stopTimeout. Stopping an idle monitor is a no-op.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	wg := m.wg
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info().Msg("monitoring stopped")
	case <-time.After(stopTimeout):
		m.logger.Warn().Msg("stop timed out, abandoning in-flight polls")
	}
}

// scheduler runs the once-per-tick due-device evaluation until
// stopped. A failed tick is logged and followed by a backoff; the
// loop never terminates on a single bad tick.
func (m *Monitor) scheduler(dids []string, wg *sync.WaitGroup, stopCh chan struct{}, tasks chan task) {
	defer wg.Done()

	lastEnqueue := make(map[string]time.Time)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	// First pass runs immediately so never-polled devices do not
	// wait out a full tick.
	if err := m.tick(time.Now(), dids, lastEnqueue, tasks); err != nil {
		m.logger.Error().Err(err).Msg("scheduler tick failed")
	}

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if err := m.tick(now, dids, lastEnqueue, tasks); err != nil {
				m.logger.Error().Err(err).Msg("scheduler tick failed")
				select {
				case <-stopCh:
					return
				case <-time.After(tickErrorBackoff):
				}
			}
		}
	}
}

// tick enqueues a poll task for every monitored device whose
// effective interval has elapsed since its last enqueue. A device
// never enqueued is due immediately.
func (m *Monitor) tick(now time.Time, dids []string, lastEnqueue map[string]time.Time, tasks chan task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	for _, did := range dids {
		m.mu.Lock()
		info, ok := m.devices[did]
		m.mu.Unlock()
		if !ok {
			continue
		}

		if stamp, seen := lastEnqueue[did]; seen && now.Sub(stamp) < m.effectiveInterval(info) {
			continue
		}

		select {
		case tasks <- task{did: did, device: info}:
			lastEnqueue[did] = now
		default:
			// Queue full: skip without stamping so the device is
			// retried next tick.
			m.logger.Warn().Str("did", did).Msg("task queue full, poll delayed")
		}
	}
	return nil
}

// effectiveInterval resolves a device's poll interval: persisted
// per-device override if non-zero, else the type-keyed configured
// default, else the global default.
func (m *Monitor) effectiveInterval(info mijia.DeviceInfo) time.Duration {
	if d, err := m.store.Devices().Get(context.Background(), info.DID); err == nil && d.MonitorInterval > 0 {
		return time.Duration(d.MonitorInterval) * time.Second
	}
	seconds := m.cfg.DeviceInterval(mijia.DeviceType(info.Model))
	return time.Duration(seconds) * time.Second
}

// worker drains the task queue until stopped. A panic while polling
// one device is recovered; it never kills the worker.
func (m *Monitor) worker(id int, wg *sync.WaitGroup, stopCh chan struct{}, tasks chan task) {
	defer wg.Done()
	logger := m.logger.With().Int("worker", id).Logger()

	for {
		select {
		case <-stopCh:
			return
		case t := <-tasks:
			m.poll(logger, t)
		}
	}
}

// poll reads all readable properties of one device and persists the
// outcome. Spec resolution failure aborts silently; a single failed
// property read is skipped; zero successful reads marks the device
// offline.
func (m *Monitor) poll(logger zerolog.Logger, t task) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("poll panic: %v", r)
			logger.Error().Err(err).Str("did", t.did).Msg("device poll failed")
			m.bus.Publish(Event{Kind: EventError, DID: t.did, Device: t.device, Err: err})
		}
	}()

	ctx := context.Background()

	spec, err := m.client.GetSpec(ctx, t.device.Model)
	if err != nil {
		// Unknown model: no record, no event. The device is retried
		// on its normal schedule.
		logger.Debug().Err(err).Str("did", t.did).Str("model", t.device.Model).
			Msg("no property spec for device")
		return
	}

	props := make(map[string]any)
	for _, p := range spec.Properties {
		if !p.Readable() {
			continue
		}
		results, err := m.client.GetProps(ctx, []mijia.PropRequest{{DID: t.did, SIID: p.SIID, PIID: p.PIID}})
		if err != nil || len(results) == 0 || !results[0].OK() {
			// Partial success is normal; skip this property.
			continue
		}
		props[p.Name] = results[0].Value

		if err := m.store.History().AppendProperty(ctx, t.did, p.Name, results[0].Value); err != nil {
			logger.Error().Err(err).Str("did", t.did).Str("property", p.Name).
				Msg("failed to record property")
		}
	}

	if len(props) == 0 {
		if err := m.store.History().AppendStatus(ctx, t.did, nil, false); err != nil {
			logger.Error().Err(err).Str("did", t.did).Msg("failed to record offline status")
			m.bus.Publish(Event{Kind: EventError, DID: t.did, Device: t.device, Err: err})
		}
		m.bus.Publish(Event{Kind: EventDeviceOffline, DID: t.did, Device: t.device})
		return
	}

	wasOffline := false
	if d, err := m.store.Devices().Get(ctx, t.did); err == nil && !d.Online {
		wasOffline = true
	}

	if err := m.store.History().AppendStatus(ctx, t.did, props, true); err != nil {
		logger.Error().Err(err).Str("did", t.did).Msg("failed to record status")
		m.bus.Publish(Event{Kind: EventError, DID: t.did, Device: t.device, Err: err})
		return
	}

	if wasOffline {
		m.bus.Publish(Event{Kind: EventDeviceOnline, DID: t.did, Device: t.device})
	}
	m.bus.Publish(Event{Kind: EventDeviceUpdate, DID: t.did, Device: t.device, Properties: props})

	if m.cfg.AlertsEnabled() {
		m.checkAlerts(ctx, logger, t, props)
	}
}

// checkAlerts runs the rule evaluator over one poll's readings and
// persists an alert row per triggered rule. A stored per-device
// override with alerts switched off suppresses matches on that
// property.
func (m *Monitor) checkAlerts(ctx context.Context, logger zerolog.Logger, t task, props map[string]any) {
	muted := make(map[string]bool)
	if overrides, err := m.store.Overrides().ListForDevice(ctx, t.did); err == nil {
		for _, o := range overrides {
			if !o.AlertEnabled {
				muted[o.PropertyName] = true
			}
		}
	}

	deviceType := mijia.DeviceType(t.device.Model)
	for _, match := range EvaluateRules(deviceType, props, m.cfg.AlertRules()) {
		if muted[match.Property] {
			continue
		}
		title := fmt.Sprintf("%s - %s", t.device.Name, match.Rule.Name)
		message := fmt.Sprintf("property %s is %v, triggered condition: %s %v",
			match.Property, match.Raw, match.Rule.Condition, match.Rule.Threshold)

		if _, err := m.store.Alerts().Append(ctx, t.did, "property_alert", db.SeverityWarning, title, message); err != nil {
			logger.Error().Err(err).Str("did", t.did).Str("rule", match.Rule.Name).
				Msg("failed to record alert")
			continue
		}

		rule := match.Rule
		m.bus.Publish(Event{
			Kind:     EventPropertyAlert,
			DID:      t.did,
			Device:   t.device,
			Rule:     &rule,
			Property: match.Property,
			Value:    match.Raw,
		})
	}
}
