package monitor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/miwatch/miwatch/pkg/config"
	"github.com/miwatch/miwatch/pkg/db"
)

// Notifier turns monitor events into system log entries, honoring
// the notification.* config toggles.
type Notifier struct {
	cfg    *config.Config
	logs   db.LogStore
	logger zerolog.Logger
}

// NewNotifier creates a Notifier writing to the given log store.
func NewNotifier(cfg *config.Config, logs db.LogStore, logger zerolog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logs: logs, logger: logger}
}

// Register subscribes the notifier to the notifiable event kinds.
func (n *Notifier) Register(bus *Bus) {
	bus.Subscribe(EventDeviceOffline, n.handle)
	bus.Subscribe(EventDeviceOnline, n.handle)
	bus.Subscribe(EventPropertyAlert, n.handle)
}

func (n *Notifier) handle(e Event) {
	if !n.cfg.NotificationsEnabled() || !n.cfg.NotifyOn(string(e.Kind)) {
		return
	}

	level := db.SeverityInfo
	var message string
	extra := map[string]any{"did": e.DID, "device": e.Device.Name}

	switch e.Kind {
	case EventDeviceOffline:
		level = db.SeverityWarning
		message = fmt.Sprintf("device %s went offline", e.Device.Name)
	case EventDeviceOnline:
		message = fmt.Sprintf("device %s came back online", e.Device.Name)
	case EventPropertyAlert:
		level = db.SeverityWarning
		message = fmt.Sprintf("device %s triggered rule %s", e.Device.Name, e.Rule.Name)
		extra["property"] = e.Property
		extra["value"] = e.Value
	default:
		return
	}

	if err := n.logs.Append(context.Background(), level, "notify", message, extra); err != nil {
		n.logger.Error().Err(err).Str("event", string(e.Kind)).Msg("failed to record notification")
	}
}
