package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config wraps a viper instance and exposes typed accessors for the
// monitor's configuration surface. Keys are dotted paths into the YAML
// config file; every key has a default so a missing file still yields
// a working configuration.
type Config struct {
	v     *viper.Viper
	rules []AlertRule
}

// Load reads configuration from the given file path. An empty path
// falls back to config.yaml in the working directory. A missing file
// is not an error; defaults apply. An invalid alert rule list is an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{v: v}

	rules, err := loadRules(v)
	if err != nil {
		return nil, fmt.Errorf("failed to load alert rules: %w", err)
	}
	cfg.rules = rules

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mijia.auth_file", "config/mijia_auth.json")
	v.SetDefault("mijia.timeout", 10)

	v.SetDefault("monitor.default_interval", 60)
	v.SetDefault("monitor.worker_threads", 5)
	v.SetDefault("monitor.auto_start", false)
	v.SetDefault("monitor.device_intervals", map[string]int{})

	v.SetDefault("database.path", "data/monitor.db")
	v.SetDefault("database.retention_days", 30)
	v.SetDefault("database.auto_cleanup", true)

	v.SetDefault("alerts.enabled", true)

	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.types.device_offline", true)
	v.SetDefault("notification.types.device_online", true)
	v.SetDefault("notification.types.property_alert", true)

	v.SetDefault("logging.level", "info")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.addr", "0.0.0.0:8080")
}

// AuthFile returns the path to the saved cloud session.
func (c *Config) AuthFile() string {
	return c.v.GetString("mijia.auth_file")
}

// DefaultInterval returns the global poll interval in seconds.
func (c *Config) DefaultInterval() int {
	return c.v.GetInt("monitor.default_interval")
}

// DeviceInterval returns the poll interval for a device type, falling
// back to the global default when the type has no entry.
func (c *Config) DeviceInterval(deviceType string) int {
	intervals := c.v.GetStringMap("monitor.device_intervals")
	if raw, ok := intervals[deviceType]; ok {
		if n := toInt(raw); n > 0 {
			return n
		}
	}
	return c.DefaultInterval()
}

// WorkerThreads returns the size of the polling worker pool.
func (c *Config) WorkerThreads() int {
	n := c.v.GetInt("monitor.worker_threads")
	if n <= 0 {
		return 5
	}
	return n
}

// AutoStart reports whether monitoring starts automatically at boot.
func (c *Config) AutoStart() bool {
	return c.v.GetBool("monitor.auto_start")
}

// DatabasePath returns the SQLite database file path.
func (c *Config) DatabasePath() string {
	return c.v.GetString("database.path")
}

// RetentionDays returns how long history rows are kept.
func (c *Config) RetentionDays() int {
	return c.v.GetInt("database.retention_days")
}

// AutoCleanup reports whether the retention job runs automatically.
func (c *Config) AutoCleanup() bool {
	return c.v.GetBool("database.auto_cleanup")
}

// AlertsEnabled reports whether rule evaluation runs at all.
func (c *Config) AlertsEnabled() bool {
	return c.v.GetBool("alerts.enabled")
}

// AlertRules returns the configured alert rules in file order.
func (c *Config) AlertRules() []AlertRule {
	return c.rules
}

// NotificationsEnabled reports whether the notifier is active.
func (c *Config) NotificationsEnabled() bool {
	return c.v.GetBool("notification.enabled")
}

// NotifyOn reports whether notifications are enabled for an event
// kind (device_offline, device_online, property_alert).
func (c *Config) NotifyOn(kind string) bool {
	key := "notification.types." + kind
	if !c.v.IsSet(key) {
		return false
	}
	return c.v.GetBool(key)
}

// LogLevel returns the configured log level string.
func (c *Config) LogLevel() string {
	return c.v.GetString("logging.level")
}

// APIEnabled reports whether the REST API should be served.
func (c *Config) APIEnabled() bool {
	return c.v.GetBool("api.enabled")
}

// APIAddr returns the REST API listen address.
func (c *Config) APIAddr() string {
	return c.v.GetString("api.addr")
}

func toInt(raw any) int {
	switch n := raw.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
