package config

import (
	"fmt"
	"time"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetFeeds() (*FeedsData, error)
	GetRESTServer() (*RESTServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Variant        types.Variant  `json:"variant"`
	MonitoredPlant types.Plant    `json:"monitored_plant"`
	SensorPlant    types.Plant    `json:"sensor_plant"`
	TrendDays      int            `json:"trend_days"`
	Feeds          FeedsData      `json:"feeds"`
	RESTServer     RESTServerData `json:"rest"`
	Log            LogData        `json:"log"`
}

// FeedsData locates the external alert and sensor-log feeds. Either URL may
// be empty.
type FeedsData struct {
	AlertsURL    string        `json:"alerts_url,omitempty"`
	SensorURL    string        `json:"sensor_url,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	AlertRefresh time.Duration `json:"alert_refresh,omitempty"`
}

type RESTServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"http_port,omitempty"`
}

type LogData struct {
	Debug bool   `json:"debug,omitempty"`
	File  string `json:"file,omitempty"`
}

// Defaults for settings left out of the configuration source.
const (
	DefaultTrendDays    = 7
	DefaultListenAddr   = "0.0.0.0"
	DefaultHTTPPort     = 8080
	DefaultFeedTimeout  = 10 * time.Second
	DefaultAlertRefresh = time.Minute
)

// ApplyDefaults fills every unset field with its default.
func (c *ConfigData) ApplyDefaults() {
	if c.Variant == "" {
		c.Variant = types.VariantSensor
	}
	if c.TrendDays == 0 {
		c.TrendDays = DefaultTrendDays
	}
	if c.Feeds.Timeout == 0 {
		c.Feeds.Timeout = DefaultFeedTimeout
	}
	if c.Feeds.AlertRefresh == 0 {
		c.Feeds.AlertRefresh = DefaultAlertRefresh
	}
	if c.RESTServer.ListenAddr == "" {
		c.RESTServer.ListenAddr = DefaultListenAddr
	}
	if c.RESTServer.Port == 0 {
		c.RESTServer.Port = DefaultHTTPPort
	}
}

// Validate rejects values the monitor cannot run with.
func (c *ConfigData) Validate() error {
	if _, err := types.ParseVariant(string(c.Variant)); err != nil {
		return err
	}
	if !c.MonitoredPlant.Valid() {
		return fmt.Errorf("invalid monitored_plant %v", c.MonitoredPlant)
	}
	if !c.SensorPlant.Valid() {
		return fmt.Errorf("invalid sensor_plant %v", c.SensorPlant)
	}
	if c.TrendDays < 1 {
		return fmt.Errorf("trend_days must be at least 1, got %d", c.TrendDays)
	}
	if c.Feeds.Timeout < 0 || c.Feeds.AlertRefresh < 0 {
		return fmt.Errorf("feed durations must not be negative")
	}
	if c.RESTServer.Port < 1 || c.RESTServer.Port > 65535 {
		return fmt.Errorf("invalid http_port %d", c.RESTServer.Port)
	}
	return nil
}
