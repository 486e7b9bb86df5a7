package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/chrissnell/hydromonitor/internal/types"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file. Defaults are
// applied before validation.
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, err
	}

	y.config = config
	return config, nil
}

// ParseYAML decodes, defaults and validates a YAML document.
func ParseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig ConfigYAML
	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	config := &ConfigData{
		TrendDays: yamlConfig.TrendDays,
		Feeds: FeedsData{
			AlertsURL: yamlConfig.Feeds.AlertsURL,
			SensorURL: yamlConfig.Feeds.SensorURL,
		},
		RESTServer: RESTServerData{
			ListenAddr: yamlConfig.REST.ListenAddr,
			Port:       yamlConfig.REST.Port,
		},
		Log: LogData{
			Debug: yamlConfig.Log.Debug,
			File:  yamlConfig.Log.File,
		},
	}

	if yamlConfig.Variant != "" {
		v, err := types.ParseVariant(yamlConfig.Variant)
		if err != nil {
			return nil, err
		}
		config.Variant = v
	}

	var err error
	if config.MonitoredPlant, err = parsePlant("monitored_plant", yamlConfig.MonitoredPlant); err != nil {
		return nil, err
	}
	if config.SensorPlant, err = parsePlant("sensor_plant", yamlConfig.SensorPlant); err != nil {
		return nil, err
	}
	if config.Feeds.Timeout, err = parseDuration("feeds.timeout", yamlConfig.Feeds.Timeout); err != nil {
		return nil, err
	}
	if config.Feeds.AlertRefresh, err = parseDuration("feeds.alert_refresh", yamlConfig.Feeds.AlertRefresh); err != nil {
		return nil, err
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// parsePlant resolves a plant name; an empty name means Chili.
func parsePlant(key, name string) (types.Plant, error) {
	if name == "" {
		return types.Chili, nil
	}
	p, ok := types.ParsePlant(name)
	if !ok {
		return 0, fmt.Errorf("%s: unknown plant %q", key, name)
	}
	return p, nil
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// GetFeeds returns the feeds section
func (y *YAMLProvider) GetFeeds() (*FeedsData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.Feeds, nil
}

// GetRESTServer returns the REST server section
func (y *YAMLProvider) GetRESTServer() (*RESTServerData, error) {
	config, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &config.RESTServer, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config != nil {
		return y.config, nil
	}
	return y.LoadConfig()
}

// IsReadOnly returns true since YAML files are treated as read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with YAML tags

type ConfigYAML struct {
	Variant        string    `yaml:"variant,omitempty"`
	MonitoredPlant string    `yaml:"monitored_plant,omitempty"`
	SensorPlant    string    `yaml:"sensor_plant,omitempty"`
	TrendDays      int       `yaml:"trend_days,omitempty"`
	Feeds          FeedsYAML `yaml:"feeds,omitempty"`
	REST           RESTYAML  `yaml:"rest,omitempty"`
	Log            LogYAML   `yaml:"log,omitempty"`
}

type FeedsYAML struct {
	AlertsURL    string `yaml:"alerts_url,omitempty"`
	SensorURL    string `yaml:"sensor_url,omitempty"`
	Timeout      string `yaml:"timeout,omitempty"`
	AlertRefresh string `yaml:"alert_refresh,omitempty"`
}

type RESTYAML struct {
	ListenAddr string `yaml:"listen_addr,omitempty"`
	Port       int    `yaml:"http_port,omitempty"`
}

type LogYAML struct {
	Debug bool   `yaml:"debug,omitempty"`
	File  string `yaml:"file,omitempty"`
}
