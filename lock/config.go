package lock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Battery calibration defaults in millivolts. The stock lock runs on four
// alkaline cells.
const (
	DefaultBatteryMinMv = 3962
	DefaultBatteryMaxMv = 6000
)

// Recognized keys on the generic configuration surface.
const (
	keyPairingPassword = "PAIRING_PASSWORD"
	keyAdminPhone      = "ADMIN_PHONE"
	keyAdminPassword   = "ADMIN_PASSWORD"
	keyBatteryMinMv    = "BATTERY_MIN_MV"
	keyBatteryMaxMv    = "BATTERY_MAX_MV"
)

// Config carries the credentials and calibration the driver needs. Beyond
// the pairing-password presence check in PairAndAuthenticate there is no
// schema validation.
type Config struct {
	PairingPassword string `yaml:"pairing_password"`
	// AdminPhone is a numeric string of up to 12 digits.
	AdminPhone    string `yaml:"admin_phone"`
	AdminPassword string `yaml:"admin_password"`
	BatteryMinMv  int    `yaml:"battery_min_mv"`
	BatteryMaxMv  int    `yaml:"battery_max_mv"`

	// Extra holds unrecognized keys, case-normalized to upper case.
	Extra map[string]string `yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.BatteryMinMv == 0 {
		c.BatteryMinMv = DefaultBatteryMinMv
	}
	if c.BatteryMaxMv == 0 {
		c.BatteryMaxMv = DefaultBatteryMaxMv
	}
}

// FromMap builds a Config from a generic key/value map. Keys are matched
// case-insensitively; unknown keys are upper-cased and retained in Extra.
func FromMap(values map[string]string) Config {
	cfg := Config{}
	for k, v := range values {
		switch key := strings.ToUpper(k); key {
		case keyPairingPassword:
			cfg.PairingPassword = v
		case keyAdminPhone:
			cfg.AdminPhone = v
		case keyAdminPassword:
			cfg.AdminPassword = v
		case keyBatteryMinMv:
			if n, err := strconv.Atoi(v); err == nil {
				cfg.BatteryMinMv = n
			}
		case keyBatteryMaxMv:
			if n, err := strconv.Atoi(v); err == nil {
				cfg.BatteryMaxMv = n
			}
		default:
			if cfg.Extra == nil {
				cfg.Extra = make(map[string]string)
			}
			cfg.Extra[key] = v
		}
	}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads driver configuration from a YAML file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("lock: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("lock: parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Options describes the parameters for creating a Session.
type Options struct {
	// Transport is the BLE link adapter. Required.
	Transport Transport
	// Config may also be supplied later through Configure/SetConfig.
	Config Config
	// Logger defaults to NopLogger().
	Logger Logger
	// Timeouts defaults to NewTimeouts().
	Timeouts *Timeouts
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = NopLogger()
	}
	if o.Timeouts == nil {
		o.Timeouts = NewTimeouts()
	}
	o.Config.applyDefaults()
}
