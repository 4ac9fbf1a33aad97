package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PanelConfig names the SPI port and GPIO lines the panel is wired to.
type PanelConfig struct {
	// SPIPort is the periph.io SPI port name ("" = first available,
	// typically /dev/spidev0.0 on a Raspberry Pi).
	SPIPort string `yaml:"spi_port" json:"spi_port"`
	// SPIHz is the bus clock in hertz. 0 uses the driver default (4MHz).
	SPIHz int64 `yaml:"spi_hz" json:"spi_hz"`
	// DCPin, ResetPin and BusyPin are periph.io GPIO pin names.
	DCPin    string `yaml:"dc_pin" json:"dc_pin"`
	ResetPin string `yaml:"reset_pin" json:"reset_pin"`
	BusyPin  string `yaml:"busy_pin" json:"busy_pin"`
}

// RefreshConfig controls the automatic refresh schedule and the
// partial-refresh policy.
type RefreshConfig struct {
	// Cron is a cron-style schedule (e.g. "0 * * * *") on which the
	// active canvas is re-rendered and pushed to the panel. Empty
	// disables the schedule.
	Cron string `yaml:"cron" json:"cron"`
	// MaxPartialsBeforeFull forces a full refresh after this many
	// consecutive partial refreshes. 0 disables promotion.
	MaxPartialsBeforeFull int `yaml:"max_partials_before_full" json:"max_partials_before_full"`
}

// BatteryConfig selects the battery reader.
type BatteryConfig struct {
	// I2CBus is the periph.io I2C bus name ("" = first available).
	I2CBus string `yaml:"i2c_bus" json:"i2c_bus"`
	// I2CAddr is the fuel gauge address. 0 uses the default (0x57).
	I2CAddr uint16 `yaml:"i2c_addr" json:"i2c_addr"`
	// Mock forces the random mock reader even on the device.
	Mock bool `yaml:"mock" json:"mock"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level daemon configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir is where canvases and images are persisted.
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// ActiveCanvas is the canvas pushed to the panel by the automatic
	// refresh schedule.
	ActiveCanvas string `yaml:"active_canvas" json:"active_canvas"`

	Panel   PanelConfig   `yaml:"panel" json:"panel"`
	Refresh RefreshConfig `yaml:"refresh" json:"refresh"`
	Battery BatteryConfig `yaml:"battery" json:"battery"`

	// EnableMDNS announces the API as _pin._tcp on the local network.
	EnableMDNS bool `yaml:"enable_mdns" json:"enable_mdns"`

	// BasicAuth, if non-nil, protects all endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:  "0.0.0.0:8080",
		DataDir: "/var/lib/pind",
		Panel: PanelConfig{
			DCPin:    "GPIO25",
			ResetPin: "GPIO17",
			BusyPin:  "GPIO24",
		},
		Refresh: RefreshConfig{
			Cron:                  "0 * * * *",
			MaxPartialsBeforeFull: 5,
		},
		EnableMDNS: true,
	}
}

// Normalize fills in missing values with defaults so partially-filled
// configs from older versions keep working.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "0.0.0.0:8080"
	}
	if c.DataDir == "" {
		c.DataDir = "/var/lib/pind"
	}
	if c.Panel.DCPin == "" {
		c.Panel.DCPin = "GPIO25"
	}
	if c.Panel.ResetPin == "" {
		c.Panel.ResetPin = "GPIO17"
	}
	if c.Panel.BusyPin == "" {
		c.Panel.BusyPin = "GPIO24"
	}
	if c.Refresh.MaxPartialsBeforeFull < 0 {
		c.Refresh.MaxPartialsBeforeFull = 0
	}
}

// Load reads the YAML config at path. On first run (file absent) it
// writes a default config with 0600 permissions and returns it.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Return the defaults with the error so the caller can
				// still run read-only.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically: temp file in the same directory,
// fsync, chmod 0600, rename.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pind-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save, for call sites that already
// hold a Config.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
