// Session-wide tunables live here rather than as module-level constants, so
// the encoder stages stay pure and testable without a live device.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"d30print/internal/render"
)

type Config struct {
	// Device is a BLE address; empty means discover by name.
	Device string `koanf:"device"`
	// Font is a path to a TTF file; empty means the bundled face.
	Font string `koanf:"font"`
	// LabelPreset is "standard" or "fruit".
	LabelPreset string `koanf:"label_preset"`

	// MaxChunkSize caps a single transport write. BLE links commonly
	// negotiate a 512 byte MTU.
	MaxChunkSize int `koanf:"max_chunk_size"`
	// InitDelayMs is the settle time between handshake writes.
	InitDelayMs int `koanf:"init_delay_ms"`
	// DataDelayMs is the settle time between raster chunks.
	DataDelayMs int `koanf:"data_delay_ms"`
	// BandHeight is the rows per raster frame. Coupled to the row count
	// the firmware expects in the raster header; don't change one without
	// the other.
	BandHeight int `koanf:"band_height"`

	// Journal is the path of the print history database; empty disables it.
	Journal string `koanf:"journal"`
}

func Default() Config {
	return Config{
		LabelPreset:  "standard",
		MaxChunkSize: 512,
		InitDelayMs:  50,
		DataDelayMs:  10,
		BandHeight:   320,
	}
}

// Load reads the config file at path, or the first existing candidate under
// the user config dir when path is empty. A missing file just means
// defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	candidates := []string{path}
	if path == "" {
		candidates = configPaths()
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			if err := k.Load(file.Provider(candidate), toml.Parser()); err != nil {
				return nil, fmt.Errorf("couldn't load config %s: %w", candidate, err)
			}
			break
		} else if path != "" {
			return nil, fmt.Errorf("couldn't read config %s: %w", candidate, err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("couldn't parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxChunkSize <= 0 {
		return fmt.Errorf("%w: max_chunk_size must be positive", render.ErrInvalidConfiguration)
	}
	if c.BandHeight <= 0 {
		return fmt.Errorf("%w: band_height must be positive", render.ErrInvalidConfiguration)
	}
	if c.InitDelayMs < 0 || c.DataDelayMs < 0 {
		return fmt.Errorf("%w: delays must not be negative", render.ErrInvalidConfiguration)
	}
	if _, err := render.PresetByName(c.LabelPreset); err != nil {
		return err
	}
	return nil
}

func (c *Config) Preset() render.Preset {
	p, _ := render.PresetByName(c.LabelPreset)
	return p
}

func (c *Config) InitDelay() time.Duration {
	return time.Duration(c.InitDelayMs) * time.Millisecond
}

func (c *Config) DataDelay() time.Duration {
	return time.Duration(c.DataDelayMs) * time.Millisecond
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "d30print", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "d30print", "config.toml"))
	}

	return paths
}
