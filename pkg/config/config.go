package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/tribes-emu/dsovm/pkg/dso"
	"github.com/tribes-emu/dsovm/pkg/storage"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultMaxCallDepth = 1024
	DefaultCacheSize    = 64
)

// Version is the version of the application, set at build time.
var Version = "dev"

// Config top level struct representing the config for the application.
type Config struct {
	Logger     Logger                  `yaml:"Logger"`
	VM         VM                      `yaml:"VM"`
	Loader     Loader                  `yaml:"Loader"`
	Storage    storage.DBConfiguration `yaml:"Storage"`
	Prometheus BasicService            `yaml:"Prometheus"`
	Pprof      BasicService            `yaml:"Pprof"`
}

// Logger contains node logger configuration.
type Logger struct {
	LogEncoding  string `yaml:"LogEncoding"`
	LogLevel     string `yaml:"LogLevel"`
	LogPath      string `yaml:"LogPath"`
	LogTimestamp *bool  `yaml:"LogTimestamp,omitempty"`
}

// VM contains script VM configuration.
type VM struct {
	// MaxCallDepth limits the number of nested calls.
	MaxCallDepth int `yaml:"MaxCallDepth"`
	// Charset is the IANA name of the charset strings of compiled scripts
	// are stored in, empty means no conversion.
	Charset string `yaml:"Charset"`
	// DisabledBuiltins are removed from the built-in function table.
	DisabledBuiltins []string `yaml:"DisabledBuiltins"`
}

// Loader contains compiled script loader configuration.
type Loader struct {
	// CacheSize is the number of decoded code blocks kept in memory.
	CacheSize int `yaml:"CacheSize"`
}

// Default returns configuration with default values.
func Default() Config {
	return Config{
		Logger: Logger{
			LogEncoding: "console",
			LogLevel:    "info",
		},
		VM: VM{
			MaxCallDepth: DefaultMaxCallDepth,
		},
		Loader: Loader{
			CacheSize: DefaultCacheSize,
		},
		Storage: storage.DBConfiguration{
			Type: storage.InMemory,
		},
	}
}

// Load attempts to load the config from the given path, an empty path
// returns the default configuration.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads config from the provided path. Values missing from the
// file are taken from Default.
func LoadFile(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}

	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Decode(configData)
}

// Decode parses YAML config applying defaults for missing values. Unknown
// keys are an error.
func Decode(configData []byte) (Config, error) {
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(configData))
	decoder.KnownFields(true)
	err := decoder.Decode(&config)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	err = config.Validate()
	if err != nil {
		return Config{}, fmt.Errorf("config is invalid: %w", err)
	}
	return config, nil
}

// Validate checks configuration values.
func (c Config) Validate() error {
	switch c.Logger.LogEncoding {
	case "", "console", "json":
	default:
		return fmt.Errorf("invalid LogEncoding: %s", c.Logger.LogEncoding)
	}
	if c.VM.MaxCallDepth <= 0 {
		return fmt.Errorf("invalid MaxCallDepth: %d", c.VM.MaxCallDepth)
	}
	if c.Loader.CacheSize <= 0 {
		return fmt.Errorf("invalid CacheSize: %d", c.Loader.CacheSize)
	}
	if _, err := dso.LookupCharset(c.VM.Charset); err != nil {
		return err
	}
	switch c.Storage.Type {
	case storage.InMemory, storage.BoltDB:
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	if c.Storage.Type == storage.BoltDB && c.Storage.BoltDBOptions.FilePath == "" {
		return errors.New("BoltDB storage requires FilePath")
	}
	return nil
}
