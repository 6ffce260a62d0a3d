package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses yaml values like "30s" or plain nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Serial     SerialConfig     `yaml:"serial"`
	Redis      RedisConfig      `yaml:"redis"`
	Log        LogConfig        `yaml:"log"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Instrument InstrumentConfig `yaml:"instrument"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxConnections int      `yaml:"max_connections"`
	ReadTimeout    Duration `yaml:"read_timeout"`
	WriteTimeout   Duration `yaml:"write_timeout"`
	BufferSize     int      `yaml:"buffer_size"`
	KeepAlive      Duration `yaml:"keep_alive"`
}

type SerialConfig struct {
	Enabled bool   `yaml:"enabled"`
	Device  string `yaml:"device"`
	Baud    int    `yaml:"baud"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Channel  string `yaml:"channel"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type MonitorConfig struct {
	Enabled     bool `yaml:"enabled"`
	MetricsPort int  `yaml:"metrics_port"`
}

type InstrumentConfig struct {
	Manufacturer    string `yaml:"manufacturer"`
	Model           string `yaml:"model"`
	SerialNumber    string `yaml:"serial_number"`
	FirmwareVersion string `yaml:"firmware_version"`

	DmmChannel      int `yaml:"dmm_channel"`
	DmmOversampling int `yaml:"dmm_oversampling"`

	DsoTimebaseUs uint32 `yaml:"dso_timebase_us"`
	DsoPoints     int    `yaml:"dso_points"`

	ReferenceMv       int    `yaml:"reference_mv"`
	MaxSampleRate     uint32 `yaml:"max_sample_rate"`      // interleaved single-channel ceiling
	MaxSampleRateDual uint32 `yaml:"max_sample_rate_dual"` // simultaneous dual-channel ceiling
}

// LoadConfig reads and parses a yaml config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &config, nil
}

// GetDefaultConfig returns the built-in configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           5025,
			MaxConnections: 16,
			ReadTimeout:    Duration(30 * time.Second),
			WriteTimeout:   Duration(30 * time.Second),
			BufferSize:     4096,
			KeepAlive:      Duration(180 * time.Second),
		},
		Serial: SerialConfig{
			Enabled: false,
			Device:  "/dev/ttyACM0",
			Baud:    115200,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
			PoolSize: 10,
			Channel:  "instrument_measurements",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Monitor: MonitorConfig{
			Enabled:     true,
			MetricsPort: 9090,
		},
		Instrument: InstrumentConfig{
			Manufacturer:      "FOSSASIA",
			Model:             "PSLab Mini",
			SerialNumber:      "00000001",
			FirmwareVersion:   "1.0.0",
			DmmChannel:        0,
			DmmOversampling:   16,
			DsoTimebaseUs:     100,
			DsoPoints:         512,
			ReferenceMv:       3300,
			MaxSampleRate:     2000000,
			MaxSampleRateDual: 1000000,
		},
	}
}
