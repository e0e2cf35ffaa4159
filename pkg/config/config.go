// Package config loads scalelink settings from YAML. Struct tags carry the
// defaults; values present in the file override them and CLI flags override both.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/scalelink/internal/bridge"
	"github.com/srg/scalelink/internal/device"
	"github.com/srg/scalelink/internal/device/serial"
	"github.com/srg/scalelink/internal/frame"
	"github.com/srg/scalelink/internal/ptyio"
	"github.com/srg/scalelink/internal/supervisor"
	"gopkg.in/yaml.v3"
)

// Backend names
const (
	BackendBlueZ  = "bluez"
	BackendBLE    = "ble"
	BackendSerial = "serial"
)

// Config holds application configuration
type Config struct {
	LogLevel    string        `yaml:"log_level" default:"warn"`
	Backend     string        `yaml:"backend" default:"bluez"`
	EventBuffer int           `yaml:"event_buffer" default:"256"`
	Target      TargetConfig  `yaml:"target"`
	Frame       FrameConfig   `yaml:"frame"`
	BlueZ       BlueZConfig   `yaml:"bluez"`
	BLE         BLEConfig     `yaml:"ble"`
	Serial      SerialConfig  `yaml:"serial"`
	Bridge      BridgeConfig  `yaml:"bridge"`
	ScanTimeout time.Duration `yaml:"scan_timeout" default:"10s"` // scan command duration
}

// TargetConfig selects the scale
type TargetConfig struct {
	Name           string        `yaml:"name" default:"BT"`
	Address        string        `yaml:"address"`
	Service        string        `yaml:"service" default:"00001101-0000-1000-8000-00805F9B34FB"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" default:"30s"`
	ScanTimeout    time.Duration `yaml:"scan_timeout"` // 0 scans until stopped
	PreferBonded   bool          `yaml:"prefer_bonded" default:"true"`
	RequestEnable  bool          `yaml:"request_enable" default:"true"`
}

// FrameConfig selects the framing policy. An empty terminator means one
// frame per read.
type FrameConfig struct {
	Terminator string `yaml:"terminator"`
	MaxFrame   int    `yaml:"max_frame" default:"64"`
	BufferSize int    `yaml:"buffer_size" default:"1024"`
}

// BlueZConfig configures the Linux backend
type BlueZConfig struct {
	Adapter       string `yaml:"adapter" default:"hci0"`
	RFCOMMChannel uint8  `yaml:"rfcomm_channel"` // 0 connects through the profile manager
	ProfileName   string `yaml:"profile_name" default:"scalelink"`
}

// BLEConfig configures the go-ble backend
type BLEConfig struct {
	Service    string        `yaml:"service" default:"6E400001-B5A3-F393-E0A9-E50E24DCCA9E"`
	TxChar     string        `yaml:"tx_char" default:"6E400003-B5A3-F393-E0A9-E50E24DCCA9E"`
	RxChar     string        `yaml:"rx_char" default:"6E400002-B5A3-F393-E0A9-E50E24DCCA9E"`
	ChunkSize  int           `yaml:"chunk_size" default:"20"`
	ChunkDelay time.Duration `yaml:"chunk_delay" default:"10ms"`
}

// SerialConfig lists tty ports for the serial backend
type SerialConfig struct {
	Ports []serial.Port `yaml:"ports"`
}

// BridgeConfig configures the pty bridge
type BridgeConfig struct {
	Symlink     string        `yaml:"symlink"`
	LineEnding  string        `yaml:"line_ending" default:"\\r\\n"` // Go escapes allowed
	WriteBuffer int           `yaml:"write_buffer" default:"4096"`
	PollTimeout time.Duration `yaml:"poll_timeout" default:"50ms"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// DefaultPath returns ~/.config/scalelink/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "scalelink", "config.yaml")
	}
	return filepath.Join(home, ".config", "scalelink", "config.yaml")
}

// Load reads path over the defaults. A missing file at the default path is
// not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the defaults cannot guarantee
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendBlueZ, BackendBLE:
	case BackendSerial:
		if len(c.Serial.Ports) == 0 {
			return errors.New("serial backend requires at least one port")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s, %s or %s)", c.Backend, BackendBlueZ, BackendBLE, BackendSerial)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := device.ParseServiceID(c.Target.Service); err != nil {
		return fmt.Errorf("invalid target service: %w", err)
	}
	if c.Target.Name == "" && c.Target.Address == "" {
		return errors.New("target needs a name or an address")
	}
	if _, _, err := ParseTerminator(c.Frame.Terminator); err != nil {
		return err
	}
	if c.Frame.MaxFrame <= 0 || c.Frame.BufferSize <= 0 {
		return errors.New("frame sizes must be positive")
	}
	if c.EventBuffer <= 0 {
		return errors.New("event_buffer must be positive")
	}
	if c.Bridge.WriteBuffer <= 0 {
		return errors.New("bridge write_buffer must be positive")
	}
	return nil
}

// Unescape interprets Go escapes such as \r\n. Text that is not a valid
// escaped string is returned unchanged.
func Unescape(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}

// ParseTerminator decodes a single-byte terminator written as a literal
// character or a Go escape such as \n or \x03. Empty means none.
func ParseTerminator(s string) (byte, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	u, err := strconv.Unquote(`"` + s + `"`)
	if err != nil || len(u) != 1 {
		return 0, false, fmt.Errorf("terminator must be a single byte, got %q", s)
	}
	return u[0], true, nil
}

// Level returns the parsed log level, falling back to info
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// SupervisorOptions maps the configuration onto supervisor options
func (c *Config) SupervisorOptions() (supervisor.Options, error) {
	service, err := device.ParseServiceID(c.Target.Service)
	if err != nil {
		return supervisor.Options{}, fmt.Errorf("invalid target service: %w", err)
	}

	reader := frame.Options{BufferSize: c.Frame.BufferSize}
	term, ok, err := ParseTerminator(c.Frame.Terminator)
	if err != nil {
		return supervisor.Options{}, err
	}
	if ok {
		maxFrame := c.Frame.MaxFrame
		reader.NewDecoder = func() frame.Decoder { return frame.NewTerminatorDecoder(term, maxFrame) }
	}

	return supervisor.Options{
		TargetName:     c.Target.Name,
		TargetAddress:  c.Target.Address,
		ServiceID:      service,
		ConnectTimeout: c.Target.ConnectTimeout,
		ScanTimeout:    c.Target.ScanTimeout,
		PreferBonded:   c.Target.PreferBonded,
		RequestEnable:  c.Target.RequestEnable,
		Reader:         reader,
		EventBuffer:    c.EventBuffer,
	}, nil
}

// PTYOptions maps the bridge section onto pty options
func (c *Config) PTYOptions(logger *logrus.Logger) ptyio.Options {
	return ptyio.Options{
		WriteCap:    c.Bridge.WriteBuffer,
		PollTimeout: c.Bridge.PollTimeout,
		Symlink:     c.Bridge.Symlink,
		Logger:      logger,
	}
}

// BridgeOptions maps the bridge section onto bridge options
func (c *Config) BridgeOptions() bridge.Options {
	return bridge.Options{LineEnding: Unescape(c.Bridge.LineEnding)}
}
