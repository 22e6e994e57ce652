// Package config loads the flow bench configuration. Every field is
// optional; the Get* accessors supply the default for anything left unset,
// so partial files are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/flow"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/peer"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/preprocess"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/serialport"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/series"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/session"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/wire"
)

// DefaultConfigPath is the checked-in file holding the canonical defaults.
const DefaultConfigPath = "config/bench.defaults.json"

const maxFileSize = 1 * 1024 * 1024

// BenchConfig is the root of the JSON configuration.
type BenchConfig struct {
	// Transport
	Port        *string                 `json:"port,omitempty"`
	Serial      *serialport.PortOptions `json:"serial,omitempty"`
	ReadTimeout *string                 `json:"read_timeout,omitempty"` // duration string like "2s"

	// Wire
	SampleSize *int     `json:"sample_size,omitempty"`
	Scale      *float64 `json:"scale,omitempty"`
	Format     *string  `json:"format,omitempty"`

	// Estimator
	Radius     *int             `json:"radius,omitempty"`
	Gradient   *string          `json:"gradient,omitempty"`
	Epsilon    *float64         `json:"epsilon,omitempty"`
	Coordinate *flow.Coordinate `json:"coordinate,omitempty"`

	// Run
	Preprocess      *string `json:"preprocess,omitempty"`
	MaxFrames       *int    `json:"max_frames,omitempty"`
	ContinueOnError *bool   `json:"continue_on_error,omitempty"`
	Database        *string `json:"database,omitempty"`

	// Comparison
	MovingAverage *int `json:"moving_average,omitempty"`
	Median        *int `json:"median,omitempty"`
}

func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }

// DefaultBenchConfig returns a config with every field set to its default.
func DefaultBenchConfig() *BenchConfig {
	at := flow.Center(flow.DefaultSize)
	return &BenchConfig{
		Port:            ptrString(""),
		Serial:          &serialport.PortOptions{BaudRate: serialport.DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"},
		ReadTimeout:     ptrString(session.DefaultReadTimeout.String()),
		SampleSize:      ptrInt(flow.DefaultSize),
		Scale:           ptrFloat64(wire.DefaultScale),
		Format:          ptrString(wire.FormatBE16.String()),
		Radius:          ptrInt(2),
		Gradient:        ptrString(flow.FourTap.String()),
		Epsilon:         ptrFloat64(0),
		Coordinate:      &at,
		Preprocess:      ptrString(preprocess.Resize.String()),
		MaxFrames:       ptrInt(900),
		ContinueOnError: ptrBool(false),
		Database:        ptrString("flowbench.db"),
		MovingAverage:   ptrInt(5),
		Median:          ptrInt(8),
	}
}

// LoadBenchConfig reads and validates a JSON config file.
func LoadBenchConfig(path string) (*BenchConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &BenchConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that every set value is usable and that the derived
// estimator, codec and session settings agree with each other.
func (c *BenchConfig) Validate() error {
	if c.ReadTimeout != nil && *c.ReadTimeout != "" {
		d, err := time.ParseDuration(*c.ReadTimeout)
		if err != nil {
			return fmt.Errorf("invalid read_timeout '%s': %w", *c.ReadTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("read_timeout must be positive, got %s", d)
		}
	}
	if c.Serial != nil {
		if _, err := c.Serial.Normalize(); err != nil {
			return fmt.Errorf("serial: %w", err)
		}
	}
	if c.MaxFrames != nil && *c.MaxFrames < 0 {
		return fmt.Errorf("max_frames must be non-negative, got %d", *c.MaxFrames)
	}
	if _, err := preprocess.ParseMode(c.GetPreprocess()); err != nil {
		return err
	}
	if err := c.SmoothOptions().Validate(); err != nil {
		return err
	}
	if _, err := c.SessionOptions(); err != nil {
		return err
	}
	if _, err := c.PeerConfig(); err != nil {
		return err
	}
	return nil
}

// GetPort returns the serial device path, or "" when unset.
func (c *BenchConfig) GetPort() string {
	if c.Port == nil {
		return ""
	}
	return *c.Port
}

// GetSerial returns the serial line options with defaults applied.
func (c *BenchConfig) GetSerial() serialport.PortOptions {
	var opts serialport.PortOptions
	if c.Serial != nil {
		opts = *c.Serial
	}
	if n, err := opts.Normalize(); err == nil {
		return n
	}
	return opts
}

// GetReadTimeout returns the per-exchange response deadline.
func (c *BenchConfig) GetReadTimeout() time.Duration {
	if c.ReadTimeout == nil || *c.ReadTimeout == "" {
		return session.DefaultReadTimeout
	}
	d, err := time.ParseDuration(*c.ReadTimeout)
	if err != nil {
		return session.DefaultReadTimeout
	}
	return d
}

// GetSampleSize returns the frame edge length.
func (c *BenchConfig) GetSampleSize() int {
	if c.SampleSize == nil {
		return flow.DefaultSize
	}
	return *c.SampleSize
}

// GetScale returns the fixed-point scale of the flow response.
func (c *BenchConfig) GetScale() float64 {
	if c.Scale == nil {
		return wire.DefaultScale
	}
	return *c.Scale
}

// GetFormat returns the response format name.
func (c *BenchConfig) GetFormat() string {
	if c.Format == nil {
		return wire.FormatBE16.String()
	}
	return *c.Format
}

// GetRadius returns the window half-width.
func (c *BenchConfig) GetRadius() int {
	if c.Radius == nil {
		return 2
	}
	return *c.Radius
}

// GetGradient returns the gradient scheme name.
func (c *BenchConfig) GetGradient() string {
	if c.Gradient == nil {
		return flow.FourTap.String()
	}
	return *c.Gradient
}

// GetEpsilon returns the singular determinant threshold.
func (c *BenchConfig) GetEpsilon() float64 {
	if c.Epsilon == nil {
		return 0
	}
	return *c.Epsilon
}

// GetCoordinate returns the estimation point, the sample centre by default.
func (c *BenchConfig) GetCoordinate() flow.Coordinate {
	if c.Coordinate == nil {
		return flow.Center(c.GetSampleSize())
	}
	return *c.Coordinate
}

// GetPreprocess returns the frame reduction mode name.
func (c *BenchConfig) GetPreprocess() string {
	if c.Preprocess == nil {
		return preprocess.Resize.String()
	}
	return *c.Preprocess
}

// GetMaxFrames returns the frame cap of a run. Zero means unlimited.
func (c *BenchConfig) GetMaxFrames() int {
	if c.MaxFrames == nil {
		return 900
	}
	return *c.MaxFrames
}

// GetContinueOnError reports whether a run skips timed out frames.
func (c *BenchConfig) GetContinueOnError() bool {
	if c.ContinueOnError == nil {
		return false
	}
	return *c.ContinueOnError
}

// GetDatabase returns the run store path.
func (c *BenchConfig) GetDatabase() string {
	if c.Database == nil || *c.Database == "" {
		return "flowbench.db"
	}
	return *c.Database
}

// EstimatorConfig builds the estimator parameters.
func (c *BenchConfig) EstimatorConfig() (flow.Config, error) {
	g, err := flow.ParseGradient(c.GetGradient())
	if err != nil {
		return flow.Config{}, err
	}
	return flow.Config{Radius: c.GetRadius(), Gradient: g, Epsilon: c.GetEpsilon()}, nil
}

// Codec builds the response codec.
func (c *BenchConfig) Codec() (wire.Codec, error) {
	f, err := wire.ParseFormat(c.GetFormat())
	if err != nil {
		return wire.Codec{}, err
	}
	codec := wire.Codec{Format: f, Scale: c.GetScale()}
	return codec, codec.Validate()
}

// SessionOptions builds validated session options.
func (c *BenchConfig) SessionOptions() (session.Options, error) {
	codec, err := c.Codec()
	if err != nil {
		return session.Options{}, err
	}
	opts := session.Options{
		SampleSize:  c.GetSampleSize(),
		Codec:       codec,
		ReadTimeout: c.GetReadTimeout(),
		Port:        c.GetSerial(),
	}
	return opts, opts.Validate()
}

// PeerConfig builds the simulated peer configuration. It fails when the
// coordinate is too close to the edge for the configured window.
func (c *BenchConfig) PeerConfig() (peer.Config, error) {
	est, err := c.EstimatorConfig()
	if err != nil {
		return peer.Config{}, err
	}
	codec, err := c.Codec()
	if err != nil {
		return peer.Config{}, err
	}
	cfg := peer.Config{Estimator: est, Codec: codec, SampleSize: c.GetSampleSize(), At: c.GetCoordinate()}
	if _, err := peer.New(cfg); err != nil {
		return peer.Config{}, err
	}
	return cfg, nil
}

// PreprocessOptions builds the frame conversion options.
func (c *BenchConfig) PreprocessOptions() (preprocess.Options, error) {
	mode, err := preprocess.ParseMode(c.GetPreprocess())
	if err != nil {
		return preprocess.Options{}, err
	}
	return preprocess.Options{Size: c.GetSampleSize(), Mode: mode}, nil
}

// SmoothOptions returns the comparison filter windows.
func (c *BenchConfig) SmoothOptions() series.SmoothOptions {
	opts := series.DefaultSmoothOptions()
	if c.MovingAverage != nil {
		opts.MovingAverage = *c.MovingAverage
	}
	if c.Median != nil {
		opts.Median = *c.Median
	}
	return opts
}

// RunOptions returns the session run limits and error policy.
func (c *BenchConfig) RunOptions() session.RunOptions {
	opts := session.RunOptions{MaxFrames: c.GetMaxFrames()}
	if c.GetContinueOnError() {
		opts.OnError = session.ContinueOnTimeouts
	}
	return opts
}

// JSON returns the config as indented JSON, for storing alongside a run.
func (c *BenchConfig) JSON() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}
