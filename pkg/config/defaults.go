package config

import (
	"fmt"

	"github.com/chrissnell/flarewatch/internal/flare"
)

const (
	DefaultStorageDriver = "sqlite"
	DefaultSQLitePath    = "flarewatch.db"
	DefaultListenAddr    = "0.0.0.0"
	DefaultPort          = 8080
	DefaultMaxUploadMB   = 10
)

// ApplyDefaults fills every unset field with its default
func (c *ConfigData) ApplyDefaults() {
	d := &c.Detection
	if d.BinWidth == 0 {
		d.BinWidth = flare.DefaultBinWidth
	}
	if d.KernelWidth == 0 {
		d.KernelWidth = flare.DefaultKernelWidth
	}
	if d.RiseRatio == 0 {
		d.RiseRatio = flare.DefaultRiseRatio
	}
	if d.DropThreshold == nil {
		d.DropThreshold = float64Ptr(flare.DefaultDropThreshold)
	}
	if d.BackgroundRatio == 0 {
		d.BackgroundRatio = flare.DefaultBackgroundRatio
	}
	if d.DecayOffset == nil {
		d.DecayOffset = float64Ptr(flare.DefaultDecayOffset)
	}
	if d.MaxFitEvaluations == 0 {
		d.MaxFitEvaluations = flare.DefaultMaxFitEvaluations
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = DefaultStorageDriver
	}
	if c.Storage.Driver == "sqlite" && c.Storage.DSN == "" {
		c.Storage.DSN = DefaultSQLitePath
	}

	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.MaxUploadMB == 0 {
		c.Server.MaxUploadMB = DefaultMaxUploadMB
	}
}

// Validate checks a configuration that has had its defaults applied
func (c *ConfigData) Validate() error {
	if err := c.DetectionParams().Validate(); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported storage driver %q. Use 'sqlite' or 'postgres'", c.Storage.Driver)
	}
	if c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for the %s driver", c.Storage.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if (c.Server.Cert == "") != (c.Server.Key == "") {
		return fmt.Errorf("server.cert and server.key must be set together")
	}
	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}

	return nil
}

// DetectionParams converts the detection section into pipeline parameters. Unset optional
// fields read as zero.
func (c *ConfigData) DetectionParams() flare.Params {
	return flare.Params{
		BinWidth:          c.Detection.BinWidth,
		KernelWidth:       c.Detection.KernelWidth,
		RiseRatio:         c.Detection.RiseRatio,
		DropThreshold:     derefFloat(c.Detection.DropThreshold),
		BackgroundRatio:   c.Detection.BackgroundRatio,
		DecayOffset:       derefFloat(c.Detection.DecayOffset),
		MaxFitEvaluations: c.Detection.MaxFitEvaluations,
	}
}

func float64Ptr(v float64) *float64 {
	return &v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
