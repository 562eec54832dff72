package config

import (
	"os"

	"gopkg.in/yaml.v3"
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

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Detection DetectionYAML `yaml:"detection,omitempty"`
		Storage   StorageYAML   `yaml:"storage,omitempty"`
		Server    ServerYAML    `yaml:"server,omitempty"`
	}

	err = yaml.Unmarshal(cfgFile, &yamlConfig)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{
		Detection: DetectionData{
			BinWidth:          yamlConfig.Detection.BinWidth,
			KernelWidth:       yamlConfig.Detection.KernelWidth,
			RiseRatio:         yamlConfig.Detection.RiseRatio,
			DropThreshold:     yamlConfig.Detection.DropThreshold,
			BackgroundRatio:   yamlConfig.Detection.BackgroundRatio,
			DecayOffset:       yamlConfig.Detection.DecayOffset,
			MaxFitEvaluations: yamlConfig.Detection.MaxFitEvaluations,
		},
		Storage: StorageData{
			Driver: yamlConfig.Storage.Driver,
			DSN:    yamlConfig.Storage.DSN,
		},
		Server: ServerData{
			ListenAddr:  yamlConfig.Server.ListenAddr,
			Port:        yamlConfig.Server.Port,
			Cert:        yamlConfig.Server.Cert,
			Key:         yamlConfig.Server.Key,
			MaxUploadMB: yamlConfig.Server.MaxUploadMB,
			EnableCORS:  yamlConfig.Server.EnableCORS,
		},
	}

	y.config = config
	return config, nil
}

// GetDetection returns the detection parameters from YAML
func (y *YAMLProvider) GetDetection() (*DetectionData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return &y.config.Detection, nil
}

// GetStorage returns storage configuration from YAML
func (y *YAMLProvider) GetStorage() (*StorageData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return &y.config.Storage, nil
}

// GetServer returns the HTTP server configuration from YAML
func (y *YAMLProvider) GetServer() (*ServerData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return &y.config.Server, nil
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific types for unmarshaling

type DetectionYAML struct {
	BinWidth          int     `yaml:"bin-width,omitempty"`
	KernelWidth       int     `yaml:"kernel-width,omitempty"`
	RiseRatio         float64 `yaml:"rise-ratio,omitempty"`
	DropThreshold     *float64 `yaml:"drop-threshold,omitempty"`
	BackgroundRatio   float64 `yaml:"background-ratio,omitempty"`
	DecayOffset       *float64 `yaml:"decay-offset,omitempty"`
	MaxFitEvaluations int     `yaml:"max-fit-evaluations,omitempty"`
}

type StorageYAML struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type ServerYAML struct {
	ListenAddr  string `yaml:"listen-addr,omitempty"`
	Port        int    `yaml:"port,omitempty"`
	Cert        string `yaml:"cert,omitempty"`
	Key         string `yaml:"key,omitempty"`
	MaxUploadMB int    `yaml:"max-upload-mb,omitempty"`
	EnableCORS  bool   `yaml:"enable-cors,omitempty"`
}
