package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDetection() (*DetectionData, error)
	GetStorage() (*StorageData, error)
	GetServer() (*ServerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Detection DetectionData `json:"detection"`
	Storage   StorageData   `json:"storage"`
	Server    ServerData    `json:"server"`
}

// DetectionData holds the flare detection parameters. Zero values select the defaults,
// except for DropThreshold and DecayOffset where zero is a usable setting and nil selects
// the default.
type DetectionData struct {
	BinWidth          int      `json:"bin_width,omitempty"`
	KernelWidth       int      `json:"kernel_width,omitempty"`
	RiseRatio         float64  `json:"rise_ratio,omitempty"`
	DropThreshold     *float64 `json:"drop_threshold,omitempty"`
	BackgroundRatio   float64  `json:"background_ratio,omitempty"`
	DecayOffset       *float64 `json:"decay_offset,omitempty"`
	MaxFitEvaluations int      `json:"max_fit_evaluations,omitempty"`
}

// StorageData selects the database that detection runs are stored in
type StorageData struct {
	// Driver is "sqlite" or "postgres"
	Driver string `json:"driver,omitempty"`
	// DSN is a file path for sqlite or a connection string for postgres
	DSN string `json:"dsn,omitempty"`
}

// ServerData holds the HTTP API configuration
type ServerData struct {
	ListenAddr  string `json:"listen_addr,omitempty"`
	Port        int    `json:"port,omitempty"`
	Cert        string `json:"cert,omitempty"`
	Key         string `json:"key,omitempty"`
	MaxUploadMB int    `json:"max_upload_mb,omitempty"`
	EnableCORS  bool   `json:"enable_cors,omitempty"`
}
