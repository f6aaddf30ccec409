// Package config loads a stars node's settings from file, environment,
// and defaults via viper, mirroring the teacher's internal/config layer.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for one stars node process.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	AAI       AAIConfig       `yaml:"aai"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
	API       APIConfig       `yaml:"api"`
}

// NodeConfig identifies this process within the overlay.
type NodeConfig struct {
	Address     string            `yaml:"address"`
	Region      string            `yaml:"region"`
	Environment string            `yaml:"environment"`
	Tags        map[string]string `yaml:"tags"`
}

// OverlayConfig parameterizes the tree-maintenance protocol (§4.9).
type OverlayConfig struct {
	Fanout          uint32        `yaml:"fanout"`           // m; split threshold is 2m
	StrNodeTimeout  time.Duration `yaml:"str_node_timeout"` // §5 mandatory timeout
	Heartbeat       time.Duration `yaml:"heartbeat"`
	UpdateBandwidth float64       `yaml:"update_bandwidth"` // bytes/s budget for upward updates
	StretchRatio    float64       `yaml:"stretch_ratio"`
	Bootstrap       []string      `yaml:"bootstrap"`
	InsertAt        string        `yaml:"insert_at"`
	CheckpointEvery time.Duration `yaml:"checkpoint_every"`
}

// AAIConfig parameterizes the availability-aggregation subsystem (C1-C5).
type AAIConfig struct {
	MaxClusters    int           `yaml:"max_clusters"`     // cluster-list bound after reduce
	DistVectorSize int           `yaml:"dist_vector_size"` // clustering beam width K'
	NumPieces      int           `yaml:"num_pieces"`       // piecewise-function piece bound
	NumIntervals   uint32        `yaml:"num_intervals"`    // far-test buckets per attribute
	Policy         string        `yaml:"policy"`           // ib|mmp|dp|msp
	UpdatePeriod   time.Duration `yaml:"update_period"`
	MSPFSPEpsilon  float64       `yaml:"msp_fsp_epsilon"`
}

// TransportConfig configures the libp2p-backed Transport implementation.
// EnableDHT selects the kad-dht-backed address resolver; with it off the
// node falls back to a static peer table and BootstrapPeers is unused.
type TransportConfig struct {
	Listen         string        `yaml:"listen"`
	PrivateKey     string        `yaml:"private_key"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	MaxStreams     int           `yaml:"max_streams"`
	EnableDHT      bool          `yaml:"enable_dht"`
	BootstrapPeers []string      `yaml:"bootstrap_peers"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json|text
}

// APIConfig configures the read-only admin HTTP surface.
type APIConfig struct {
	Listen  string        `yaml:"listen"`
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns a Config populated with the values a freshly
// bootstrapped node should run with absent any file or env override.
func Defaults() *Config {
	return &Config{
		Node: NodeConfig{Address: "0.0.0.0:4001", Environment: "development"},
		Overlay: OverlayConfig{
			Fanout:          4,
			StrNodeTimeout:  60 * time.Second,
			Heartbeat:       5 * time.Minute,
			UpdateBandwidth: 1000,
			StretchRatio:    2.0,
		},
		AAI: AAIConfig{
			MaxClusters:    8,
			DistVectorSize: 10,
			NumPieces:      8,
			NumIntervals:   2,
			Policy:         "dp",
			UpdatePeriod:   30 * time.Second,
		},
		Transport: TransportConfig{
			Listen:      "/ip4/0.0.0.0/tcp/4001",
			DialTimeout: 10 * time.Second,
			MaxStreams:  256,
			EnableDHT:   true,
		},
		Metrics: MetricsConfig{Enabled: true, Listen: ":9090", Path: "/metrics"},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		API:     APIConfig{Listen: ":8080", Timeout: 10 * time.Second},
	}
}

// Load reads configFile (if non-empty), overlays STARS_-prefixed
// environment variables, and unmarshals the result onto Defaults().
func Load(configFile string) (*Config, error) {
	cfg := Defaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("stars")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/stars")
	}

	viper.SetEnvPrefix("STARS")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations that would leave the overlay or AAI
// subsystem in an unusable state.
func (c *Config) Validate() error {
	if c.Overlay.Fanout < 1 {
		return fmt.Errorf("config: overlay.fanout must be >= 1, got %d", c.Overlay.Fanout)
	}
	if c.AAI.MaxClusters < 1 {
		return fmt.Errorf("config: aai.max_clusters must be >= 1, got %d", c.AAI.MaxClusters)
	}
	if c.AAI.DistVectorSize < 1 {
		return fmt.Errorf("config: aai.dist_vector_size must be >= 1, got %d", c.AAI.DistVectorSize)
	}
	if c.AAI.NumIntervals < 1 {
		return fmt.Errorf("config: aai.num_intervals must be >= 1, got %d", c.AAI.NumIntervals)
	}
	switch c.AAI.Policy {
	case "ib", "mmp", "dp", "msp":
	default:
		return fmt.Errorf("config: aai.policy must be one of ib|mmp|dp|msp, got %q", c.AAI.Policy)
	}
	return nil
}
