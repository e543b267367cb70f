// Package nodeconfig loads the core's runtime configuration from a YAML
// file plus environment variable overrides, layering defaults, then a
// YAML file merge, then env overrides that win last.
package nodeconfig

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nzcore-project/nzcore/internal/connection"
	"github.com/nzcore-project/nzcore/internal/kademlia"
)

// APIConfig covers the API_HOST/API_PORT/ALLOWED_ORIGINS/NODE_ENV
// variables. The HTTP administrative API itself is out of scope here; only
// its configuration surface is carried, since the core still needs to know
// whether it is running in production mode for InitMasterKey's temporary-key
// fallback decision.
type APIConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	Production     bool     `yaml:"-"`
}

// KademliaConfig covers the DHT's tunable parameters.
type KademliaConfig struct {
	K                 int           `yaml:"k"`
	Alpha             int           `yaml:"alpha"`
	Replication       int           `yaml:"replication"`
	RPCTimeout        time.Duration `yaml:"rpcTimeout"`
	RefreshInterval   time.Duration `yaml:"refreshInterval"`
	RepublishInterval time.Duration `yaml:"republishInterval"`
	InboundRPSPerPeer float64       `yaml:"inboundRpsPerPeer"`
	InboundBurst      int           `yaml:"inboundBurst"`
}

// PoolConfig covers the connection pool's sizing and rate limits.
type PoolConfig struct {
	MaxSize       int           `yaml:"maxSize"`
	MinSize       int           `yaml:"minSize"`
	IdleTimeout   time.Duration `yaml:"idleTimeout"`
	CheckInterval time.Duration `yaml:"checkInterval"`
	FrameRPSPerPeer float64     `yaml:"frameRpsPerPeer"`
	FrameBurst      int         `yaml:"frameBurst"`
}

// STUNConfig covers the STUN client's server list and retry defaults.
type STUNConfig struct {
	Servers []string      `yaml:"servers"`
	Timeout time.Duration `yaml:"timeout"`
	Retries int           `yaml:"retries"`
}

// TURNConfig covers the TURN client's configuration; credentials are
// read from the environment, never from the YAML file on disk.
type TURNConfig struct {
	Servers  []string `yaml:"servers"`
	Username string   `yaml:"-"`
	Password string   `yaml:"-"`
	Realm    string   `yaml:"realm"`
}

// Config is the fully-resolved node configuration.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Kademlia KademliaConfig `yaml:"kademlia"`
	Pool     PoolConfig     `yaml:"pool"`
	STUN     STUNConfig     `yaml:"stun"`
	TURN     TURNConfig     `yaml:"turn"`

	// MasterKeyOverride mirrors NZCORE_MASTER_KEY: a pre-provisioned
	// master key used instead of deriving/generating one in production.
	MasterKeyOverride string `yaml:"-"`
}

// Default returns the baseline configuration: conservative API bind
// settings plus the Kademlia/pool/STUN-TURN package defaults.
func Default() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           3000,
			AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		},
		Kademlia: KademliaConfig{
			K:                 kademlia.K,
			Alpha:             kademlia.Alpha,
			Replication:       kademlia.Replication,
			RPCTimeout:        kademlia.RPCTimeout,
			RefreshInterval:   kademlia.RefreshInterval,
			RepublishInterval: kademlia.RepublishInterval,
			InboundRPSPerPeer: 20,
			InboundBurst:      40,
		},
		Pool: func() PoolConfig {
			d := connection.DefaultPoolConfig()
			return PoolConfig{
				MaxSize:         d.MaxSize,
				MinSize:         d.MinSize,
				IdleTimeout:     d.IdleTimeout,
				CheckInterval:   d.CheckInterval,
				FrameRPSPerPeer: 200,
				FrameBurst:      400,
			}
		}(),
		STUN: STUNConfig{
			Timeout: 5 * time.Second,
			Retries: 3,
		},
		TURN: TURNConfig{},
	}
}

// LoadFromPath starts from defaults, merges in a YAML file if one is
// found at configPath (or a short list of candidate paths when configPath
// is empty), then applies env overrides last so they always win.
func LoadFromPath(configPath string) Config {
	cfg := Default()

	candidates := []string{}
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates, "configs/nzcore.yaml", "nzcore.yaml")
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed Config
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		Merge(&cfg, parsed)
		break
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

// Merge copies every nonzero field of src over dst, so a YAML file only
// overrides the settings it actually sets.
func Merge(dst *Config, src Config) {
	if src.API.Host != "" {
		dst.API.Host = src.API.Host
	}
	if src.API.Port != 0 {
		dst.API.Port = src.API.Port
	}
	if len(src.API.AllowedOrigins) > 0 {
		dst.API.AllowedOrigins = src.API.AllowedOrigins
	}

	mergeIfSet(&dst.Kademlia.K, src.Kademlia.K)
	mergeIfSet(&dst.Kademlia.Alpha, src.Kademlia.Alpha)
	mergeIfSet(&dst.Kademlia.Replication, src.Kademlia.Replication)
	mergeIfSet(&dst.Kademlia.RPCTimeout, src.Kademlia.RPCTimeout)
	mergeIfSet(&dst.Kademlia.RefreshInterval, src.Kademlia.RefreshInterval)
	mergeIfSet(&dst.Kademlia.RepublishInterval, src.Kademlia.RepublishInterval)
	mergeIfSet(&dst.Kademlia.InboundRPSPerPeer, src.Kademlia.InboundRPSPerPeer)
	mergeIfSet(&dst.Kademlia.InboundBurst, src.Kademlia.InboundBurst)

	mergeIfSet(&dst.Pool.MaxSize, src.Pool.MaxSize)
	mergeIfSet(&dst.Pool.MinSize, src.Pool.MinSize)
	mergeIfSet(&dst.Pool.IdleTimeout, src.Pool.IdleTimeout)
	mergeIfSet(&dst.Pool.CheckInterval, src.Pool.CheckInterval)
	mergeIfSet(&dst.Pool.FrameRPSPerPeer, src.Pool.FrameRPSPerPeer)
	mergeIfSet(&dst.Pool.FrameBurst, src.Pool.FrameBurst)

	if len(src.STUN.Servers) > 0 {
		dst.STUN.Servers = src.STUN.Servers
	}
	mergeIfSet(&dst.STUN.Timeout, src.STUN.Timeout)
	mergeIfSet(&dst.STUN.Retries, src.STUN.Retries)

	if len(src.TURN.Servers) > 0 {
		dst.TURN.Servers = src.TURN.Servers
	}
	if src.TURN.Realm != "" {
		dst.TURN.Realm = src.TURN.Realm
	}
}

func mergeIfSet[T comparable](dst *T, src T) {
	var zero T
	if src != zero {
		*dst = src
	}
}

// ApplyEnvOverrides applies the supported environment variables, which
// always win over both defaults and the YAML file.
func ApplyEnvOverrides(cfg *Config) {
	cfg.API.Host = envStringWithFallback("API_HOST", cfg.API.Host)
	cfg.API.Port = envIntWithFallback("API_PORT", cfg.API.Port)
	cfg.API.AllowedOrigins = envCSVWithFallback("ALLOWED_ORIGINS", cfg.API.AllowedOrigins)
	cfg.API.Production = envString("NODE_ENV") == "production"

	cfg.MasterKeyOverride = envString("NZCORE_MASTER_KEY")

	cfg.TURN.Username = envString("NZCORE_TURN_USERNAME")
	cfg.TURN.Password = envString("NZCORE_TURN_PASSWORD")
	if realm := envString("NZCORE_TURN_REALM"); realm != "" {
		cfg.TURN.Realm = realm
	}
}

func envStringWithFallback(key, fallback string) string {
	if v := envString(key); v != "" {
		return v
	}
	return fallback
}
