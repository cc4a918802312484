package config

import (
	"os"
	"path/filepath"
	"sort"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/anoma/kassandra-service/internal/masp"
)

// DefaultClientConfigFile is the name of the client's service
// registry file inside its data directory.
const DefaultClientConfigFile = "config.toml"

// Service records one host a detection key share has been registered
// with, and which share (Index, per spec.md's N-of-N key sharding)
// that host was given.
type Service struct {
	URL   string `toml:"url"`
	Index int    `toml:"index"`
}

// ClientConfig persists, per detection-key hash, the list of services
// a share of that key has been registered with. It never holds key
// material itself, only the hash used to look services up again.
type ClientConfig struct {
	Services map[string][]Service `toml:"services"`
}

// LoadClientConfig reads the registry file at path, returning an empty
// ClientConfig if it does not yet exist.
func LoadClientConfig(path string) (*ClientConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ClientConfig{Services: map[string][]Service{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ClientConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if cfg.Services == nil {
		cfg.Services = map[string][]Service{}
	}
	return &cfg, nil
}

// Save writes cfg to path, sorting and deduplicating each key's
// service list by Index first.
func (cfg *ClientConfig) Save(path string) error {
	for hash, services := range cfg.Services {
		sort.Slice(services, func(i, j int) bool { return services[i].Index < services[j].Index })
		cfg.Services[hash] = dedupByIndex(services)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// AddService records that key has a new share registered with url,
// assigning it the next unused index for that key, then saves the
// registry to path.
func AddService(path string, key masp.EncKey, url string) error {
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return err
	}
	hash := key.Hash()
	existing := cfg.Services[hash]
	next := 1
	for _, s := range existing {
		if s.Index >= next {
			next = s.Index + 1
		}
	}
	cfg.Services[hash] = append(existing, Service{URL: url, Index: next})
	return cfg.Save(path)
}

// GetServices returns the services key's shares have been registered
// with, or an empty slice if none are on file yet.
func GetServices(path string, key masp.EncKey) ([]Service, error) {
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}
	return cfg.Services[key.Hash()], nil
}

func dedupByIndex(services []Service) []Service {
	out := services[:0:0]
	var lastIndex int
	first := true
	for _, s := range services {
		if first || s.Index != lastIndex {
			out = append(out, s)
		}
		lastIndex = s.Index
		first = false
	}
	return out
}
