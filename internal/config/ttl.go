package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// ttlFile is the layout of CACHE_TTL_FILE:
//
//	[ttl]
//	categories = "15m"
//	dashboard_data = "30s"
type ttlFile struct {
	TTL map[string]string `toml:"ttl"`
}

// LoadTTLFile reads per-key TTL overrides. Keys are cache key names without
// the period suffix; values are Go durations.
func LoadTTLFile(path string) (map[string]time.Duration, error) {
	var f ttlFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("read TTL file %s: %w", path, err)
	}

	out := make(map[string]time.Duration, len(f.TTL))
	for key, raw := range f.TTL {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("TTL file %s: invalid duration for %s: %w", path, key, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("TTL file %s: duration for %s must be positive", path, key)
		}
		out[key] = d
	}
	return out, nil
}

// TTLOverrides returns the overrides from CacheTTLFile, or nil when unset.
func (c *Config) TTLOverrides() (map[string]time.Duration, error) {
	if c.CacheTTLFile == "" {
		return nil, nil
	}
	return LoadTTLFile(c.CacheTTLFile)
}
