package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// fileConfig is the TOML layout accepted by ROUTER_CONFIG:
//
//	[backends]
//	urls = ["http://driver-ai:8000", "http://driver-ai-backup:8000"]
//	max_candidates = 3
//	legacy_query = true
//
//	[timeouts]
//	chat = "15s"
//	analyze = "30s"
//	health = "5s"
//
//	[health]
//	cache_ttl = "30s"
type fileConfig struct {
	Backends struct {
		URLs          []string `toml:"urls"`
		MaxCandidates int      `toml:"max_candidates"`
		LegacyQuery   *bool    `toml:"legacy_query"`
	} `toml:"backends"`
	Timeouts struct {
		Chat    string `toml:"chat"`
		Analyze string `toml:"analyze"`
		Health  string `toml:"health"`
	} `toml:"timeouts"`
	Health struct {
		CacheTTL string `toml:"cache_ttl"`
	} `toml:"health"`
}

// LoadFile overlays the TOML file at path onto cfg. Zero values in the file
// leave the current setting untouched.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(fc.Backends.URLs) > 0 {
		urls := make([]string, 0, len(fc.Backends.URLs))
		for _, u := range fc.Backends.URLs {
			if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
				urls = append(urls, u)
			}
		}
		cfg.BackendURLs = urls
	}
	if fc.Backends.MaxCandidates > 0 {
		cfg.MaxCandidates = fc.Backends.MaxCandidates
	}
	if fc.Backends.LegacyQuery != nil {
		cfg.LegacyQueryEndpoints = *fc.Backends.LegacyQuery
	}

	durations := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.Timeouts.Chat, "timeouts.chat", &cfg.ChatTimeout},
		{fc.Timeouts.Analyze, "timeouts.analyze", &cfg.AnalyzeTimeout},
		{fc.Timeouts.Health, "timeouts.health", &cfg.HealthTimeout},
		{fc.Health.CacheTTL, "health.cache_ttl", &cfg.HealthCacheTTL},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = parsed
	}

	return nil
}
