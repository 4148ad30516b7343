package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]+$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func ProtocolValidator(p ProtocolCfg) error {
	if p.FloodInterval <= 0 || p.AhdInterval <= 0 {
		return fmt.Errorf("flood and ahd intervals must be positive")
	}
	if p.ExpiryTimeout <= p.FloodInterval {
		return fmt.Errorf("expiry timeout %v must be longer than the flood interval %v", p.ExpiryTimeout, p.FloodInterval)
	}
	if p.ExpiryTimeout <= p.AhdInterval {
		return fmt.Errorf("expiry timeout %v must be longer than the ahd interval %v", p.ExpiryTimeout, p.AhdInterval)
	}
	if p.Dims != 2 && p.Dims != 3 {
		return fmt.Errorf("dims must be 2 or 3, got %d", p.Dims)
	}
	if p.MinBeacons < p.Dims+1 {
		return fmt.Errorf("min_beacons must be at least %d for %d dimensions, got %d", p.Dims+1, p.Dims, p.MinBeacons)
	}
	if p.DegenerateThreshold < 0 {
		return fmt.Errorf("degenerate threshold must not be negative")
	}
	if p.AhdFallback != FallbackNone && p.AhdFallback != FallbackNearest {
		return fmt.Errorf("unknown ahd fallback %q", p.AhdFallback)
	}
	return nil
}

func ScenarioValidator(cfg *ScenarioCfg) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("scenario has no nodes")
	}
	seen := make([]NodeId, 0, len(cfg.Nodes))
	for _, node := range cfg.Nodes {
		err := NameValidator(string(node.Id))
		if err != nil {
			return err
		}
		if slices.Contains(seen, node.Id) {
			return fmt.Errorf("duplicate node id: %s", node.Id)
		}
		seen = append(seen, node.Id)
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if len(cfg.Graph) != 0 && cfg.Range != 0 {
		return fmt.Errorf("graph and range are mutually exclusive")
	}
	if cfg.Range < 0 {
		return fmt.Errorf("range must not be negative")
	}
	if _, err := cfg.Links(); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}
	if cfg.Link.Loss < 0 || cfg.Link.Loss >= 1 {
		return fmt.Errorf("link loss must be in [0, 1), got %v", cfg.Link.Loss)
	}
	if cfg.Link.Latency < 0 || cfg.Link.Jitter < 0 {
		return fmt.Errorf("link latency and jitter must not be negative")
	}
	err := ProtocolValidator(cfg.Protocol)
	if err != nil {
		return err
	}
	for _, d := range cfg.Dumps {
		if d.Kind != DumpDistance && d.Kind != DumpRouting {
			return fmt.Errorf("unknown dump kind %q", d.Kind)
		}
		if d.At < 0 || d.At > cfg.Duration {
			return fmt.Errorf("dump at %v is outside the scenario duration %v", d.At, cfg.Duration)
		}
		if d.Path != "" {
			if err := PathValidator(d.Path); err != nil {
				return fmt.Errorf("invalid dump path %s: %w", d.Path, err)
			}
		}
	}
	if cfg.LogPath != "" {
		if err := PathValidator(cfg.LogPath); err != nil {
			return fmt.Errorf("invalid log path %s: %w", cfg.LogPath, err)
		}
	}
	return nil
}
