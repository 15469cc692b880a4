package profile

import (
	"fmt"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
)

// Profile is the configuration to start the cache.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string `env:"ASSISTCACHE_MODE" envDefault:"prod"`
	// Data is the data directory
	Data string `env:"ASSISTCACHE_DATA" envDefault:"."`
	// DSN points to where the cache stores its data.
	// Defaults to <Data>/assistcache.db when empty.
	DSN string `env:"ASSISTCACHE_DSN"`
	// Driver is the database driver (sqlite)
	Driver string `env:"ASSISTCACHE_DRIVER" envDefault:"sqlite"`
	// Version is the current version of the cache, set by the caller.
	Version string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// Validate checks the profile and fills in derived defaults.
func (p *Profile) Validate() error {
	if p.Mode != "prod" && p.Mode != "dev" {
		return errors.Errorf("invalid mode: %s", p.Mode)
	}
	if p.Driver != "sqlite" {
		return errors.Errorf("unsupported driver: %s", p.Driver)
	}
	if p.DSN == "" {
		p.DSN = filepath.Join(p.Data, "assistcache.db")
	}
	return nil
}

// FromEnv loads a profile from ASSISTCACHE_* environment variables.
func FromEnv(version string) (*Profile, error) {
	p := &Profile{}
	if err := env.Parse(p); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	p.Version = version
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
