package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/assistcache/internal/profile"
	"github.com/hrygo/assistcache/store"
	"github.com/hrygo/assistcache/store/db/sqlite"
)

// NewDriver creates a new db driver based on the profile. Its signature
// matches store.OpenDriverFunc so it can be handed to store.New directly.
func NewDriver(profile *profile.Profile) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch profile.Driver {
	case "sqlite":
		driver, err = sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver: %s (only 'sqlite' is supported)", profile.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}
