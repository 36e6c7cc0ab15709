// Package credentials holds the CDP connection settings entered in the config panel.
package credentials

import (
	"context"
	"time"
)

// Credentials are the write key and region used for outbound CDP calls.
type Credentials struct {
	WriteKey  string
	Region    string
	SiteID    string
	UpdatedAt time.Time
}

// Repository persists a single set of credentials. Load returns nil, nil when
// nothing is stored.
type Repository interface {
	Load(ctx context.Context) (*Credentials, error)
	Save(ctx context.Context, creds *Credentials) error
	Clear(ctx context.Context) error
}
