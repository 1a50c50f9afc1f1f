// Package clientstate persists the small set of named entries a browser
// visitor keeps between page loads: the bearer token, the refresh token and
// the last-known user payload.
package clientstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KeyToken        = "ekaai_token"
	KeyRefreshToken = "ekaai_refresh_token"
	KeyUser         = "ekaai_user"
)

// Keys lists every named entry. Clear removes all of them.
var Keys = []string{KeyToken, KeyRefreshToken, KeyUser}

var ErrNotFound = errors.New("clientstate: entry not found")

// Storage is one visitor's entries.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Provider hands out the storage for a visitor id.
type Provider interface {
	For(visitorID string) Storage
}

func GetJSON(ctx context.Context, s Storage, key string, dst any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("clientstate: decode %s: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("clientstate: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}
