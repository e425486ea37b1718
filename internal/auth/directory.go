package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/careercoach/internal/cache"
)

const directoryKeyPrefix = "identity:"

// CacheDirectory is a Directory filled at login time. The GitHub callback
// calls Remember with the profile it just fetched; later requests carrying
// the session cookie read it back through Lookup.
type CacheDirectory struct {
	cache cache.Client
	ttl   time.Duration
}

// NewCacheDirectory keeps entries for ttl, which should match the session
// lifetime so a valid cookie never points at an evicted profile.
func NewCacheDirectory(c cache.Client, ttl time.Duration) *CacheDirectory {
	return &CacheDirectory{cache: c, ttl: ttl}
}

var _ Directory = (*CacheDirectory)(nil)

func (d *CacheDirectory) Remember(ctx context.Context, u *ProviderUser) error {
	if u == nil || u.SubjectID == "" {
		return errors.New("auth: cannot remember a profile without subject")
	}
	b, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("auth: encoding profile: %w", err)
	}
	if err := d.cache.Set(ctx, directoryKeyPrefix+u.SubjectID, string(b), d.ttl); err != nil {
		return fmt.Errorf("auth: storing profile: %w", err)
	}
	return nil
}

func (d *CacheDirectory) Lookup(ctx context.Context, subjectID string) (*ProviderUser, error) {
	raw, err := d.cache.Get(ctx, directoryKeyPrefix+subjectID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrProfileUnavailable
		}
		return nil, fmt.Errorf("auth: reading profile: %w", err)
	}

	var u ProviderUser
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("auth: decoding profile: %w", err)
	}
	return &u, nil
}

// Forget drops the cached profile, used on logout.
func (d *CacheDirectory) Forget(ctx context.Context, subjectID string) error {
	return d.cache.Delete(ctx, directoryKeyPrefix+subjectID)
}
