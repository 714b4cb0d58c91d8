package affiliate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/r2k2/tournaments/internal/utils"
)

const cacheKey = "r2k2:affiliate:roster"

// Validator checks usernames against the affiliate's user list.
type Validator struct {
	rosterURL string
	client    *http.Client
	cache     Cache
	ttl       time.Duration
}

func NewValidator(rosterURL string, cache Cache, ttl time.Duration) *Validator {
	if cache == nil {
		cache = NewMemoryCache(nil)
	}
	return &Validator{
		rosterURL: rosterURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     cache,
		ttl:       ttl,
	}
}

// IsAffiliate reports whether username is on the roster, ignoring case.
func (v *Validator) IsAffiliate(ctx context.Context, username string) (bool, error) {
	roster, err := v.Roster(ctx)
	if err != nil {
		return false, err
	}
	_, found := slices.BinarySearch(roster, utils.NormalizeUsername(username))
	return found, nil
}

// Roster returns the normalized, sorted roster, from cache when possible.
func (v *Validator) Roster(ctx context.Context) ([]string, error) {
	roster, ok, err := v.cache.Get(ctx, cacheKey)
	if err != nil {
		// a broken cache should not stop registrations
		slog.Warn("affiliate roster cache read failed", "error", err)
	}
	if ok {
		return roster, nil
	}

	roster, err = v.fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := v.cache.Set(ctx, cacheKey, roster, v.ttl); err != nil {
		slog.Warn("affiliate roster cache write failed", "error", err)
	}
	return roster, nil
}

func (v *Validator) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.rosterURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build roster request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch affiliate roster: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("affiliate roster returned status %d", resp.StatusCode)
	}

	var raw []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode affiliate roster: %w", err)
	}
	return parseRoster(raw)
}

// parseRoster accepts plain strings or objects carrying a username field.
func parseRoster(raw []json.RawMessage) ([]string, error) {
	roster := make([]string, 0, len(raw))
	for i, item := range raw {
		var name string
		if err := json.Unmarshal(item, &name); err != nil {
			var obj struct {
				Username string `json:"username"`
			}
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, fmt.Errorf("roster entry %d is neither a string nor an object: %w", i, err)
			}
			name = obj.Username
		}

		if name = utils.NormalizeUsername(name); name != "" {
			roster = append(roster, name)
		}
	}

	slices.Sort(roster)
	return slices.Compact(roster), nil
}
