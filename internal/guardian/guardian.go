// Package guardian ties the lockfile parsers, the disk cache, and the
// fetcher into the single entry point the CLI's "guardian check" command
// calls: parse a lockfile, resolve each package's advisory payload through
// the cache-then-network policy, and report what was found.
package guardian

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/varalys/veil/internal/guardian/diskcache"
	"github.com/varalys/veil/internal/guardian/fetch"
	"github.com/varalys/veil/internal/guardian/lockfile"
	"github.com/varalys/veil/internal/types"
)

// cacheAdapter bridges diskcache.Store's raw-bytes-in/raw-bytes-out
// interface to the (Payload, ETag, FetchedAt) view fetch.Cache expects,
// persisting the extra fields in the shared CacheEntry envelope so the
// on-disk shape matches every other Guardian cache consumer.
type cacheAdapter struct {
	store *diskcache.Store
}

func newCacheAdapter(store *diskcache.Store) *cacheAdapter {
	return &cacheAdapter{store: store}
}

func (c *cacheAdapter) Read(key string) (fetch.Entry, bool, error) {
	hit, err := c.store.Read(key)
	if err != nil {
		if err == diskcache.ErrMiss {
			return fetch.Entry{}, false, nil
		}
		return fetch.Entry{}, false, err
	}
	var env types.CacheEntry[json.RawMessage]
	if err := json.Unmarshal(hit.Data, &env); err != nil {
		return fetch.Entry{}, false, fmt.Errorf("guardian: decode cache envelope for %q: %w", key, err)
	}
	return fetch.Entry{
		Payload:   []byte(env.Payload),
		ETag:      env.Meta.ETag,
		FetchedAt: time.Unix(env.Meta.FetchedAt, 0).UTC(),
	}, true, nil
}

// Write persists entry under key. A nil entry.Payload is the fetcher's
// "touch" signal (304 Not Modified): the previously cached payload is kept
// and only fetched_at/etag move.
func (c *cacheAdapter) Write(key string, entry fetch.Entry) error {
	payload := json.RawMessage(entry.Payload)
	if entry.Payload == nil {
		if prior, found, err := c.Read(key); err == nil && found {
			payload = json.RawMessage(prior.Payload)
		}
	}
	env := types.CacheEntry[json.RawMessage]{
		Meta: types.CacheMeta{
			Schema:    1,
			Key:       key,
			FetchedAt: entry.FetchedAt.Unix(),
			TTLSecond: int64(fetch.DefaultTTL.Seconds()),
			ETag:      entry.ETag,
		},
		Payload: payload,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("guardian: encode cache envelope for %q: %w", key, err)
	}
	return c.store.Write(key, b)
}

// Advisory is one vulnerability record returned by the advisory feed for a
// package. The payload format is intentionally minimal: Guardian's job is
// caching and fetch policy, not advisory-feed schema modeling.
type Advisory struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Severity string `json:"severity"`
	FixedIn  string `json:"fixed_in,omitempty"`
}

type advisoryResponse struct {
	Advisories []Advisory `json:"advisories"`
}

// PackageResult is one resolved package's advisory lookup outcome.
type PackageResult struct {
	Package    types.PackageRef
	Outcome    fetch.Outcome
	Advisories []Advisory
	Err        error
}

// CheckResult is the full outcome of auditing one lockfile.
type CheckResult struct {
	Packages []PackageResult
}

// HasVulnerabilities reports whether any resolved package carries at least
// one advisory, the signal the CLI maps to a policy-violation exit code.
func (r CheckResult) HasVulnerabilities() bool {
	for _, p := range r.Packages {
		if len(p.Advisories) > 0 {
			return true
		}
	}
	return false
}

// URLBuilder produces the advisory-feed URL for a resolved package.
type URLBuilder func(types.PackageRef) string

// Checker audits a lockfile's packages against an advisory feed, through
// the versioned disk cache and the single-flight fetcher.
type Checker struct {
	Fetcher    *fetch.Fetcher
	Cache      *diskcache.Store
	BuildURL   URLBuilder
	TimeBudget time.Duration
}

// NewChecker builds a Checker with a default 30s overall network budget.
func NewChecker(client fetch.Doer, maxInFlight int, cacheRoot string, online bool, buildURL URLBuilder) *Checker {
	return &Checker{
		Fetcher:    fetch.NewFetcher(client, fetch.NewGate(maxInFlight), online),
		Cache:      diskcache.NewStore(cacheRoot),
		BuildURL:   buildURL,
		TimeBudget: 30 * time.Second,
	}
}

// Check parses the lockfile at path and resolves each package's advisory
// payload in sequence. The Fetcher's single-flight coalescing and
// concurrency gate already bound and dedupe outbound work, so no extra
// fan-out happens at this layer.
func (c *Checker) Check(ctx context.Context, path string, data []byte) (CheckResult, error) {
	refs, err := lockfile.ParseFile(path, data)
	if err != nil {
		return CheckResult{}, err
	}

	cache := newCacheAdapter(c.Cache)
	var result CheckResult
	for _, ref := range refs {
		key := fmt.Sprintf("%s:%s:%s", ref.Ecosystem, ref.Name, ref.Version)
		url := c.BuildURL(ref)
		budget := fetch.NewTimeBudget(c.Fetcher.Now(), c.TimeBudget)

		res, err := c.Fetcher.Fetch(ctx, cache, key, url, budget)
		pr := PackageResult{Package: ref, Err: err}
		if err != nil {
			result.Packages = append(result.Packages, pr)
			continue
		}
		pr.Outcome = res.Outcome
		if len(res.Payload) > 0 {
			var decoded advisoryResponse
			if jerr := json.Unmarshal(res.Payload, &decoded); jerr == nil {
				pr.Advisories = decoded.Advisories
			}
		}
		result.Packages = append(result.Packages, pr)
	}
	return result, nil
}

// DefaultHTTPClient is the Doer Check's Checker uses unless overridden in
// tests, matching fetch.Doer's minimal *http.Client-shaped interface.
var DefaultHTTPClient fetch.Doer = &http.Client{Timeout: 15 * time.Second}
