// Package fallback decides, per read, whether consumers see live remote
// data, the last-known-good snapshot, or the built-in sample dataset. Read
// failures never surface as hard errors; they degrade, and every resolution
// carries a Source marker so degraded data is never mistaken for fresh data.
package fallback

import (
	"encoding/json"
	"sync"

	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/sampledata"
	"github.com/sirupsen/logrus"
)

// Source tells the consumer where resolved data came from.
type Source string

const (
	SourceFresh  Source = "fresh"  // live remote data
	SourceStale  Source = "stale"  // last-good cache after a fetch failure
	SourceSample Source = "sample" // built-in dataset
	SourceLocal  Source = "local"  // locally-authored collection, no remote listing
)

// Result is the outcome of one fetch attempt.
type Result struct {
	disabled bool
	data     []models.Entity
	err      error
}

// Disabled marks the remote system as explicitly turned off.
func Disabled() Result { return Result{disabled: true} }

// Success wraps fetched data.
func Success(data []models.Entity) Result { return Result{data: data} }

// Failure wraps a fetch error.
func Failure(err error) Result { return Result{err: err} }

// Resolution is what the consumer renders.
type Resolution struct {
	Entities []models.Entity
	Source   Source
	Err      error // fetch error absorbed during a stale/sample resolution
}

// Degraded reports whether the data is anything other than fresh.
func (r Resolution) Degraded() bool { return r.Source != SourceFresh }

type cacheKey struct {
	brandID string
	kind    models.Kind
}

// Resolver keeps a per-collection last-good cache and applies the fallback
// policy. It also resolves opaque read-only documents (health, trend, ...).
type Resolver struct {
	mu    sync.Mutex
	cache map[cacheKey][]models.Entity
	docs  map[cacheKey]json.RawMessage
}

// NewResolver creates a resolver with empty caches.
func NewResolver() *Resolver {
	return &Resolver{
		cache: make(map[cacheKey][]models.Entity),
		docs:  make(map[cacheKey]json.RawMessage),
	}
}

// Resolve applies the policy: Disabled always yields the sample dataset;
// Success updates the last-good cache and yields fresh data; Failure yields
// the cache when one exists, the sample dataset otherwise.
func (r *Resolver) Resolve(brandID string, kind models.Kind, result Result) Resolution {
	key := cacheKey{brandID: brandID, kind: kind}

	if result.disabled {
		return Resolution{Entities: sampledata.Entities(kind, brandID), Source: SourceSample}
	}

	if result.err == nil {
		r.mu.Lock()
		r.cache[key] = result.data
		r.mu.Unlock()
		return Resolution{Entities: result.data, Source: SourceFresh}
	}

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		logrus.Warnf("Serving stale %s data for brand %s: %v", kind, brandID, result.err)
		return Resolution{Entities: cached, Source: SourceStale, Err: result.err}
	}

	logrus.Warnf("Serving sample %s data for brand %s: %v", kind, brandID, result.err)
	return Resolution{Entities: sampledata.Entities(kind, brandID), Source: SourceSample, Err: result.err}
}

// DocResult is the outcome of fetching an opaque rendered-ready document.
type DocResult struct {
	disabled bool
	data     json.RawMessage
	err      error
}

// DocDisabled marks document fetching as turned off.
func DocDisabled() DocResult { return DocResult{disabled: true} }

// DocSuccess wraps a fetched document.
func DocSuccess(data json.RawMessage) DocResult { return DocResult{data: data} }

// DocFailure wraps a document fetch error.
func DocFailure(err error) DocResult { return DocResult{err: err} }

// DocResolution is a resolved rendered-ready document.
type DocResolution struct {
	Data   json.RawMessage
	Source Source
	Err    error
}

// ResolveDocument applies the same policy to the named read-only document.
func (r *Resolver) ResolveDocument(brandID, name string, result DocResult) DocResolution {
	key := cacheKey{brandID: brandID, kind: models.Kind("doc:" + name)}

	if result.disabled {
		return DocResolution{Data: sampledata.Document(name, brandID), Source: SourceSample}
	}

	if result.err == nil {
		r.mu.Lock()
		r.docs[key] = result.data
		r.mu.Unlock()
		return DocResolution{Data: result.data, Source: SourceFresh}
	}

	r.mu.Lock()
	cached, ok := r.docs[key]
	r.mu.Unlock()
	if ok {
		return DocResolution{Data: cached, Source: SourceStale, Err: result.err}
	}
	return DocResolution{Data: sampledata.Document(name, brandID), Source: SourceSample, Err: result.err}
}

// Invalidate drops the cached snapshots for one brand. Other brands' caches
// are untouched.
func (r *Resolver) Invalidate(brandID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.cache {
		if key.brandID == brandID {
			delete(r.cache, key)
		}
	}
	for key := range r.docs {
		if key.brandID == brandID {
			delete(r.docs, key)
		}
	}
}
