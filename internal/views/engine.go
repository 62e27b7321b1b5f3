// Package views is the single parameterized read path for every entity
// kind: fetch from the backend, resolve through the fallback policy, merge
// into the store, and hand the consumer a rendered-ready view that says
// where its data came from. One engine serves all kinds; per-page
// duplication is deliberately absent.
package views

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/brandguard/brandguard-bot/internal/activebrand"
	"github.com/brandguard/brandguard-bot/internal/fallback"
	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/sampledata"
	"github.com/brandguard/brandguard-bot/internal/store"
	"github.com/brandguard/brandguard-bot/internal/syncclient"
	"github.com/sirupsen/logrus"
)

// ErrSuperseded is returned when the active brand changed while a fetch was
// in flight. The late result is discarded, never merged.
var ErrSuperseded = errors.New("views: fetch superseded by brand switch")

// Fetcher abstracts the remote reads the engine performs.
type Fetcher interface {
	FetchCollection(ctx context.Context, kind models.Kind, brandID string) ([]models.Entity, error)
	FetchDocument(ctx context.Context, name, brandID string) (json.RawMessage, error)
}

// ClientFetcher adapts the sync client to the Fetcher interface.
type ClientFetcher struct {
	Client *syncclient.Client
}

func (f ClientFetcher) FetchCollection(ctx context.Context, kind models.Kind, brandID string) ([]models.Entity, error) {
	switch kind {
	case models.KindAlert:
		alerts, err := f.Client.Mentions(ctx, brandID)
		if err != nil {
			return nil, err
		}
		out := make([]models.Entity, len(alerts))
		for i, a := range alerts {
			a.BrandID = brandID
			out[i] = a
		}
		return out, nil
	case models.KindScout:
		scouts, err := f.Client.ListScouts(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]models.Entity, 0, len(scouts))
		for _, s := range scouts {
			if s.BrandID == "" || s.BrandID == brandID {
				s.BrandID = brandID
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, errors.New("views: no remote listing for kind " + string(kind))
}

func (f ClientFetcher) FetchDocument(ctx context.Context, name, brandID string) (json.RawMessage, error) {
	switch name {
	case "health":
		return f.Client.BrandHealth(ctx, brandID)
	case "trend":
		return f.Client.Trend(ctx, brandID)
	case "network":
		return f.Client.Network(ctx, brandID)
	case "sources":
		return f.Client.Sources(ctx, brandID)
	}
	return nil, errors.New("views: unknown document " + name)
}

// CollectionView is what a page consumer renders.
type CollectionView struct {
	Kind      models.Kind     `json:"kind"`
	BrandID   string          `json:"brand_id"`
	Entities  []models.Entity `json:"entities"`
	Source    fallback.Source `json:"source"`
	Degraded  bool            `json:"degraded"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// DocumentView is a rendered-ready opaque payload plus provenance.
type DocumentView struct {
	Name      string          `json:"name"`
	BrandID   string          `json:"brand_id"`
	Data      json.RawMessage `json:"data"`
	Source    fallback.Source `json:"source"`
	Degraded  bool            `json:"degraded"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Engine drives reads for the active brand.
type Engine struct {
	fetcher  Fetcher
	store    *store.Store
	resolver *fallback.Resolver
	brands   *activebrand.Store
	offline  bool
	now      func() time.Time
}

// NewEngine creates a view engine. When offline is set, every read resolves
// to the sample dataset regardless of backend availability.
func NewEngine(fetcher Fetcher, entityStore *store.Store, resolver *fallback.Resolver, brands *activebrand.Store, offline bool) *Engine {
	return &Engine{
		fetcher:  fetcher,
		store:    entityStore,
		resolver: resolver,
		brands:   brands,
		offline:  offline,
		now:      time.Now,
	}
}

// Collection returns the current view of one entity kind for the active
// brand. A fetch that completes after a brand switch returns ErrSuperseded
// and leaves the store untouched.
func (e *Engine) Collection(ctx context.Context, kind models.Kind) (*CollectionView, error) {
	brandID := e.brands.Get()
	epoch := e.brands.Epoch()

	// Corrections are authored locally; the backend has no listing for
	// them. Seed the demo set once and serve the store from then on.
	if kind == models.KindCorrection {
		return e.localCollection(brandID, kind), nil
	}

	// The fetch revision is taken before the call leaves, so a slow
	// response cannot clobber a faster-but-newer one at merge time.
	rev := e.store.BeginFetch(brandID, kind)
	result := e.fetchCollection(ctx, kind, brandID)

	if e.brands.Epoch() != epoch {
		logrus.Infof("Discarding %s fetch for brand %s: brand switched mid-flight", kind, brandID)
		return nil, ErrSuperseded
	}

	res := e.resolver.Resolve(brandID, kind, result)
	e.mergeResolution(brandID, kind, rev, res)

	return &CollectionView{
		Kind:      kind,
		BrandID:   brandID,
		Entities:  e.store.List(brandID, kind),
		Source:    res.Source,
		Degraded:  res.Degraded(),
		FetchedAt: e.now().UTC(),
	}, nil
}

func (e *Engine) fetchCollection(ctx context.Context, kind models.Kind, brandID string) fallback.Result {
	if e.offline {
		return fallback.Disabled()
	}
	data, err := e.fetcher.FetchCollection(ctx, kind, brandID)
	if err != nil {
		return fallback.Failure(err)
	}
	return fallback.Success(data)
}

// mergeResolution folds resolved data into the store. Fresh data replaces
// the remote snapshot under the fetch-revision guard; degraded data only
// seeds an empty collection so it cannot wipe out optimistic state the
// operator built up while the backend was down.
func (e *Engine) mergeResolution(brandID string, kind models.Kind, rev uint64, res fallback.Resolution) {
	if res.Source == fallback.SourceFresh {
		e.store.UpsertFromRemote(brandID, kind, rev, res.Entities)
		return
	}
	if len(e.store.List(brandID, kind)) == 0 {
		e.store.Merge(brandID, kind, res.Entities)
	}
}

func (e *Engine) localCollection(brandID string, kind models.Kind) *CollectionView {
	if len(e.store.List(brandID, kind)) == 0 {
		e.store.Merge(brandID, kind, sampledata.Entities(kind, brandID))
	}
	// Locally-authored data is never labelled fresh; fresh means a live
	// remote read, and there is none for this kind.
	return &CollectionView{
		Kind:      kind,
		BrandID:   brandID,
		Entities:  e.store.List(brandID, kind),
		Source:    fallback.SourceLocal,
		Degraded:  false,
		FetchedAt: e.now().UTC(),
	}
}

// Document returns a rendered-ready read-only view (health, trend, network,
// sources) under the same fallback and brand-switch rules.
func (e *Engine) Document(ctx context.Context, name string) (*DocumentView, error) {
	brandID := e.brands.Get()
	epoch := e.brands.Epoch()

	var result fallback.DocResult
	if e.offline {
		result = fallback.DocDisabled()
	} else if data, err := e.fetcher.FetchDocument(ctx, name, brandID); err != nil {
		result = fallback.DocFailure(err)
	} else {
		result = fallback.DocSuccess(data)
	}

	if e.brands.Epoch() != epoch {
		return nil, ErrSuperseded
	}

	res := e.resolver.ResolveDocument(brandID, name, result)
	return &DocumentView{
		Name:      name,
		BrandID:   brandID,
		Data:      res.Data,
		Source:    res.Source,
		Degraded:  res.Source != fallback.SourceFresh,
		FetchedAt: e.now().UTC(),
	}, nil
}
