package fallback

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/brandguard/brandguard-bot/internal/models"
	"github.com/brandguard/brandguard-bot/internal/sampledata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brand = "brand-acme"

func freshAlerts() []models.Entity {
	return []models.Entity{
		models.Alert{ID: "live-1", BrandID: brand, Severity: models.SeverityHigh, Status: models.AlertOpen, AccuracyScore: 40},
	}
}

func TestResolve_DisabledAlwaysReturnsSample(t *testing.T) {
	r := NewResolver()

	// Even with a populated cache, disabled mode serves the sample set.
	r.Resolve(brand, models.KindAlert, Success(freshAlerts()))

	res := r.Resolve(brand, models.KindAlert, Disabled())
	assert.Equal(t, SourceSample, res.Source)
	assert.True(t, res.Degraded())
	assert.Equal(t, sampledata.Entities(models.KindAlert, brand), res.Entities)
}

func TestResolve_SuccessReturnsFreshAndUpdatesCache(t *testing.T) {
	r := NewResolver()

	res := r.Resolve(brand, models.KindAlert, Success(freshAlerts()))
	assert.Equal(t, SourceFresh, res.Source)
	assert.False(t, res.Degraded())
	assert.Equal(t, freshAlerts(), res.Entities)

	// A later failure serves the cached snapshot.
	res = r.Resolve(brand, models.KindAlert, Failure(errors.New("backend down")))
	assert.Equal(t, SourceStale, res.Source)
	assert.True(t, res.Degraded())
	assert.Equal(t, freshAlerts(), res.Entities)
	assert.Error(t, res.Err)
}

func TestResolve_FailureWithoutCacheReturnsSample(t *testing.T) {
	r := NewResolver()

	res := r.Resolve(brand, models.KindAlert, Failure(errors.New("backend down")))
	assert.Equal(t, SourceSample, res.Source)
	assert.Equal(t, sampledata.Entities(models.KindAlert, brand), res.Entities)
	assert.Error(t, res.Err)
}

func TestResolve_CachesAreScopedPerKindAndBrand(t *testing.T) {
	r := NewResolver()

	r.Resolve(brand, models.KindAlert, Success(freshAlerts()))

	// Same brand, different kind: no cache yet.
	res := r.Resolve(brand, models.KindScout, Failure(errors.New("down")))
	assert.Equal(t, SourceSample, res.Source)

	// Different brand, same kind: no cache yet.
	res = r.Resolve("brand-other", models.KindAlert, Failure(errors.New("down")))
	assert.Equal(t, SourceSample, res.Source)
}

func TestInvalidate_DropsOnlyThatBrand(t *testing.T) {
	r := NewResolver()

	r.Resolve(brand, models.KindAlert, Success(freshAlerts()))
	r.Resolve("brand-other", models.KindAlert, Success(freshAlerts()))

	r.Invalidate(brand)

	res := r.Resolve(brand, models.KindAlert, Failure(errors.New("down")))
	assert.Equal(t, SourceSample, res.Source)

	res = r.Resolve("brand-other", models.KindAlert, Failure(errors.New("down")))
	assert.Equal(t, SourceStale, res.Source)
}

func TestResolveDocument(t *testing.T) {
	r := NewResolver()

	doc := json.RawMessage(`{"platforms":[]}`)

	res := r.ResolveDocument(brand, "health", DocSuccess(doc))
	assert.Equal(t, SourceFresh, res.Source)
	assert.Equal(t, doc, res.Data)

	res = r.ResolveDocument(brand, "health", DocFailure(errors.New("down")))
	assert.Equal(t, SourceStale, res.Source)
	assert.Equal(t, doc, res.Data)

	res = r.ResolveDocument(brand, "trend", DocFailure(errors.New("down")))
	assert.Equal(t, SourceSample, res.Source)
	require.NotEmpty(t, res.Data)

	res = r.ResolveDocument(brand, "health", DocDisabled())
	assert.Equal(t, SourceSample, res.Source)
}
