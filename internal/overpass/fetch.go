package overpass

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/landscore/internal/layer"
)

// Fetcher resolves a query from the cache or the network.
type Fetcher struct {
	Querier Querier
	// Cache is optional. On a hit the network is not touched.
	Cache Cache
}

// FetchRaw returns the raw response body for query and whether it came from
// the cache. A fresh response is written back to the cache; a failed cache
// write is logged and does not fail the fetch.
func (f *Fetcher) FetchRaw(ctx context.Context, query string) ([]byte, bool, error) {
	log := zap.L().With(zap.String("component", "overpass"))
	key := Key(query)

	if f.Cache != nil {
		data, ok, err := f.Cache.GetCachedQuery(ctx, key)
		if err != nil {
			log.Warn("cache read failed, querying", zap.Error(err))
		} else if ok {
			log.Info("loaded cached response", zap.Int("bytes", len(data)))
			return data, true, nil
		}
	}

	log.Info("querying overpass for vacant land")
	data, err := f.Querier.Query(ctx, query)
	if err != nil {
		return nil, false, err
	}
	if _, err := Parse(data); err != nil {
		return nil, false, err
	}

	if f.Cache != nil {
		if err := f.Cache.SetCachedQuery(ctx, key, data); err != nil {
			log.Warn("cache write failed", zap.Error(err))
		}
	}
	return data, false, nil
}

// Fetch returns the candidate parcels for b as a polygon layer.
func (f *Fetcher) Fetch(ctx context.Context, b BBox, timeoutSecs int) (*layer.Layer, error) {
	data, _, err := f.FetchRaw(ctx, BuildQuery(b, timeoutSecs))
	if err != nil {
		return nil, err
	}
	resp, err := Parse(data)
	if err != nil {
		return nil, err
	}
	l := resp.Layer()
	zap.L().Info("overpass: parcels converted",
		zap.Int("elements", len(resp.Elements)),
		zap.Int("polygons", len(l.Features)),
	)
	return l, nil
}
