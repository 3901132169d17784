package cache

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gridview-ops/gridview-alert-go/internal/metrics"
	"github.com/gridview-ops/gridview-alert-go/internal/query"
)

// DefaultDistinctTTL bounds how long enumerated dimension values are reused
const DefaultDistinctTTL = 10 * time.Minute

// DistinctCache caches distinct-value enumerations in front of the query
// service. A cache hit short-circuits the network call entirely.
type DistinctCache struct {
	cache   *TTLCache
	service query.Service
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewDistinctCache creates a distinct-value cache with the given TTL
func NewDistinctCache(service query.Service, ttl time.Duration, m *metrics.Metrics, logger *logrus.Logger) *DistinctCache {
	if ttl <= 0 {
		ttl = DefaultDistinctTTL
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &DistinctCache{
		cache:   NewTTLCache("distinct_values", ttl),
		service: service,
		logger:  logger,
		metrics: m,
	}
}

// Distinct returns the deduplicated, sorted value list for a field
func (dc *DistinctCache) Distinct(ctx context.Context, req query.DistinctRequest) (*query.DistinctResult, error) {
	key := distinctKey(req)

	if cached, ok := dc.cache.Get(key); ok {
		if result, ok := cached.(*query.DistinctResult); ok {
			dc.metrics.CacheHits.Inc()
			return result, nil
		}
	}
	dc.metrics.CacheMisses.Inc()

	result, err := dc.service.Distinct(ctx, req)
	if err != nil {
		return nil, err
	}

	// Normalize: the service promises dedup and order, but the contract
	// downstream relies on it
	result.Values = dedupeSorted(result.Values)

	dc.cache.Set(key, result, 0)
	dc.logger.WithFields(logrus.Fields{
		"source": req.Source,
		"field":  req.Field,
		"count":  len(result.Values),
	}).Debug("Distinct values cached")

	return result, nil
}

// Invalidate drops the cached enumeration for one request shape
func (dc *DistinctCache) Invalidate(req query.DistinctRequest) {
	dc.cache.Delete(distinctKey(req))
}

// Stats exposes the underlying cache statistics
func (dc *DistinctCache) Stats() Stats {
	return dc.cache.Stats()
}

// distinctKey derives the cache key from (datasource, source, field, filters)
func distinctKey(req query.DistinctRequest) string {
	parts := make([]string, 0, len(req.Filters))
	for _, f := range req.Filters {
		parts = append(parts, fmt.Sprintf("%s|%s|%s", f.Field, f.Op, f.Value))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s;%s;%s;%s", req.Datasource, req.Source, req.Field, strings.Join(parts, ";"))
}

func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
