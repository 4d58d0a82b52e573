package stats

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	log "github.com/sirupsen/logrus"

	"shale/buffer"
	"shale/catalog"
)

// DefaultIOCostPerPage is the scan-cost weight of one page read.
const DefaultIOCostPerPage = 1000

// DefaultHistogramBins is the bucket count of every histogram the registry
// builds.
const DefaultHistogramBins = 100

// Registry caches computed TableStats per table name. Entries live in a
// ristretto cache, so an evicted or never-computed entry is simply rebuilt
// on demand; Reset drops everything explicitly.
type Registry struct {
	cache *ristretto.Cache[string, *TableStats]
	cat   *catalog.Catalog
	pool  *buffer.BufferPool

	ioCostPerPage int
	bins          int
}

func NewRegistry(cat *catalog.Catalog, pool *buffer.BufferPool, ioCostPerPage, bins int) (*Registry, error) {
	if ioCostPerPage <= 0 {
		ioCostPerPage = DefaultIOCostPerPage
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	cache, err := ristretto.NewCache(&ristretto.Config[string, *TableStats]{
		NumCounters: 1 << 12,
		MaxCost:     1 << 10,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("stats cache: %w", err)
	}

	return &Registry{
		cache:         cache,
		cat:           cat,
		pool:          pool,
		ioCostPerPage: ioCostPerPage,
		bins:          bins,
	}, nil
}

// Compute builds statistics for every cataloged table.
func (r *Registry) Compute() error {
	log.Info("computing table stats")
	for _, tableID := range r.cat.TableIDs() {
		name, err := r.cat.TableName(tableID)
		if err != nil {
			return err
		}
		if _, err := r.build(name, tableID); err != nil {
			return err
		}
	}
	log.Info("table stats done")
	return nil
}

func (r *Registry) build(name string, tableID int) (*TableStats, error) {
	f, err := r.cat.File(tableID)
	if err != nil {
		return nil, err
	}
	ts, err := NewTableStats(f, r.pool, r.ioCostPerPage, r.bins)
	if err != nil {
		return nil, fmt.Errorf("stats for table %s: %w", name, err)
	}

	r.cache.Set(name, ts, 1)
	r.cache.Wait()
	return ts, nil
}

// Get returns the cached stats for a table, rebuilding them on a miss.
func (r *Registry) Get(name string) (*TableStats, error) {
	if ts, ok := r.cache.Get(name); ok {
		return ts, nil
	}

	tableID, err := r.cat.TableID(name)
	if err != nil {
		return nil, err
	}
	return r.build(name, tableID)
}

// Set installs precomputed stats for a table. Testing hook.
func (r *Registry) Set(name string, ts *TableStats) {
	r.cache.Set(name, ts, 1)
	r.cache.Wait()
}

// Reset drops every cached entry.
func (r *Registry) Reset() {
	r.cache.Clear()
}

func (r *Registry) Close() {
	r.cache.Close()
}
