package solver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"edgeorch/internal/model"
	"edgeorch/pkg/cache"
)

// PathCache memoizes invocation-path solves keyed by the placement that
// produced them, so an adaptation cycle that re-solves after a transient
// probe hiccup (with an unchanged placement) does not re-run the search.
// Built on pkg/cache's Cache backend: same hash-then-key memoization
// pattern, keyed on this package's own placement/path types.
type PathCache struct {
	cache      cache.Cache
	defaultTTL time.Duration
}

// CachedPath is the serializable form of a solved InvocationPath.
type CachedPath struct {
	Path       map[string]int64 `json:"path"`
	Feasible   bool             `json:"feasible"`
	ComputedAt time.Time        `json:"computed_at"`
}

// NewPathCache builds a PathCache over an existing Cache backend.
func NewPathCache(c cache.Cache, defaultTTL time.Duration) *PathCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &PathCache{cache: c, defaultTTL: defaultTTL}
}

// Get returns a previously cached path for this placement, if present.
func (pc *PathCache) Get(ctx context.Context, placement model.Placement) (model.InvocationPath, bool, bool, error) {
	key := placementKey(placement)

	data, err := pc.cache.Get(ctx, key)
	if err != nil {
		if err == cache.ErrKeyNotFound {
			return nil, false, false, nil
		}
		return nil, false, false, err
	}

	var cp CachedPath
	if err := json.Unmarshal(data, &cp); err != nil {
		_ = pc.cache.Delete(ctx, key)
		return nil, false, false, nil
	}

	path := make(model.InvocationPath, len(cp.Path))
	for ms, id := range cp.Path {
		path[model.MicroserviceID(ms)] = model.NodeID(id)
	}
	return path, cp.Feasible, true, nil
}

// Set stores a solved (or infeasible) path result for this placement.
func (pc *PathCache) Set(ctx context.Context, placement model.Placement, path model.InvocationPath, feasible bool) error {
	key := placementKey(placement)

	raw := make(map[string]int64, len(path))
	for ms, id := range path {
		raw[string(ms)] = int64(id)
	}

	cp := CachedPath{Path: raw, Feasible: feasible, ComputedAt: time.Now()}
	data, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return pc.cache.Set(ctx, key, data, pc.defaultTTL)
}

// Invalidate drops the cached path for a placement, e.g. after a node in
// it is declared down.
func (pc *PathCache) Invalidate(ctx context.Context, placement model.Placement) error {
	return pc.cache.Delete(ctx, placementKey(placement))
}

// placementKey builds a deterministic cache key from a placement's
// canonical (sorted) representation.
func placementKey(placement model.Placement) string {
	ids := placement.SortedMicroserviceIDs()

	var canon []byte
	for _, ms := range ids {
		nodes := append([]model.NodeID(nil), placement[ms]...)
		sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
		canon = append(canon, []byte(fmt.Sprintf("%s:", ms))...)
		for _, n := range nodes {
			canon = append(canon, []byte(fmt.Sprintf("%d,", n))...)
		}
		canon = append(canon, ';')
	}

	hash := sha256.Sum256(canon)
	return "path:" + hex.EncodeToString(hash[:16])
}
