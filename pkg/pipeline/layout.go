package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/flowmerge/pkg/cache"
	"github.com/matzehuels/flowmerge/pkg/layout"
	"github.com/matzehuels/flowmerge/pkg/observability"
	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// =============================================================================
// Cached Layout
// =============================================================================

// cachedLayouter looks positions up by graph shape before delegating.
// Positions depend only on node ids, their order and the edges, so node
// content changes keep hitting the same entry.
type cachedLayouter struct {
	inner  layout.Layouter
	cache  cache.Cache
	keyer  cache.Keyer
	opts   cache.LayoutKeyOpts
	ttl    time.Duration
	logger *log.Logger

	hit bool
}

// shape is the part of a graph that determines its layout.
type shape struct {
	Nodes []string    `json:"nodes"`
	Edges [][2]string `json:"edges"`
}

func graphHash(nodes []workflow.Node, edges []workflow.Edge) (string, error) {
	s := shape{Nodes: make([]string, len(nodes)), Edges: make([][2]string, len(edges))}
	for i, n := range nodes {
		s.Nodes[i] = n.ID
	}
	for i, e := range edges {
		s.Edges[i] = [2]string{e.Source, e.Target}
	}
	return cache.HashJSON(s)
}

// Layout implements [layout.Layouter].
func (c *cachedLayouter) Layout(ctx context.Context, nodes []workflow.Node, edges []workflow.Edge) (map[string]workflow.Position, error) {
	hooks := observability.Cache()
	hash, err := graphHash(nodes, edges)
	if err != nil {
		return c.inner.Layout(ctx, nodes, edges)
	}
	key := c.keyer.LayoutKey(hash, c.opts)

	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		var positions map[string]workflow.Position
		if err := json.Unmarshal(data, &positions); err == nil {
			hooks.OnCacheHit(ctx, "layout")
			c.hit = true
			return positions, nil
		}
		// Corrupt entries fall through to recompute.
	} else if err != nil {
		c.logger.Debug("layout cache read failed", "key", key, "err", err)
	}
	hooks.OnCacheMiss(ctx, "layout")

	positions, err := c.inner.Layout(ctx, nodes, edges)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(positions); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Debug("layout cache write failed", "key", key, "err", err)
		} else {
			hooks.OnCacheSet(ctx, "layout", len(data))
		}
	}
	return positions, nil
}
