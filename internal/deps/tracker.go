// Package deps builds a best-effort caller-to-callee graph of script
// loads. There is no native parent-pointer API in a page environment, so
// parentage is inferred from two independent signals: interception of
// script creation/insertion, and the ordering of the resource-timing
// feed. Both are heuristics; concurrent loads can misattribute.
package deps

import (
	"sync"

	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

type node struct {
	parent   string
	children []string
}

// Tracker records script-load dependencies keyed by script identity.
// Safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	nodes map[string]*node

	// Chronological record of script-type resource entries, used for
	// passive initiator inference.
	timeline []string
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{nodes: make(map[string]*node)}
}

// RecordDependency marks parent as the loader of child. No-op when
// either identity is empty or they are equal. The child is added to the
// parent's children at most once. The first recorded parent wins: later
// calls that would rewrite an existing parent are dropped silently,
// since the first-observed loader is treated as authoritative.
func (t *Tracker) RecordDependency(child, parent string) {
	if child == "" || parent == "" || child == parent {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.node(parent)
	c := t.node(child)

	exists := false
	for _, existing := range p.children {
		if existing == child {
			exists = true
			break
		}
	}
	if !exists {
		p.children = append(p.children, child)
	}

	if c.parent == "" {
		c.parent = parent
	}
}

// GetDependencyInfo returns the dependency shape for an identity. An
// unknown identity yields the zero-value shape; this never fails.
func (t *Tracker) GetDependencyInfo(identity string) types.DependencyInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[identity]
	if !ok {
		return types.DependencyInfo{Children: []string{}}
	}

	children := make([]string, len(n.children))
	copy(children, n.children)

	return types.DependencyInfo{
		Parent:     n.parent,
		ChildCount: len(children),
		Children:   children,
	}
}

// All returns a snapshot of the full graph. Readers must tolerate the
// graph continuing to grow after the snapshot is taken.
func (t *Tracker) All() map[string]types.DependencyInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]types.DependencyInfo, len(t.nodes))
	for identity, n := range t.nodes {
		children := make([]string, len(n.children))
		copy(children, n.children)
		out[identity] = types.DependencyInfo{
			Parent:     n.parent,
			ChildCount: len(children),
			Children:   children,
		}
	}
	return out
}

// ObserveResource feeds one resource-timing entry to the tracker. For
// script-initiated resources not already attributed by interception, the
// immediately preceding script-type entry in chronological order is
// inferred as the initiator. This approximates causality, nothing more.
func (t *Tracker) ObserveResource(url string, scriptInitiated bool) {
	if url == "" {
		return
	}

	t.mu.Lock()
	var initiator string
	if scriptInitiated && len(t.timeline) > 0 {
		initiator = t.timeline[len(t.timeline)-1]
	}
	t.timeline = append(t.timeline, url)
	t.mu.Unlock()

	if scriptInitiated && initiator != "" {
		t.RecordDependency(url, initiator)
	}
}

// node returns the graph node for an identity, creating it lazily.
// Caller must hold the write lock.
func (t *Tracker) node(identity string) *node {
	n, ok := t.nodes[identity]
	if !ok {
		n = &node{}
		t.nodes[identity] = n
	}
	return n
}
