package deps

// TreeNode is one node of a rendered dependency tree. Circular marks a
// node reached a second time; its children are not re-expanded.
type TreeNode struct {
	Identity string      `json:"identity"`
	Circular bool        `json:"circular,omitempty"`
	Children []*TreeNode `json:"children,omitempty"`
}

// Tree renders the subtree rooted at identity. The graph enforces no
// structural cycle prevention, so rendering keeps a visited set and
// truncates any node it reaches twice instead of recursing forever.
func (t *Tracker) Tree(identity string) *TreeNode {
	return t.expand(identity, map[string]bool{})
}

func (t *Tracker) expand(identity string, visited map[string]bool) *TreeNode {
	if visited[identity] {
		return &TreeNode{Identity: identity, Circular: true}
	}
	visited[identity] = true

	info := t.GetDependencyInfo(identity)
	n := &TreeNode{Identity: identity}
	for _, child := range info.Children {
		n.Children = append(n.Children, t.expand(child, visited))
	}
	return n
}

// Roots returns identities with no recorded parent, in no particular
// order. These are the natural tree-rendering entry points.
func (t *Tracker) Roots() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var roots []string
	for identity, n := range t.nodes {
		if n.parent == "" {
			roots = append(roots, identity)
		}
	}
	return roots
}
