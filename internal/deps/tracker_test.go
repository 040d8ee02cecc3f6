package deps

import (
	"fmt"
	"sync"
	"testing"
)

func TestRecordDependency(t *testing.T) {
	tr := New()

	tr.RecordDependency("https://a.com/child.js", "https://a.com/parent.js")
	tr.RecordDependency("https://a.com/child.js", "https://a.com/parent.js")

	parent := tr.GetDependencyInfo("https://a.com/parent.js")
	if parent.ChildCount != 1 {
		t.Errorf("duplicate edge should not double count, got %d children", parent.ChildCount)
	}

	child := tr.GetDependencyInfo("https://a.com/child.js")
	if child.Parent != "https://a.com/parent.js" {
		t.Errorf("child parent = %q", child.Parent)
	}
}

func TestRecordDependencyFirstParentWins(t *testing.T) {
	tr := New()

	tr.RecordDependency("child", "first")
	tr.RecordDependency("child", "second")

	if got := tr.GetDependencyInfo("child").Parent; got != "first" {
		t.Errorf("parent = %q, want first-observed parent", got)
	}
	// the second loader still lists the child
	if got := tr.GetDependencyInfo("second").ChildCount; got != 1 {
		t.Errorf("second loader children = %d, want 1", got)
	}
}

func TestRecordDependencyGuards(t *testing.T) {
	tr := New()

	tr.RecordDependency("", "parent")
	tr.RecordDependency("child", "")
	tr.RecordDependency("same", "same")

	if n := len(tr.All()); n != 0 {
		t.Errorf("degenerate edges should record nothing, got %d nodes", n)
	}
}

func TestGetDependencyInfoUnknown(t *testing.T) {
	tr := New()

	info := tr.GetDependencyInfo("never-seen")
	if info.Parent != "" || info.ChildCount != 0 {
		t.Errorf("unknown identity should yield zero shape, got %+v", info)
	}
	if info.Children == nil {
		t.Error("Children should be an empty slice, not nil")
	}
}

func TestObserveResource(t *testing.T) {
	tr := New()

	// a parser-loaded script joins the timeline without an edge
	tr.ObserveResource("https://a.com/first.js", false)
	// a script-initiated load is attributed to the previous entry
	tr.ObserveResource("https://a.com/second.js", true)

	if got := tr.GetDependencyInfo("https://a.com/second.js").Parent; got != "https://a.com/first.js" {
		t.Errorf("inferred parent = %q", got)
	}
}

func TestObserveResourceDoesNotOverrideInterception(t *testing.T) {
	tr := New()

	tr.RecordDependency("https://a.com/b.js", "https://a.com/real-loader.js")
	tr.ObserveResource("https://a.com/decoy.js", false)
	tr.ObserveResource("https://a.com/b.js", true)

	if got := tr.GetDependencyInfo("https://a.com/b.js").Parent; got != "https://a.com/real-loader.js" {
		t.Errorf("interception edge lost to inference, parent = %q", got)
	}
}

func TestObserveResourceFirstEntry(t *testing.T) {
	tr := New()

	// nothing precedes the first entry, so no edge is inferred
	tr.ObserveResource("https://a.com/only.js", true)
	if got := tr.GetDependencyInfo("https://a.com/only.js").Parent; got != "" {
		t.Errorf("first entry parent = %q, want none", got)
	}
}

func TestTree(t *testing.T) {
	tr := New()
	tr.RecordDependency("b", "a")
	tr.RecordDependency("c", "a")
	tr.RecordDependency("d", "b")

	root := tr.Tree("a")
	if root == nil || len(root.Children) != 2 {
		t.Fatalf("tree root children = %+v", root)
	}
	if root.Children[0].Identity != "b" || len(root.Children[0].Children) != 1 {
		t.Errorf("subtree of b = %+v", root.Children[0])
	}
}

func TestTreeCycle(t *testing.T) {
	tr := New()
	tr.RecordDependency("b", "a")
	tr.RecordDependency("a", "b")

	root := tr.Tree("a")
	if len(root.Children) != 1 {
		t.Fatalf("root children = %+v", root.Children)
	}
	back := root.Children[0].Children
	if len(back) != 1 || !back[0].Circular {
		t.Errorf("cycle should terminate in a circular marker, got %+v", back)
	}
}

func TestRoots(t *testing.T) {
	tr := New()
	tr.RecordDependency("b", "a")
	tr.RecordDependency("c", "b")
	tr.RecordDependency("e", "d")

	roots := tr.Roots()
	if len(roots) != 2 {
		t.Fatalf("roots = %v", roots)
	}
	seen := map[string]bool{}
	for _, r := range roots {
		seen[r] = true
	}
	if !seen["a"] || !seen["d"] {
		t.Errorf("roots = %v, want a and d", roots)
	}
}

func TestTrackerConcurrent(t *testing.T) {
	tr := New()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				child := fmt.Sprintf("child-%d-%d", n, j)
				tr.RecordDependency(child, "root")
				tr.GetDependencyInfo(child)
				tr.ObserveResource(child, true)
			}
		}(i)
	}
	wg.Wait()

	if got := tr.GetDependencyInfo("root").ChildCount; got != 800 {
		t.Errorf("root children = %d, want 800", got)
	}
}
