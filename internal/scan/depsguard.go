package scan

import (
	"github.com/scriptwarden/scriptwarden/internal/deps"
	"github.com/scriptwarden/scriptwarden/internal/page"
	"github.com/scriptwarden/scriptwarden/internal/shared/id"
)

// depsGuard feeds interception-based dependency edges into the tracker.
// It is a pure observer: it records edges even for scripts another
// guard ends up holding, since the load intent itself is the signal.
type depsGuard struct {
	tracker *deps.Tracker
}

func (g depsGuard) ScriptSourceAssigned(el *page.Element, src, caller string) bool {
	g.tracker.RecordDependency(src, caller)
	return false
}

func (g depsGuard) ScriptAttached(op page.AttachOp, el, parent, ref *page.Element, caller string) bool {
	switch {
	case el.Src != "":
		g.tracker.RecordDependency(el.Src, caller)
	case el.TextContent != "":
		g.tracker.RecordDependency(id.Inline(el.TextContent), caller)
	}
	return false
}
