package page

import (
	"strings"

	"github.com/dop251/goja"

	"github.com/scriptwarden/scriptwarden/internal/shared/types"
)

// CallerResolver attributes a capability call to a script identity.
// The contract is best effort: never panic, always return some identity.
// Ports with a more reliable mechanism (explicit caller tagging,
// execution context IDs) can swap in their own implementation.
type CallerResolver interface {
	Identify() string
}

// stackResolver walks the VM call stack and takes the first frame whose
// source name looks like a script identity. Minified or deeply nested
// code can attribute to the wrong identity; that imprecision is a design
// constraint of stack inspection, not something to guess around.
type stackResolver struct {
	vm *goja.Runtime
}

func (r *stackResolver) Identify() (identity string) {
	identity = types.IdentityUnknown
	defer func() { _ = recover() }() // stack capture must never break a call

	frames := r.vm.CaptureCallStack(0, nil)
	for _, frame := range frames {
		src := frame.SrcName()
		if identityLike(src) {
			return src
		}
	}
	return identity
}

func identityLike(src string) bool {
	return strings.HasPrefix(src, "http://") ||
		strings.HasPrefix(src, "https://") ||
		strings.HasPrefix(src, "inline-")
}
