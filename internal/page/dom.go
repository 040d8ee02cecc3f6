package page

import (
	"strings"
	"sync"
)

// Document is the page's lightweight element tree.
type Document struct {
	root *Element
	mu   sync.RWMutex
}

// Element represents one DOM element. Script elements additionally carry
// Src (applied address), Creator (identity of the script that created
// them), and attachment state.
type Element struct {
	TagName     string
	ID          string
	ClassName   string
	TextContent string
	Attributes  map[string]string
	Style       map[string]string
	Children    []*Element
	Parent      *Element

	// Script element state.
	Src      string // address, once applied
	Creator  string // identity of the creating script, if any
	Attached bool
}

// NewDocument creates an empty document with html/head/body skeleton.
func NewDocument() *Document {
	root := newElement("html")
	root.AddChild(newElement("head"))
	root.AddChild(newElement("body"))
	return &Document{root: root}
}

func newElement(tag string) *Element {
	return &Element{
		TagName:    strings.ToLower(tag),
		Attributes: make(map[string]string),
		Style:      make(map[string]string),
	}
}

// NewElement creates a detached element.
func (d *Document) NewElement(tag string) *Element {
	return newElement(tag)
}

// Root returns the document root.
func (d *Document) Root() *Element { return d.root }

// Head returns the head element.
func (d *Document) Head() *Element { return d.root.firstByTag("head") }

// Body returns the body element.
func (d *Document) Body() *Element { return d.root.firstByTag("body") }

// Query finds elements by a simplified selector: #id, .class, or tag.
func (d *Document) Query(selector string) []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch {
	case strings.HasPrefix(selector, "#"):
		if el := d.root.findByID(strings.TrimPrefix(selector, "#")); el != nil {
			return []*Element{el}
		}
		return nil
	case strings.HasPrefix(selector, "."):
		return d.root.findByClass(strings.TrimPrefix(selector, "."))
	default:
		return d.root.findByTag(strings.ToLower(selector))
	}
}

// Scripts returns every script element in document order.
func (d *Document) Scripts() []*Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root.findByTag("script")
}

// AddChild attaches a child element, marking subtree attachment state.
func (e *Element) AddChild(child *Element) {
	child.Parent = e
	e.Children = append(e.Children, child)
	child.markAttached()
}

// InsertBefore attaches child ahead of ref. Falls back to append when
// ref is nil or not a child of e.
func (e *Element) InsertBefore(child, ref *Element) {
	if ref == nil {
		e.AddChild(child)
		return
	}
	for i, existing := range e.Children {
		if existing == ref {
			child.Parent = e
			e.Children = append(e.Children[:i], append([]*Element{child}, e.Children[i:]...)...)
			child.markAttached()
			return
		}
	}
	e.AddChild(child)
}

// Remove detaches the element from its parent.
func (e *Element) Remove() {
	if e.Parent == nil {
		return
	}
	kept := e.Parent.Children[:0]
	for _, child := range e.Parent.Children {
		if child != e {
			kept = append(kept, child)
		}
	}
	e.Parent.Children = kept
	e.Parent = nil
}

// GetAttribute retrieves an attribute value.
func (e *Element) GetAttribute(name string) string {
	return e.Attributes[name]
}

// SetAttribute sets an attribute. Style attributes are parsed into the
// element's style map so visibility checks see them.
func (e *Element) SetAttribute(name, value string) {
	e.Attributes[name] = value
	if name == "style" {
		for _, decl := range strings.Split(value, ";") {
			parts := strings.SplitN(decl, ":", 2)
			if len(parts) == 2 {
				e.Style[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
			}
		}
	}
}

// StyleProp returns a style property, preferring inline style over
// width/height presentation attributes.
func (e *Element) StyleProp(name string) string {
	if v, ok := e.Style[name]; ok {
		return v
	}
	if name == "width" || name == "height" {
		return e.Attributes[name]
	}
	return ""
}

// Hidden reports whether the element is effectively invisible: display
// none, visibility hidden, or an explicit zero size.
func (e *Element) Hidden() bool {
	if e.StyleProp("display") == "none" || e.StyleProp("visibility") == "hidden" {
		return true
	}
	w, h := e.StyleProp("width"), e.StyleProp("height")
	return w == "0px" || w == "0" || h == "0px" || h == "0"
}

// IsScript reports whether this is a script element.
func (e *Element) IsScript() bool { return e.TagName == "script" }

// IsModule reports whether the script element declares type="module".
func (e *Element) IsModule() bool { return e.Attributes["type"] == "module" }

func (e *Element) markAttached() {
	e.Attached = true
	for _, c := range e.Children {
		c.markAttached()
	}
}

func (e *Element) firstByTag(tag string) *Element {
	found := e.findByTag(tag)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func (e *Element) findByID(id string) *Element {
	if e.ID == id {
		return e
	}
	for _, child := range e.Children {
		if found := child.findByID(id); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) findByClass(class string) []*Element {
	var result []*Element
	if strings.Contains(e.ClassName, class) {
		result = append(result, e)
	}
	for _, child := range e.Children {
		result = append(result, child.findByClass(class)...)
	}
	return result
}

func (e *Element) findByTag(tag string) []*Element {
	var result []*Element
	if e.TagName == tag {
		result = append(result, e)
	}
	for _, child := range e.Children {
		result = append(result, child.findByTag(tag)...)
	}
	return result
}
