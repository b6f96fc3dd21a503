/*
Copyright © 2026 Bartłomiej Święcki (byo)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package dom

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var (
	ErrInvalidSelector = errors.New("invalid selector")
	ErrNotAnElement    = errors.New("node is not an element")
)

// Document is an HTML document that can be safely accessed and modified
// from multiple goroutines.
//
// All reads and modifications of the node tree must go through Document
// methods. Nodes returned from the Document may only be used as handles
// passed back to it.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	subs map[*Subscription]struct{}
}

// Parse reads a complete HTML document
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return NewDocument(root), nil
}

// NewDocument takes ownership of given node tree
func NewDocument(root *html.Node) *Document {
	return &Document{
		root: root,
		subs: map[*Subscription]struct{}{},
	}
}

// Root returns the document node
func (d *Document) Root() *html.Node {
	return d.root
}

// Render writes HTML representation of the document
func (d *Document) Render(w io.Writer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return html.Render(w, d.root)
}

// String returns HTML representation of the document, or an empty string
// if the tree can not be rendered
func (d *Document) String() string {
	sb := strings.Builder{}
	if err := d.Render(&sb); err != nil {
		return ""
	}
	return sb.String()
}

func compileSelector(selector string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", ErrInvalidSelector, selector, err)
	}
	return sel, nil
}

// QueryAll returns all elements matching given CSS selector in document order
func (d *Document) QueryAll(selector string) ([]*html.Node, error) {
	sel, err := compileSelector(selector)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	return matchSubtree(sel, d.root, nil), nil
}

// Attr returns the value of element's attribute
func (d *Document) Attr(el *html.Node, key string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if KindOf(el) != KindElement {
		return "", false
	}

	for _, a := range el.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets the value of element's attribute, adding it if necessary.
//
// Attribute changes are not reported to subscriptions.
func (d *Document) SetAttr(el *html.Node, key, val string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if KindOf(el) != KindElement {
		return ErrNotAnElement
	}

	for i, a := range el.Attr {
		if a.Namespace == "" && a.Key == key {
			el.Attr[i].Val = val
			return nil
		}
	}
	el.Attr = append(el.Attr, html.Attribute{Key: key, Val: val})
	return nil
}

// AppendChild adds a detached node as the last child of the parent.
// Active subscriptions receive all matching elements from the added subtree.
func (d *Document) AppendChild(parent, child *html.Node) {
	d.mu.Lock()
	defer d.mu.Unlock()

	parent.AppendChild(child)
	d.notifyAdded(child)
}

// AppendHTML parses an HTML fragment in the context of the parent element
// and appends resulting nodes as its last children
func (d *Document) AppendHTML(parent *html.Node, fragment string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if KindOf(parent) != KindElement {
		return ErrNotAnElement
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		return err
	}

	for _, n := range nodes {
		parent.AppendChild(n)
		d.notifyAdded(n)
	}
	return nil
}

func (d *Document) notifyAdded(n *html.Node) {
	for sub := range d.subs {
		sub.push(matchSubtree(sub.sel, n, nil))
	}
}

// matchSubtree collects elements matching the selector, including the
// subtree root, in document order
func matchSubtree(sel cascadia.Selector, n *html.Node, out []*html.Node) []*html.Node {
	switch KindOf(n) {
	case KindElement:
		if sel.Match(n) {
			out = append(out, n)
		}
	case KindDocument:
	default:
		return out
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out = matchSubtree(sel, c, out)
	}
	return out
}
