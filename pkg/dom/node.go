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

import "golang.org/x/net/html"

// NodeKind classifies document nodes, only KindElement nodes
// take part in selector matching
type NodeKind int

const (
	KindOther NodeKind = iota
	KindElement
	KindText
	KindComment
	KindDocument
	KindDoctype
)

func (k NodeKind) String() string {
	switch k {
	case KindElement:
		return "Element"
	case KindText:
		return "Text"
	case KindComment:
		return "Comment"
	case KindDocument:
		return "Document"
	case KindDoctype:
		return "Doctype"
	default:
		return "Other"
	}
}

// KindOf returns the kind of given node, nil nodes are of KindOther
func KindOf(n *html.Node) NodeKind {
	if n == nil {
		return KindOther
	}

	switch n.Type {
	case html.ElementNode:
		return KindElement
	case html.TextNode:
		return KindText
	case html.CommentNode:
		return KindComment
	case html.DocumentNode:
		return KindDocument
	case html.DoctypeNode:
		return KindDoctype
	default:
		return KindOther
	}
}
