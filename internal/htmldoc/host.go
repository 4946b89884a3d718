package htmldoc

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HostPage describes the page that carries the hidden save field.
type HostPage struct {
	Title    string
	Heading  string
	Action   string
	TargetID string
	// Value is the current serialized document placed in the hidden field.
	Value string
}

func element(a atom.Atom, attrs []html.Attribute, children ...*html.Node) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	for _, c := range children {
		n.AppendChild(c)
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

// NewHostPage builds the host page document. Submitting its form posts the
// hidden field to Action.
func NewHostPage(p HostPage) *Document {
	input := element(atom.Input, attrs("type", "hidden", "id", p.TargetID, "name", p.TargetID, "value", p.Value))
	form := element(atom.Form, attrs("id", "induction-log-form", "method", "post", "action", p.Action),
		input,
		element(atom.Button, attrs("type", "submit"), textNode("Save")),
	)
	body := element(atom.Body, nil,
		element(atom.H1, nil, textNode(p.Heading)),
		form,
	)
	head := element(atom.Head, nil,
		element(atom.Meta, attrs("charset", "utf-8")),
		element(atom.Title, nil, textNode(p.Title)),
	)
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root.AppendChild(element(atom.Html, attrs("lang", "en"), head, body))
	return &Document{root: root}
}
