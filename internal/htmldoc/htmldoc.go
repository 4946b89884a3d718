// Package htmldoc models the host page: an HTML document whose hidden input
// receives the serialized log and whose form posts it back.
package htmldoc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page. Client and URL are used to submit forms.
type Document struct {
	root   *html.Node
	URL    *url.URL
	Client *http.Client
}

// Parse reads a page served from pageURL.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	return &Document{root: root, URL: u}, nil
}

// Fetch loads the page at pageURL. header values are sent with the request
// and reused when its forms are submitted.
func Fetch(ctx context.Context, client *http.Client, pageURL string, header http.Header) (*Document, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: %s", pageURL, resp.Status)
	}
	doc, err := Parse(resp.Body, pageURL)
	if err != nil {
		return nil, err
	}
	doc.Client = &http.Client{Transport: headerTransport{base: client.Transport, header: header}, Timeout: client.Timeout}
	return doc, nil
}

type headerTransport struct {
	base   http.RoundTripper
	header http.Header
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if len(t.header) == 0 {
		return base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.header {
		if req.Header.Get(k) == "" {
			req.Header[k] = v
		}
	}
	return base.RoundTrip(req)
}

// Render writes the document back out as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

func (d *Document) String() string {
	var buf bytes.Buffer
	_ = d.Render(&buf)
	return buf.String()
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if m := find(c, match); m != nil {
			return m
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// ElementByID returns the first element with the given id, or nil.
func (d *Document) ElementByID(id string) *Element {
	n := find(d.root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, ok := attr(n, "id")
		return ok && v == id
	})
	if n == nil {
		return nil
	}
	return &Element{doc: d, node: n}
}

// Element is one element node of a Document.
type Element struct {
	doc  *Document
	node *html.Node
}

func (e *Element) Tag() string { return e.node.Data }

func (e *Element) IsInput() bool { return e.node.DataAtom == atom.Input }

func (e *Element) Attr(key string) string {
	v, _ := attr(e.node, key)
	return v
}

func (e *Element) Value() string { return e.Attr("value") }

func (e *Element) SetValue(v string) { setAttr(e.node, "value", v) }

// Form returns the form owning e: the one named by its form attribute, or
// else the nearest enclosing form. It returns nil if there is none.
func (e *Element) Form() *Form {
	if id, ok := attr(e.node, "form"); ok {
		if f := e.doc.ElementByID(id); f != nil && f.node.DataAtom == atom.Form {
			return &Form{doc: e.doc, node: f.node}
		}
		return nil
	}
	for p := e.node.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.DataAtom == atom.Form {
			return &Form{doc: e.doc, node: p}
		}
	}
	return nil
}

// Form is a form element that can be submitted.
type Form struct {
	doc  *Document
	node *html.Node
}

func (f *Form) Method() string {
	m, _ := attr(f.node, "method")
	if strings.EqualFold(m, http.MethodPost) {
		return http.MethodPost
	}
	return http.MethodGet
}

// Action resolves the form action against the page URL.
func (f *Form) Action() (*url.URL, error) {
	a, _ := attr(f.node, "action")
	ref, err := url.Parse(a)
	if err != nil {
		return nil, fmt.Errorf("form action: %w", err)
	}
	if f.doc.URL == nil {
		return ref, nil
	}
	return f.doc.URL.ResolveReference(ref), nil
}

// Values collects the successful controls of the form.
func (f *Form) Values() url.Values {
	out := url.Values{}
	walk(f.node, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		name, ok := attr(n, "name")
		if !ok || name == "" {
			return
		}
		if _, disabled := attr(n, "disabled"); disabled {
			return
		}
		switch n.DataAtom {
		case atom.Input:
			typ, _ := attr(n, "type")
			switch strings.ToLower(typ) {
			case "submit", "button", "reset", "image", "file":
				return
			case "checkbox", "radio":
				if _, checked := attr(n, "checked"); !checked {
					return
				}
				v, ok := attr(n, "value")
				if !ok {
					v = "on"
				}
				out.Add(name, v)
				return
			}
			v, _ := attr(n, "value")
			out.Add(name, v)
		case atom.Textarea:
			out.Add(name, text(n))
		case atom.Select:
			if v, ok := selected(n); ok {
				out.Add(name, v)
			}
		}
	})
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func selected(sel *html.Node) (string, bool) {
	var first, chosen *html.Node
	walk(sel, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Option {
			return
		}
		if first == nil {
			first = n
		}
		if _, ok := attr(n, "selected"); ok && chosen == nil {
			chosen = n
		}
	})
	if chosen == nil {
		chosen = first
	}
	if chosen == nil {
		return "", false
	}
	if v, ok := attr(chosen, "value"); ok {
		return v, true
	}
	return text(chosen), true
}

// SubmitError reports a form submission the server rejected.
type SubmitError struct {
	Status int
	Body   string
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("form submission rejected: %d %s", e.Status, strings.TrimSpace(e.Body))
}

// Submit sends the form the way a browser would: POST bodies are
// form-urlencoded, GET values go in the query string.
func (f *Form) Submit(ctx context.Context) error {
	action, err := f.Action()
	if err != nil {
		return err
	}
	values := f.Values()
	var req *http.Request
	if f.Method() == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u := *action
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
	}
	client := f.doc.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &SubmitError{Status: resp.StatusCode, Body: string(body)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
