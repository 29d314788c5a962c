// Package pagetest provides an in-memory page.Page for tests.
package pagetest

import (
	"context"
	"strings"
	"sync"

	"github.com/teranos/dropwatch/errors"
	"github.com/teranos/dropwatch/page"
)

// Node is a scripted element
type Node struct {
	Text     string
	Attrs    map[string]string
	Disabled bool
	// OnClick runs after a successful click; may mutate the page
	OnClick func(p *Page)
	// ClickErr fails clicks on this node
	ClickErr error
	// Children are the descendants visible to LocateIn, keyed by selector
	Children map[string][]*Node
}

// Child adds descendants under selector and returns n
func (n *Node) Child(selector string, nodes ...*Node) *Node {
	if n.Children == nil {
		n.Children = make(map[string][]*Node)
	}
	n.Children[selector] = append(n.Children[selector], nodes...)
	return n
}

// Page is a scripted page.Page. Elements are keyed by the exact selector
// string callers pass to Locate. All methods are safe for concurrent use.
type Page struct {
	mu        sync.Mutex
	url       string
	nodes     map[string][]*Node
	clicks    map[string]int
	navs      []string
	reloads   int
	locateErr map[string]error

	// OnReload runs on every Reload; use it to change the page between checks
	OnReload func(p *Page)
	// OnNavigate runs on every Navigate with the target URL
	OnNavigate func(p *Page, url string)
	// BeforeLocate runs before every Locate, outside the lock
	BeforeLocate func(selector string)
}

// New creates an empty page at url
func New(url string) *Page {
	return &Page{
		url:       url,
		nodes:     make(map[string][]*Node),
		clicks:    make(map[string]int),
		locateErr: make(map[string]error),
	}
}

// Set replaces the nodes matching selector
func (p *Page) Set(selector string, nodes ...*Node) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(nodes) == 0 {
		delete(p.nodes, selector)
	} else {
		p.nodes[selector] = nodes
	}
	return p
}

// SetText is shorthand for a single node with text
func (p *Page) SetText(selector, text string) *Page {
	return p.Set(selector, &Node{Text: text})
}

// Remove drops every node under selector
func (p *Page) Remove(selector string) *Page {
	return p.Set(selector)
}

// FailLocate makes Locate(selector) return err; nil clears it
func (p *Page) FailLocate(selector string, err error) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.locateErr, selector)
	} else {
		p.locateErr[selector] = err
	}
	return p
}

// SetURL changes the current URL without recording a navigation
func (p *Page) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
}

// Clicks returns successful clicks on selector
func (p *Page) Clicks(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clicks[selector]
}

// Navigations returns every URL passed to Navigate
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navs...)
}

// Reloads returns the number of Reload calls
func (p *Page) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

func (p *Page) Locate(ctx context.Context, selector string) ([]page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.BeforeLocate != nil {
		p.BeforeLocate(selector)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.locateErr[selector]; err != nil {
		return nil, err
	}
	els := make([]page.Element, 0, len(p.nodes[selector]))
	for i := range p.nodes[selector] {
		els = append(els, page.Element{Selector: selector, Index: i})
	}
	return els, nil
}

func (p *Page) LocateIn(ctx context.Context, parent page.Element, selector string) ([]page.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(parent)
	if err != nil {
		return nil, err
	}
	scope := parent
	els := make([]page.Element, 0, len(n.Children[selector]))
	for i := range n.Children[selector] {
		els = append(els, page.Element{Selector: selector, Index: i, Parent: &scope})
	}
	return els, nil
}

func (p *Page) node(el page.Element) (*Node, error) {
	nodes := p.nodes[el.Selector]
	if el.Parent != nil {
		parent, err := p.node(*el.Parent)
		if err != nil {
			return nil, err
		}
		nodes = parent.Children[el.Selector]
	}
	if el.Index < 0 || el.Index >= len(nodes) {
		return nil, errors.NewNotFoundError("element %s detached", el)
	}
	return nodes[el.Index], nil
}

func (p *Page) IsEnabled(ctx context.Context, el page.Element) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return false, err
	}
	return !n.Disabled, nil
}

func (p *Page) Click(ctx context.Context, el page.Element, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	n, err := p.node(el)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if n.ClickErr != nil {
		p.mu.Unlock()
		return n.ClickErr
	}
	if n.Disabled && !force {
		p.mu.Unlock()
		return errors.NewActionFailedError("element %s is disabled", el)
	}
	p.clicks[el.Selector]++
	onClick := n.OnClick
	p.mu.Unlock()

	if onClick != nil {
		onClick(p)
	}
	return nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.url = url
	p.navs = append(p.navs, url)
	hook := p.OnNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.reloads++
	hook := p.OnReload
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) TextOf(ctx context.Context, el page.Element) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(n.Text), nil
}

func (p *Page) AttrOf(ctx context.Context, el page.Element, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.node(el)
	if err != nil {
		return "", err
	}
	return n.Attrs[name], nil
}

var _ page.Page = (*Page)(nil)
