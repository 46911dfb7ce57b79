// Package browsertest provides an in-memory page driver for exercising the
// automation without a real browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zhouzirui/chat-relay/backend/internal/browser"
)

// Operations that can be made to fail with Page.Fail.
const (
	OpNavigate       = "navigate"
	OpExists         = "exists"
	OpClick          = "click"
	OpType           = "type"
	OpWaitFor        = "wait_for"
	OpWaitNavigation = "wait_navigation"
	OpTexts          = "texts"
)

// Page is a scriptable document. Elements are selectors with a match count and
// optional text contents; hooks let a test react to clicks and navigations.
type Page struct {
	mu sync.Mutex

	url         string
	counts      map[string]int
	texts       map[string][]string
	typed       map[string]string
	delays      map[string]time.Duration
	clicks      []string
	navigations []string
	onClick     map[string]func(*Page)
	onNavigate  func(*Page, string)
	failures    map[string]error
	blockNav    bool
	closed      bool
}

// NewPage returns an empty page at about:blank.
func NewPage() *Page {
	return &Page{
		url:      "about:blank",
		counts:   make(map[string]int),
		texts:    make(map[string][]string),
		typed:    make(map[string]string),
		delays:   make(map[string]time.Duration),
		onClick:  make(map[string]func(*Page)),
		failures: make(map[string]error),
	}
}

// Show attaches an element matching selector.
func (p *Page) Show(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sel := range selectors {
		if p.counts[sel] == 0 {
			p.counts[sel] = 1
		}
	}
	return p
}

// Hide detaches every element matching selector.
func (p *Page) Hide(selectors ...string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sel := range selectors {
		delete(p.counts, sel)
		delete(p.texts, sel)
	}
	return p
}

// AppendText adds an element with the given text content.
func (p *Page) AppendText(selector, text string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts[selector] = append(p.texts[selector], text)
	p.counts[selector] = len(p.texts[selector])
	return p
}

// SetLastText replaces the text of the last element matching selector.
func (p *Page) SetLastText(selector, text string) *Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.texts[selector]); n > 0 {
		p.texts[selector][n-1] = text
	}
	return p
}

// SetURL moves the page without recording a navigation.
func (p *Page) SetURL(url string) *Page {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
	return p
}

// OnClick registers a hook run after selector is clicked.
func (p *Page) OnClick(selector string, fn func(*Page)) *Page {
	p.mu.Lock()
	p.onClick[selector] = fn
	p.mu.Unlock()
	return p
}

// OnNavigate registers a hook run after every navigation.
func (p *Page) OnNavigate(fn func(*Page, string)) *Page {
	p.mu.Lock()
	p.onNavigate = fn
	p.mu.Unlock()
	return p
}

// Fail makes op fail with err. For selector-based operations selector limits
// the failure to that selector; an empty selector fails every call.
func (p *Page) Fail(op, selector string, err error) *Page {
	p.mu.Lock()
	p.failures[op+"|"+selector] = err
	p.mu.Unlock()
	return p
}

// BlockNavigation makes Navigate wait until its context is done.
func (p *Page) BlockNavigation() *Page {
	p.mu.Lock()
	p.blockNav = true
	p.mu.Unlock()
	return p
}

// Typed returns everything typed into selector.
func (p *Page) Typed(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.typed[selector]
}

// TypingDelay returns the per-character delay last used for selector.
func (p *Page) TypingDelay(selector string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delays[selector]
}

// Clicks returns the clicked selectors in order.
func (p *Page) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Navigations returns the navigated URLs in order.
func (p *Page) Navigations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.navigations...)
}

// Closed reports whether Close was called.
func (p *Page) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) failure(op, selector string) error {
	if err, ok := p.failures[op+"|"+selector]; ok {
		return err
	}
	return p.failures[op+"|"]
}

func (p *Page) URL(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	blocked := p.blockNav
	err := p.failure(OpNavigate, "")
	p.mu.Unlock()
	if err != nil {
		return err
	}
	if blocked {
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	p.url = url
	p.navigations = append(p.navigations, url)
	hook := p.onNavigate
	p.mu.Unlock()

	if hook != nil {
		hook(p, url)
	}
	return nil
}

func (p *Page) Exists(_ context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpExists, selector); err != nil {
		return false, err
	}
	return p.counts[selector] > 0, nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.mu.Lock()
	if err := p.failure(OpClick, selector); err != nil {
		p.mu.Unlock()
		return err
	}
	if p.counts[selector] == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no element matches %q", selector)
	}
	p.clicks = append(p.clicks, selector)
	hook := p.onClick[selector]
	p.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (p *Page) WaitNavigation(ctx context.Context) error {
	p.mu.Lock()
	err := p.failure(OpWaitNavigation, "")
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return ctx.Err()
}

func (p *Page) Type(_ context.Context, selector, text string, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpType, selector); err != nil {
		return err
	}
	if p.counts[selector] == 0 {
		return fmt.Errorf("no element matches %q", selector)
	}
	p.typed[selector] += text
	p.delays[selector] = delay
	return nil
}

func (p *Page) WaitFor(ctx context.Context, selector string) error {
	p.mu.Lock()
	err := p.failure(OpWaitFor, selector)
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return browser.Poll(ctx, time.Millisecond, func(ctx context.Context) (bool, error) {
		return p.Exists(ctx, selector)
	})
}

func (p *Page) Texts(_ context.Context, selector string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure(OpTexts, selector); err != nil {
		return nil, err
	}
	if texts, ok := p.texts[selector]; ok {
		return append([]string(nil), texts...), nil
	}
	return make([]string, p.counts[selector]), nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// Browser records whether it was closed.
type Browser struct {
	mu     sync.Mutex
	closed bool
}

func (b *Browser) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Launcher hands out pages built by NewPage and records every launch.
type Launcher struct {
	mu sync.Mutex

	// NewPage builds the page for each launch. Defaults to an empty page.
	NewPage func() *Page
	// Err, when set, makes Launch fail.
	Err error

	profiles []browser.Profile
	pages    []*Page
	browsers []*Browser
}

var _ browser.Launcher = (*Launcher)(nil)

func (l *Launcher) Launch(_ context.Context, profile browser.Profile) (browser.Browser, browser.Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.profiles = append(l.profiles, profile)
	if l.Err != nil {
		return nil, nil, l.Err
	}

	page := NewPage()
	if l.NewPage != nil {
		page = l.NewPage()
	}
	b := &Browser{}
	l.pages = append(l.pages, page)
	l.browsers = append(l.browsers, b)
	return b, page, nil
}

// Launches returns how many times Launch was called.
func (l *Launcher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.profiles)
}

// Profiles returns the profiles passed to Launch.
func (l *Launcher) Profiles() []browser.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]browser.Profile(nil), l.profiles...)
}

// Page returns the page handed out by the i-th successful launch.
func (l *Launcher) Page(i int) *Page {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pages[i]
}

// Browser returns the browser handed out by the i-th successful launch.
func (l *Launcher) Browser(i int) *Browser {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.browsers[i]
}
