package roddriver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
)

const textsScript = `(sel) => Array.from(document.querySelectorAll(sel)).map(e => e.textContent || "")`

type page struct {
	page *rod.Page

	mu        sync.Mutex
	navCancel context.CancelFunc
	navWait   func()
}

func (p *page) URL(ctx context.Context) (string, error) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	wait := pg.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	wait()
	return ctx.Err()
}

func (p *page) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

// Click arms a navigation waiter before clicking so WaitNavigation catches
// navigations the click starts.
func (p *page) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return err
	}

	navCtx, cancel := context.WithCancel(context.Background())
	wait := p.page.Context(navCtx).WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
	p.mu.Lock()
	if p.navCancel != nil {
		p.navCancel()
	}
	p.navCancel, p.navWait = cancel, wait
	p.mu.Unlock()

	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *page) WaitNavigation(ctx context.Context) error {
	p.mu.Lock()
	wait, cancel := p.navWait, p.navCancel
	p.navWait, p.navCancel = nil, nil
	p.mu.Unlock()

	if wait == nil {
		return fmt.Errorf("no click to wait on")
	}
	defer cancel()

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *page) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	pg := p.page.Context(ctx)
	el, err := pg.Element(selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}

	for _, r := range text {
		if r == '\n' {
			err = pg.KeyActions().Press(input.ShiftLeft).Type(input.Enter).Release(input.ShiftLeft).Do()
		} else {
			err = pg.InsertText(string(r))
		}
		if err != nil {
			return err
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

func (p *page) WaitFor(ctx context.Context, selector string) error {
	_, err := p.page.Context(ctx).Element(selector)
	return err
}

func (p *page) Texts(ctx context.Context, selector string) ([]string, error) {
	res, err := p.page.Context(ctx).Eval(textsScript, selector)
	if err != nil {
		return nil, err
	}

	arr := res.Value.Arr()
	texts := make([]string, 0, len(arr))
	for _, v := range arr {
		texts = append(texts, v.Str())
	}
	return texts, nil
}

func (p *page) Close() error {
	p.mu.Lock()
	if p.navCancel != nil {
		p.navCancel()
		p.navCancel, p.navWait = nil, nil
	}
	p.mu.Unlock()
	return p.page.Close()
}
