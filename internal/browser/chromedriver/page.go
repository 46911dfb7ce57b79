package chromedriver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const closeTimeout = 5 * time.Second

type page struct {
	ctx       context.Context
	life      *lifecycle
	clickMark int
}

// run executes actions on the tab while honouring the caller's ctx. chromedp
// needs a context derived from the tab, so ctx cancellation is forwarded.
func (p *page) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(p.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (p *page) URL(ctx context.Context) (string, error) {
	var url string
	if err := p.run(ctx, chromedp.Location(&url)); err != nil {
		return "", err
	}
	return url, nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	mark := p.life.mark()
	if err := p.run(ctx, chromedp.Navigate(url)); err != nil {
		return err
	}
	return p.life.waitIdle(ctx, mark)
}

func (p *page) Exists(ctx context.Context, selector string) (bool, error) {
	var nodes []*cdp.Node
	if err := p.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (p *page) Click(ctx context.Context, selector string) error {
	p.clickMark = p.life.mark()
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *page) WaitNavigation(ctx context.Context) error {
	return p.life.waitIdle(ctx, p.clickMark)
}

// Type clicks into the element and sends one key event per character. A
// newline is sent as Shift+Enter so multi-line text is not submitted early.
func (p *page) Type(ctx context.Context, selector, text string, delay time.Duration) error {
	if err := p.run(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return err
	}

	for _, r := range text {
		key := chromedp.KeyEvent(string(r))
		if r == '\n' {
			key = chromedp.KeyEvent("\r", chromedp.KeyModifiers(input.ModifierShift))
		}
		if err := p.run(ctx, key); err != nil {
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
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *page) Texts(ctx context.Context, selector string) ([]string, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return nil, fmt.Errorf("encode selector: %w", err)
	}

	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.textContent || "")`, quoted)
	var texts []string
	if err := p.run(ctx, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

func (p *page) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := p.run(ctx, cdppage.Close()); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
