// Package browser isolates the chat automation from the browser backend.
// The authentication flow and the message exchange only see the Page
// capability set and a Selectors table.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrLaunch marks a failure to start the browser process. It is an
// environment problem and is never retried.
var ErrLaunch = errors.New("browser launch failed")

// Launcher starts a browser configured with a Profile and returns it with its
// first page.
type Launcher interface {
	Launch(ctx context.Context, profile Profile) (Browser, Page, error)
}

// Browser is the browser process handle.
type Browser interface {
	Close() error
}

// Page is the set of document capabilities the automation needs.
type Page interface {
	// URL returns the current document location.
	URL(ctx context.Context) (string, error)
	// Navigate loads url and returns once the network has gone idle.
	Navigate(ctx context.Context, url string) error
	// Exists reports whether at least one element matches selector right now.
	Exists(ctx context.Context, selector string) (bool, error)
	// Click clicks the first element matching selector.
	Click(ctx context.Context, selector string) error
	// WaitNavigation waits for a navigation started by the last Click to go network idle.
	WaitNavigation(ctx context.Context) error
	// Type focuses the element and types text one character at a time.
	Type(ctx context.Context, selector, text string, delay time.Duration) error
	// WaitFor blocks until an element matching selector is attached.
	WaitFor(ctx context.Context, selector string) error
	// Texts returns the text content of every element matching selector in document order.
	Texts(ctx context.Context, selector string) ([]string, error)
	// Close closes the page.
	Close() error
}

// Profile describes how a launched browser presents itself.
type Profile struct {
	Headless       bool
	ExecPath       string
	Flags          []string
	RemoteURL      string
	ViewportWidth  int
	ViewportHeight int
	Latitude       float64
	Longitude      float64
	UserAgent      string
}

// DefaultProfile mirrors the desktop fingerprint the automation has always used.
func DefaultProfile() Profile {
	return Profile{
		Flags: []string{
			"--no-sandbox",
			"--disable-setuid-sandbox",
			"--disable-dev-shm-usage",
			"--disable-accelerated-2d-canvas",
			"--disable-gpu",
			"--window-size=1920,1080",
		},
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Latitude:       40.7128,
		Longitude:      -74.0060,
	}
}
