// Package viewer presents the authorization URL to the human.
package viewer

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/browser"
)

type Opener interface {
	Open(ctx context.Context, url string) error
}

// openURL is a seam for tests.
var openURL = browser.OpenURL

// Browser prints the URL to w and then tries the system browser. A browser
// failure is not an error: the printed URL is still usable, e.g. over ssh.
type Browser struct {
	w io.Writer
}

func NewBrowser(w io.Writer) *Browser {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
	return &Browser{w: w}
}

func (b *Browser) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(b.w, "\nOpen this URL to authorize access:\n  %s\n\n", url); err != nil {
		return err
	}
	if err := openURL(url); err != nil {
		fmt.Fprintf(b.w, "(could not launch a browser: %v)\n", err)
	}
	return nil
}

// Printer only writes the URL. Used when no display is available.
type Printer struct {
	w io.Writer
}

func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

func (p *Printer) Open(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(p.w, "\nOpen this URL to authorize access:\n  %s\n\n", url)
	return err
}
