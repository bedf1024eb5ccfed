package rod

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/kailas-cloud/hwfinder/internal/domain"
	"github.com/kailas-cloud/hwfinder/internal/domain/product"
)

// Fetcher drives one shared browser. Pages are opened per call, so concurrent calls are safe.
type Fetcher struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher

	loginMu  sync.Mutex
	loggedIn bool
}

// New creates a fetcher. The browser is started on first use.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	cfg.ApplyDefaults()
	return &Fetcher{cfg: cfg, logger: logger}
}

// Search reads the result tiles for text. A page without tiles yields zero records and no error.
func (f *Fetcher) Search(ctx context.Context, text string) ([]product.Raw, error) {
	target, err := SearchURL(f.cfg.BaseURL, f.cfg.SearchPath, text)
	if err != nil {
		return nil, fmt.Errorf("search: %w: %w", domain.ErrFetch, err)
	}
	b, err := f.connect()
	if err != nil {
		return nil, classify(ctx, "connect", err)
	}

	start := time.Now()
	var out []product.Raw
	err = f.withPage(ctx, b, target, func(page *rod.Page) error {
		out, err = f.readTiles(ctx, page, target)
		return err
	})
	if err != nil {
		return nil, classify(ctx, "search", err)
	}

	f.logger.Debug("Catalog search finished",
		zap.String("url", target),
		zap.Int("results", len(out)),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}

// FetchByName logs in when credentials are configured, searches for name and reads each matching product page.
func (f *Fetcher) FetchByName(ctx context.Context, name string) ([]product.Raw, error) {
	b, err := f.connect()
	if err != nil {
		return nil, classify(ctx, "connect", err)
	}
	if f.cfg.HasCredentials() {
		if err := f.login(ctx, b); err != nil {
			return nil, classify(ctx, "login", err)
		}
	} else {
		f.logger.Debug("No catalog credentials, fetching details anonymously")
	}

	tiles, err := f.Search(ctx, name)
	if err != nil {
		return nil, err
	}

	out := make([]product.Raw, 0, len(tiles))
	for _, tile := range tiles {
		link, _ := tile["product_url"].(string)
		if link == "" {
			out = append(out, tile)
			continue
		}
		var detail product.Raw
		err := f.withPage(ctx, b, link, func(page *rod.Page) error {
			detail = f.readDetail(page)
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, classify(ctx, "detail", err)
			}
			f.logger.Warn("Product page failed, keeping listing data", zap.String("url", link), zap.Error(err))
			out = append(out, tile)
			continue
		}
		out = append(out, mergeRaw(tile, detail))
	}
	return out, nil
}

// Close shuts the browser down.
func (f *Fetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if f.browser != nil {
		err = f.browser.Close()
		f.browser = nil
	}
	if f.launcher != nil {
		f.launcher.Cleanup()
		f.launcher = nil
	}
	return err
}

func (f *Fetcher) connect() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.browser != nil {
		if _, err := f.browser.Version(); err == nil {
			return f.browser, nil
		}
		f.logger.Warn("Stale browser connection, reconnecting")
		_ = f.browser.Close()
		f.browser = nil
		f.loginMu.Lock()
		f.loggedIn = false
		f.loginMu.Unlock()
	}

	controlURL := f.cfg.ControlURL
	if controlURL == "" {
		if f.launcher != nil {
			f.launcher.Cleanup()
		}
		f.launcher = launcher.New().Headless(f.cfg.Headless)
		u, err := f.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	f.browser = b
	return b, nil
}

func (f *Fetcher) login(ctx context.Context, b *rod.Browser) error {
	f.loginMu.Lock()
	defer f.loginMu.Unlock()
	if f.loggedIn {
		return nil
	}

	target, err := resolve(f.cfg.BaseURL, f.cfg.LoginPath)
	if err != nil {
		return err
	}
	sel := f.cfg.Selectors
	err = f.withPage(ctx, b, target, func(page *rod.Page) error {
		email, err := page.Element(sel.LoginEmail)
		if err != nil {
			return fmt.Errorf("email field: %w", err)
		}
		if err := email.Input(f.cfg.Email); err != nil {
			return fmt.Errorf("type email: %w", err)
		}
		password, err := page.Element(sel.LoginPassword)
		if err != nil {
			return fmt.Errorf("password field: %w", err)
		}
		if err := password.Input(f.cfg.Password); err != nil {
			return fmt.Errorf("type password: %w", err)
		}
		submit, err := page.Element(sel.LoginSubmit)
		if err != nil {
			return fmt.Errorf("submit button: %w", err)
		}
		if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("submit login: %w", err)
		}
		if _, err := page.Element(sel.LoggedIn); err != nil {
			return fmt.Errorf("wait for session: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	f.loggedIn = true
	f.logger.Info("Logged in to catalog", zap.String("url", target))
	return nil
}

// withPage opens target in a fresh tab bound to ctx and closes it afterwards.
func (f *Fetcher) withPage(ctx context.Context, b *rod.Browser, target string, fn func(*rod.Page) error) error {
	tab, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = tab.Close() }()

	page := tab.Context(ctx)
	if err := page.Navigate(target); err != nil {
		return fmt.Errorf("navigate %s: %w", target, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load: %w", err)
	}
	return fn(page)
}

func (f *Fetcher) readTiles(ctx context.Context, page *rod.Page, pageURL string) ([]product.Raw, error) {
	sel := f.cfg.Selectors

	settle := page.Timeout(f.cfg.SettleTimeout)
	err := settle.WaitElementsMoreThan(sel.Tile, 0)
	settle.CancelTimeout()
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("wait for results: %w", err)
	}

	tiles, err := page.Elements(sel.Tile)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	out := make([]product.Raw, 0, min(len(tiles), f.cfg.MaxResults))
	for _, tile := range tiles {
		if len(out) >= f.cfg.MaxResults {
			break
		}
		fields := map[string]string{
			"name":        firstText(tile, sel.Name),
			"price":       firstText(tile, sel.Price),
			"description": firstText(tile, sel.Description),
			"sku":         firstText(tile, sel.SKU),
			"product_url": firstAttr(tile, sel.Link, "href"),
			"image_url":   firstAttr(tile, sel.Image, "src"),
		}
		if raw := tileRaw(fields, pageURL); raw != nil {
			out = append(out, raw)
		}
	}
	return out, nil
}

func (f *Fetcher) readDetail(page *rod.Page) product.Raw {
	fields := make(map[string]string, len(f.cfg.Selectors.Detail))
	for field, sel := range f.cfg.Selectors.Detail {
		els, err := page.Elements(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		parts := make([]string, 0, len(els))
		for _, el := range els {
			if t, err := el.Text(); err == nil {
				parts = append(parts, t)
			}
		}
		fields[field] = strings.Join(parts, ", ")
	}
	info, err := page.Info()
	pageURL := ""
	if err == nil {
		pageURL = info.URL
		fields["product_url"] = info.URL
	}
	return tileRaw(fields, pageURL)
}

func firstText(el *rod.Element, sel string) string {
	if sel == "" {
		return ""
	}
	els, err := el.Elements(sel)
	if err != nil || len(els) == 0 {
		return ""
	}
	t, err := els[0].Text()
	if err != nil {
		return ""
	}
	return t
}

func firstAttr(el *rod.Element, sel, name string) string {
	if sel == "" {
		return ""
	}
	els, err := el.Elements(sel)
	if err != nil || len(els) == 0 {
		return ""
	}
	v, err := els[0].Attribute(name)
	if err != nil || v == nil {
		return ""
	}
	return *v
}

// classify maps a browser failure onto the fetch sentinels.
func classify(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrFetchTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrFetch, err)
}
