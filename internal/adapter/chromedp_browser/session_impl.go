package chromedp_browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/user/soldprice-service/internal/repository"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`

// Config selects and tunes the browser behind each session.
type Config struct {
	// RemoteURL is a DevTools websocket endpoint. Empty launches a local
	// headless Chrome.
	RemoteURL       string
	ExecPath        string
	UserAgent       string
	PageLoadTimeout time.Duration
	// PageRPS caps navigations and clicks per second. Zero disables pacing.
	PageRPS float64
	// Settle is how long a click is given to start a navigation.
	Settle time.Duration
}

// Factory opens chromedp-backed sessions.
type Factory struct {
	cfg    Config
	logger *zap.Logger
}

// NewFactory creates a SessionFactory using chromedp.
func NewFactory(cfg Config, logger *zap.Logger) repository.SessionFactory {
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = 60 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Settle <= 0 {
		cfg.Settle = 500 * time.Millisecond
	}
	return &Factory{cfg: cfg, logger: logger}
}

func (f *Factory) allocator() (context.Context, context.CancelFunc) {
	if f.cfg.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), f.cfg.RemoteURL)
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(f.cfg.UserAgent),
	)
	if f.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.cfg.ExecPath))
	}
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

// Open starts a fresh browser and tab. The browser lives until Close, not
// until ctx ends.
func (f *Factory) Open(ctx context.Context) (repository.Session, error) {
	allocCtx, cancelAlloc := f.allocator()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(f.logger.Sugar().Debugf))

	s := &Session{
		tab:     tabCtx,
		cancel:  func() { cancelTab(); cancelAlloc() },
		timeout: f.cfg.PageLoadTimeout,
		settle:  f.cfg.Settle,
		logger:  f.logger,
	}
	if f.cfg.PageRPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(f.cfg.PageRPS), 1)
	}

	// The first Run allocates the browser and must use the tab context
	// itself, otherwise the browser dies with the derived context.
	stop := context.AfterFunc(ctx, s.cancel)
	err := chromedp.Run(tabCtx)
	stop()
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return s, nil
}

// Session is one browser tab.
type Session struct {
	tab     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	settle  time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// run executes actions on the tab, bounded by both ctx and the page load
// timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.tab.Err() != nil {
		return errors.New("browser session closed")
	}
	opCtx, cancel := context.WithTimeout(s.tab, s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Session) pace(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.pace(ctx); err != nil {
		return err
	}
	started := time.Now()
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	s.logger.Debug("page loaded", zap.String("url", url), zap.Duration("took", time.Since(started)))
	return nil
}

func (s *Session) FindOne(ctx context.Context, loc repository.Locator) (repository.Element, error) {
	return s.findOne(ctx, loc)
}

func (s *Session) FindAll(ctx context.Context, loc repository.Locator) ([]repository.Element, error) {
	return s.findAll(ctx, loc)
}

func (s *Session) findOne(ctx context.Context, loc repository.Locator, scope ...chromedp.QueryOption) (repository.Element, error) {
	all, err := s.findAll(ctx, loc, scope...)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%s: %w", loc, repository.ErrElementNotFound)
	}
	return all[0], nil
}

func (s *Session) findAll(ctx context.Context, loc repository.Locator, scope ...chromedp.QueryOption) ([]repository.Element, error) {
	opts := append([]chromedp.QueryOption{chromedp.ByQueryAll, chromedp.AtLeast(0)}, scope...)
	var nodes []*cdp.Node
	if err := s.run(ctx, chromedp.Nodes(string(loc), &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %s: %w", loc, err)
	}
	out := make([]repository.Element, len(nodes))
	for i, n := range nodes {
		out[i] = &Element{session: s, node: n}
	}
	return out, nil
}

// Screenshot captures the full page as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the tab and the browser down.
func (s *Session) Close() error {
	s.cancel()
	return nil
}

// Element is a DOM node of the session's current page.
type Element struct {
	session *Session
	node    *cdp.Node
}

func (e *Element) ids() []cdp.NodeID { return []cdp.NodeID{e.node.NodeID} }

func (e *Element) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.session.run(ctx, chromedp.Text(e.ids(), &text, chromedp.ByNodeID)); err != nil {
		return "", fmt.Errorf("text of %s: %w", e.node.LocalName, err)
	}
	return strings.TrimSpace(text), nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	if err := e.session.run(ctx, chromedp.AttributeValue(e.ids(), name, &value, &ok, chromedp.ByNodeID)); err != nil {
		return "", false, fmt.Errorf("attribute %s of %s: %w", name, e.node.LocalName, err)
	}
	return value, ok, nil
}

func (e *Element) FindOne(ctx context.Context, loc repository.Locator) (repository.Element, error) {
	return e.session.findOne(ctx, loc, chromedp.FromNode(e.node))
}

func (e *Element) FindAll(ctx context.Context, loc repository.Locator) ([]repository.Element, error) {
	return e.session.findAll(ctx, loc, chromedp.FromNode(e.node))
}

// Click clicks the node and waits for any navigation it starts to finish.
func (e *Element) Click(ctx context.Context) error {
	if err := e.session.pace(ctx); err != nil {
		return err
	}
	err := e.session.run(ctx,
		chromedp.Click(e.ids(), chromedp.ByNodeID),
		chromedp.Sleep(e.session.settle),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("click %s: %w", e.node.LocalName, err)
	}
	return nil
}

// SendKeys replaces the value of an input with text.
func (e *Element) SendKeys(ctx context.Context, text string) error {
	err := e.session.run(ctx,
		chromedp.SetValue(e.ids(), "", chromedp.ByNodeID),
		chromedp.SendKeys(e.ids(), text, chromedp.ByNodeID),
	)
	if err != nil {
		return fmt.Errorf("type into %s: %w", e.node.LocalName, err)
	}
	return nil
}
