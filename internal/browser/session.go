// internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/grantscout/internal/config"
)

// Session is one Chrome process with a single tab, owned by one automation run.
type Session struct {
	ctx       context.Context // tab context; carries the CDP target
	cancel    context.CancelFunc
	cfg       config.BrowserConfig
	logger    *zap.Logger
	closeOnce sync.Once
}

var _ Page = (*Session)(nil)

// AllocatorOptions translates the browser config into chromedp allocator options.
func AllocatorOptions(cfg config.BrowserConfig) ([]chromedp.ExecAllocatorOption, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.UserDataDir != "" {
		dir, err := homedir.Expand(cfg.UserDataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to expand user data dir %q: %w", cfg.UserDataDir, err)
		}
		opts = append(opts, chromedp.UserDataDir(dir))
	}

	// Extra flags from config: "name" or "name=value", with or without leading dashes.
	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimLeft(parts[0], "-")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts, nil
}

// NewSession launches Chrome and opens a tab. The caller must Close it.
// The browser is tied to parent: cancelling parent kills the process.
func NewSession(parent context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts, err := AllocatorOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.Named("browser")
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Warnf),
	)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run starts the browser process.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("browser failed to start: %w", err)
	}

	log.Info("Browser session started", zap.Bool("headless", cfg.Headless))
	return &Session{ctx: tabCtx, cancel: cancel, cfg: cfg, logger: log}, nil
}

// RunActions runs chromedp actions on the tab, bounded by the caller's ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Info("Closing browser session.")
		s.cancel()
	})
	return nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	var u string
	if err := s.RunActions(ctx, chromedp.Location(&u)); err != nil {
		return "", fmt.Errorf("failed to read page location: %w", err)
	}
	return u, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()

	s.logger.Info("Navigating", zap.String("url", url))
	if err := s.RunActions(navCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %q: %w", url, err)
	}
	return nil
}

func (s *Session) WaitLoad(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := s.RunActions(waitCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("page did not finish loading: %w", err)
	}
	return nil
}

func (s *Session) Press(ctx context.Context, key Key) error {
	var err error
	if key.Modifiers == 0 {
		err = s.RunActions(ctx, chromedp.KeyEvent(key.Value))
	} else {
		down, up := key.chordEvents()
		err = s.RunActions(ctx, down, up)
	}
	if err != nil {
		return fmt.Errorf("failed to press %s: %w", key, err)
	}
	return nil
}

func (s *Session) Type(ctx context.Context, text string, delay time.Duration) error {
	for _, r := range text {
		if err := s.RunActions(ctx, chromedp.KeyEvent(string(r))); err != nil {
			return fmt.Errorf("failed to type text: %w", err)
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.RunActions(ctx, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to click %q: %w", selector, err)
	}
	return nil
}

func (s *Session) Evaluate(ctx context.Context, script string, res any) error {
	if err := s.RunActions(ctx, chromedp.Evaluate(script, res)); err != nil {
		return fmt.Errorf("script evaluation failed: %w", err)
	}
	return nil
}
