// Package browser renders pages in headless Chrome and captures screenshots.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/webcapture/internal/capture"
	"github.com/JakeFAU/webcapture/internal/thumbnail"
)

// DefaultUserAgent is sent for every device; only the viewport varies.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

const (
	defaultNavTimeout     = 15 * time.Second
	defaultDynamicTimeout = 30 * time.Second
	defaultDeviceTimeout  = 90 * time.Second
	defaultIdleWindow     = 500 * time.Millisecond
	scrollStepPx          = 300
	scrollStepDelayMs     = 200
	settleDelay           = 2 * time.Second
)

// Config controls the behavior of the chromedp executor.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	DynamicTimeout    time.Duration
	// DeviceTimeout caps the whole capture of one device, browser start-up
	// included.
	DeviceTimeout time.Duration
	IdleWindow    time.Duration
	ThumbnailSize int
	ExecPath      string
	NoSandbox     bool
}

// Executor implements capture.Executor with one headless Chrome instance
// per capture.
type Executor struct {
	cfg    Config
	clock  capture.Clock
	logger *zap.Logger
	// run executes actions against the tab bound to ctx.
	run func(ctx context.Context, actions ...chromedp.Action) error
}

// NewChromedp validates cfg and builds an Executor.
func NewChromedp(cfg Config, clock capture.Clock, logger *zap.Logger) (*Executor, error) {
	if cfg.NavigationTimeout < 0 || cfg.DynamicTimeout < 0 || cfg.DeviceTimeout < 0 {
		return nil, errors.New("browser timeouts must be >= 0")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = defaultNavTimeout
	}
	if cfg.DynamicTimeout == 0 {
		cfg.DynamicTimeout = defaultDynamicTimeout
	}
	if cfg.DeviceTimeout == 0 {
		cfg.DeviceTimeout = defaultDeviceTimeout
	}
	if cfg.IdleWindow <= 0 {
		cfg.IdleWindow = defaultIdleWindow
	}
	if cfg.ThumbnailSize <= 0 {
		cfg.ThumbnailSize = thumbnail.DefaultMaxSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{cfg: cfg, clock: clock, logger: logger, run: chromedp.Run}, nil
}

// Capture renders req.URL at the device viewport and returns the screenshot,
// thumbnail and metadata. Browser, tab and allocator are released on every
// return path.
func (e *Executor) Capture(ctx context.Context, req capture.TaskRequest) (capture.TaskResult, error) {
	result, err := e.capture(ctx, req)
	if err != nil {
		return capture.TaskResult{}, capture.NewCaptureError(req.Device.Label, err)
	}
	return result, nil
}

func (e *Executor) capture(ctx context.Context, req capture.TaskRequest) (capture.TaskResult, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.DeviceTimeout)
	defer cancel()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, e.allocatorOptions(req.Device)...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// Start the browser on the long-lived context so a navigation timeout
	// does not tear the process down underneath us.
	if err := chromedp.Run(browserCtx); err != nil {
		return capture.TaskResult{}, fmt.Errorf("start browser: %w", err)
	}

	monitor := newPageMonitor(e.clock.Now)
	chromedp.ListenTarget(browserCtx, monitor.handleEvent)

	page, err := e.render(browserCtx, req, monitor)
	if err != nil {
		return capture.TaskResult{}, err
	}
	links, err := ExtractLinks(page.html, page.finalURL)
	if err != nil {
		return capture.TaskResult{}, err
	}
	title, shot := page.title, page.shot

	thumb, err := thumbnail.Make(shot, e.cfg.ThumbnailSize)
	if err != nil {
		return capture.TaskResult{}, err
	}

	status := monitor.documentStatus()
	e.logger.Debug("device captured",
		zap.String("url", req.URL),
		zap.String("device", req.Device.Label),
		zap.Int("bytes", len(shot)),
		zap.Int("links", len(links)),
	)
	return capture.TaskResult{
		Title:      title,
		Links:      links,
		Screenshot: shot,
		Thumbnail:  thumb,
		StatusCode: status,
		Metadata: capture.ScreenshotMetadata{
			Title:      title,
			URL:        req.URL,
			CapturedAt: e.clock.Now(),
			DeviceType: req.Device.Label,
			Width:      req.Device.Width,
			Height:     req.Device.Height,
			FullPage:   req.FullPage,
			StatusCode: status,
			Links:      links,
		},
	}, nil
}

type renderedPage struct {
	title    string
	html     string
	finalURL string
	shot     []byte
}

// render drives one tab through navigation, extraction, optional dynamic
// loading and the screenshot. Only navigation and its idle wait are bound
// by the navigation timeout; later phases run on ctx, which carries the
// device cap.
func (e *Executor) render(ctx context.Context, req capture.TaskRequest, monitor *pageMonitor) (renderedPage, error) {
	if err := e.navigate(ctx, req, monitor); err != nil {
		return renderedPage{}, fmt.Errorf("navigate: %w", err)
	}

	var page renderedPage
	if err := e.run(ctx,
		chromedp.Title(&page.title),
		chromedp.Location(&page.finalURL),
		chromedp.OuterHTML("html", &page.html, chromedp.ByQuery),
	); err != nil {
		return renderedPage{}, fmt.Errorf("read page: %w", err)
	}
	if page.finalURL == "" {
		page.finalURL = req.URL
	}

	if req.Dynamic {
		if err := e.runDynamic(ctx, monitor); err != nil {
			return renderedPage{}, fmt.Errorf("load dynamic content: %w", err)
		}
	}

	shotAction := chromedp.CaptureScreenshot(&page.shot)
	if req.FullPage {
		shotAction = chromedp.FullScreenshot(&page.shot, 100)
	}
	if err := e.run(ctx, shotAction); err != nil {
		return renderedPage{}, fmt.Errorf("screenshot: %w", err)
	}
	return page, nil
}

func (e *Executor) navigate(ctx context.Context, req capture.TaskRequest, monitor *pageMonitor) error {
	navCtx, cancel := context.WithTimeout(ctx, e.navTimeout(req.Dynamic))
	defer cancel()
	return e.run(navCtx,
		e.setupAction(req.Device),
		chromedp.Navigate(req.URL),
		monitor.waitIdleAction(e.cfg.IdleWindow),
	)
}

// runDynamic scrolls the page to trigger lazy loading. Tall pages scroll
// for longer than any navigation timeout.
func (e *Executor) runDynamic(ctx context.Context, monitor *pageMonitor) error {
	return e.run(ctx,
		scrollAction(),
		monitor.waitIdleAction(e.cfg.IdleWindow),
		chromedp.Sleep(settleDelay),
	)
}

func (e *Executor) allocatorOptions(device capture.Device) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(device.Width, device.Height),
		chromedp.UserAgent(e.cfg.UserAgent),
	)
	if e.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if e.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(e.cfg.ExecPath))
	}
	return opts
}

func (e *Executor) setupAction(device capture.Device) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		if err := chromedp.EmulateViewport(int64(device.Width), int64(device.Height)).Do(ctx); err != nil {
			return fmt.Errorf("emulate viewport: %w", err)
		}
		return nil
	})
}

func (e *Executor) navTimeout(dynamic bool) time.Duration {
	if dynamic {
		return e.cfg.DynamicTimeout
	}
	return e.cfg.NavigationTimeout
}

// scrollScript walks the document in fixed steps to trigger lazy loading,
// then returns to the top.
var scrollScript = fmt.Sprintf(`new Promise((resolve) => {
	let total = 0;
	const timer = setInterval(() => {
		const height = document.body ? document.body.scrollHeight : 0;
		window.scrollBy(0, %d);
		total += %d;
		if (total >= height) {
			clearInterval(timer);
			window.scrollTo(0, 0);
			resolve(true);
		}
	}, %d);
})`, scrollStepPx, scrollStepPx, scrollStepDelayMs)

func scrollAction() chromedp.Action {
	var done bool
	return chromedp.Evaluate(scrollScript, &done, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	})
}
