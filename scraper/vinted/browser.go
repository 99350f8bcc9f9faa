package vinted

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"vinted-monitor/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// fetchScript runs inside the page so the request carries the session
// cookies the marketplace sets on its front page.
const fetchScript = `
	(async function(url) {
		const resp = await fetch(url, {
			credentials: 'include',
			headers: { 'Accept': 'application/json, text/plain, */*' }
		});
		const body = await resp.text();
		return { status: resp.status, body: body };
	})(%s)
`

// pageFetcher performs a GET from inside an authenticated session.
type pageFetcher interface {
	Fetch(ctx context.Context, url string) (status int, body []byte, err error)
	Refresh(ctx context.Context) error
}

// browserSession keeps one headless tab open on the marketplace front page.
// The tab serves one request at a time.
type browserSession struct {
	baseURL   string
	chromeBin string
	timeout   time.Duration
	logger    *utils.Logger

	mu          sync.Mutex
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

func newBrowserSession(baseURL, chromeBin string, timeout time.Duration, logger *utils.Logger) *browserSession {
	return &browserSession{
		baseURL:   baseURL,
		chromeBin: chromeBin,
		timeout:   timeout,
		logger:    logger,
	}
}

// start launches the browser and loads the front page once.
func (b *browserSession) start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tabCtx != nil {
		return nil
	}

	chromeBin := findChromeBinary(b.chromeBin)
	b.logger.Info("[vinted] Using browser binary: %s", chromeBin)

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)

	// Suppress chromedp log noise
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	if err := b.warmUp(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return err
	}

	b.tabCtx = tabCtx
	b.cancelTab = cancelTab
	b.cancelAlloc = cancelAlloc
	return nil
}

func (b *browserSession) warmUp(tabCtx context.Context) error {
	ctx, cancel := context.WithTimeout(tabCtx, 60*time.Second)
	defer cancel()

	if err := chromedp.Run(ctx,
		chromedp.Navigate(b.baseURL),
		chromedp.Sleep(3*time.Second),
	); err != nil {
		return fmt.Errorf("vinted: load %s: %w", b.baseURL, err)
	}
	return nil
}

// Refresh reloads the front page so expired session cookies are renewed.
func (b *browserSession) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.tabCtx == nil {
		b.mu.Unlock()
		return b.start(ctx)
	}
	defer b.mu.Unlock()

	b.logger.Info("[vinted] Refreshing session")
	return b.warmUp(b.tabCtx)
}

func (b *browserSession) Fetch(ctx context.Context, url string) (int, []byte, error) {
	if err := b.start(ctx); err != nil {
		return 0, nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	runCtx, cancel := context.WithTimeout(b.tabCtx, b.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	arg, err := json.Marshal(url)
	if err != nil {
		return 0, nil, fmt.Errorf("vinted: encode url: %w", err)
	}

	var result struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}
	err = chromedp.Run(runCtx,
		chromedp.Evaluate(fmt.Sprintf(fetchScript, arg), &result,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("vinted: in-page fetch: %w", err)
	}
	return result.Status, []byte(result.Body), nil
}

func (b *browserSession) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancelTab != nil {
		b.cancelTab()
	}
	if b.cancelAlloc != nil {
		b.cancelAlloc()
	}
	b.tabCtx = nil
}

// findChromeBinary locates Chrome/Chromium binary. An explicit path wins.
func findChromeBinary(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
