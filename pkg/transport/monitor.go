package transport

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/freshie/bedrock-cross-partition-inferencing-sub002/pkg/config"
)

// TunnelStatus is the cached result of the most recent tunnel probe.
type TunnelStatus struct {
	// LinksUp is the number of redundant tunnel links that answered
	// their health probe.
	LinksUp int

	// TotalLinks is the number of links probed.
	TotalLinks int

	// CheckedAt is when the probe ran. Zero means no probe has completed
	// yet.
	CheckedAt time.Time
}

// TunnelMonitor probes the tunnel's redundant link health URLs on an
// interval and caches the result.
//
// Transport selection reads the cached status; it never probes inline,
// so a slow or dead link cannot delay a request.
type TunnelMonitor struct {
	urls             []string
	interval         time.Duration
	probeTimeout     time.Duration
	tolerateDegraded bool
	client           *http.Client
	logger           *slog.Logger

	mu     sync.RWMutex
	status TunnelStatus

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewTunnelMonitor creates a monitor from the transport configuration.
func NewTunnelMonitor(cfg config.TransportConfig) *TunnelMonitor {
	return &TunnelMonitor{
		urls:             cfg.TunnelHealthURLs,
		interval:         cfg.TunnelHealthPollInterval,
		probeTimeout:     cfg.TunnelHealthTimeout,
		tolerateDegraded: cfg.TolerateDegraded,
		client: &http.Client{
			Timeout: cfg.TunnelHealthTimeout,
		},
		logger: slog.Default().With("component", "tunnel-monitor"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the polling loop. The first probe runs immediately so
// selection has a status before the first request arrives.
//
// Start is a no-op when no health URLs are configured: a configured
// tunnel is then assumed healthy.
func (m *TunnelMonitor) Start(ctx context.Context) {
	if len(m.urls) == 0 {
		close(m.doneCh)
		return
	}

	m.probe(ctx)

	go func() {
		defer close(m.doneCh)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.probe(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the polling loop and waits for it to exit.
func (m *TunnelMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	<-m.doneCh
}

// Status returns the most recent probe result.
func (m *TunnelMonitor) Status() TunnelStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Healthy reports whether the tunnel path should be used.
//
// With no health URLs configured the tunnel is assumed healthy. With
// degraded-mode tolerance, one live link out of the redundant pair is
// enough; otherwise all links must be up.
func (m *TunnelMonitor) Healthy() bool {
	if len(m.urls) == 0 {
		return true
	}

	status := m.Status()
	if status.CheckedAt.IsZero() {
		return false
	}

	if m.tolerateDegraded {
		return status.LinksUp >= 1
	}
	return status.LinksUp == status.TotalLinks
}

// probe checks every link concurrently and updates the cached status.
func (m *TunnelMonitor) probe(ctx context.Context) {
	results := make(chan bool, len(m.urls))

	for _, url := range m.urls {
		go func(url string) {
			results <- m.probeLink(ctx, url)
		}(url)
	}

	up := 0
	for range m.urls {
		if <-results {
			up++
		}
	}

	m.mu.Lock()
	previous := m.status.LinksUp
	m.status = TunnelStatus{
		LinksUp:    up,
		TotalLinks: len(m.urls),
		CheckedAt:  time.Now(),
	}
	m.mu.Unlock()

	if up != previous {
		m.logger.Info("tunnel link status changed",
			"links_up", up,
			"total_links", len(m.urls),
		)
	}
}

// probeLink checks a single link health URL. Any 2xx response counts as
// up.
func (m *TunnelMonitor) probeLink(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		m.logger.Error("invalid tunnel health URL", "url", url, "error", err)
		return false
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug("tunnel link probe failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
