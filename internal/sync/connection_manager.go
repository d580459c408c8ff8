package sync

import (
	"context"
	"net/http"
	"sort"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/xelth-com/bizsync/internal/config"
)

const routeOffline = "offline"

// RouteSwitch tracks when routes are switched
type RouteSwitch struct {
	FromRoute string    `json:"from"`
	ToRoute   string    `json:"to"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// RouteStatus tracks the health of a route
type RouteStatus struct {
	URL          string        `json:"url"`
	IsAvailable  bool          `json:"isAvailable"`
	LastCheck    time.Time     `json:"lastCheck"`
	LastSuccess  *time.Time    `json:"lastSuccess,omitempty"`
	LastFailure  *time.Time    `json:"lastFailure,omitempty"`
	FailureCount int           `json:"failureCount"`
	AvgLatency   time.Duration `json:"avgLatency"`

	latencySum   time.Duration
	latencyCount int
}

// ConnectionManager decides whether the backend is reachable. The sync
// core only replays while online; the offline to online transition fires
// the reconnect callback.
type ConnectionManager struct {
	mu gosync.RWMutex

	routes        []config.SyncRouteConfig
	routeStatuses map[string]*RouteStatus
	routeHistory  []RouteSwitch
	currentRoute  string
	isOnline      bool
	onReconnect   func()

	interval   time.Duration
	running    bool
	stop       chan struct{}
	done       chan struct{}
	httpClient *http.Client
	log        zerolog.Logger
}

// NewConnectionManager creates a manager probing routes in priority order.
// Without routes the manager always reports online.
func NewConnectionManager(routes []config.SyncRouteConfig, interval time.Duration, log zerolog.Logger) *ConnectionManager {
	sorted := append([]config.SyncRouteConfig(nil), routes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	if interval <= 0 {
		interval = 30 * time.Second
	}

	cm := &ConnectionManager{
		routes:        sorted,
		routeStatuses: make(map[string]*RouteStatus),
		currentRoute:  routeOffline,
		isOnline:      len(sorted) == 0,
		interval:      interval,
		httpClient:    &http.Client{},
		log:           log,
	}
	for _, route := range sorted {
		cm.routeStatuses[route.URL] = &RouteStatus{URL: route.URL}
	}
	return cm
}

// SetOnReconnect registers the callback for offline to online transitions
func (cm *ConnectionManager) SetOnReconnect(fn func()) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.onReconnect = fn
}

// Start begins health checking; the first check runs immediately
func (cm *ConnectionManager) Start(ctx context.Context) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.running || len(cm.routes) == 0 {
		return
	}
	cm.running = true
	cm.stop = make(chan struct{})
	cm.done = make(chan struct{})
	go cm.healthCheckLoop(ctx)
}

// Stop stops health checking and waits for the loop to exit
func (cm *ConnectionManager) Stop() {
	cm.mu.Lock()
	if !cm.running {
		cm.mu.Unlock()
		return
	}
	cm.running = false
	close(cm.stop)
	done := cm.done
	cm.mu.Unlock()
	<-done
}

// IsOnline returns whether any route is available
func (cm *ConnectionManager) IsOnline() bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.isOnline
}

// GetCurrentRoute returns the currently selected route
func (cm *ConnectionManager) GetCurrentRoute() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.currentRoute
}

// GetAllRouteStatuses returns a copy of all route statuses
func (cm *ConnectionManager) GetAllRouteStatuses() map[string]RouteStatus {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	result := make(map[string]RouteStatus, len(cm.routeStatuses))
	for k, v := range cm.routeStatuses {
		result[k] = *v
	}
	return result
}

// GetRouteHistory returns the route switch history
func (cm *ConnectionManager) GetRouteHistory() []RouteSwitch {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return append([]RouteSwitch(nil), cm.routeHistory...)
}

func (cm *ConnectionManager) healthCheckLoop(ctx context.Context) {
	defer close(cm.done)

	cm.CheckNow(ctx)

	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.CheckNow(ctx)
		case <-cm.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// CheckNow probes routes in priority order and selects the first healthy one
func (cm *ConnectionManager) CheckNow(ctx context.Context) bool {
	if len(cm.routes) == 0 {
		return true
	}

	selected := routeOffline
	for _, route := range cm.routes {
		if cm.testConnection(ctx, route) {
			selected = route.URL
			break
		}
	}

	cm.mu.Lock()
	wasOnline := cm.isOnline
	if selected != cm.currentRoute {
		reason := "route_available"
		if selected == routeOffline {
			reason = "all_routes_unavailable"
		}
		cm.logRouteSwitch(cm.currentRoute, selected, reason)
		cm.currentRoute = selected
	}
	cm.isOnline = selected != routeOffline
	online := cm.isOnline
	callback := cm.onReconnect
	cm.mu.Unlock()

	if online && !wasOnline && callback != nil {
		callback()
	}
	return online
}

// testConnection probes url/health and updates the route statistics
func (cm *ConnectionManager) testConnection(ctx context.Context, route config.SyncRouteConfig) bool {
	timeout := time.Duration(route.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	ok := false
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, route.URL+"/health", nil)
	if err == nil {
		var resp *http.Response
		resp, err = cm.httpClient.Do(req)
		if err == nil {
			resp.Body.Close()
			ok = resp.StatusCode == http.StatusOK
		}
	}
	latency := time.Since(start)

	cm.mu.Lock()
	defer cm.mu.Unlock()

	status := cm.routeStatuses[route.URL]
	now := time.Now()
	status.LastCheck = now
	status.IsAvailable = ok
	if ok {
		status.LastSuccess = &now
		status.FailureCount = 0
		status.latencySum += latency
		status.latencyCount++
		status.AvgLatency = status.latencySum / time.Duration(status.latencyCount)
	} else {
		status.LastFailure = &now
		status.FailureCount++
		cm.log.Debug().Err(err).Str("route", route.URL).Msg("route health check failed")
	}
	return ok
}

// logRouteSwitch records a route switch; caller holds the lock
func (cm *ConnectionManager) logRouteSwitch(fromRoute, toRoute, reason string) {
	cm.routeHistory = append(cm.routeHistory, RouteSwitch{
		FromRoute: fromRoute,
		ToRoute:   toRoute,
		Reason:    reason,
		Timestamp: time.Now(),
	})

	// Keep only last 100 switches
	if len(cm.routeHistory) > 100 {
		cm.routeHistory = cm.routeHistory[len(cm.routeHistory)-100:]
	}

	cm.log.Info().Str("from", fromRoute).Str("to", toRoute).Str("reason", reason).Msg("route switched")
}
