package feature

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Default polling settings.
const (
	DefaultPollInterval = 30 * time.Second
	minPollInterval     = time.Second
)

// CoordinatorConfig holds configuration for a Coordinator.
type CoordinatorConfig struct {
	// Client performs device reads and writes. Required.
	Client DeviceClient

	// DeviceID identifies the polled device. Required.
	DeviceID string

	// Interval is how often to poll. Default: 30 seconds, minimum 1 second.
	Interval time.Duration

	// Logger is optional.
	Logger Logger
}

// Coordinator polls one device and fans the resulting snapshot out to its
// listeners.
//
// Refreshes never overlap: a poll and its fan-out complete before the next
// refresh, scheduled or requested, begins. Listeners run sequentially on
// the refreshing goroutine and must not call RequestRefresh themselves.
type Coordinator struct {
	client   DeviceClient
	deviceID string
	interval time.Duration
	logger   Logger

	// refreshMu serialises fetch + fan-out.
	refreshMu sync.Mutex

	mu           sync.RWMutex
	data         DeviceSnapshot
	hasData      bool
	lastErr      error
	lastUpdate   time.Time
	listeners    map[int]func(Update)
	nextListener int
	started      bool

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewCoordinator creates a coordinator. Call Start to begin polling.
func NewCoordinator(cfg CoordinatorConfig) (*Coordinator, error) {
	if cfg.Client == nil {
		return nil, errors.New("feature: coordinator requires a device client")
	}
	if cfg.DeviceID == "" {
		return nil, errors.New("feature: coordinator requires a device ID")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = DefaultPollInterval
	}
	if interval < minPollInterval {
		interval = minPollInterval
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Coordinator{
		client:    cfg.Client,
		deviceID:  cfg.DeviceID,
		interval:  interval,
		logger:    logger,
		listeners: make(map[int]func(Update)),
		done:      make(chan struct{}),
	}, nil
}

// DeviceID returns the polled device's ID.
func (c *Coordinator) DeviceID() string { return c.deviceID }

// Interval returns the polling interval.
func (c *Coordinator) Interval() time.Duration { return c.interval }

// Start performs a first refresh and begins periodic polling.
//
// A failed first refresh is logged and recorded in LastError but does not
// prevent polling from starting; the device may come online later.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	if err := c.RequestRefresh(ctx); err != nil {
		c.logger.Warn("initial device refresh failed", "device_id", c.deviceID, "error", err)
	}

	c.wg.Add(1)
	go c.pollLoop(ctx)
	return nil
}

// Stop ends polling and waits for an in-progress refresh to finish.
// Safe to call multiple times.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// AddListener registers fn to receive every update. The returned function
// removes the listener.
func (c *Coordinator) AddListener(fn func(Update)) (remove func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// RequestRefresh polls the device now and delivers the update to every
// listener before returning. If a refresh is already running, it waits for
// that one to finish and then polls again.
func (c *Coordinator) RequestRefresh(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	snap, err := c.client.Fetch(ctx, c.deviceID)
	now := time.Now()

	c.mu.Lock()
	if err != nil {
		c.lastErr = err
		snap = c.data
	} else {
		c.data = snap
		c.hasData = true
		c.lastErr = nil
		c.lastUpdate = now
	}
	listeners := make([]func(Update), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	update := Update{Snapshot: snap, Err: err, At: now}
	for _, fn := range listeners {
		fn(update)
	}

	if err != nil {
		return fmt.Errorf("refreshing device %s: %w", c.deviceID, err)
	}
	return nil
}

// Data returns a copy of the last successful snapshot.
func (c *Coordinator) Data() (DeviceSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasData {
		return DeviceSnapshot{}, false
	}
	return c.data.Clone(), true
}

// Feature returns one feature from the last successful snapshot.
// Returns false while the device is unreachable.
func (c *Coordinator) Feature(deviceID, key string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.hasData || c.lastErr != nil {
		return Snapshot{}, false
	}
	return c.data.Feature(deviceID, key)
}

// SetFeatureValue forwards a write to the device client. deviceID may be
// the polled device or one of its children.
func (c *Coordinator) SetFeatureValue(ctx context.Context, deviceID, key string, value int) error {
	req := SetValueRequest{DeviceID: c.deviceID, Key: key, Value: value}
	if deviceID != c.deviceID {
		req.ChildID = deviceID
	}
	return c.client.SetValue(ctx, req)
}

// LastError returns the error of the most recent refresh, or nil.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastUpdate returns the time of the last successful refresh.
func (c *Coordinator) LastUpdate() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdate
}

func (c *Coordinator) pollLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.RequestRefresh(ctx); err != nil {
				c.logger.Debug("device poll failed", "device_id", c.deviceID, "error", err)
			}
		}
	}
}
