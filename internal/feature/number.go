package feature

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
)

// Mode is the display hint for a number control.
type Mode string

// Display modes.
const (
	ModeAuto   Mode = "auto"
	ModeBox    Mode = "box"
	ModeSlider Mode = "slider"
)

// NumberDescription configures how a feature key is presented.
type NumberDescription struct {
	Key  string
	Mode Mode
}

var numberDescriptions = map[string]NumberDescription{
	"smooth_transition_on":  {Key: "smooth_transition_on", Mode: ModeBox},
	"smooth_transition_off": {Key: "smooth_transition_off", Mode: ModeBox},
	"auto_off_minutes":      {Key: "auto_off_minutes", Mode: ModeBox},
	"temperature_offset":    {Key: "temperature_offset", Mode: ModeBox},
	"target_temperature":    {Key: "target_temperature", Mode: ModeBox},
}

// DescriptionFor returns the description for a feature key. Keys without a
// description are presented in ModeAuto.
func DescriptionFor(key string) NumberDescription {
	if d, ok := numberDescriptions[key]; ok {
		return d
	}
	return NumberDescription{Key: key, Mode: ModeAuto}
}

// BoundsPolicy decides what happens to writes outside the live bounds.
type BoundsPolicy string

// Bounds policies.
const (
	// BoundsReject fails the write with ErrOutOfRange; nothing is sent.
	BoundsReject BoundsPolicy = "reject"

	// BoundsClamp moves the value to the nearest bound before sending.
	BoundsClamp BoundsPolicy = "clamp"
)

// ParseBoundsPolicy parses a policy name. An empty name means BoundsReject.
func ParseBoundsPolicy(s string) (BoundsPolicy, error) {
	switch BoundsPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BoundsReject:
		return BoundsReject, nil
	case BoundsClamp:
		return BoundsClamp, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidBoundsPolicy, s)
	}
}

// Phase is the synchronisation phase of a Number.
type Phase string

// Number phases.
const (
	PhaseUninitialized Phase = "uninitialized"
	PhaseSynced        Phase = "synced"
	PhaseStale         Phase = "stale"
	PhaseWriteInFlight Phase = "write_in_flight"
)

// NumberState is the published state of a Number.
type NumberState struct {
	UniqueID    string   `json:"unique_id"`
	DeviceID    string   `json:"device_id"`
	Key         string   `json:"key"`
	Name        string   `json:"name"`
	NativeValue *float64 `json:"native_value"`
	NativeMin   float64  `json:"native_min_value"`
	NativeMax   float64  `json:"native_max_value"`
	Mode        Mode     `json:"mode"`
	Unit        string   `json:"unit,omitempty"`
	Available   bool     `json:"available"`
	Phase       Phase    `json:"phase"`
}

// Source is what a Number needs from its coordinator. The snapshot cache
// is owned by the source; Numbers only read it.
type Source interface {
	Feature(deviceID, key string) (Snapshot, bool)
	SetFeatureValue(ctx context.Context, deviceID, key string, value int) error
	RequestRefresh(ctx context.Context) error
}

// NumberOption configures a Number.
type NumberOption func(*Number)

// WithBoundsPolicy sets how out-of-range writes are handled.
func WithBoundsPolicy(p BoundsPolicy) NumberOption {
	return func(n *Number) { n.policy = p }
}

// WithNumberLogger sets the logger.
func WithNumberLogger(l Logger) NumberOption {
	return func(n *Number) { n.logger = l }
}

// Number presents one number-type feature as a numeric control.
//
// SetValue calls are serialised. While a device write is in flight,
// refresh deliveries for this number wait until the write returns, so a
// poll cannot overwrite state between a write and its confirming refresh.
type Number struct {
	source   Source
	deviceID string
	key      string
	desc     NumberDescription
	policy   BoundsPolicy
	logger   Logger

	// writeMu serialises SetValue, including the confirming refresh.
	writeMu sync.Mutex

	// mu guards state and is held across the device write.
	mu    sync.Mutex
	state NumberState

	onChangeMu sync.RWMutex
	onChange   func(NumberState)
}

// NewNumber creates a Number for feature key on device deviceID and
// initialises it from the source's current snapshot, if any.
func NewNumber(source Source, deviceID, key string, opts ...NumberOption) *Number {
	desc := DescriptionFor(key)
	n := &Number{
		source:   source,
		deviceID: deviceID,
		key:      key,
		desc:     desc,
		policy:   BoundsReject,
		logger:   noopLogger{},
		state: NumberState{
			UniqueID: deviceID + "_" + key,
			DeviceID: deviceID,
			Key:      key,
			Name:     key,
			Mode:     desc.Mode,
			Phase:    PhaseUninitialized,
		},
	}
	for _, opt := range opts {
		opt(n)
	}

	if f, ok := source.Feature(deviceID, key); ok {
		n.mu.Lock()
		n.apply(f, true)
		n.mu.Unlock()
	}
	return n
}

// UniqueID returns the number's stable identifier.
func (n *Number) UniqueID() string { return n.state.UniqueID }

// Policy returns the bounds policy.
func (n *Number) Policy() BoundsPolicy { return n.policy }

// SetOnChange registers a callback invoked after every state change.
func (n *Number) SetOnChange(fn func(NumberState)) {
	n.onChangeMu.Lock()
	n.onChange = fn
	n.onChangeMu.Unlock()
}

// State returns the current state.
//
// State waits for any device write in progress, so it can block for up to
// the transport timeout while SetValue is talking to the device.
func (n *Number) State() NumberState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.copyState()
}

// HandleUpdate is the coordinator listener for this number.
func (n *Number) HandleUpdate(u Update) {
	if u.Err != nil {
		n.markUnavailable()
		return
	}
	n.OnRefresh(u.Snapshot)
}

// OnRefresh updates the cached state from a newly delivered snapshot.
func (n *Number) OnRefresh(snap DeviceSnapshot) {
	f, ok := snap.Feature(n.deviceID, n.key)

	n.mu.Lock()
	if ok {
		n.apply(f, n.state.Phase != PhaseWriteInFlight)
	} else {
		n.state.Available = false
	}
	n.mu.Unlock()
	n.notify()
}

// SetValue writes v to the device and refreshes.
//
// v is checked against the live bounds and then truncated toward zero to
// an integer. On a device failure the returned error is a *DeviceError,
// the cached state is unchanged and the phase becomes Stale. A failed
// refresh after a successful write also leaves the number Stale but is
// not reported as an error.
func (n *Number) SetValue(ctx context.Context, v float64) error {
	n.writeMu.Lock()
	defer n.writeMu.Unlock()

	n.mu.Lock()
	live, ok := n.source.Feature(n.deviceID, n.key)
	if !ok {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrFeatureUnavailable, n.deviceID, n.key)
	}
	if !live.Mutable {
		n.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrNotMutable, n.deviceID, n.key)
	}

	target, err := coerce(v, live.Minimum, live.Maximum, n.policy)
	if err != nil {
		n.mu.Unlock()
		return err
	}

	n.state.Phase = PhaseWriteInFlight
	err = n.source.SetFeatureValue(ctx, n.deviceID, n.key, target)
	if err != nil {
		n.state.Phase = PhaseStale
		n.mu.Unlock()
		n.logger.Warn("feature write failed", "unique_id", n.state.UniqueID, "value", target, "error", err)
		n.notify()
		return &DeviceError{DeviceID: n.deviceID, Key: n.key, Value: target, Err: err}
	}
	n.mu.Unlock()

	refreshErr := n.source.RequestRefresh(ctx)

	n.mu.Lock()
	if refreshErr != nil {
		n.state.Phase = PhaseStale
	} else {
		n.state.Phase = PhaseSynced
	}
	n.mu.Unlock()

	if refreshErr != nil {
		n.logger.Warn("refresh after write failed", "unique_id", n.UniqueID(), "error", refreshErr)
	}
	n.notify()
	return nil
}

// apply copies f into the state. Caller holds n.mu.
func (n *Number) apply(f Snapshot, settle bool) {
	n.state.NativeMin = f.Minimum
	n.state.NativeMax = f.Maximum
	n.state.Unit = f.Unit
	if f.Name != "" {
		n.state.Name = f.Name
	}
	if v, ok := f.Number(); ok {
		n.state.NativeValue = &v
	} else {
		n.state.NativeValue = nil
	}
	n.state.Available = true
	if settle {
		n.state.Phase = PhaseSynced
	}
}

func (n *Number) markUnavailable() {
	n.mu.Lock()
	changed := n.state.Available
	n.state.Available = false
	n.mu.Unlock()
	if changed {
		n.notify()
	}
}

func (n *Number) copyState() NumberState {
	s := n.state
	if s.NativeValue != nil {
		v := *s.NativeValue
		s.NativeValue = &v
	}
	return s
}

func (n *Number) notify() {
	n.onChangeMu.RLock()
	fn := n.onChange
	n.onChangeMu.RUnlock()
	if fn != nil {
		fn(n.State())
	}
}

// coerce applies the bounds policy and truncates to an integer.
func coerce(v, lo, hi float64, policy BoundsPolicy) (int, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidNumber, v)
	}

	if v < lo || v > hi {
		if policy != BoundsClamp {
			return 0, fmt.Errorf("%w: %g not within [%g, %g]", ErrOutOfRange, v, lo, hi)
		}
		v = math.Max(lo, math.Min(hi, v))
	}

	t := math.Trunc(v)
	if t < lo {
		t = math.Ceil(lo)
	}
	if t > hi {
		return 0, fmt.Errorf("%w: no integer within [%g, %g]", ErrOutOfRange, lo, hi)
	}
	if t > math.MaxInt32 || t < math.MinInt32 {
		return 0, fmt.Errorf("%w: %g exceeds device integer range", ErrOutOfRange, v)
	}
	return int(t), nil
}
