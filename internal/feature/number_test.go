package feature

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// newAttachedNumber returns a refreshed coordinator and a Number listening
// to it.
func newAttachedNumber(t *testing.T, client *fakeClient, deviceID, key string, opts ...NumberOption) (*Coordinator, *Number) {
	t.Helper()
	c := newTestCoordinator(t, client)
	if err := c.RequestRefresh(context.Background()); err != nil {
		t.Fatalf("RequestRefresh() error = %v", err)
	}
	n := NewNumber(c, deviceID, key, opts...)
	c.AddListener(n.HandleUpdate)
	return c, n
}

func value(s NumberState) float64 {
	if s.NativeValue == nil {
		return math.NaN()
	}
	return *s.NativeValue
}

func TestNewNumberFromSnapshot(t *testing.T) {
	_, n := newAttachedNumber(t, newFakeClient(plugSnapshot()), "plug-1", "auto_off_minutes")

	s := n.State()
	if s.UniqueID != "plug-1_auto_off_minutes" {
		t.Errorf("UniqueID = %q", s.UniqueID)
	}
	if value(s) != 5 || s.NativeMin != 0 || s.NativeMax != 10 {
		t.Errorf("state = value %v min %v max %v, want 5/0/10", value(s), s.NativeMin, s.NativeMax)
	}
	if s.Mode != ModeBox {
		t.Errorf("Mode = %q, want box", s.Mode)
	}
	if !s.Available || s.Phase != PhaseSynced {
		t.Errorf("Available = %v, Phase = %q", s.Available, s.Phase)
	}
	if n.Policy() != BoundsReject {
		t.Errorf("default policy = %q, want reject", n.Policy())
	}
}

func TestNumberUninitializedUntilFirstSnapshot(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	c := newTestCoordinator(t, client)

	n := NewNumber(c, "plug-1", "auto_off_minutes")
	c.AddListener(n.HandleUpdate)

	if s := n.State(); s.Phase != PhaseUninitialized || s.Available || s.NativeValue != nil {
		t.Fatalf("state before refresh = %+v", s)
	}

	c.RequestRefresh(context.Background())
	if s := n.State(); s.Phase != PhaseSynced || value(s) != 5 {
		t.Errorf("state after refresh = %+v", s)
	}
}

func TestNumberSetValueTruncatesAndRefreshes(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	_, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")

	if err := n.SetValue(context.Background(), 7.9); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	calls := client.setCalls()
	if len(calls) != 1 || calls[0].Value != 7 {
		t.Fatalf("SetValue calls = %+v, want one with value 7", calls)
	}
	s := n.State()
	if value(s) != 7 || s.Phase != PhaseSynced {
		t.Errorf("state after write = value %v phase %q", value(s), s.Phase)
	}
}

func TestNumberSetValueNegativeTruncatesTowardZero(t *testing.T) {
	snap := plugSnapshot()
	snap.Features["temperature_offset"] = Snapshot{
		Key: "temperature_offset", Type: TypeNumber, Value: float64(0), Minimum: -10, Maximum: 10, Mutable: true,
	}
	client := newFakeClient(snap)
	_, n := newAttachedNumber(t, client, "plug-1", "temperature_offset")

	if err := n.SetValue(context.Background(), -2.7); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if calls := client.setCalls(); calls[0].Value != -2 {
		t.Errorf("sent %d, want -2", calls[0].Value)
	}
}

func TestNumberBoundsPolicies(t *testing.T) {
	tests := []struct {
		name     string
		policy   BoundsPolicy
		input    float64
		narrow   bool
		wantErr  error
		wantSent []int
	}{
		{name: "reject above max", policy: BoundsReject, input: 12, wantErr: ErrOutOfRange},
		{name: "reject below min", policy: BoundsReject, input: -1, wantErr: ErrOutOfRange},
		{name: "reject fractional above max", policy: BoundsReject, input: 10.5, wantErr: ErrOutOfRange},
		{name: "reject at max accepted", policy: BoundsReject, input: 10, wantSent: []int{10}},
		{name: "clamp above max", policy: BoundsClamp, input: 12, wantSent: []int{10}},
		{name: "clamp below min", policy: BoundsClamp, input: -3, wantSent: []int{0}},
		{name: "clamp in range", policy: BoundsClamp, input: 4.2, wantSent: []int{4}},
		{name: "reject no integer in bounds", policy: BoundsReject, input: 0.6, narrow: true, wantErr: ErrOutOfRange},
		{name: "clamp no integer in bounds", policy: BoundsClamp, input: 0.6, narrow: true, wantErr: ErrOutOfRange},
		{name: "nan", policy: BoundsClamp, input: math.NaN(), wantErr: ErrInvalidNumber},
		{name: "infinity", policy: BoundsClamp, input: math.Inf(1), wantErr: ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newFakeClient(plugSnapshot())
			if tt.narrow {
				client.setFeature("plug-1", Snapshot{Key: "auto_off_minutes", Type: TypeNumber, Value: 0.6, Minimum: 0.5, Maximum: 0.7, Mutable: true})
			}
			_, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes", WithBoundsPolicy(tt.policy))
			before := n.State()

			err := n.SetValue(context.Background(), tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SetValue(%v) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				if len(client.setCalls()) != 0 {
					t.Error("rejected value was transmitted")
				}
				if after := n.State(); value(after) != value(before) || after.Phase != before.Phase {
					t.Errorf("state changed on rejection: %+v", after)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetValue(%v) error = %v", tt.input, err)
			}
			calls := client.setCalls()
			if len(calls) != len(tt.wantSent) || calls[0].Value != tt.wantSent[0] {
				t.Errorf("sent %+v, want %v", calls, tt.wantSent)
			}
		})
	}
}

func TestNumberUsesLiveBounds(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	c := newTestCoordinator(t, client)
	ctx := context.Background()
	c.RequestRefresh(ctx)

	// not attached: cached state keeps the old bounds
	n := NewNumber(c, "plug-1", "auto_off_minutes")

	client.setFeature("plug-1", Snapshot{Key: "auto_off_minutes", Type: TypeNumber, Value: float64(5), Minimum: 0, Maximum: 20, Mutable: true})
	c.RequestRefresh(ctx)

	if n.State().NativeMax != 10 {
		t.Fatalf("cached max = %v, want stale 10", n.State().NativeMax)
	}
	if err := n.SetValue(ctx, 12); err != nil {
		t.Fatalf("SetValue(12) with live max 20 error = %v", err)
	}

	client.setFeature("plug-1", Snapshot{Key: "auto_off_minutes", Type: TypeNumber, Value: float64(5), Minimum: 0, Maximum: 3, Mutable: true})
	c.RequestRefresh(ctx)

	if err := n.SetValue(ctx, 7); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SetValue(7) with live max 3 error = %v, want ErrOutOfRange", err)
	}
}

func TestNumberDeviceErrorLeavesStateUntouched(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	_, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")
	ctx := context.Background()

	transport := errors.New("connection reset")
	client.mu.Lock()
	client.setErr = transport
	client.mu.Unlock()

	err := n.SetValue(ctx, 8)
	var devErr *DeviceError
	if !errors.As(err, &devErr) {
		t.Fatalf("SetValue() error = %v, want *DeviceError", err)
	}
	if !errors.Is(err, ErrDevice) || !errors.Is(err, transport) {
		t.Errorf("error %v does not match ErrDevice and transport error", err)
	}
	if devErr.Value != 8 || devErr.Key != "auto_off_minutes" {
		t.Errorf("DeviceError = %+v", devErr)
	}

	s := n.State()
	if value(s) != 5 || s.Phase != PhaseStale {
		t.Errorf("state after failure = value %v phase %q, want 5 stale", value(s), s.Phase)
	}

	// still usable
	client.mu.Lock()
	client.setErr = nil
	client.mu.Unlock()

	if err := n.SetValue(ctx, 8); err != nil {
		t.Fatalf("SetValue() after recovery error = %v", err)
	}
	if s := n.State(); value(s) != 8 || s.Phase != PhaseSynced {
		t.Errorf("state after recovery = value %v phase %q", value(s), s.Phase)
	}
}

func TestNumberRefreshFailureAfterWriteIsStale(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	_, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")

	client.onSet = func(SetValueRequest) { client.setFetchErr(errors.New("timeout")) }

	if err := n.SetValue(context.Background(), 6); err != nil {
		t.Fatalf("SetValue() error = %v, want nil when only the refresh fails", err)
	}
	s := n.State()
	if s.Phase != PhaseStale {
		t.Errorf("Phase = %q, want stale", s.Phase)
	}
	if s.Available {
		t.Error("Available = true after failed refresh")
	}
	if value(s) != 5 {
		t.Errorf("value = %v, want unconfirmed write not applied", value(s))
	}
}

func TestNumberUnavailable(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	c, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")
	ctx := context.Background()

	client.setFetchErr(errors.New("offline"))
	c.RequestRefresh(ctx)

	if n.State().Available {
		t.Error("Available = true while device unreachable")
	}
	if err := n.SetValue(ctx, 3); !errors.Is(err, ErrFeatureUnavailable) {
		t.Errorf("SetValue() error = %v, want ErrFeatureUnavailable", err)
	}

	client.setFetchErr(nil)
	c.RequestRefresh(ctx)
	if !n.State().Available {
		t.Error("Available = false after recovery")
	}
}

func TestNumberFeatureDisappears(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	c, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")

	client.mu.Lock()
	delete(client.snap.Features, "auto_off_minutes")
	client.mu.Unlock()
	c.RequestRefresh(context.Background())

	if n.State().Available {
		t.Error("Available = true after feature vanished")
	}
}

func TestNumberNotMutable(t *testing.T) {
	_, n := newAttachedNumber(t, newFakeClient(plugSnapshot()), "plug-1", "firmware_build")

	if err := n.SetValue(context.Background(), 8); !errors.Is(err, ErrNotMutable) {
		t.Errorf("SetValue() error = %v, want ErrNotMutable", err)
	}
}

func TestNumberSetValueSerialised(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	_, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")

	var inFlight, overlap int32
	client.onSet = func(SetValueRequest) {
		if atomic.AddInt32(&inFlight, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	var wg sync.WaitGroup
	for i := 1; i <= 6; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			if err := n.SetValue(context.Background(), v); err != nil {
				t.Errorf("SetValue(%v) error = %v", v, err)
			}
		}(float64(i))
	}
	wg.Wait()

	if atomic.LoadInt32(&overlap) != 0 {
		t.Error("device writes overlapped")
	}
	if got := len(client.setCalls()); got != 6 {
		t.Errorf("device writes = %d, want 6", got)
	}
	if s := n.State(); s.Phase != PhaseSynced {
		t.Errorf("Phase = %q after writes, want synced", s.Phase)
	}
}

func TestNumberOnChange(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	_, n := newAttachedNumber(t, client, "plug-1", "auto_off_minutes")

	var mu sync.Mutex
	var states []NumberState
	n.SetOnChange(func(s NumberState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := n.SetValue(context.Background(), 2); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) == 0 {
		t.Fatal("OnChange not called")
	}
	last := states[len(states)-1]
	if value(last) != 2 || last.Phase != PhaseSynced {
		t.Errorf("last notified state = value %v phase %q", value(last), last.Phase)
	}
}

func TestNumbersForDevice(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	c := newTestCoordinator(t, client)
	c.RequestRefresh(context.Background())
	snap, _ := c.Data()

	numbers := NumbersForDevice(c, snap, WithBoundsPolicy(BoundsClamp))
	if len(numbers) != 2 {
		t.Fatalf("NumbersForDevice() = %d numbers, want 2", len(numbers))
	}

	ids := map[string]bool{}
	for _, n := range numbers {
		ids[n.UniqueID()] = true
		if n.Policy() != BoundsClamp {
			t.Errorf("%s policy = %q", n.UniqueID(), n.Policy())
		}
	}
	if !ids["plug-1_auto_off_minutes"] || !ids["plug-1-socket-2_smooth_transition_on"] {
		t.Errorf("unique IDs = %v", ids)
	}

	index := NewNumbers()
	index.Add(numbers...)
	if index.Len() != 2 {
		t.Errorf("Len() = %d", index.Len())
	}
	if _, err := index.Get("plug-1_auto_off_minutes"); err != nil {
		t.Errorf("Get() error = %v", err)
	}
	if _, err := index.Get("nope"); !errors.Is(err, ErrNumberNotFound) {
		t.Errorf("Get(nope) error = %v, want ErrNumberNotFound", err)
	}
	states := index.States()
	if len(states) != 2 || states[0].UniqueID > states[1].UniqueID {
		t.Errorf("States() = %+v", states)
	}
}

func TestChildNumberSetValue(t *testing.T) {
	client := newFakeClient(plugSnapshot())
	_, n := newAttachedNumber(t, client, "plug-1-socket-2", "smooth_transition_on")

	if err := n.SetValue(context.Background(), 30); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	calls := client.setCalls()
	if calls[0].ChildID != "plug-1-socket-2" || calls[0].DeviceID != "plug-1" {
		t.Errorf("request = %+v", calls[0])
	}
	if value(n.State()) != 30 {
		t.Errorf("value = %v, want 30", value(n.State()))
	}
}

func TestDescriptionFor(t *testing.T) {
	for _, key := range []string{"smooth_transition_on", "smooth_transition_off", "auto_off_minutes", "temperature_offset", "target_temperature"} {
		if DescriptionFor(key).Mode != ModeBox {
			t.Errorf("DescriptionFor(%q).Mode = %q, want box", key, DescriptionFor(key).Mode)
		}
	}
	if DescriptionFor("brightness").Mode != ModeAuto {
		t.Error("unknown key should fall back to auto mode")
	}
}

func TestParseBoundsPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    BoundsPolicy
		wantErr bool
	}{
		{"", BoundsReject, false},
		{"reject", BoundsReject, false},
		{" Clamp ", BoundsClamp, false},
		{"passthrough", "", true},
	}
	for _, tt := range tests {
		got, err := ParseBoundsPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseBoundsPolicy(%q) = %q, %v", tt.in, got, err)
		}
		if tt.wantErr && !errors.Is(err, ErrInvalidBoundsPolicy) {
			t.Errorf("error %v is not ErrInvalidBoundsPolicy", err)
		}
	}
}
