package ipamon

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"github.com/y0ug/ipamon/internal/dispatch"
	"github.com/y0ug/ipamon/internal/listing"
	"github.com/y0ug/ipamon/internal/state"
)

// fakeTarget records dispatched notifications and fails on demand.
type fakeTarget struct {
	id   string
	fail bool

	mu    sync.Mutex
	calls []dispatch.Notification
}

func (f *fakeTarget) Dispatch(ctx context.Context, notif dispatch.Notification) error {
	f.mu.Lock()
	f.calls = append(f.calls, notif)
	f.mu.Unlock()
	if f.fail {
		return errors.New("simulated dispatch failure")
	}
	return nil
}

func (f *fakeTarget) SetRateLimiter(limiter *dispatch.RateLimiter) {}

func (f *fakeTarget) TargetID() string { return f.id }

func (f *fakeTarget) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeTarget) lastCall() dispatch.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// newListingServer serves the given body for every channel.
func newListingServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestChecker(t *testing.T, baseURL string, targets ...dispatch.Dispatcher) (*Checker, state.Store) {
	t.Helper()

	store := state.NewFileStore(filepath.Join(t.TempDir(), "state.json"))
	if err := store.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	cfg := &Config{
		BaseURL:         baseURL,
		RefreshSchedule: "0 * * * *",
	}
	return NewChecker(cfg, store, targets, nil), store
}

func TestCheckChannelFirstObservationDispatchesAndPersists(t *testing.T) {
	ctx := context.Background()
	body := `[{"name":"App_1.0","mod_time":"2024-01-01T00:00:00Z"}]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a"}
	b := &fakeTarget{id: "org/b"}
	checker, store := newTestChecker(t, server.URL, a, b)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if a.callCount() != 1 || b.callCount() != 1 {
		t.Errorf("expected one dispatch per target, got %d and %d", a.callCount(), b.callCount())
	}
	wantURL := server.URL + "/stable/App_1.0"
	if got := a.lastCall(); got.IPAURL != wantURL || got.IsTestflight {
		t.Errorf("unexpected notification: %+v", got)
	}

	fp, err := listing.Fingerprint([]byte(body))
	if err != nil {
		t.Fatalf("failed to fingerprint: %v", err)
	}
	channelState, _ := store.ChannelState(ctx, listing.ChannelStable)
	if channelState.LastFingerprint != fp {
		t.Errorf("fingerprint not advanced: got %q, want %q", channelState.LastFingerprint, fp)
	}
	if !reflect.DeepEqual(channelState.Dispatches[fp], []string{"org/a", "org/b"}) {
		t.Errorf("unexpected dispatch bookkeeping: %v", channelState.Dispatches)
	}
}

func TestCheckChannelUnchangedListingIsNoOp(t *testing.T) {
	ctx := context.Background()
	body := `[{"name":"App_1.0","mod_time":"2024-01-01T00:00:00Z"}]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a"}
	checker, _ := newTestChecker(t, server.URL, a)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("first check failed: %v", err)
	}
	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("second check failed: %v", err)
	}

	if a.callCount() != 1 {
		t.Errorf("unchanged listing must not re-dispatch, got %d calls", a.callCount())
	}
}

func TestCheckChannelPartialFailureRetriesOnlyFailedTarget(t *testing.T) {
	ctx := context.Background()
	body := `[{"name":"App_1.0","mod_time":"2024-01-01T00:00:00Z"}]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a"}
	b := &fakeTarget{id: "org/b", fail: true}
	checker, store := newTestChecker(t, server.URL, a, b)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("first check failed: %v", err)
	}

	fp, _ := listing.Fingerprint([]byte(body))
	channelState, _ := store.ChannelState(ctx, listing.ChannelStable)
	if channelState.LastFingerprint != fp {
		t.Error("one success should advance the fingerprint")
	}
	if !reflect.DeepEqual(channelState.Dispatches[fp], []string{"org/a"}) {
		t.Errorf("failed target must not be recorded: %v", channelState.Dispatches)
	}

	// Next tick with the unchanged listing: only the failed target is
	// attempted again.
	b.fail = false
	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("retry check failed: %v", err)
	}

	if a.callCount() != 1 {
		t.Errorf("already-notified target was re-dispatched: %d calls", a.callCount())
	}
	if b.callCount() != 2 {
		t.Errorf("failed target should be retried exactly once more: %d calls", b.callCount())
	}

	channelState, _ = store.ChannelState(ctx, listing.ChannelStable)
	if !reflect.DeepEqual(channelState.Dispatches[fp], []string{"org/a", "org/b"}) {
		t.Errorf("unexpected final bookkeeping: %v", channelState.Dispatches)
	}
}

func TestCheckChannelTotalFailureDoesNotAdvanceState(t *testing.T) {
	ctx := context.Background()
	body := `[{"name":"App_1.0","mod_time":"2024-01-01T00:00:00Z"}]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a", fail: true}
	checker, store := newTestChecker(t, server.URL, a)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err == nil {
		t.Error("expected an error when every target fails")
	}

	channelState, _ := store.ChannelState(ctx, listing.ChannelStable)
	if channelState.LastFingerprint != "" {
		t.Error("total failure must not advance the fingerprint")
	}

	// The whole change is retried on the next tick.
	a.fail = false
	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if a.callCount() != 2 {
		t.Errorf("expected a full retry, got %d calls", a.callCount())
	}
}

func TestCheckChannelEmptyListingDispatchesNothing(t *testing.T) {
	ctx := context.Background()
	body := `[]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a"}
	checker, store := newTestChecker(t, server.URL, a)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if a.callCount() != 0 {
		t.Errorf("empty listing must not dispatch, got %d calls", a.callCount())
	}

	channelState, _ := store.ChannelState(ctx, listing.ChannelStable)
	if channelState.LastFingerprint != "" {
		t.Error("empty listing must not advance the fingerprint")
	}
}

func TestCheckChannelFetchFailureLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	a := &fakeTarget{id: "org/a"}
	checker, store := newTestChecker(t, server.URL, a)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err == nil {
		t.Error("expected a fetch error")
	}
	if a.callCount() != 0 {
		t.Error("fetch failure must not dispatch")
	}

	channelState, _ := store.ChannelState(ctx, listing.ChannelStable)
	if channelState.LastFingerprint != "" || len(channelState.Dispatches) != 0 {
		t.Errorf("state should be untouched, got %+v", channelState)
	}
}

func TestCheckChannelTestflightFlag(t *testing.T) {
	ctx := context.Background()
	body := `[{"name":"App_2.0","mod_time":"2024-05-01T00:00:00Z"}]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a"}
	checker, _ := newTestChecker(t, server.URL, a)

	if err := checker.CheckChannel(ctx, listing.ChannelTestflight); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	got := a.lastCall()
	if !got.IsTestflight {
		t.Error("testflight channel must set the testflight flag")
	}
	if want := server.URL + "/testflight/App_2.0"; got.IPAURL != want {
		t.Errorf("unexpected artifact URL: %s", got.IPAURL)
	}
}

func TestCheckChannelMockFingerprintForcesChange(t *testing.T) {
	ctx := context.Background()
	body := `[{"name":"App_1.0","mod_time":"2024-01-01T00:00:00Z"}]`
	server := newListingServer(t, body)

	a := &fakeTarget{id: "org/a"}
	checker, store := newTestChecker(t, server.URL, a)

	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("first check failed: %v", err)
	}

	// With a mock fingerprint the unchanged listing counts as changed.
	checker.SetMockFingerprint("forced-fingerprint")
	if err := checker.CheckChannel(ctx, listing.ChannelStable); err != nil {
		t.Fatalf("mocked check failed: %v", err)
	}

	if a.callCount() != 2 {
		t.Errorf("mock fingerprint should force a dispatch, got %d calls", a.callCount())
	}
	channelState, _ := store.ChannelState(ctx, listing.ChannelStable)
	if channelState.LastFingerprint != "forced-fingerprint" {
		t.Errorf("unexpected fingerprint: %s", channelState.LastFingerprint)
	}
}
