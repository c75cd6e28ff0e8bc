package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

type fakeProber struct {
	calls atomic.Int32
	err   error
	block chan struct{}
}

func (f *fakeProber) Ping(ctx context.Context) error {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	return f.err
}

func boolPtr(b bool) *bool { return &b }

func TestEvaluateDevice(t *testing.T) {
	cases := []struct {
		name string
		ns   DeviceNetworkState
		want bool
	}{
		{"disconnected", DeviceNetworkState{Connected: false}, false},
		{"connected unknown reachability", DeviceNetworkState{Connected: true}, true},
		{"connected reachable", DeviceNetworkState{Connected: true, InternetReachable: boolPtr(true)}, true},
		{"connected unreachable", DeviceNetworkState{Connected: true, InternetReachable: boolPtr(false)}, false},
		{"disconnected but reachable flag", DeviceNetworkState{Connected: false, InternetReachable: boolPtr(true)}, false},
	}
	for _, tc := range cases {
		if got := EvaluateDevice(tc.ns); got != tc.want {
			t.Fatalf("%s: EvaluateDevice = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestTrackerStartsOnline(t *testing.T) {
	tr := NewTracker(&fakeProber{})
	snap := tr.Snapshot()
	if snap.Offline || snap.State() != StateOnline {
		t.Fatalf("tracker must start optimistic online, got %+v", snap)
	}
}

func TestDeviceOfflineForcesBackendOfflineWithoutProbe(t *testing.T) {
	p := &fakeProber{}
	tr := NewTracker(p)
	tr.Evaluate(DeviceNetworkState{Connected: false})
	snap := tr.Snapshot()
	if !snap.Offline || snap.BackendOnline {
		t.Fatalf("device offline must imply backend offline, got %+v", snap)
	}
	if p.calls.Load() != 0 {
		t.Fatalf("no probe expected when device is offline, got %d calls", p.calls.Load())
	}
}

func TestProbeBackendOutcome(t *testing.T) {
	p := &fakeProber{}
	tr := NewTracker(p)
	if ok := tr.ProbeBackend(context.Background()); !ok {
		t.Fatalf("probe should succeed")
	}
	if tr.Snapshot().Offline {
		t.Fatalf("successful probe must keep tracker online")
	}

	p.err = errors.New("timeout")
	if ok := tr.ProbeBackend(context.Background()); ok {
		t.Fatalf("probe should fail")
	}
	snap := tr.Snapshot()
	if !snap.Offline || snap.BackendOnline {
		t.Fatalf("failed probe must mark backend offline, got %+v", snap)
	}
}

func TestCheckingWhileProbeInFlight(t *testing.T) {
	p := &fakeProber{block: make(chan struct{})}
	tr := NewTracker(p)
	done := make(chan bool)
	go func() { done <- tr.ProbeBackend(context.Background()) }()

	// Подписка ловит снапшот с checking=true до завершения пробы.
	for {
		snap := tr.Snapshot()
		if snap.Checking {
			if snap.State() != StateChecking {
				t.Errorf("state = %q, want checking", snap.State())
			}
			break
		}
	}
	close(p.block)
	<-done
	if tr.Snapshot().Checking {
		t.Fatalf("checking must clear after probe completes")
	}
}

// Успешный API-вызов возвращает backendOnline, не дожидаясь висящей пробы.
func TestReportOutcomeFlipsBackendDuringProbe(t *testing.T) {
	p := &fakeProber{block: make(chan struct{}), err: errors.New("timeout")}
	tr := NewTracker(p)
	tr.ReportOutcome(false)

	done := make(chan bool)
	go func() { done <- tr.ProbeBackend(context.Background()) }()
	for !tr.Snapshot().Checking {
	}

	tr.ReportOutcome(true)
	snap := tr.Snapshot()
	if !snap.BackendOnline {
		t.Fatalf("reported success must flip backendOnline mid-probe, got %+v", snap)
	}
	if !snap.Checking {
		t.Fatalf("probe is still in flight, got %+v", snap)
	}

	close(p.block)
	<-done
}

func TestReportOutcomeTouchesBackendOnly(t *testing.T) {
	tr := NewTracker(&fakeProber{})
	tr.ReportOutcome(false)
	snap := tr.Snapshot()
	if !snap.DeviceOnline {
		t.Fatalf("ReportOutcome must not touch device state")
	}
	if snap.BackendOnline || !snap.Offline {
		t.Fatalf("ReportOutcome(false) must mark backend offline, got %+v", snap)
	}
	tr.ReportOutcome(true)
	if tr.Snapshot().Offline {
		t.Fatalf("ReportOutcome(true) must restore online")
	}
}

func TestSubscribePublishesChanges(t *testing.T) {
	tr := NewTracker(&fakeProber{})
	ch := tr.Subscribe()
	defer tr.Unsubscribe(ch)

	tr.ReportOutcome(false)
	snap := <-ch
	if !snap.Offline {
		t.Fatalf("subscriber expected offline snapshot, got %+v", snap)
	}

	// Без смены состояния ReportOutcome не публикует.
	tr.ReportOutcome(false)
	select {
	case snap := <-ch:
		t.Fatalf("unexpected snapshot %+v for unchanged state", snap)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	tr := NewTracker(&fakeProber{})
	ch := tr.Subscribe()
	tr.Unsubscribe(ch)
	if _, open := <-ch; open {
		t.Fatalf("channel must be closed after Unsubscribe")
	}
	// Повторный Unsubscribe безопасен.
	tr.Unsubscribe(ch)
}
