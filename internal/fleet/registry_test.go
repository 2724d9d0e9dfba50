package fleet

import (
	"fmt"
	"sync"
	"testing"
)

func TestIsOnlineNeverSeen(t *testing.T) {
	r := NewRegistry()
	if r.IsOnline("rover-01") {
		t.Error("IsOnline should be false for a device with no status history")
	}
}

func TestOnStatusReplacesEntryWholesale(t *testing.T) {
	r := NewRegistry()

	r.OnStatus("rover-01", []byte(`{"online":true,"battery":87.5,"timestamp":"2026-08-30T10:00:00"}`))
	if !r.IsOnline("rover-01") {
		t.Fatal("device should be online after online=true status")
	}

	d, ok := r.Get("rover-01")
	if !ok {
		t.Fatal("expected registry entry for rover-01")
	}
	if d.Battery == nil || *d.Battery != 87.5 {
		t.Errorf("Battery = %v, want 87.5", d.Battery)
	}

	// Last-will style payload: offline, battery unknown.
	r.OnStatus("rover-01", []byte(`{"online":false,"battery":null,"timestamp":"2026-08-30T10:05:00"}`))
	if r.IsOnline("rover-01") {
		t.Error("device should be offline after online=false status")
	}
	d, _ = r.Get("rover-01")
	if d.Battery != nil {
		t.Errorf("Battery = %v, want nil after wholesale replacement", *d.Battery)
	}
	if d.Timestamp != "2026-08-30T10:05:00" {
		t.Errorf("Timestamp = %q, want the newer value", d.Timestamp)
	}
}

func TestOnStatusDiscardsMalformedPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not JSON", `online yes`},
		{"missing online field", `{"battery":50,"timestamp":"x"}`},
		{"battery out of range", `{"online":true,"battery":250,"timestamp":"x"}`},
		{"empty payload", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.OnStatus("rover-01", []byte(`{"online":true,"battery":90,"timestamp":"t0"}`))

			r.OnStatus("rover-01", []byte(tt.payload))

			// Prior entry must survive untouched.
			if !r.IsOnline("rover-01") {
				t.Error("malformed payload must not disturb the prior entry")
			}
			d, _ := r.Get("rover-01")
			if d.Timestamp != "t0" {
				t.Errorf("Timestamp = %q, want t0", d.Timestamp)
			}
		})
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	r := NewRegistry()
	r.OnStatus("rover-01", []byte(`{"online":true,"battery":90,"timestamp":"t0"}`))

	snap := r.Snapshot()
	delete(snap, "rover-01")

	if !r.IsOnline("rover-01") {
		t.Error("mutating a snapshot must not affect the registry")
	}
}

func TestOnChangeCallback(t *testing.T) {
	r := NewRegistry()
	var got []Device
	r.SetOnChange(func(d Device) { got = append(got, d) })

	r.OnStatus("rover-01", []byte(`{"online":true,"battery":90,"timestamp":"t0"}`))
	r.OnStatus("rover-01", []byte(`not json`))

	if len(got) != 1 {
		t.Fatalf("onChange called %d times, want 1 (malformed payloads must not fire it)", len(got))
	}
	if got[0].ID != "rover-01" || !got[0].Online {
		t.Errorf("onChange entry = %+v", got[0])
	}
}

func TestConcurrentStatusUpdates(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("rover-%02d", n%4)
			for j := 0; j < 100; j++ {
				r.OnStatus(id, []byte(`{"online":true,"battery":50,"timestamp":"t"}`))
				r.IsOnline(id)
				r.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	if r.Count() != 4 {
		t.Errorf("Count = %d, want 4", r.Count())
	}
}
