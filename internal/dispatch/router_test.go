package dispatch

import (
	"context"
	"testing"

	"github.com/rover-fleet/rover-core/internal/infrastructure/mqtt"
)

const aPayload = `{"online": true}`

// recordingStatus captures OnStatus calls.
type recordingStatus struct {
	devices  []string
	payloads []string
}

func (r *recordingStatus) OnStatus(deviceID string, payload []byte) {
	r.devices = append(r.devices, deviceID)
	r.payloads = append(r.payloads, string(payload))
}

// recordingResult captures ApplyResult calls.
type recordingResult struct {
	devices  []string
	payloads []string
}

func (r *recordingResult) ApplyResult(_ context.Context, deviceID string, payload []byte) {
	r.devices = append(r.devices, deviceID)
	r.payloads = append(r.payloads, string(payload))
}

// recordingSubscriber captures Subscribe calls and keeps the handlers.
type recordingSubscriber struct {
	topics   []string
	handlers map[string]mqtt.MessageHandler
}

func (r *recordingSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	if r.handlers == nil {
		r.handlers = make(map[string]mqtt.MessageHandler)
	}
	r.topics = append(r.topics, topic)
	r.handlers[topic] = handler
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

func TestRouterRoute(t *testing.T) {
	tests := []struct {
		name       string
		topic      string
		payload    string
		wantStatus bool
		wantResult bool
		wantDevice string
	}{
		{
			name:       "status message",
			topic:      "devices/rover-01/status",
			payload:    `{"online": true}`,
			wantStatus: true,
			wantDevice: "rover-01",
		},
		{
			name:       "execution report",
			topic:      "devices/rover-02/trajeto",
			payload:    `{"idTrajeto": "7"}`,
			wantResult: true,
			wantDevice: "rover-02",
		},
		{
			name:    "unknown category dropped",
			topic:   "devices/rover-01/commands",
			payload: "a1000i1",
		},
		{
			name:    "wrong prefix ignored",
			topic:   "fleet/controller/status",
			payload: `{"online": true}`,
		},
		{
			name:    "too few segments ignored",
			topic:   "devices/rover-01",
			payload: aPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := &recordingStatus{}
			result := &recordingResult{}
			router := NewRouter(status, result, nopLogger{})

			router.Route(context.Background(), tt.topic, []byte(tt.payload))

			if got := len(status.devices) > 0; got != tt.wantStatus {
				t.Errorf("status handler called = %v, want %v", got, tt.wantStatus)
			}
			if got := len(result.devices) > 0; got != tt.wantResult {
				t.Errorf("result handler called = %v, want %v", got, tt.wantResult)
			}

			switch {
			case tt.wantStatus:
				if status.devices[0] != tt.wantDevice {
					t.Errorf("status device = %q, want %q", status.devices[0], tt.wantDevice)
				}
				if status.payloads[0] != tt.payload {
					t.Errorf("status payload = %q, want %q", status.payloads[0], tt.payload)
				}
			case tt.wantResult:
				if result.devices[0] != tt.wantDevice {
					t.Errorf("result device = %q, want %q", result.devices[0], tt.wantDevice)
				}
			}
		})
	}
}

func TestRouterStartSubscribes(t *testing.T) {
	status := &recordingStatus{}
	result := &recordingResult{}
	router := NewRouter(status, result, nopLogger{})

	bus := &recordingSubscriber{}
	if err := router.Start(context.Background(), bus); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(bus.topics) != 2 {
		t.Fatalf("subscribed to %d topics, want 2", len(bus.topics))
	}
	want := map[string]bool{
		"devices/+/status":  true,
		"devices/+/trajeto": true,
	}
	for _, topic := range bus.topics {
		if !want[topic] {
			t.Errorf("unexpected subscription topic %q", topic)
		}
	}

	// Messages delivered through the subscription handlers must route.
	if err := bus.handlers["devices/+/status"]("devices/rover-03/status", []byte(aPayload)); err != nil {
		t.Fatalf("status handler error = %v", err)
	}
	if len(status.devices) != 1 || status.devices[0] != "rover-03" {
		t.Errorf("status handler devices = %v, want [rover-03]", status.devices)
	}

	if err := bus.handlers["devices/+/trajeto"]("devices/rover-03/trajeto", []byte(`{}`)); err != nil {
		t.Fatalf("report handler error = %v", err)
	}
	if len(result.devices) != 1 || result.devices[0] != "rover-03" {
		t.Errorf("result handler devices = %v, want [rover-03]", result.devices)
	}
}
