package trajectory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rover-fleet/rover-core/internal/codec"
)

// mockRepository is an in-memory Repository with the same compare-and-set
// semantics as the SQLite implementation.
type mockRepository struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*Trajectory

	createErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{items: make(map[int64]*Trajectory)}
}

func (m *mockRepository) Create(_ context.Context, t *Trajectory) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t.ID = m.nextID
	clone := *t
	m.items[t.ID] = &clone
	return nil
}

func (m *mockRepository) GetByID(_ context.Context, id int64) (*Trajectory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (m *mockRepository) List(_ context.Context) ([]Trajectory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := make([]Trajectory, 0, len(m.items))
	for id := m.nextID; id >= 1; id-- {
		if t, ok := m.items[id]; ok {
			list = append(list, *t)
		}
	}
	return list, nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepository) Complete(_ context.Context, id int64, executed string, duration int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.Status != nil {
		return false, nil
	}
	completed := true
	t.Status = &completed
	t.CommandsExecuted = &executed
	t.Duration = duration
	return true, nil
}

func (m *mockRepository) Cancel(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok || t.Status != nil {
		return false, nil
	}
	cancelled := false
	t.Status = &cancelled
	return true, nil
}

// stubChecker reports a fixed liveness answer.
type stubChecker struct {
	online bool
}

func (s stubChecker) IsOnline(string) bool { return s.online }

// stubPublisher records publishes and can be set to fail.
type stubPublisher struct {
	mu       sync.Mutex
	topics   []string
	payloads []string
	err      error
}

func (s *stubPublisher) Publish(topic string, payload []byte, _ byte, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.topics = append(s.topics, topic)
	s.payloads = append(s.payloads, string(payload))
	return nil
}

// testLogger discards everything.
type testLogger struct{}

func (testLogger) Debug(string, ...any) {}
func (testLogger) Info(string, ...any)  {}
func (testLogger) Warn(string, ...any)  {}
func (testLogger) Error(string, ...any) {}

func newTestCoordinator(repo Repository, online bool, pub *stubPublisher) *Coordinator {
	return NewCoordinator(repo, stubChecker{online: online}, pub, testLogger{})
}

func TestCoordinatorCreateDispatches(t *testing.T) {
	repo := newMockRepository()
	pub := &stubPublisher{}
	c := newTestCoordinator(repo, true, pub)

	tr, err := c.Create(context.Background(), "rover-01", "a1000da0001e")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tr.ID != 1 {
		t.Errorf("ID = %d, want 1", tr.ID)
	}
	if tr.Status != nil {
		t.Errorf("Status = %v, want nil (in progress)", *tr.Status)
	}

	if len(pub.topics) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.topics))
	}
	if pub.topics[0] != "devices/rover-01/commands" {
		t.Errorf("publish topic = %q, want devices/rover-01/commands", pub.topics[0])
	}
	if pub.payloads[0] != "a1000da0001ei1" {
		t.Errorf("wire payload = %q, want a1000da0001ei1", pub.payloads[0])
	}
}

func TestCoordinatorCreateInvalidCommand(t *testing.T) {
	repo := newMockRepository()
	c := newTestCoordinator(repo, true, &stubPublisher{})

	_, err := c.Create(context.Background(), "rover-01", "a12")
	if !errors.Is(err, codec.ErrInvalidCommand) {
		t.Fatalf("Create() error = %v, want ErrInvalidCommand", err)
	}
	if len(repo.items) != 0 {
		t.Error("invalid command must not be persisted")
	}
}

func TestCoordinatorCreateDeviceOffline(t *testing.T) {
	// Liveness is checked before command validation: an offline rover is
	// reported as offline even when the command string is also malformed.
	commands := []string{"a1000", "x"}

	for _, cmd := range commands {
		repo := newMockRepository()
		c := newTestCoordinator(repo, false, &stubPublisher{})

		_, err := c.Create(context.Background(), "rover-01", cmd)
		if !errors.Is(err, ErrDeviceOffline) {
			t.Fatalf("Create(%q) error = %v, want ErrDeviceOffline", cmd, err)
		}
		if len(repo.items) != 0 {
			t.Error("offline dispatch must not be persisted")
		}
	}
}

func TestCoordinatorCreatePublishFailureKeepsRecord(t *testing.T) {
	repo := newMockRepository()
	pub := &stubPublisher{err: fmt.Errorf("broker gone")}
	c := newTestCoordinator(repo, true, pub)

	tr, err := c.Create(context.Background(), "rover-01", "a1000")
	if !errors.Is(err, ErrDispatchFailed) {
		t.Fatalf("Create() error = %v, want ErrDispatchFailed", err)
	}
	if tr == nil || tr.ID == 0 {
		t.Fatal("failed dispatch must still return the persisted trajectory")
	}

	got, getErr := repo.GetByID(context.Background(), tr.ID)
	if getErr != nil {
		t.Fatalf("GetByID() error = %v", getErr)
	}
	if got.Status != nil {
		t.Error("failed dispatch must stay in progress for retry")
	}
}

func TestCoordinatorApplyResultCompletes(t *testing.T) {
	repo := newMockRepository()
	c := newTestCoordinator(repo, true, &stubPublisher{})

	var terminal []Trajectory
	c.SetOnTerminal(func(t Trajectory) { terminal = append(terminal, t) })

	tr, err := c.Create(context.Background(), "rover-01", "a1000d")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Rovers echo the id as a string; numbers must work too.
	report := []byte(`{"comandosExecutados": "a1000d", "idTrajeto": "1", "tempo": 11}`)
	c.ApplyResult(context.Background(), "rover-01", report)

	got, err := repo.GetByID(context.Background(), tr.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Status == nil || !*got.Status {
		t.Fatalf("Status = %v, want completed", got.Status)
	}
	if got.CommandsExecuted == nil || *got.CommandsExecuted != "a1000d" {
		t.Errorf("CommandsExecuted = %v, want a1000d", got.CommandsExecuted)
	}
	if got.Duration != 11 {
		t.Errorf("Duration = %d, want 11", got.Duration)
	}
	if len(terminal) != 1 {
		t.Errorf("onTerminal called %d times, want 1", len(terminal))
	}
}

func TestCoordinatorApplyResultNumericID(t *testing.T) {
	repo := newMockRepository()
	c := newTestCoordinator(repo, true, &stubPublisher{})

	tr, err := c.Create(context.Background(), "rover-01", "d")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	report := []byte(`{"comandosExecutados": "d", "idTrajeto": 1, "tempo": 1}`)
	c.ApplyResult(context.Background(), "rover-01", report)

	got, _ := repo.GetByID(context.Background(), tr.ID)
	if got.Status == nil || !*got.Status {
		t.Fatalf("numeric idTrajeto not reconciled: Status = %v", got.Status)
	}
}

func TestCoordinatorApplyResultIdempotent(t *testing.T) {
	repo := newMockRepository()
	c := newTestCoordinator(repo, true, &stubPublisher{})

	calls := 0
	c.SetOnTerminal(func(Trajectory) { calls++ })

	if _, err := c.Create(context.Background(), "rover-01", "a1000d"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	report := []byte(`{"comandosExecutados": "a1000d", "idTrajeto": "1", "tempo": 11}`)
	c.ApplyResult(context.Background(), "rover-01", report)
	c.ApplyResult(context.Background(), "rover-01", report) // at-least-once redelivery

	if calls != 1 {
		t.Errorf("onTerminal called %d times, want 1 (duplicate must be a no-op)", calls)
	}
}

func TestCoordinatorApplyResultDiscards(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"malformed JSON", `{"comandosExecutados": `},
		{"missing trajectory id", `{"comandosExecutados": "d", "tempo": 1}`},
		{"unparsable trajectory id", `{"comandosExecutados": "d", "idTrajeto": "abc", "tempo": 1}`},
		{"unknown trajectory id", `{"comandosExecutados": "d", "idTrajeto": "99", "tempo": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepository()
			c := newTestCoordinator(repo, true, &stubPublisher{})

			calls := 0
			c.SetOnTerminal(func(Trajectory) { calls++ })

			// Must not panic, must not transition anything.
			c.ApplyResult(context.Background(), "rover-01", []byte(tt.payload))
			if calls != 0 {
				t.Errorf("onTerminal called %d times, want 0", calls)
			}
		})
	}
}

func TestCoordinatorCancel(t *testing.T) {
	repo := newMockRepository()
	c := newTestCoordinator(repo, true, &stubPublisher{})

	tr, err := c.Create(context.Background(), "rover-01", "a1000")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := c.Cancel(context.Background(), tr.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	got, _ := repo.GetByID(context.Background(), tr.ID)
	if got.Status == nil || *got.Status {
		t.Fatalf("Status = %v, want cancelled", got.Status)
	}

	if err := c.Cancel(context.Background(), tr.ID); !errors.Is(err, ErrAlreadyCancelled) {
		t.Errorf("second Cancel() error = %v, want ErrAlreadyCancelled", err)
	}
}

func TestCoordinatorCancelCompleted(t *testing.T) {
	repo := newMockRepository()
	c := newTestCoordinator(repo, true, &stubPublisher{})

	tr, err := c.Create(context.Background(), "rover-01", "d")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	c.ApplyResult(context.Background(), "rover-01", []byte(`{"comandosExecutados": "d", "idTrajeto": "1", "tempo": 1}`))

	if err := c.Cancel(context.Background(), tr.ID); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("Cancel() error = %v, want ErrAlreadyCompleted", err)
	}
}

func TestCoordinatorCancelUnknown(t *testing.T) {
	c := newTestCoordinator(newMockRepository(), true, &stubPublisher{})

	if err := c.Cancel(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
}

// TestCoordinatorConcurrentCancelAndResult races a cancellation against an
// execution report for the same trajectory. Exactly one of them may win,
// and the stored state must match the winner.
func TestCoordinatorConcurrentCancelAndResult(t *testing.T) {
	for i := 0; i < 50; i++ {
		repo := newMockRepository()
		c := newTestCoordinator(repo, true, &stubPublisher{})

		terminals := 0
		c.SetOnTerminal(func(Trajectory) { terminals++ })

		tr, err := c.Create(context.Background(), "rover-01", "a1000d")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		var wg sync.WaitGroup
		var cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancelErr = c.Cancel(context.Background(), tr.ID)
		}()
		go func() {
			defer wg.Done()
			c.ApplyResult(context.Background(), "rover-01",
				[]byte(`{"comandosExecutados": "a1000d", "idTrajeto": "1", "tempo": 11}`))
		}()
		wg.Wait()

		got, getErr := repo.GetByID(context.Background(), tr.ID)
		if getErr != nil {
			t.Fatalf("GetByID() error = %v", getErr)
		}
		if got.Status == nil {
			t.Fatal("trajectory still in progress after racing writers")
		}

		switch {
		case cancelErr == nil:
			if *got.Status {
				t.Fatal("cancel reported success but trajectory is completed")
			}
		case errors.Is(cancelErr, ErrAlreadyCompleted):
			if !*got.Status {
				t.Fatal("cancel lost to completion but trajectory is cancelled")
			}
		default:
			t.Fatalf("Cancel() error = %v, want nil or ErrAlreadyCompleted", cancelErr)
		}

		if terminals != 1 {
			t.Fatalf("onTerminal called %d times, want exactly 1", terminals)
		}
	}
}
