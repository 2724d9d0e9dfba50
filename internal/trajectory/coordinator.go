package trajectory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rover-fleet/rover-core/internal/codec"
	"github.com/rover-fleet/rover-core/internal/infrastructure/mqtt"
)

// lockStripes is the number of mutex stripes guarding terminal transitions.
// Trajectories map to stripes by id, so unrelated rovers rarely contend.
const lockStripes = 64

// OnlineChecker answers device liveness queries.
// Satisfied by *fleet.Registry.
type OnlineChecker interface {
	IsOnline(deviceID string) bool
}

// Publisher sends messages to the bus.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Coordinator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Coordinator owns the trajectory lifecycle: it dispatches command strings
// to rovers and reconciles execution reports and cancellations into one
// consistent terminal state per trajectory.
//
// All public methods are thread-safe. ApplyResult and Cancel for the same
// trajectory id serialise on a per-id lock stripe; the repository's
// conditional update is a second guard underneath.
type Coordinator struct {
	repo   Repository
	fleet  OnlineChecker
	bus    Publisher
	logger Logger

	locks [lockStripes]sync.Mutex

	// onCreate, if set, is called after a trajectory is dispatched.
	onCreate func(Trajectory)

	// onTerminal, if set, is called after a trajectory reaches its terminal
	// state, with the final record. Called outside the lock stripe.
	onTerminal func(Trajectory)
}

// NewCoordinator creates a coordinator wired to its collaborators.
func NewCoordinator(repo Repository, fleet OnlineChecker, bus Publisher, logger Logger) *Coordinator {
	return &Coordinator{
		repo:   repo,
		fleet:  fleet,
		bus:    bus,
		logger: logger,
	}
}

// SetOnCreate registers a callback invoked after each successful dispatch.
// Must be set before requests start flowing.
func (c *Coordinator) SetOnCreate(fn func(Trajectory)) {
	c.onCreate = fn
}

// SetOnTerminal registers a callback invoked once per trajectory when it
// reaches a terminal state. Must be set before messages start flowing.
func (c *Coordinator) SetOnTerminal(fn func(Trajectory)) {
	c.onTerminal = fn
}

// lockFor returns the mutex stripe guarding the given trajectory id.
func (c *Coordinator) lockFor(id int64) *sync.Mutex {
	return &c.locks[uint64(id)%lockStripes]
}

// Create validates and dispatches a command string to a rover.
//
// The trajectory is persisted in progress before publishing, so a publish
// failure leaves a retriable record behind: the caller gets
// ErrDispatchFailed together with the persisted trajectory and may retry
// or cancel it.
//
// Returns ErrDeviceOffline when the registry has no online entry for the
// rover and codec.ErrInvalidCommand for malformed command strings. The
// liveness check runs first: an unreachable rover is reported as offline
// regardless of what was asked of it.
func (c *Coordinator) Create(ctx context.Context, deviceID, commands string) (*Trajectory, error) {
	if !c.fleet.IsOnline(deviceID) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceOffline, deviceID)
	}
	if err := codec.Validate(commands); err != nil {
		return nil, err
	}

	t := &Trajectory{
		DeviceID:     deviceID,
		CommandsSent: commands,
	}
	if err := c.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("persisting trajectory: %w", err)
	}

	wire, err := codec.Encode(commands, t.ID)
	if err != nil {
		// Commands were validated above; reaching this means a codec bug.
		return t, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	topic := mqtt.Topics{}.DeviceCommands(deviceID)
	if err := c.bus.Publish(topic, []byte(wire), mqtt.QoSAtLeastOnce, false); err != nil {
		c.logger.Warn("command publish failed, trajectory kept for retry",
			"trajectory_id", t.ID,
			"device_id", deviceID,
			"error", err,
		)
		return t, fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	c.logger.Info("trajectory dispatched",
		"trajectory_id", t.ID,
		"device_id", deviceID,
		"commands", commands,
	)
	if c.onCreate != nil {
		c.onCreate(*t)
	}
	return t, nil
}

// ApplyResult reconciles an execution report from the bus against the
// stored trajectory.
//
// Reports are protocol input with no reply channel, so every failure mode
// here is a logged discard rather than an error: malformed payloads,
// missing correlation ids, and ids that resolve to no stored trajectory.
// A report for an already-terminal trajectory is a no-op, which makes
// at-least-once redelivery harmless.
func (c *Coordinator) ApplyResult(ctx context.Context, deviceID string, payload []byte) {
	rep, err := parseReport(payload)
	if err != nil {
		c.logger.Warn("discarding malformed execution report",
			"device_id", deviceID,
			"error", err,
		)
		return
	}
	if rep.TrajectoryID == nil {
		c.logger.Warn("discarding execution report without trajectory id",
			"device_id", deviceID,
		)
		return
	}
	id := int64(*rep.TrajectoryID)

	mu := c.lockFor(id)
	mu.Lock()
	terminal, applied := c.applyResultLocked(ctx, deviceID, id, rep)
	mu.Unlock()

	if applied && c.onTerminal != nil {
		c.onTerminal(*terminal)
	}
}

// applyResultLocked performs the terminal transition under the lock stripe.
// Returns the final record and whether this call performed the transition.
func (c *Coordinator) applyResultLocked(ctx context.Context, deviceID string, id int64, rep Report) (*Trajectory, bool) {
	t, err := c.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.logger.Warn("execution report for unknown trajectory",
				"trajectory_id", id,
				"device_id", deviceID,
			)
		} else {
			c.logger.Error("loading trajectory for execution report",
				"trajectory_id", id,
				"error", err,
			)
		}
		return nil, false
	}

	if t.Terminal() {
		c.logger.Debug("duplicate execution report ignored",
			"trajectory_id", id,
			"device_id", deviceID,
		)
		return nil, false
	}

	duration := int64(rep.Duration)
	ok, err := c.repo.Complete(ctx, id, rep.CommandsExecuted, duration)
	if err != nil {
		c.logger.Error("completing trajectory",
			"trajectory_id", id,
			"error", err,
		)
		return nil, false
	}
	if !ok {
		// Lost the compare-and-set underneath the stripe lock; treat as duplicate.
		c.logger.Debug("trajectory already terminal, report ignored", "trajectory_id", id)
		return nil, false
	}

	completed := true
	t.Status = &completed
	t.CommandsExecuted = &rep.CommandsExecuted
	t.Duration = duration

	c.logger.Info("trajectory completed",
		"trajectory_id", id,
		"device_id", deviceID,
		"duration_s", duration,
	)
	return t, true
}

// Cancel moves an in-progress trajectory to cancelled.
//
// Cancelling a terminal trajectory is always rejected: ErrAlreadyCompleted
// or ErrAlreadyCancelled depending on how it ended, never a silent accept.
func (c *Coordinator) Cancel(ctx context.Context, id int64) error {
	mu := c.lockFor(id)
	mu.Lock()
	terminal, err := c.cancelLocked(ctx, id)
	mu.Unlock()

	if err != nil {
		return err
	}
	if c.onTerminal != nil {
		c.onTerminal(*terminal)
	}
	return nil
}

// cancelLocked performs the cancel transition under the lock stripe.
func (c *Coordinator) cancelLocked(ctx context.Context, id int64) (*Trajectory, error) {
	t, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != nil {
		if *t.Status {
			return nil, ErrAlreadyCompleted
		}
		return nil, ErrAlreadyCancelled
	}

	ok, err := c.repo.Cancel(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cancelling trajectory: %w", err)
	}
	if !ok {
		// Raced with a concurrent writer underneath the stripe lock.
		// Re-read to classify the terminal state we lost to.
		current, readErr := c.repo.GetByID(ctx, id)
		if readErr == nil && current.Status != nil && *current.Status {
			return nil, ErrAlreadyCompleted
		}
		return nil, ErrAlreadyCancelled
	}

	cancelled := false
	t.Status = &cancelled

	c.logger.Info("trajectory cancelled", "trajectory_id", id)
	return t, nil
}

// Get retrieves a trajectory by id. Returns ErrNotFound if unknown.
func (c *Coordinator) Get(ctx context.Context, id int64) (*Trajectory, error) {
	return c.repo.GetByID(ctx, id)
}

// List retrieves all trajectories, newest first.
func (c *Coordinator) List(ctx context.Context) ([]Trajectory, error) {
	return c.repo.List(ctx)
}

// Delete removes a trajectory in any lifecycle state.
// Returns ErrNotFound if unknown.
func (c *Coordinator) Delete(ctx context.Context, id int64) error {
	return c.repo.Delete(ctx, id)
}
