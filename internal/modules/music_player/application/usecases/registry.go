package usecases

import (
	"context"
	"errors"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// ControllerRegistry maps guilds to their playback controllers.
// Controllers are created on first use and removed when the guild is left.
type ControllerRegistry struct {
	deps ControllerDeps

	mu          sync.RWMutex
	controllers map[snowflake.ID]*GuildPlaybackController
}

// NewControllerRegistry creates an empty registry whose controllers share deps.
func NewControllerRegistry(deps ControllerDeps) *ControllerRegistry {
	return &ControllerRegistry{
		deps:        deps,
		controllers: make(map[snowflake.ID]*GuildPlaybackController),
	}
}

// Get returns the live controller for the guild, if any.
func (r *ControllerRegistry) Get(guildID snowflake.ID) (*GuildPlaybackController, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ctrl, ok := r.controllers[guildID]
	if !ok || ctrl.IsClosed() {
		return nil, false
	}
	return ctrl, true
}

// GetOrCreate returns the controller for the guild, creating one if needed.
// A controller that has already left is replaced.
func (r *ControllerRegistry) GetOrCreate(guildID snowflake.ID) *GuildPlaybackController {
	if ctrl, ok := r.Get(guildID); ok {
		return ctrl
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if ctrl, ok := r.controllers[guildID]; ok && !ctrl.IsClosed() {
		return ctrl
	}
	ctrl := NewGuildPlaybackController(guildID, r.deps)
	r.controllers[guildID] = ctrl
	return ctrl
}

// WithController runs fn against the guild's controller, creating it if
// needed. If fn reports ErrControllerClosed because the guild was left
// concurrently, fn is retried once with a fresh controller.
func (r *ControllerRegistry) WithController(
	guildID snowflake.ID,
	fn func(*GuildPlaybackController) error,
) error {
	err := fn(r.GetOrCreate(guildID))
	if errors.Is(err, ErrControllerClosed) {
		err = fn(r.GetOrCreate(guildID))
	}
	return err
}

// Leave removes the guild's controller and makes it leave the voice channel.
// Returns ErrNotConnected if the guild has no controller or it was never connected.
func (r *ControllerRegistry) Leave(ctx context.Context, guildID snowflake.ID) (*LeaveOutput, error) {
	r.mu.Lock()
	ctrl, ok := r.controllers[guildID]
	delete(r.controllers, guildID)
	r.mu.Unlock()

	if !ok {
		return nil, ErrNotConnected
	}

	output, err := ctrl.Leave(ctx)
	if err != nil {
		return output, err
	}
	if !output.WasConnected {
		return output, ErrNotConnected
	}
	return output, nil
}

// Count returns the number of controllers (for testing/monitoring).
func (r *ControllerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.controllers)
}

// Shutdown makes every controller leave its guild.
func (r *ControllerRegistry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	controllers := r.controllers
	r.controllers = make(map[snowflake.ID]*GuildPlaybackController)
	r.mu.Unlock()

	var errs []error
	for _, ctrl := range controllers {
		if _, err := ctrl.Leave(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
