// Package process tracks spawned client processes per dataset.
//
// The registry is owned by the lifecycle orchestrator and passed to the
// operations that need it; there is no package-global state. The internal
// mutex only protects the dataset map, so distinct datasets can be driven
// concurrently. Sequencing start/kill for the same dataset remains the
// caller's responsibility.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	gops "github.com/shirou/gopsutil/v4/process"

	"github.com/mittelgard/clientforge/internal/config"
	"github.com/mittelgard/clientforge/internal/platform"
)

// launchDelay is the enforced pause between client launches. Starting
// several clients in the same instant contends on file handles and window
// creation, so launches are rate-limited, one per tick.
const launchDelay = 2 * time.Second

// Handle is one tracked client process. It is owned exclusively by its
// registry entry until stopped.
type Handle struct {
	ID  string
	PID int32

	stop func(ctx context.Context) error
}

// Stop requests the process to stop and reaps it. Blocks until the
// process is gone; no deadline is applied, client processes are local and
// cooperative.
func (h *Handle) Stop(ctx context.Context) error {
	if h.stop == nil {
		return nil
	}
	return h.stop(ctx)
}

// NewHandle builds a handle from an instance id, pid, and stop function.
// Launcher implementations outside this package use it to wrap whatever
// they spawn.
func NewHandle(id string, pid int32, stop func(ctx context.Context) error) *Handle {
	return &Handle{ID: id, PID: pid, stop: stop}
}

// Launcher starts one client process for a dataset.
type Launcher interface {
	Launch(ctx context.Context, ds *config.Dataset) (*Handle, error)
}

// ClientLauncher launches the real client executable: directly on the
// native platform, wrapped under the compatibility launcher otherwise.
type ClientLauncher struct {
	// Wine is the compatibility launcher used on non-native hosts.
	Wine string
}

// Launch starts one client instance with the installation directory as
// working directory.
func (l *ClientLauncher) Launch(ctx context.Context, ds *config.Dataset) (*Handle, error) {
	exePath := ds.ExePath()

	var cmd *exec.Cmd
	if platform.Native() {
		cmd = exec.Command(exePath)
	} else {
		if !platform.LauncherAvailable(l.Wine) {
			return nil, fmt.Errorf("compatibility launcher %q not found", l.Wine)
		}
		cmd = exec.Command(l.Wine, exePath)
	}
	cmd.Dir = ds.InstallPath

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start client: %w", err)
	}

	pid := int32(cmd.Process.Pid)
	return &Handle{
		ID:  uuid.New().String(),
		PID: pid,
		stop: func(ctx context.Context) error {
			if proc, err := gops.NewProcessWithContext(ctx, pid); err == nil {
				if err := proc.TerminateWithContext(ctx); err != nil {
					// Terminate can race process exit; escalate.
					_ = cmd.Process.Kill()
				}
			} else {
				_ = cmd.Process.Kill()
			}
			_ = cmd.Wait() // reap
			return nil
		},
	}, nil
}

// Registry maps dataset names to their live client process handles.
type Registry struct {
	mu       sync.Mutex
	entries  map[string][]*Handle
	launcher Launcher
	delay    time.Duration
}

// NewRegistry creates a registry using the given launcher.
func NewRegistry(launcher Launcher) *Registry {
	return &Registry{
		entries:  make(map[string][]*Handle),
		launcher: launcher,
		delay:    launchDelay,
	}
}

// Start launches count client instances for the dataset, sequentially,
// with the enforced inter-launch delay. count 0 is a no-op. Handles are
// appended to the dataset's entry, creating it on first start.
func (r *Registry) Start(ctx context.Context, ds *config.Dataset, count int) error {
	if count <= 0 {
		return nil
	}

	for i := 0; i < count; i++ {
		if i > 0 {
			select {
			case <-time.After(r.delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		handle, err := r.launcher.Launch(ctx, ds)
		if err != nil {
			return fmt.Errorf("launch client %d of %d: %w", i+1, count, err)
		}

		r.mu.Lock()
		r.entries[ds.Name] = append(r.entries[ds.Name], handle)
		r.mu.Unlock()

		log.Info().
			Str("dataset", ds.Name).
			Str("instance", handle.ID).
			Int32("pid", handle.PID).
			Msg("client started")
	}
	return nil
}

// Kill stops every tracked process of the dataset. Stop requests fan out
// concurrently (each handle is independent) and are all awaited. The
// entry is removed unconditionally, even when individual stops fail, so
// the returned count reflects attempted stops, not confirmed ones.
func (r *Registry) Kill(ctx context.Context, dataset string) int {
	r.mu.Lock()
	handles := r.entries[dataset]
	delete(r.entries, dataset)
	r.mu.Unlock()

	if len(handles) == 0 {
		return 0
	}

	var wg sync.WaitGroup
	wg.Add(len(handles))
	for _, handle := range handles {
		go func(h *Handle) {
			defer wg.Done()
			if err := h.Stop(ctx); err != nil {
				log.Warn().
					Str("dataset", dataset).
					Str("instance", h.ID).
					Err(err).
					Msg("client stop failed")
			}
		}(handle)
	}
	wg.Wait()

	log.Info().Str("dataset", dataset).Int("count", len(handles)).Msg("clients killed")
	return len(handles)
}

// Adopt registers client processes of the dataset that are already
// running on the host but not tracked, matching by executable path (or
// command line, for wrapped launches). This lets Kill reach clients
// started by an earlier tool invocation. Returns the number adopted.
func (r *Registry) Adopt(ctx context.Context, ds *config.Dataset) int {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		log.Warn().Str("dataset", ds.Name).Err(err).Msg("process scan failed")
		return 0
	}

	exePath := ds.ExePath()
	adopted := 0
	for _, proc := range procs {
		if !matchesClient(ctx, proc, exePath) || r.tracks(ds.Name, proc.Pid) {
			continue
		}

		handle := &Handle{
			ID:  uuid.New().String(),
			PID: proc.Pid,
			stop: func(ctx context.Context) error {
				if err := proc.TerminateWithContext(ctx); err != nil {
					return proc.KillWithContext(ctx)
				}
				return nil
			},
		}

		r.mu.Lock()
		r.entries[ds.Name] = append(r.entries[ds.Name], handle)
		r.mu.Unlock()
		adopted++

		log.Info().
			Str("dataset", ds.Name).
			Int32("pid", proc.Pid).
			Msg("running client adopted")
	}
	return adopted
}

func matchesClient(ctx context.Context, proc *gops.Process, exePath string) bool {
	if exe, err := proc.ExeWithContext(ctx); err == nil && exe == exePath {
		return true
	}
	if cmdline, err := proc.CmdlineWithContext(ctx); err == nil && cmdline != "" {
		return strings.Contains(cmdline, exePath)
	}
	return false
}

func (r *Registry) tracks(dataset string, pid int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, handle := range r.entries[dataset] {
		if handle.PID == pid {
			return true
		}
	}
	return false
}

// Count returns the number of tracked handles for the dataset.
func (r *Registry) Count(dataset string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries[dataset])
}

// Alive returns how many tracked processes of the dataset still exist on
// the host.
func (r *Registry) Alive(ctx context.Context, dataset string) int {
	r.mu.Lock()
	handles := append([]*Handle(nil), r.entries[dataset]...)
	r.mu.Unlock()

	alive := 0
	for _, handle := range handles {
		if ok, _ := gops.PidExistsWithContext(ctx, handle.PID); ok {
			alive++
		}
	}
	return alive
}
