package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"winnow/internal/api"
	"winnow/internal/catalog"
	"winnow/internal/config"
	"winnow/internal/ipc"
)

const (
	pollInterval = 200 * time.Millisecond
	pidFileName  = "winnow.pid"
	lockFileName = "winnow.lock"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// LaunchOptions carries the flags forwarded to a launched daemon process.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
	DryRun     bool
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
	StartStateRequested      StartState = "start_requested"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	Message  string
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	StopAcknowledged bool
	ForcedKill       bool
	PID              int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// EnsureStarted makes the daemon reachable and running: it dials the
// socket, launches a detached process when nothing answers, and issues
// the Start RPC. The returned state distinguishes a fresh start from an
// instance that was already up.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	client, err := ipc.Dial(socketPath)
	launched := false
	if err != nil {
		if launchErr := launch(executablePath, opts); launchErr != nil {
			return StartResult{}, launchErr
		}
		client, err = waitForClient(socketPath, waitTimeout)
		if err != nil {
			return StartResult{}, err
		}
		launched = true
	}
	defer client.Close()

	if statusResp, statusErr := client.Status(); statusErr == nil && statusResp != nil && statusResp.Running {
		if launched {
			return StartResult{State: StartStateStarted, Launched: true}, nil
		}
		return StartResult{State: StartStateAlreadyRunning}, nil
	}

	resp, err := client.Start()
	if err != nil {
		return StartResult{}, err
	}
	return interpretStart(resp, launched), nil
}

// interpretStart maps the Start RPC response onto a StartResult. The
// daemon reports "daemon already running" as a failed start, which from
// the caller's perspective is success.
func interpretStart(resp *ipc.StartResponse, launched bool) StartResult {
	if resp == nil {
		return StartResult{State: StartStateRequested, Launched: launched, Message: "Start request sent"}
	}
	message := strings.TrimSpace(resp.Message)
	switch {
	case resp.Started:
		return StartResult{State: StartStateStarted, Launched: launched, Message: message}
	case strings.EqualFold(message, "daemon already running"):
		if launched {
			return StartResult{State: StartStateStarted, Launched: true, Message: message}
		}
		return StartResult{State: StartStateAlreadyRunning, Message: message}
	case message != "":
		return StartResult{State: StartStateRequested, Launched: launched, Message: message}
	default:
		return StartResult{State: StartStateRequested, Launched: launched, Message: "Start request sent"}
	}
}

// StopAndTerminate requests a graceful stop over IPC and escalates to
// SIGKILL plus pid/lock/socket cleanup when the process is still alive
// after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if isDaemonUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}

	var lockPath, databasePath string
	pid := 0
	if statusResp, statusErr := client.Status(); statusErr == nil && statusResp != nil {
		lockPath = statusResp.LockPath
		databasePath = statusResp.DatabasePath
		pid = statusResp.PID
	}
	resp, err := client.Stop()
	_ = client.Close()
	if err != nil {
		return StopResult{}, err
	}
	result := StopResult{PID: pid}
	if resp != nil {
		result.StopAcknowledged = resp.Stopped
	}

	_ = waitForShutdown(socketPath, gracePeriod)
	alive, livePID := daemonAlive(socketPath)
	if !alive {
		return result, nil
	}

	currentPID := livePID
	if currentPID == 0 {
		currentPID = pid
	}
	dir := runtimeDir(lockPath, databasePath, cfg)
	if dir == "" {
		return result, fmt.Errorf("unable to determine daemon runtime directory")
	}
	killedPID, killErr := forceKill(filepath.Join(dir, pidFileName), filepath.Join(dir, lockFileName), currentPID)
	if killErr != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", killErr)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killedPID
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(socketPath string, cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(socketPath, cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(socketPath, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// BuildStatusSnapshot collects daemon status and falls back to direct
// catalog stats when the daemon is offline.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*ipc.StatusResponse, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	statusResp := &ipc.StatusResponse{}

	client, err := ipc.Dial(socketPath)
	if err == nil {
		defer client.Close()
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			statusResp = resp
		}
	}

	if !statusResp.Running {
		queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if store, openErr := catalog.Open(cfg); openErr == nil {
			stats, statsErr := store.Stats(queryCtx)
			_ = store.Close()
			if statsErr == nil {
				statusResp.Stats = api.FromStats(stats)
			}
		}
		if statusResp.DatabasePath == "" {
			statusResp.DatabasePath = cfg.Database.Path
		}
	}
	return statusResp, nil
}

// launch starts a detached daemon process running `winnow daemon`.
func launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// poll invokes probe every pollInterval until it reports done or the
// timeout lapses, returning the probe's last error on timeout.
func poll(timeout time.Duration, probe func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		done, err := probe()
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		time.Sleep(pollInterval)
	}
	if lastErr == nil {
		lastErr = errors.New("timed out")
	}
	return lastErr
}

func waitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	var client *ipc.Client
	err := poll(timeout, func() (bool, error) {
		c, dialErr := ipc.Dial(socketPath)
		if dialErr != nil {
			return false, dialErr
		}
		client = c
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("daemon failed to start: %w", err)
	}
	return client, nil
}

func waitForShutdown(socketPath string, timeout time.Duration) error {
	err := poll(timeout, func() (bool, error) {
		client, dialErr := ipc.Dial(socketPath)
		if dialErr != nil {
			if isDaemonUnavailable(dialErr) {
				return true, nil
			}
			return false, dialErr
		}
		status, statusErr := client.Status()
		_ = client.Close()
		if statusErr == nil && !status.Running {
			return true, nil
		}
		if statusErr != nil {
			return false, statusErr
		}
		return false, fmt.Errorf("daemon still running")
	})
	if err != nil {
		return fmt.Errorf("daemon did not stop: %w", err)
	}
	return nil
}

// daemonAlive reports whether the socket still answers, and the pid it
// reports when it does.
func daemonAlive(socketPath string) (bool, int) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return false, 0
	}
	defer client.Close()
	status, statusErr := client.Status()
	if statusErr != nil || status == nil {
		return true, 0
	}
	return true, status.PID
}

// runtimeDir determines where the daemon keeps its pid and lock files
// from status and config hints.
func runtimeDir(lockPath, databasePath string, cfg *config.Config) string {
	if lockPath != "" {
		return filepath.Dir(lockPath)
	}
	if databasePath != "" {
		return filepath.Dir(databasePath)
	}
	if cfg != nil && strings.TrimSpace(cfg.Database.Path) != "" {
		return filepath.Dir(cfg.Database.Path)
	}
	return ""
}

// forceKill sends SIGKILL to the pid recorded in pidPath (or the
// fallback) and removes the pid and lock files.
func forceKill(pidPath, lockPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	data, err := os.ReadFile(pidPath)
	if err == nil {
		if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
			pid = parsed
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
	}
	if lockPath != "" {
		_ = os.Remove(lockPath)
	}
	return pid, nil
}

func isDaemonUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
