package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"winnow/internal/daemonctl"
	"winnow/internal/ipc"
	"winnow/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDryRun bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the winnow daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonLaunchOptions(ctx, startDryRun),
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Daemon started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDryRun, "dry-run", false, "Run the daemon in dry-run mode")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the winnow daemon (terminates the process)",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
			} else {
				fmt.Fprintln(stdout, "Stopping daemon services...")
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDryRun bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the winnow daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				ctx.configValue(),
				exe,
				daemonLaunchOptions(ctx, restartDryRun),
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Stopping daemon process (pid %d)...\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Daemon restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDryRun, "dry-run", false, "Run the daemon in dry-run mode")

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, storage, and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			if statusJSON {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonStatusLines(ctx, statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Storage", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, result := range preflight.RunAll(cfg) {
				fmt.Fprintln(stdout, renderStatusLine(result.Name, passFail(result.Passed), result.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			if statusResp.Running {
				for _, line := range renderSectionHeader("Reconciler", colorize) {
					fmt.Fprintln(stdout, line)
				}
				for _, line := range reconcilerStatusLines(statusResp, colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprintln(stdout)
			}

			for _, line := range renderSectionHeader("Library", colorize) {
				fmt.Fprintln(stdout, line)
			}
			table := renderTable(
				[]string{"State", "Items", "Size"},
				buildStatsRows(statusResp.Stats),
				[]columnAlignment{alignLeft, alignRight, alignRight},
			)
			fmt.Fprintln(stdout, table)
			fmt.Fprintln(stdout, renderStatusLine("Users", statusInfo, fmt.Sprintf("%d", statusResp.Stats.Users), colorize))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Emit status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func daemonStatusLines(ctx *commandContext, status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, 4)
	if status.Running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusWarn, "Not running", colorize))
	}
	if status.DatabasePath != "" {
		lines = append(lines, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
	}
	lines = append(lines, renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize))
	if status.Running {
		detail := "Disabled"
		kind := statusWarn
		if len(status.WatchedRoots) > 0 {
			detail = fmt.Sprintf("Watching %d root(s)", len(status.WatchedRoots))
			kind = statusOK
		}
		lines = append(lines, renderStatusLine("Watcher", kind, detail, colorize))
	}
	return lines
}

func reconcilerStatusLines(status *ipc.StatusResponse, colorize bool) []string {
	lines := make([]string, 0, len(status.StepHealth)+1)
	for _, step := range status.StepHealth {
		kind := statusOK
		detail := step.Detail
		if !step.Ready {
			kind = statusWarn
			if detail == "" {
				detail = "not ready"
			}
		}
		lines = append(lines, renderStatusLine(formatStatusLabel(step.Name), kind, detail, colorize))
	}
	if cycle := status.LastCycle; cycle != nil {
		detail := fmt.Sprintf("%s: %d purged, %d trashed, %d errors",
			formatDisplayTime(cycle.StartedAt), cycle.Purged, cycle.TrashSwept, cycle.Errors)
		kind := statusOK
		if cycle.Errors > 0 {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine("Last cycle", kind, detail, colorize))
	} else {
		lines = append(lines, renderStatusLine("Last cycle", statusInfo, "No cycle completed yet", colorize))
	}
	return lines
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, dryRun bool) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{
		SocketPath: ctx.socketPath(),
		DryRun:     dryRun,
	}
	if ctx.configFlag != nil {
		if config := strings.TrimSpace(*ctx.configFlag); config != "" {
			opts.ConfigPath = config
		}
	}
	return opts
}
