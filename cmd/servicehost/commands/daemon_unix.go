//go:build !windows

package commands

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
)

// isProcessRunning reads a PID from the given file and checks whether
// that process is still alive. Returns the PID and true if running,
// or 0 and false otherwise.
func isProcessRunning(pidPath string) (int, bool) {
	pidData, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	// Signal 0 checks for existence without delivering anything.
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}

	return pid, true
}

// daemonPaths resolves the PID and log file locations, honoring the
// --pid-file and --log-file flags over the state-directory defaults.
func daemonPaths() (pidPath, logPath string) {
	pidPath = pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	logPath = logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}
	return pidPath, logPath
}

// startDaemon re-executes this binary in the foreground as a detached
// session leader, with stdout and stderr appended to the log file.
func startDaemon() error {
	if err := os.MkdirAll(GetDefaultStateDir(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	pidPath, logPath := daemonPaths()

	if pid, running := isProcessRunning(pidPath); running {
		return fmt.Errorf("ServiceHost is already running (PID %d)\nUse 'servicehost stop' to stop the running instance", pid)
	}
	// Stale PID file from a previous run.
	_ = os.Remove(pidPath)

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	logSink, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logSink.Close() }()

	cmd := exec.Command(executable, daemonArgs...)
	cmd.Stdout = logSink
	cmd.Stderr = logSink
	// New session so the daemon survives the terminal closing.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("ServiceHost started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'servicehost stop' to stop the daemon")
	fmt.Println("Use 'servicehost status' to check daemon status")

	return nil
}
