package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var (
	statusJSON    bool
	statusPidFile string
	statusAPIPort int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long: `Display the current status of the ServiceHost daemon.

This command checks the daemon process via its PID file and queries the
auxiliary API server for listener status: bound address, in-flight request
count, and uptime.

Examples:
  # Check status (uses default settings)
  servicehost status

  # Check status with custom API port
  servicehost status --api-port 9080

  # Output as JSON
  servicehost status --json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/servicehost/servicehost.pid)")
	statusCmd.Flags().IntVar(&statusAPIPort, "api-port", 8080, "Auxiliary API server port")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

// DaemonStatus represents the daemon status information.
type DaemonStatus struct {
	Running        bool    `json:"running"`
	PID            int     `json:"pid,omitempty"`
	Message        string  `json:"message"`
	ListenAddr     string  `json:"listen_addr,omitempty"`
	ActiveRequests int32   `json:"active_requests"`
	UptimeSeconds  float64 `json:"uptime_seconds,omitempty"`
}

// listenerStatus mirrors the JSON body of the auxiliary server's GET /status.
type listenerStatus struct {
	Started        bool    `json:"started"`
	ListenAddr     string  `json:"listen_addr"`
	ActiveRequests int32   `json:"active_requests"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	status := DaemonStatus{
		Running: false,
		Message: "Daemon is not running",
	}

	// Use default PID file if not specified
	pidPath := statusPidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Check PID file first
	pidData, err := os.ReadFile(pidPath)
	if err == nil {
		pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
		if err == nil {
			// Check if process is running
			process, err := os.FindProcess(pid)
			if err == nil {
				// On Unix, FindProcess always succeeds, we need to send signal 0 to check
				err = process.Signal(syscall.Signal(0))
				if err == nil {
					status.Running = true
					status.PID = pid
				}
			}
		}
	}

	// Query the status endpoint (works for both daemon and foreground mode)
	statusURL := fmt.Sprintf("http://localhost:%d/status", statusAPIPort)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(statusURL)
	if err == nil {
		defer func() { _ = resp.Body.Close() }()

		var ls listenerStatus
		if err := json.NewDecoder(resp.Body).Decode(&ls); err == nil {
			status.Running = true
			status.ListenAddr = ls.ListenAddr
			status.ActiveRequests = ls.ActiveRequests
			status.UptimeSeconds = ls.UptimeSeconds
			if ls.Started {
				status.Message = "Daemon is running and accepting connections"
			} else {
				status.Message = "Daemon is running but the listener is stopped"
			}
		} else {
			status.Running = true
			status.Message = "Daemon is running but status response invalid"
		}
	} else if status.Running {
		// PID file says running but status check failed
		status.Message = "Daemon process exists but status check failed"
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	printStatusTable(status)
	return nil
}

func printStatusTable(status DaemonStatus) {
	fmt.Println()
	fmt.Println("ServiceHost Daemon Status")
	fmt.Println("=========================")
	fmt.Println()

	if status.Running {
		fmt.Printf("  Status:      \033[32m● Running\033[0m\n")
		if status.PID != 0 {
			fmt.Printf("  PID:         %d\n", status.PID)
		}
		if status.ListenAddr != "" {
			fmt.Printf("  Listening:   %s\n", status.ListenAddr)
		}
		fmt.Printf("  In-flight:   %d\n", status.ActiveRequests)
		if status.UptimeSeconds > 0 {
			fmt.Printf("  Uptime:      %s\n", (time.Duration(status.UptimeSeconds) * time.Second).String())
		}
	} else {
		fmt.Printf("  Status:      \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()
}
