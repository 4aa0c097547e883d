package daemon

import "github.com/CodehubPriyanshu/taskhub-central-sub000/internal/config"

// StartOptions configures the daemon. Config is loaded from Home when nil.
type StartOptions struct {
	Home      string
	Config    *config.Config
	PprofAddr string
}

// StatusInfo is the result of Status (running or not, PID, listen addr).
type StatusInfo struct {
	Running bool
	PID     int
	Addr    string
}
