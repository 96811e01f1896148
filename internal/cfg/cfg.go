package cfg

import (
	"errors"
	"flag"
	"fmt"
)

// Config holds the service configuration, bound from flags and the
// FIELDTRIAGE_ environment via the common cfg loader.
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	APIToken              string
	DatabaseURL           string
	RecheckSeconds        int
	CueRepeat             int
	CueIntervalSeconds    int
	GCSStrict             bool
	DrugRefEndpoint       string
	SlackWebhookURL       string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on API requests")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL (empty = in-memory store)")
	fs.IntVar(&c.RecheckSeconds, "recheck-seconds", 900, "observation recheck countdown in seconds (1..86400)")
	fs.IntVar(&c.CueRepeat, "cue-repeat", 3, "number of repeat cues after the recheck countdown expires (0..60)")
	fs.IntVar(&c.CueIntervalSeconds, "cue-interval-seconds", 60, "seconds between repeat cues (1..3600)")
	fs.BoolVar(&c.GCSStrict, "gcs-strict", false, "escalate any consciousness score below the full 15")
	fs.StringVar(&c.DrugRefEndpoint, "drugref-endpoint", "", "optional drug reference lookup endpoint")
	fs.StringVar(&c.SlackWebhookURL, "slack-webhook-url", "", "Slack webhook URL for escalation notifications")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// API token is required; the service handles patient data
	if c.APIToken == "" {
		errs = append(errs, errors.New("API_TOKEN is required"))
	}

	if c.RecheckSeconds <= 0 || c.RecheckSeconds > 86400 {
		errs = append(errs, fmt.Errorf("invalid RECHECK_SECONDS %d (must be 1..86400)", c.RecheckSeconds))
	}
	if c.CueRepeat < 0 || c.CueRepeat > 60 {
		errs = append(errs, fmt.Errorf("invalid CUE_REPEAT %d (must be 0..60)", c.CueRepeat))
	}
	if c.CueIntervalSeconds <= 0 || c.CueIntervalSeconds > 3600 {
		errs = append(errs, fmt.Errorf("invalid CUE_INTERVAL_SECONDS %d (must be 1..3600)", c.CueIntervalSeconds))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
