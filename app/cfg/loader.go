package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Local storage configuration
	DBPath  string `long:"db-path" env:"DB_PATH" default:"./data/feedvault.db" description:"Path to the SQLite database file"`
	DataDir string `long:"data-dir" env:"DATA_DIR" default:"./data" description:"Directory for sync metadata and other local state"`

	// Remote record store configuration
	RemoteEndpoint string `long:"remote-endpoint" env:"REMOTE_ENDPOINT" description:"Base URL of the remote record store (empty disables sync)"`
	RemoteUsername string `long:"remote-username" env:"REMOTE_USERNAME" description:"Account username on the remote record store"`
	RemoteToken    string `long:"remote-token" env:"REMOTE_TOKEN" description:"Bearer token for the remote record store"`

	// Application configuration
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for task processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	RefreshInterval   int    `long:"refresh-interval" env:"REFRESH_INTERVAL" default:"900" description:"Minimum seconds between fetches of the same feed"`
	StatusWatermark   int    `long:"status-watermark" env:"STATUS_WATERMARK" default:"100" description:"Pending status count that triggers an immediate send"`
	RetentionDays     int    `long:"retention-days" env:"RETENTION_DAYS" default:"90" description:"Days to keep read, unstarred articles"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"FeedVault/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		DataDir:           raw.DataDir,
		RemoteEndpoint:    raw.RemoteEndpoint,
		RemoteUsername:    raw.RemoteUsername,
		RemoteToken:       raw.RemoteToken,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		RefreshInterval:   raw.RefreshInterval,
		StatusWatermark:   raw.StatusWatermark,
		RetentionDays:     raw.RetentionDays,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
