// Package shared provides common CLI flag definitions and utility functions
// used across pollcat's command-line interface.
package shared

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"dominicbreuker/pollcat/pkg/config"
	"dominicbreuker/pollcat/pkg/engine"
	"dominicbreuker/pollcat/pkg/log"
)

const categoryEngine = "engine"

// WorkersFlag is the name of the flag to set the worker pool size.
const WorkersFlag = "workers"

// TTLFlag is the name of the flag to set how long idle handles live.
const TTLFlag = "ttl"

// ReapIntervalFlag is the name of the flag to set how often idle handles are evicted.
const ReapIntervalFlag = "reap-interval"

// VerboseFlag is the name of the flag to enable verbose logging.
const VerboseFlag = "verbose"

// TrafficLogFlag is the name of the flag to record connection bytes to a file.
const TrafficLogFlag = "traffic-log"

// GetBaseDescription returns the description of the request format shared
// by the bridge commands.
func GetBaseDescription() string {
	return strings.Join([]string{
		"Requests name an operation followed by its arguments, e.g. connect 127.0.0.1:9000 : 1000.",
		"Every response is a single string; errors start with ERR|.",
	}, "\n")
}

// GetEngineFlags returns the CLI flags configuring the connection engine.
func GetEngineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:     WorkersFlag,
			Aliases:  []string{"w"},
			Usage:    "Number of workers running blocking operations",
			Category: categoryEngine,
			Value:    config.DefaultWorkers,
			Required: false,
		},
		&cli.DurationFlag{
			Name:     TTLFlag,
			Usage:    "Idle time after which a handle is evicted",
			Category: categoryEngine,
			Value:    config.DefaultTTL,
			Required: false,
		},
		&cli.DurationFlag{
			Name:     ReapIntervalFlag,
			Usage:    "Interval between evictions of idle handles",
			Category: categoryEngine,
			Value:    config.DefaultReapInterval,
			Required: false,
		},
		&cli.BoolFlag{
			Name:     VerboseFlag,
			Aliases:  []string{"v"},
			Usage:    "Verbose logging",
			Category: categoryEngine,
			Value:    false,
			Required: false,
		},
		&cli.StringFlag{
			Name:     TrafficLogFlag,
			Usage:    "Append the raw bytes of every connection to this file",
			Category: categoryEngine,
			Value:    "",
			Required: false,
		},
	}
}

// EngineConfig builds the engine configuration from the flags of cmd.
func EngineConfig(cmd *cli.Command) *config.Engine {
	cfg := config.NewEngine()
	cfg.Workers = int(cmd.Int(WorkersFlag))
	cfg.TTL = cmd.Duration(TTLFlag)
	cfg.ReapInterval = cmd.Duration(ReapIntervalFlag)
	cfg.Verbose = cmd.Bool(VerboseFlag)
	cfg.TrafficLog = cmd.String(TrafficLogFlag)
	return cfg
}

// StartEngine validates cfg, reporting every problem, and starts an engine.
func StartEngine(cfg *config.Engine) (*engine.Engine, *log.Logger, error) {
	if errors := config.Validate(cfg); len(errors) > 0 {
		log.ErrorMsg("Argument validation errors:\n")
		for _, err := range errors {
			log.ErrorMsg(" - %s\n", err)
		}
		return nil, nil, fmt.Errorf("exiting")
	}

	logger := log.NewLogger(cfg.Verbose)
	e, err := engine.New(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("engine.New(): %s", err)
	}
	return e, logger, nil
}
