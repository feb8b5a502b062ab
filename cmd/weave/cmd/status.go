package cmd

import (
	"fmt"

	"github.com/go-drift/weave/pkg/config"
)

func init() {
	RegisterCommand(&Command{
		Name:  "status",
		Short: "Show the resolved configuration",
		Long: `Show the configuration of the current project with defaults applied.

weave.yaml is optional; without it every setting shows its default.`,
		Usage: "weave status",
		Run:   runStatus,
	})
}

func runStatus(args []string) error {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(root)
	if err != nil {
		return err
	}
	printStatus(cfg)
	return nil
}

func printStatus(cfg *config.Resolved) {
	debug := "off"
	if cfg.DebugServerPort > 0 {
		debug = fmt.Sprintf("localhost:%d", cfg.DebugServerPort)
	}
	fmt.Fprintf(stdout, "Project: %s (%s)\n", cfg.AppName, cfg.Root)
	fmt.Fprintf(stdout, "Schema:  %s\n", cfg.Version)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "  %-14s %s (idle delay %v)\n", "scheduler:", cfg.Host, cfg.IdleDelay)
	fmt.Fprintf(stdout, "  %-14s %s, %s\n", "logging:", cfg.LogLevel, cfg.LogFormat)
	fmt.Fprintf(stdout, "  %-14s %d samples, slow over %v\n", "trace:", cfg.TraceSamples, cfg.SlowCycle)
	fmt.Fprintf(stdout, "  %-14s %t\n", "metrics:", cfg.Metrics)
	fmt.Fprintf(stdout, "  %-14s %s\n", "debug server:", debug)
}
