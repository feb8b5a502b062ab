package cmd

import (
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-drift/weave/pkg/config"
	"github.com/go-drift/weave/pkg/core"
	"github.com/go-drift/weave/pkg/engine"
)

func init() {
	RegisterCommand(&Command{
		Name:  "tree",
		Short: "Print the fiber tree of a running app",
		Long: `Fetch /fiber-tree from a running app's debug server and print it.

The port defaults to diagnostics.debugServerPort from weave.yaml.`,
		Usage: "weave tree [port]",
		Run:   runTree,
	})
	RegisterCommand(&Command{
		Name:  "cycles",
		Short: "Print recent cycles of a running app",
		Long: `Fetch /cycles from a running app's debug server and print them.

The port defaults to diagnostics.debugServerPort from weave.yaml. limit
keeps the newest N cycles.`,
		Usage: "weave cycles [port] [limit]",
		Run:   runCycles,
	})
}

var httpClient = &http.Client{Timeout: 5 * time.Second}

func debugPort(args []string) (int, error) {
	if len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 || port > 65535 {
			return 0, fmt.Errorf("invalid port %q", args[0])
		}
		return port, nil
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return 0, fmt.Errorf("port is required outside a project")
	}
	cfg, err := config.Resolve(root)
	if err != nil {
		return 0, err
	}
	if cfg.DebugServerPort == 0 {
		return 0, fmt.Errorf("diagnostics.debugServerPort is not set in %s", config.FileName)
	}
	return cfg.DebugServerPort, nil
}

func fetchJSON(url string, v any) error {
	resp, err := httpClient.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func runTree(args []string) error {
	port, err := debugPort(args)
	if err != nil {
		return err
	}
	var tree core.Info
	if err := fetchJSON(fmt.Sprintf("http://localhost:%d/fiber-tree", port), &tree); err != nil {
		return err
	}
	printInfo(tree, 0)
	return nil
}

func runCycles(args []string) error {
	port, err := debugPort(args)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("http://localhost:%d/cycles", port)
	if len(args) > 1 {
		if _, err := strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("invalid limit %q", args[1])
		}
		url += "?limit=" + args[1]
	}
	var timeline engine.CycleTimeline
	if err := fetchJSON(url, &timeline); err != nil {
		return err
	}
	printTimeline(timeline)
	return nil
}

// printInfo writes an indented outline of tree.
func printInfo(tree core.Info, depth int) {
	line := strings.Repeat("  ", depth) + tree.Type
	if len(tree.Props) > 0 {
		var parts []string
		for _, k := range slices.Sorted(maps.Keys(tree.Props)) {
			parts = append(parts, fmt.Sprintf("%s=%v", k, tree.Props[k]))
		}
		line += " " + strings.Join(parts, " ")
	}
	if len(tree.Hooks) > 0 {
		line += " [" + strings.Join(tree.Hooks, ", ") + "]"
	}
	if len(tree.Old) > 0 {
		line += " (was [" + strings.Join(tree.Old, ", ") + "])"
	}
	fmt.Fprintln(stdout, line)
	for _, c := range tree.Children {
		printInfo(c, depth+1)
	}
}

func printTimeline(t engine.CycleTimeline) {
	fmt.Fprintf(stdout, "Cycles: %d shown, %d slow (over %.1fms)\n", len(t.Samples), t.SlowCycles, t.ThresholdMs)
	for _, s := range t.Samples {
		status := "ok"
		if s.Error != "" {
			status = s.Error
		}
		fmt.Fprintf(stdout, "  %s  %7.2fms  rendered=%d +%d ~%d -%d effects=%d  %s\n",
			time.UnixMilli(s.Timestamp).Format("15:04:05.000"),
			s.TotalMs, s.Rendered, s.Placements, s.Updates, s.Deletions, s.Effects, status)
	}
}
