package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-drift/weave/pkg/config"
)

func init() {
	RegisterCommand(&Command{
		Name:  "init",
		Short: "Write a default weave.yaml",
		Long: `Write weave.yaml with the default settings to the current project.

The project root is the nearest directory containing go.mod. An existing
weave.yaml is left untouched unless --force is given.`,
		Usage: "weave init [--force]",
		Run:   runInit,
	})
}

func runInit(args []string) error {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return fmt.Errorf("unexpected argument %q\n\nUsage: weave init [--force]", arg)
		}
	}

	root, err := config.FindProjectRoot(".")
	if err != nil {
		return err
	}
	path, err := writeDefaultConfig(root, force)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}

func writeDefaultConfig(root string, force bool) (string, error) {
	path := filepath.Join(root, config.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	cfg := config.Default()
	cfg.App.Name = filepath.Base(root)
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}
