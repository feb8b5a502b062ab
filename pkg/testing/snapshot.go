package testing

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/weave/pkg/core"
)

// UpdateSnapshotsEnv names the environment variable that, when set to 1,
// makes MatchesFile rewrite golden files instead of comparing.
const UpdateSnapshotsEnv = "WEAVE_UPDATE_SNAPSHOTS"

// TestingT is the subset of *testing.T used by MatchesFile, allowing
// test doubles to intercept failures.
type TestingT interface {
	Helper()
	Fatalf(format string, args ...any)
	Errorf(format string, args ...any)
	Name() string
}

// Snapshot captures the fiber tree and the committed host markup.
type Snapshot struct {
	Tree *core.Info `yaml:"tree,omitempty"`
	HTML string     `yaml:"html"`
}

// CaptureSnapshot captures the current fiber tree and container markup.
func (t *Tester) CaptureSnapshot() *Snapshot {
	snap := &Snapshot{HTML: t.HTML()}
	if info, ok := t.runtime.DescribeTree(); ok {
		snap.Tree = &info
	}
	return snap
}

// MatchesFile compares this snapshot against a golden YAML file. On
// mismatch it reports a diff and instructions for updating. When
// WEAVE_UPDATE_SNAPSHOTS=1 is set, the file is rewritten instead.
func (s *Snapshot) MatchesFile(t TestingT, path string) {
	t.Helper()

	if os.Getenv(UpdateSnapshotsEnv) == "1" {
		if err := s.UpdateFile(path); err != nil {
			t.Fatalf("failed to update snapshot: %v", err)
		}
		return
	}

	expected, err := loadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Fatalf("snapshot file missing: %s\n\nTo create: %s=1 go test -run %s", path, UpdateSnapshotsEnv, t.Name())
			return
		}
		t.Fatalf("failed to load snapshot: %v", err)
		return
	}

	if diff := s.Diff(expected); diff != "" {
		t.Errorf("snapshot mismatch: %s (-want +got)\n%s\n\nTo update: %s=1 go test -run %s", path, diff, UpdateSnapshotsEnv, t.Name())
	}
}

// UpdateFile writes this snapshot to path, creating directories as needed.
func (s *Snapshot) UpdateFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal encodes the snapshot as YAML.
func (s *Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Diff returns a line diff from other to s, compared in their YAML form.
// It returns "" if they are equal.
func (s *Snapshot) Diff(other *Snapshot) string {
	a, _ := other.Marshal()
	b, _ := s.Marshal()
	if bytes.Equal(a, b) {
		return ""
	}
	return cmp.Diff(strings.Split(string(a), "\n"), strings.Split(string(b), "\n"))
}

func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}
