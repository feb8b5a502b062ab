// Package testing provides a harness for exercising components against the
// in-memory target.
//
// # Quick Start
//
// Create a tester, mount a tree, and make assertions:
//
//	func TestCounter(t *testing.T) {
//	    tester := weavetest.NewTesterWithT(t)
//	    tester.Mount(core.CreateElement(Counter, nil))
//
//	    tester.Fire(weavetest.ByTag("button"), "click", nil)
//	    tester.PumpAndSettle(time.Second)
//
//	    if !tester.Find(weavetest.ByText("1")).Exists() {
//	        t.Error("expected count 1")
//	    }
//	}
//
// # Snapshot Testing
//
// Capture and compare the fiber tree and committed markup:
//
//	tester.CaptureSnapshot().MatchesFile(t, "testdata/counter.snapshot.yaml")
//
// Update snapshots with:
//
//	WEAVE_UPDATE_SNAPSHOTS=1 go test ./...
//
// # Import Alias
//
// Since this package has the same name as the standard library testing
// package, import it with an alias:
//
//	import weavetest "github.com/go-drift/weave/pkg/testing"
package testing
