package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/senses/components/camera"
	"go.viam.com/senses/visualizer"
)

func writeConfig(t *testing.T, cfg string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "senses.json")
	test.That(t, os.WriteFile(path, []byte(cfg), 0o600), test.ShouldBeNil)
	return path
}

func runMain(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Main(context.Background(), append([]string{"senses"}, args...), &out, &errOut)
	return code, out.String(), errOut.String()
}

const fakeHeadless = `{
	"source": {"type": "fake", "attributes": {"width_px": 64, "height_px": 48, "frame_interval": "1ms", "disconnect_after": %d}},
	"display": {"type": "headless", "width": 320, "height": 180},
	"log_level": "error"
}`

func TestExitCodeFor(t *testing.T) {
	test.That(t, ExitCodeFor(nil), test.ShouldEqual, ExitOK)
	test.That(t, ExitCodeFor(context.Canceled), test.ShouldEqual, ExitOK)
	test.That(t, ExitCodeFor(errors.Wrap(camera.NewSourceUnavailableError(errors.New("gone")), "run")),
		test.ShouldEqual, ExitSourceUnavailable)
	test.That(t, ExitCodeFor(visualizer.NewDisplayInitError(errors.New("no X"))), test.ShouldEqual, ExitDisplayInit)
	test.That(t, ExitCodeFor(errors.New("boom")), test.ShouldEqual, ExitFailure)
}

func TestRunSourceDisconnects(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(fakeHeadless, 5))
	code, _, errOut := runMain(t, "--config", path)
	test.That(t, code, test.ShouldEqual, ExitSourceUnavailable)
	test.That(t, errOut, test.ShouldContainSubstring, "frame source unavailable")
}

func TestRunOverlappedAndLatest(t *testing.T) {
	path := writeConfig(t, `{
		"source": {"type": "fake", "attributes": {"width_px": 64, "height_px": 48, "frame_interval": "1ms", "disconnect_after": 5}},
		"display": {"type": "headless", "width": 320, "height": 180},
		"loop": {"overlap_detection": true, "latest_frame": true},
		"log_level": "error"
	}`)
	code, _, _ := runMain(t, "--config", path, "run")
	test.That(t, code, test.ShouldEqual, ExitSourceUnavailable)
}

func TestRunBadFlags(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(fakeHeadless, 1))
	code, _, errOut := runMain(t, "--config", path, "--confidence-threshold", "2")
	test.That(t, code, test.ShouldEqual, ExitFailure)
	test.That(t, errOut, test.ShouldContainSubstring, "confidence threshold")

	code, _, errOut = runMain(t, "--config", path, "--max-range", "0")
	test.That(t, code, test.ShouldEqual, ExitFailure)
	test.That(t, errOut, test.ShouldContainSubstring, "max range")

	code, _, _ = runMain(t, "--config", filepath.Join(t.TempDir(), "missing.json"))
	test.That(t, code, test.ShouldEqual, ExitFailure)
}

func TestRunMissingReplayIsUnavailable(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(`{
		"source": {"type": "replay", "attributes": {"dir": %q}},
		"display": {"type": "headless", "width": 320, "height": 180},
		"log_level": "error"
	}`, filepath.Join(t.TempDir(), "nothing")))
	code, _, _ := runMain(t, "--config", path)
	test.That(t, code, test.ShouldEqual, ExitSourceUnavailable)
}

func TestRecordThenReplay(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "recording")
	path := writeConfig(t, fmt.Sprintf(fakeHeadless, 0))
	code, _, errOut := runMain(t, "--config", path, "record", "--out", dir, "--frames", "3")
	test.That(t, code, test.ShouldEqual, ExitOK)
	test.That(t, errOut, test.ShouldBeEmpty)

	files, err := filepath.Glob(filepath.Join(dir, "*.cbor"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldHaveLength, 3)

	// a finite replay is a clean shutdown once every frame was shown
	replayCfg := writeConfig(t, fmt.Sprintf(`{
		"source": {"type": "replay", "attributes": {"dir": %q}},
		"display": {"type": "headless", "width": 320, "height": 180},
		"log_level": "error"
	}`, dir))
	code, _, errOut = runMain(t, "--config", replayCfg, "--max-range", "5")
	test.That(t, code, test.ShouldEqual, ExitOK)
	test.That(t, errOut, test.ShouldBeEmpty)
}

func TestSchemaCommand(t *testing.T) {
	code, out, _ := runMain(t, "schema")
	test.That(t, code, test.ShouldEqual, ExitOK)
	var schema map[string]interface{}
	test.That(t, json.Unmarshal([]byte(out), &schema), test.ShouldBeNil)
	test.That(t, schema, test.ShouldContainKey, "config")
	sources, ok := schema["sources"].(map[string]interface{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, sources, test.ShouldContainKey, "fake")
	test.That(t, sources, test.ShouldContainKey, "replay")
	detectors, ok := schema["detectors"].(map[string]interface{})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, detectors, test.ShouldContainKey, "yolov8_seg")
}

func TestVersionCommand(t *testing.T) {
	code, out, _ := runMain(t, "version")
	test.That(t, code, test.ShouldEqual, ExitOK)
	test.That(t, out, test.ShouldContainSubstring, "Version")
}

func TestRunWritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "senses.log")
	path := writeConfig(t, fmt.Sprintf(`{
		"source": {"type": "fake", "attributes": {"width_px": 64, "height_px": 48, "frame_interval": "1ms", "disconnect_after": 2}},
		"display": {"type": "headless", "width": 320, "height": 180},
		"log_level": "error",
		"log_file": %q
	}`, logPath))
	code, _, _ := runMain(t, "--config", path)
	test.That(t, code, test.ShouldEqual, ExitSourceUnavailable)

	//nolint:gosec
	contents, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "ERROR")
	test.That(t, string(contents), test.ShouldContainSubstring, "frame source unavailable")
}

func TestTypesCommand(t *testing.T) {
	code, out, _ := runMain(t, "types")
	test.That(t, code, test.ShouldEqual, ExitOK)
	test.That(t, out, test.ShouldContainSubstring, "KIND")
	test.That(t, out, test.ShouldContainSubstring, "replay")
	test.That(t, out, test.ShouldContainSubstring, "frame_interval")
	test.That(t, out, test.ShouldContainSubstring, "yolov8_seg")
	test.That(t, out, test.ShouldContainSubstring, "detect_color")
}

func TestSnapshotCommand(t *testing.T) {
	path := writeConfig(t, fmt.Sprintf(fakeHeadless, 0))
	out := filepath.Join(t.TempDir(), "flyby.png")
	code, _, errOut := runMain(t, "--config", path, "snapshot", "--out", out, "--frames", "3")
	test.That(t, code, test.ShouldEqual, ExitOK)
	test.That(t, errOut, test.ShouldBeEmpty)

	//nolint:gosec
	f, err := os.Open(out)
	test.That(t, err, test.ShouldBeNil)
	defer f.Close()
	cfg, err := image.DecodeConfig(f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Width, test.ShouldEqual, 320)
	test.That(t, cfg.Height, test.ShouldEqual, 180)

	code, _, _ = runMain(t, "--config", path, "snapshot", "--out", out, "--frames", "0")
	test.That(t, code, test.ShouldEqual, ExitFailure)
}
