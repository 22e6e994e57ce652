package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryryry-3302/OpticalFlowOnESP/internal/preprocess"
	"github.com/ryryry-3302/OpticalFlowOnESP/internal/testutil"
)

func writeFrames(t *testing.T, n int) string {
	t.Helper()
	return testutil.WriteFrameDir(t, testutil.MovingCorner(n, 6, 2))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

var runIDPattern = regexp.MustCompile(`run ([0-9a-f-]{36})`)

func TestRun_DevLoopbackEndToEnd(t *testing.T) {
	frames := writeFrames(t, 12)
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "runs.db")
	reportDir := filepath.Join(tmp, "report")

	out, err := execute(t, "run", "--frames", frames, "--dev", "--db", dbPath, "--report", reportDir)
	require.NoError(t, err)
	assert.Contains(t, out, "frames=12 flows=11 failures=0")
	for _, name := range []string{"magnitude.png", "angle.png", "comparison.html"} {
		assert.FileExists(t, filepath.Join(reportDir, name))
	}

	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, "run id missing from output:\n%s", out)

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, m[1])
	assert.Contains(t, out, "loopback")

	out, err = execute(t, "compare", m[1], "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "magnitude n=")
	assert.Contains(t, out, "angle")

	_, err = execute(t, "compare", m[1], "--db", dbPath, "--against", "reference")
	assert.Error(t, err, "run has no reference flow")
}

func TestRun_MaxFramesAndNoStore(t *testing.T) {
	frames := writeFrames(t, 8)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "run", "--frames", frames, "--dev", "--no-store", "--db", dbPath, "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "frames=3 flows=2 failures=0")
	assert.NotContains(t, out, "run ")
	assert.NoFileExists(t, dbPath)
}

func TestRun_WithReferenceCSV(t *testing.T) {
	frames := writeFrames(t, 6)
	tmp := t.TempDir()
	csvPath := filepath.Join(tmp, "host.csv")
	dbPath := filepath.Join(tmp, "runs.db")

	_, err := execute(t, "estimate", "--frames", frames, "--out", csvPath)
	require.NoError(t, err)
	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "frame,u,v", lines[0])
	assert.Len(t, lines, 6)

	out, err := execute(t, "run", "--frames", frames, "--dev", "--db", dbPath, "--reference", csvPath)
	require.NoError(t, err)
	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)

	out, err = execute(t, "compare", m[1], "--db", dbPath, "--against", "reference")
	require.NoError(t, err)
	assert.Contains(t, out, "magnitude")
}

func TestRun_RequiresPort(t *testing.T) {
	_, err := execute(t, "run", "--frames", writeFrames(t, 2), "--no-store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no serial port")
}

func TestMigrateCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "migrate", "version", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "version=0 latest=2")

	out, err = execute(t, "migrate", "up", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "version=2")

	out, err = execute(t, "migrate", "down", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "version=1")

	out, err = execute(t, "migrate", "to", "2", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "version=2")

	_, err = execute(t, "migrate", "to", "x", "--db", dbPath)
	assert.Error(t, err)
}

func TestRoot_InvalidFlags(t *testing.T) {
	_, err := execute(t, "runs", "--log-level", "loud")
	assert.Error(t, err)

	_, err = execute(t, "runs", "--config", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = execute(t, "compare", "not-a-uuid")
	assert.Error(t, err)
}

func TestRunsDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	out, err := execute(t, "run", "--frames", writeFrames(t, 3), "--dev", "--db", dbPath)
	require.NoError(t, err)
	m := runIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)

	out, err = execute(t, "runs", "delete", m[1], "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted run "+m[1])

	out, err = execute(t, "runs", "--db", dbPath)
	require.NoError(t, err)
	assert.NotContains(t, out, m[1])

	_, err = execute(t, "runs", "delete", m[1], "--db", dbPath)
	assert.Error(t, err, "run is already gone")

	_, err = execute(t, "runs", "delete", "not-a-uuid", "--db", dbPath)
	assert.Error(t, err)
}

func TestDumpFrames(t *testing.T) {
	frames := writeFrames(t, 4)
	tmp := t.TempDir()

	estDump := filepath.Join(tmp, "estimate")
	_, err := execute(t, "estimate", "--frames", frames, "--dump-frames", estDump, "--upscale", "3")
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.FileExists(t, filepath.Join(estDump, fmt.Sprintf("frame_%04d.png", i)))
		assert.FileExists(t, filepath.Join(estDump, fmt.Sprintf("frame_%04d_upscaled.png", i)))
	}

	small, err := preprocess.LoadFile(filepath.Join(estDump, "frame_0000.png"), preprocess.Options{Size: 16, Mode: preprocess.Crop})
	require.NoError(t, err)
	assert.Equal(t, 16, small.Size())

	f, err := os.Open(filepath.Join(estDump, "frame_0000_upscaled.png"))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 48, cfg.Width)
	assert.Equal(t, 48, cfg.Height)

	runDump := filepath.Join(tmp, "run")
	out, err := execute(t, "run", "--frames", frames, "--dev", "--no-store", "--dump-frames", runDump, "--upscale", "1", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "frames=2 flows=1 failures=0")
	entries, err := os.ReadDir(runDump)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no previews at upscale 1 and only the frames sent")

	_, err = execute(t, "estimate", "--frames", frames, "--dump-frames", estDump, "--upscale", "0")
	assert.Error(t, err)
}
