package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/diskfs/go-blockhash/report"
	"github.com/diskfs/go-blockhash/testhelper"
)

func tmpImage(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main_test.img")
	require.NoError(t, os.WriteFile(path, testhelper.Pattern(size), 0o600))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	if len(b) == 0 {
		return nil
	}
	return strings.Split(strings.TrimSuffix(string(b), "\n"), "\n")
}

func TestRunScan(t *testing.T) {
	image := tmpImage(t, 1048576)
	out := filepath.Join(t.TempDir(), "digest.out")
	require.NoError(t, os.WriteFile(out, []byte("left over\n"), 0o600))

	code := run([]string{"-d", image, "-b", "4KiB", "-t", "4", "-o", out, "--log-level", "error"})
	require.Equal(t, exitOK, code)

	lines := readLines(t, out)
	require.Len(t, lines, 4)
	seen := map[int]bool{}
	for _, line := range lines {
		r, err := report.ParseLine(line)
		require.NoError(t, err)
		require.True(t, r.Timed)
		require.Len(t, r.Hex(), 40)
		seen[r.Worker] = true
	}
	require.Len(t, seen, 4)
}

func TestRunScanOptions(t *testing.T) {
	image := tmpImage(t, 65536)
	out := filepath.Join(t.TempDir(), "digest.out")

	code := run([]string{"-d", image, "-b", "4096", "-t", "2", "-n", "3", "-o", out,
		"--algorithm", "sha256", "--no-timing", "--short-read", "exact", "--mmap", "--log-level", "error"})
	require.Equal(t, exitOK, code)

	lines := readLines(t, out)
	require.Len(t, lines, 2)
	for _, line := range lines {
		r, err := report.ParseLine(line)
		require.NoError(t, err)
		require.False(t, r.Timed)
		require.Len(t, r.Digest, 32)
	}
}

func TestRunEnv(t *testing.T) {
	image := tmpImage(t, 65536)
	out := filepath.Join(t.TempDir(), "digest.out")
	t.Setenv("BLOCKHASH_DEVICE", image)
	t.Setenv("BLOCKHASH_BLOCK_SIZE", "8KiB")
	t.Setenv("BLOCKHASH_THREADS", "2")
	t.Setenv("BLOCKHASH_OUTPUT", out)

	// flags win over the environment
	code := run([]string{"-t", "4", "--log-level", "error"})
	require.Equal(t, exitOK, code)
	require.Len(t, readLines(t, out), 4)
}

func TestRunFailures(t *testing.T) {
	image := tmpImage(t, 65536)
	dir := t.TempDir()
	out := filepath.Join(dir, "digest.out")
	require.NoError(t, os.WriteFile(out, []byte("keep me\n"), 0o600))

	tests := []struct {
		name string
		args []string
	}{
		{"no threads", []string{"-d", image, "-b", "4096", "-o", out}},
		{"zero block size", []string{"-d", image, "-b", "0", "-t", "2", "-o", out}},
		{"bad block size", []string{"-d", image, "-b", "lots", "-t", "2", "-o", out}},
		{"bad algorithm", []string{"-d", image, "-b", "4096", "-t", "2", "--algorithm", "crc", "-o", out}},
		{"bad log format", []string{"-d", image, "-b", "4096", "-t", "2", "--log-format", "xml", "-o", out}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, exitFailure, run(tt.args))
			// rejected before the result file is truncated
			require.Equal(t, []string{"keep me"}, readLines(t, out))
		})
	}

	t.Run("missing device", func(t *testing.T) {
		code := run([]string{"-d", filepath.Join(dir, "nope"), "-b", "4096", "-t", "2", "-o", out, "--log-level", "error"})
		require.Equal(t, exitFailure, code)
		require.Equal(t, []string{"keep me"}, readLines(t, out))
	})
}

func TestPlanCmd(t *testing.T) {
	var buf bytes.Buffer
	root := newRootCmd(logrus.New())
	root.SetOut(&buf)
	root.SetArgs([]string{"plan", "--size", "40960", "-b", "4096", "-t", "3"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	s := buf.String()
	require.Contains(t, s, "T00: start=0 stride=12288 blocks=3 last=24576")
	require.Contains(t, s, "T02: start=8192 stride=12288 blocks=3 last=32768")
	require.Contains(t, s, "visited: 9 blocks, unassigned: 1 blocks")
	require.Contains(t, s, "first unvisited block at offset 36864")
	require.NotContains(t, s, "warning")

	buf.Reset()
	image := tmpImage(t, 8192)
	root = newRootCmd(logrus.New())
	root.SetOut(&buf)
	root.SetArgs([]string{"plan", "-d", image, "-b", "4096", "-t", "2", "-n", "2"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.Contains(t, buf.String(), "warning: 2 blocks beyond the end of the device")

	buf.Reset()
	root = newRootCmd(logrus.New())
	root.SetOut(&buf)
	root.SetArgs([]string{"plan", "-d", image, "-b", "4096", "-t", "2", "-n", "2", "--strict"})
	require.ErrorContains(t, root.ExecuteContext(context.Background()), "invalid plan: 2 blocks beyond the end of the device")
	require.NotContains(t, buf.String(), "warning")

	require.Equal(t, exitFailure, run([]string{"plan", "--size", "4096", "-b", "4096", "-t", "4", "-n", "5000000", "--strict", "--log-level", "error"}))
	require.Equal(t, exitOK, run([]string{"plan", "--size", "40960", "-b", "4096", "-t", "3", "--strict"}))
}
