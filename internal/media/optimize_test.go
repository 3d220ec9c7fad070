package media_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openzim/openedx2zim/internal/media"
)

func TestOptimizeImageReportsToolOutcome(t *testing.T) {
	tests := map[string]struct {
		// exit codes of the stubbed optimizers, absent means not installed.
		tools map[string]int

		wantOptimized bool
	}{
		"Pngquant succeeds":    {tools: map[string]int{"pngquant": 0}, wantOptimized: true},
		"Advdef succeeds":      {tools: map[string]int{"advdef": 0}, wantOptimized: true},
		"Both tools succeed":   {tools: map[string]int{"pngquant": 0, "advdef": 0}, wantOptimized: true},
		"One succeeds":         {tools: map[string]int{"pngquant": 1, "advdef": 0}, wantOptimized: true},
		"Both tools fail":      {tools: map[string]int{"pngquant": 1, "advdef": 1}, wantOptimized: false},
		"No optimizer present": {tools: nil, wantOptimized: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			binDir := t.TempDir()
			for tool, exitCode := range tc.tools {
				script := fmt.Sprintf("#!/bin/sh\nexit %d\n", exitCode)
				require.NoError(t, os.WriteFile(filepath.Join(binDir, tool), []byte(script), 0755),
					"Setup: could not write stub binary")
			}
			t.Setenv("PATH", binDir)

			src := filepath.Join(t.TempDir(), "pic.png")
			require.NoError(t, os.WriteFile(src, []byte("png"), 0600), "Setup: could not write image")

			d := media.New(slog.Default(), "mp4", false, nil)
			optimized, err := d.OptimizeFile(context.Background(), src, src)
			require.NoError(t, err, "OptimizeFile should not have failed")
			assert.Equal(t, tc.wantOptimized, optimized,
				"Optimization should only be reported when a tool succeeded")
		})
	}
}
