package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/readdir/internal/config"
)

func TestScanConfigOverlay(t *testing.T) {
	base := config.DefaultConfig().Scan

	got := scanConfig(scanCmd, base)
	assert.Equal(t, base, got, "unset flags keep config values")

	require.NoError(t, scanCmd.Flags().Set("retention", "2"))
	require.NoError(t, scanCmd.Flags().Set("exclude", "/tmp/"))
	t.Cleanup(func() {
		scanCmd.Flags().Lookup("retention").Changed = false
		scanCmd.Flags().Lookup("exclude").Changed = false
		scanRetention, scanExclude = 5, nil
	})

	got = scanConfig(scanCmd, base)
	assert.Equal(t, 2, got.Retention)
	assert.Equal(t, append(base.Exclude, "/tmp/"), got.Exclude)
	assert.Equal(t, base.Out, got.Out)
}

func TestProgressLine(t *testing.T) {
	p := newProgress(time.Now(), false)
	p.update(1200, 3, 1, 2048)
	line := p.line()
	assert.Contains(t, line, "files=1,200")
	assert.Contains(t, line, "bytes=2.0 KiB")
	assert.Contains(t, line, "errors=1")

	p.setStage("rollups")
	assert.Contains(t, p.line(), "stage=rollups")
}
