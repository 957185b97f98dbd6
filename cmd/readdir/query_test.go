package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelscutari/readdir/internal/entry"
)

func TestKindFlag(t *testing.T) {
	for s, want := range map[string]entry.Kind{
		"file":    entry.KindFile,
		"dir":     entry.KindDir,
		"symlink": entry.KindSymlink,
		"other":   entry.KindOther,
	} {
		got, err := kindFlag(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got)
	}

	_, err := kindFlag("socket")
	assert.ErrorContains(t, err, "unknown --type")
}
