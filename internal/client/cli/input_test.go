package cli

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSimpleText(t *testing.T) {
	var w bytes.Buffer
	got, err := GetSimpleText(bufio.NewReader(strings.NewReader("  hello \n")), "Name", &w)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, "Name\n> ", w.String())

	got, err = GetSimpleText(bufio.NewReader(strings.NewReader("partial")), "Name", &w)
	require.NoError(t, err)
	assert.Equal(t, "partial", got)

	_, err = GetSimpleText(bufio.NewReader(strings.NewReader("")), "Name", &w)
	assert.Error(t, err)
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "\n": false, "maybe\n": false}
	for in, want := range tests {
		got, err := Confirm(bufio.NewReader(strings.NewReader(in)), "Sure?", &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestInteractive_UsesSeam(t *testing.T) {
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })

	isTerminal = func(int) bool { return true }
	assert.True(t, interactive())
	isTerminal = func(int) bool { return false }
	assert.False(t, interactive())
}
