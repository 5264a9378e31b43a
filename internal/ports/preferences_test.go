package ports

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences()
	assert.Equal(t, []string{"CNSHA"}, p.For("cn", "pol"))
	assert.Empty(t, p.For("CN", SidePOD))
	assert.Empty(t, p.For("IN", SidePOL))
}

func TestParsePreferences(t *testing.T) {
	p, err := ParsePreferences([]byte(`
cn:
  pol: [cnsha, " CNNGB "]
ES:
  POD: [ESVLC]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"CNSHA", "CNNGB"}, p.For("CN", SidePOL))
	assert.Equal(t, []string{"ESVLC"}, p.For("es", SidePOD))
}

func TestParsePreferences_Invalid(t *testing.T) {
	_, err := ParsePreferences([]byte(`CN: {POX: [CNSHA]}`))
	assert.ErrorContains(t, err, "unknown side")

	_, err = ParsePreferences([]byte(`CN: [`))
	assert.ErrorContains(t, err, "parse preferences")
}

func TestLoadPreferences(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ports.yaml")
	require.NoError(t, os.WriteFile(path, []byte("IN: {POL: [INNSA]}\n"), 0o600))

	p, err := LoadPreferences(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"INNSA"}, p.For("IN", SidePOL))

	_, err = LoadPreferences(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read preferences")
}

func TestPreferences_Merge(t *testing.T) {
	base := Preferences{"CN": {SidePOL: {"CNSHA"}}, "IN": {SidePOD: {"INMAA"}}}
	over := Preferences{"cn": {"pol": {"CNNGB"}}, "ES": {SidePOD: {"ESVLC"}}}

	p := base.Merge(over)
	assert.Equal(t, []string{"CNNGB"}, p.For("CN", SidePOL))
	assert.Equal(t, []string{"INMAA"}, p.For("IN", SidePOD))
	assert.Equal(t, []string{"ESVLC"}, p.For("ES", SidePOD))
	assert.Equal(t, []string{"CNSHA"}, base.For("CN", SidePOL), "merge leaves the receiver untouched")
}
