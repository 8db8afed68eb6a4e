package persona

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/agentcouncil/types"
)

func TestParse(t *testing.T) {
	ps, err := Parse([]byte(`
personas:
  - id: "a"
    name: Orbit
    category: Researcher
    specialty: orbital mechanics
  - id: "b"
    name: Quill
    category: writer
    specialty: copy
    avatar_url: https://example.com/q.svg
`))
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, types.CategoryResearcher, ps[0].Category)
	assert.Contains(t, ps[0].AvatarURL, "seed=Orbit")
	assert.Equal(t, "https://example.com/q.svg", ps[1].AvatarURL)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", "personas: []"},
		{"bad yaml", "personas: [oops"},
		{"missing name", "personas:\n  - id: x\n    category: coder\n"},
		{"unknown category", "personas:\n  - id: x\n    name: X\n    category: pilot\n"},
		{"duplicate", "personas:\n  - id: x\n    name: X\n    category: coder\n  - id: y\n    name: x\n    category: writer\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidPersona)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("personas:\n  - id: \"9\"\n    name: Echo\n    category: news\n"), 0o644))

	ps, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "Echo", ps[0].Name)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
