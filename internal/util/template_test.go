package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_FastPath(t *testing.T) {
	out, err := RenderTemplate("plain <text> & more", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain <text> & more", out)
}

func TestRenderTemplate_Funcs(t *testing.T) {
	out, err := RenderTemplate(`{{upper .Name}} talks to {{join ", " .Roster}} ({{default "n/a" .Empty}})`, map[string]any{
		"Name":   "alice",
		"Roster": []any{"bob", "carol"},
		"Empty":  "",
	})
	require.NoError(t, err)
	assert.Equal(t, "ALICE talks to bob, carol (n/a)", out)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{.Name", nil)
	assert.Error(t, err)
}
