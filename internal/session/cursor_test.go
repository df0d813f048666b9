package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCursorClampsNavigation(t *testing.T) {
	def := testDefinition()
	c := NewCursor(def)

	require.Equal(t, 0, c.Index())
	c.Previous()
	require.Equal(t, 0, c.Index(), "previous clamps at first question")

	c.GoTo(99)
	require.Equal(t, 2, c.Index(), "goto clamps at last question")

	c.Next()
	require.Equal(t, 2, c.Index(), "next clamps at last question")

	c.GoTo(-5)
	require.Equal(t, 0, c.Index())

	c.Next()
	require.Equal(t, 1, c.Index())
	require.Equal(t, def.Questions[1].ID, c.Current().ID)
}

func TestCursorFlags(t *testing.T) {
	def := testDefinition()
	c := NewCursor(def)
	q1 := def.Questions[0].ID.String()
	q3 := def.Questions[2].ID.String()

	c.ToggleFlag(q3)
	c.ToggleFlag(q1)
	require.Equal(t, []string{q1, q3}, c.Flagged(), "flags listed in question order")

	c.ToggleFlag(q1)
	require.Equal(t, []string{q3}, c.Flagged())

	c.ToggleFlag(q3)
	require.Empty(t, c.Flagged())
}
