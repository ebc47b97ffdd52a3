package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStyles_Status(t *testing.T) {
	s := DefaultStyles()
	theme := s.Theme()

	assert.Equal(t, theme.Success, s.Status("Alive").GetForeground())
	assert.Equal(t, theme.Error, s.Status("Dead").GetForeground())
	assert.Equal(t, theme.Muted, s.Status("unknown").GetForeground())
	assert.Equal(t, theme.Muted, s.Status("").GetForeground())
}

func TestNewStyles_NilTheme(t *testing.T) {
	s := NewStyles(nil)
	assert.NotNil(t, s.Theme())
}

func TestCell(t *testing.T) {
	assert.Equal(t, "abc  ", cell("abc", 5))
	assert.Equal(t, "abc… ", cell("abcdefgh", 5))
	assert.Len(t, []rune(cell("Mr. Poopybutthole", 10)), 10)
}

func TestKeyMap_Help(t *testing.T) {
	k := DefaultKeyMap()
	assert.NotEmpty(t, k.ShortHelp())
	assert.Len(t, k.FullHelp(), 4)
}
