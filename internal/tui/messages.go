package tui

import (
	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
)

// viewChangedMsg reports that the session's view changed.
type viewChangedMsg struct {
	View browse.PageView
}

// characterLoadedMsg carries the outcome of a detail load.
type characterLoadedMsg struct {
	ID        int
	Character catalog.Character
	Err       error
}

// mode is the active screen.
type mode int

const (
	modeList mode = iota
	modeNameInput
	modeDetail
)
