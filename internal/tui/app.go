// Package tui is a terminal browser for the character catalog built on
// Bubbletea. It drives a browse.Session and renders its views.
package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Sternrassler/character-catalog/pkg/browse"
	"github.com/Sternrassler/character-catalog/pkg/catalog"
	"github.com/Sternrassler/character-catalog/pkg/filter"
)

// App is the browser model following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ctx        context.Context
	collection *browse.Collection
	session    *browse.Session
	controller *browse.Controller
	updates    chan browse.PageView

	state  filter.State
	view   browse.PageView
	cursor int
	mode   mode

	// detail view
	detailID  int
	detail    catalog.Character
	detailErr error
	detailOK  bool

	keys     *KeyMap
	styles   *Styles
	help     help.Model
	spinner  spinner.Model
	nameEdit textinput.Model

	width  int
	height int
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a browser over collection starting at state.
func NewApp(collection *browse.Collection, state filter.State) (*App, error) {
	if collection == nil {
		return nil, errors.New("creating app: collection is required")
	}

	session := browse.NewSession(collection)
	styles := DefaultStyles()

	input := textinput.New()
	input.Placeholder = "name contains…"
	input.Prompt = "name: "
	input.CharLimit = 64

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Subtitle

	a := &App{
		ctx:        context.Background(),
		collection: collection,
		session:    session,
		controller: browse.NewController(session),
		updates:    make(chan browse.PageView, 1),
		state:      filter.NormalizeState(state),
		keys:       DefaultKeyMap(),
		styles:     styles,
		help:       help.New(),
		spinner:    sp,
		nameEdit:   input,
	}
	session.OnChange(a.publish)
	return a, nil
}

// WithContext sets the context used for detail loads.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// State returns the filter state shown.
func (a *App) State() filter.State {
	return a.state
}

// Close detaches the app from the collection.
func (a *App) Close() {
	a.session.Close()
}

// publish forwards session changes into the Bubbletea loop. The channel holds
// at most one view; an undelivered older view is replaced by v.
func (a *App) publish(v browse.PageView) {
	for {
		select {
		case a.updates <- v:
			return
		default:
		}
		select {
		case <-a.updates:
		default:
		}
	}
}

func (a *App) waitForView() tea.Cmd {
	ch := a.updates
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return viewChangedMsg{View: v}
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	a.view = a.session.Show(a.state)
	return tea.Batch(
		tea.SetWindowTitle("character catalog"),
		a.waitForView(),
		a.spinner.Tick,
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case viewChangedMsg:
		a.view = a.session.Current()
		a.clampCursor()
		return a, a.waitForView()

	case characterLoadedMsg:
		if msg.ID != a.detailID {
			return a, nil
		}
		a.detailErr = msg.Err
		if msg.Err == nil {
			a.detail, a.detailOK = msg.Character, true
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.mode {
		case modeNameInput:
			return a.updateNameInput(msg)
		case modeDetail:
			return a.updateDetail(msg)
		default:
			return a.updateList(msg)
		}
	}
	return a, nil
}

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, a.keys.Down):
		if a.cursor < len(a.rows())-1 {
			a.cursor++
		}
	case key.Matches(msg, a.keys.Open):
		rows := a.rows()
		if a.cursor < len(rows) {
			return a, a.openDetail(rows[a.cursor].ID, false)
		}
	case key.Matches(msg, a.keys.Name):
		a.mode = modeNameInput
		a.nameEdit.SetValue(a.state.Name)
		a.nameEdit.CursorEnd()
		return a, a.nameEdit.Focus()
	case key.Matches(msg, a.keys.Status):
		a.show(a.controller.SetStatus(a.state, nextStatus(a.state.Status)))
	case key.Matches(msg, a.keys.Clear):
		a.show(a.controller.Clear(a.state))
	case key.Matches(msg, a.keys.Refresh):
		a.state = a.controller.Refresh(a.state)
		a.view = a.session.Current()
	case key.Matches(msg, a.keys.First):
		a.show(a.controller.FirstPage(a.state))
	case key.Matches(msg, a.keys.Prev):
		a.show(a.controller.PrevPage(a.state))
	case key.Matches(msg, a.keys.Next):
		a.show(a.controller.NextPage(a.state))
	case key.Matches(msg, a.keys.Last):
		a.show(a.controller.LastPage(a.state))
	}
	return a, nil
}

func (a *App) updateNameInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		a.mode = modeList
		a.nameEdit.Blur()
		a.show(a.controller.SetName(a.state, a.nameEdit.Value()))
		return a, nil
	case tea.KeyEsc:
		a.mode = modeList
		a.nameEdit.Blur()
		return a, nil
	}

	var cmd tea.Cmd
	a.nameEdit, cmd = a.nameEdit.Update(msg)
	return a, cmd
}

func (a *App) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(msg, a.keys.Back):
		a.mode = modeList
	case key.Matches(msg, a.keys.Refresh):
		return a, a.openDetail(a.detailID, true)
	}
	return a, nil
}

// show moves the session to state. The previous page stays visible as
// placeholder until the new one arrives.
func (a *App) show(state filter.State) {
	if state != a.state {
		a.cursor = 0
	}
	a.state = state
	a.view = a.session.Show(state)
}

func (a *App) openDetail(id int, refresh bool) tea.Cmd {
	if id != a.detailID {
		a.detail, a.detailOK = catalog.Character{}, false
	}
	a.mode = modeDetail
	a.detailID = id
	a.detailErr = nil

	if refresh {
		a.collection.InvalidateEntity(id)
	} else if snap := a.collection.PeekEntity(id); snap.HasData {
		a.detail, a.detailOK = snap.Data, true
	}

	ctx, coll := a.ctx, a.collection
	return func() tea.Msg {
		c, err := coll.LoadEntity(ctx, id)
		return characterLoadedMsg{ID: id, Character: c, Err: err}
	}
}

func (a *App) rows() []catalog.Character {
	if !a.view.HasData {
		return nil
	}
	return a.view.Data.Results
}

func (a *App) clampCursor() {
	if n := len(a.rows()); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}
}

// nextStatus cycles any → Alive → Dead → unknown → any.
func nextStatus(s filter.Status) filter.Status {
	all := filter.Statuses()
	if s == filter.StatusAny {
		return all[0]
	}
	for i, st := range all {
		if st == s && i+1 < len(all) {
			return all[i+1]
		}
	}
	return filter.StatusAny
}

// Run starts the browser on the terminal and blocks until it exits.
func Run(ctx context.Context, collection *browse.Collection, state filter.State) error {
	app, err := NewApp(collection, state)
	if err != nil {
		return err
	}
	defer app.Close()

	p := tea.NewProgram(app.WithContext(ctx), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
