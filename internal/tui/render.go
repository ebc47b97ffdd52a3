package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Sternrassler/character-catalog/pkg/catalog"
)

// column widths of the list
const (
	colID       = 5
	colName     = 28
	colStatus   = 9
	colSpecies  = 12
	colLocation = 28
)

// View implements tea.Model.
func (a *App) View() string {
	if a.mode == modeDetail {
		return a.renderDetail()
	}

	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	if a.mode == modeNameInput {
		b.WriteString(a.styles.Input.Render(a.nameEdit.View()))
		b.WriteString("\n")
	}
	b.WriteString(a.renderStatusLine())
	b.WriteString("\n\n")
	b.WriteString(a.renderTable())
	b.WriteString("\n")
	b.WriteString(a.renderPager())
	b.WriteString("\n\n")
	b.WriteString(a.help.View(a.keys))
	return b.String()
}

func (a *App) renderHeader() string {
	title := a.styles.Title.Render("Characters")

	parts := []string{}
	if a.state.HasName() {
		parts = append(parts, "name: "+a.styles.Normal.Render(a.state.Name))
	}
	if a.state.HasStatus() {
		parts = append(parts, "status: "+a.styles.Status(string(a.state.Status)).Render(string(a.state.Status)))
	}
	if len(parts) == 0 {
		parts = append(parts, a.styles.Muted.Render("no filters"))
	}
	return title + "  " + strings.Join(parts, "  ")
}

func (a *App) renderStatusLine() string {
	v := a.view
	switch {
	case v.IsError:
		msg := "failed to load"
		if v.Err != nil {
			msg = v.Err.Error()
		}
		if v.HasData {
			return a.styles.Error.Render("refresh failed: "+msg) + a.styles.Muted.Render("  (showing last result, r to retry)")
		}
		return a.styles.Error.Render("error: "+msg) + a.styles.Muted.Render("  (r to retry)")
	case v.IsLoading && v.Placeholder:
		return a.spinner.View() + a.styles.Muted.Render(" loading… showing previous results")
	case v.IsLoading:
		return a.spinner.View() + a.styles.Muted.Render(" loading…")
	case v.IsFetching:
		return a.spinner.View() + a.styles.Muted.Render(" refreshing…")
	case v.HasData:
		return a.styles.Muted.Render(fmt.Sprintf("%d characters", v.Data.Info.Count))
	default:
		return ""
	}
}

func (a *App) renderTable() string {
	rows := a.rows()
	if !a.view.HasData {
		return ""
	}
	if len(rows) == 0 {
		return a.styles.Muted.Render("No characters match these filters.")
	}

	header := a.styles.Header.Render(
		cell("ID", colID) + cell("Name", colName) + cell("Status", colStatus) +
			cell("Species", colSpecies) + cell("Location", colLocation))

	lines := []string{header}
	for i, c := range rows {
		id := cell(strconv.Itoa(c.ID), colID) + cell(c.Name, colName)
		status := cell(c.Status, colStatus)
		rest := cell(c.Species, colSpecies) + cell(c.Location.Name, colLocation)

		var line string
		switch {
		case i == a.cursor && !a.view.Placeholder:
			line = a.styles.Selected.Render(id + status + rest)
		case a.view.Placeholder:
			line = a.styles.Muted.Render(id + status + rest)
		default:
			line = id + a.styles.Status(c.Status).Render(status) + rest
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderPager() string {
	page := a.state.Page
	bound, known := a.controller.PageBound()

	total := "?"
	if known {
		total = strconv.Itoa(bound)
	}

	canPrev := page > 1
	canNext := !known || page < bound
	link := func(label string, enabled bool) string {
		if enabled {
			return a.styles.Normal.Render(label)
		}
		return a.styles.Muted.Render(label)
	}

	return strings.Join([]string{
		link("« first", canPrev),
		link("‹ prev", canPrev),
		a.styles.Subtitle.Render(fmt.Sprintf("page %d of %s", page, total)),
		link("next ›", canNext),
		link("last »", known && page < bound),
	}, "  ")
}

func (a *App) renderDetail() string {
	if !a.detailOK {
		if a.detailErr != nil {
			msg := a.detailErr.Error()
			if catalog.IsNotFound(a.detailErr) {
				msg = fmt.Sprintf("character %d not found", a.detailID)
			}
			return a.styles.Panel.Render(a.styles.Error.Render(msg)) + "\n" + a.styles.Muted.Render("esc back")
		}
		return a.styles.Panel.Render(a.spinner.View()+" loading character…") + "\n" + a.styles.Muted.Render("esc back")
	}

	c := a.detail
	field := func(label, value string) string {
		if value == "" {
			value = "-"
		}
		return a.styles.Label.Render(label) + value
	}

	lines := []string{
		a.styles.Title.Render(c.Name) + a.styles.Muted.Render(fmt.Sprintf("  #%d", c.ID)),
		"",
		a.styles.Label.Render("Status") + a.styles.Status(c.Status).Render(c.Status),
		field("Species", c.Species),
		field("Type", c.Type),
		field("Gender", c.Gender),
		field("Origin", c.Origin.Name),
		field("Location", c.Location.Name),
		field("Episodes", strconv.Itoa(len(c.Episode))),
		field("Image", c.Image),
	}
	if !c.Created.IsZero() {
		lines = append(lines, field("Created", c.Created.Format("2006-01-02")))
	}
	if a.detailErr != nil {
		lines = append(lines, "", a.styles.Error.Render("refresh failed: "+a.detailErr.Error()))
	}

	return a.styles.Panel.Render(lipgloss.JoinVertical(lipgloss.Left, lines...)) + "\n" +
		a.styles.Muted.Render("esc back • r refresh • q quit")
}

// cell pads or truncates s to width.
func cell(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		if width > 1 {
			return string(r[:width-2]) + "… "
		}
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
