package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/jasktasks/internal/config"
	"github.com/jask/jasktasks/internal/service"
)

// App is the task list screen. It renders the store through the
// service.View notifications and calls the store only from Update.
type App struct {
	ctx      context.Context
	cfg      config.Config
	store    *service.TaskStore
	keys     keyMap
	input    textinput.Model
	list     list.Model
	focus    focusArea
	modal    modalState
	empty    bool
	restored bool // keys are dropped until the first restore
	status   string
	level    statusLevel
}

type focusArea string

const (
	focusInput focusArea = "input"
	focusList  focusArea = "list"
)

type modalState string

const (
	modalNone         modalState = ""
	modalConfirmClear modalState = "confirmClear"
)

type statusLevel int

const (
	levelInfo statusLevel = iota
	levelWarn
	levelError
)

func New(ctx context.Context, cfg config.Config, store *service.TaskStore) *App {
	inp := textinput.New()
	inp.Placeholder = "What needs doing?"
	inp.Prompt = "> "
	inp.CharLimit = 500
	inp.Width = 56
	inp.Focus()

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	lst := list.New(nil, delegate, 60, 12)
	lst.SetShowTitle(false)
	lst.SetShowStatusBar(false)
	lst.SetShowHelp(false)
	lst.SetFilteringEnabled(false)
	lst.DisableQuitKeybindings()

	a := &App{
		ctx:   ctx,
		cfg:   cfg,
		store: store,
		keys:  defaultKeys(),
		input: inp,
		list:  lst,
		focus: focusInput,
		empty: true,
	}
	store.Subscribe(a)
	return a
}

func (a *App) Init() tea.Cmd {
	return func() tea.Msg { return restoreMsg{} }
}

// service.View

func (a *App) AppendItem(t service.Task) {
	a.list.InsertItem(len(a.list.Items()), taskItem{task: t})
}

func (a *App) RemoveItem(t service.Task) {
	for i, it := range a.list.Items() {
		if ti, ok := it.(taskItem); ok && ti.task.ID == t.ID {
			a.list.RemoveItem(i)
			break
		}
	}
	if n := len(a.list.Items()); n > 0 && a.list.Index() >= n {
		a.list.Select(n - 1)
	}
}

func (a *App) ClearItems() {
	a.list.SetItems(nil)
	a.list.ResetSelected()
}

func (a *App) ShowEmpty(empty bool) {
	a.empty = empty
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case restoreMsg:
		n := a.store.Restore(a.ctx)
		a.restored = true
		a.setStatus(levelInfo, fmt.Sprintf("loaded %d tasks", n))
	case tea.WindowSizeMsg:
		a.input.Width = max(10, m.Width-8)
		a.list.SetSize(m.Width, max(4, m.Height-10))
	case statusMsg:
		a.setStatus(levelInfo, string(m))
	case errMsg:
		a.setStatus(levelError, "error: "+m.Error())
	case tea.KeyMsg:
		if key.Matches(m, a.keys.ForceQuit) {
			return a, tea.Quit
		}
		if !a.restored {
			a.setStatus(levelInfo, "loading tasks...")
			return a, nil
		}
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		if a.focus == focusInput {
			return a.handleInputKey(m)
		}
		return a.handleListKey(m)
	}
	return a, nil
}

func (a *App) handleInputKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Submit):
		a.submit()
		return a, nil
	case key.Matches(m, a.keys.Focus), key.Matches(m, a.keys.Blur):
		a.setFocus(focusList)
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(m)
	return a, cmd
}

func (a *App) handleListKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(m, a.keys.Quit):
		return a, tea.Quit
	case key.Matches(m, a.keys.Focus):
		a.setFocus(focusInput)
		return a, nil
	case key.Matches(m, a.keys.Remove):
		a.removeSelected()
		return a, nil
	case key.Matches(m, a.keys.Clear):
		if a.store.Empty() {
			a.setStatus(levelInfo, "nothing to clear")
			return a, nil
		}
		a.modal = modalConfirmClear
		return a, nil
	case key.Matches(m, a.keys.Export):
		return a, a.exportCmd()
	}
	var cmd tea.Cmd
	a.list, cmd = a.list.Update(m)
	return a, cmd
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalConfirmClear:
		switch {
		case key.Matches(m, a.keys.Confirm):
			a.modal = modalNone
			if err := a.store.Clear(a.ctx); err != nil {
				a.setStatus(levelWarn, "cleared, but not saved: "+err.Error())
				return a, nil
			}
			a.setStatus(levelInfo, "cleared")
		case key.Matches(m, a.keys.Cancel):
			a.modal = modalNone
		}
	}
	return a, nil
}

func (a *App) submit() {
	t, ok, err := a.store.Add(a.ctx, a.input.Value())
	if !ok {
		a.setStatus(levelInfo, "enter a task")
		return
	}
	a.input.Reset()
	a.list.Select(len(a.list.Items()) - 1)
	switch {
	case errors.Is(err, service.ErrPersistenceWrite):
		a.setStatus(levelWarn, "added, but not saved: "+err.Error())
	case err != nil:
		a.setStatus(levelError, "error: "+err.Error())
	default:
		if similar, found := similarTask(a.store.Tasks(), t, a.cfg.UI.SimilarityDistance); found {
			a.setStatus(levelWarn, fmt.Sprintf("added (looks like %q)", displayText(similar)))
			return
		}
		a.setStatus(levelInfo, "added")
	}
}

func (a *App) removeSelected() {
	it, ok := a.list.SelectedItem().(taskItem)
	if !ok {
		a.setStatus(levelInfo, "no task selected")
		return
	}
	_, removed, err := a.store.Remove(a.ctx, it.task.ID)
	switch {
	case !removed:
		a.setStatus(levelWarn, "task already gone")
	case err != nil:
		a.setStatus(levelWarn, "removed, but not saved: "+err.Error())
	default:
		a.setStatus(levelInfo, "removed")
	}
}

func (a *App) exportCmd() tea.Cmd {
	snapshot, err := a.store.Export()
	if err != nil {
		return func() tea.Msg { return errMsg{err} }
	}
	path := a.cfg.UI.ExportPath
	return func() tea.Msg {
		if err := os.WriteFile(path, []byte(snapshot+"\n"), 0o644); err != nil {
			return errMsg{fmt.Errorf("write export: %w", err)}
		}
		return statusMsg("exported to " + path)
	}
}

func (a *App) setFocus(f focusArea) {
	a.focus = f
	if f == focusInput {
		a.input.Focus()
		return
	}
	a.input.Blur()
}

func (a *App) setStatus(level statusLevel, s string) {
	a.level = level
	a.status = s
}

func (a *App) View() string {
	var b strings.Builder
	title := a.cfg.UI.Title
	if title == "" {
		title = "Tasks"
	}
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (%d)", title, a.store.Len())))
	b.WriteString("\n")

	box := inputStyle
	if a.focus == focusInput {
		box = focusStyle
	}
	b.WriteString(box.Render(a.input.View()))
	b.WriteString("\n")

	if a.empty {
		b.WriteString(emptyStyle.Render("No tasks yet. Type one above and press enter."))
	} else {
		b.WriteString(a.list.View())
	}
	b.WriteString("\n")

	if a.modal == modalConfirmClear {
		b.WriteString(modalStyle.Render(fmt.Sprintf("Clear all %d tasks?\n%s", a.store.Len(), helpLine(a.keys.Confirm, a.keys.Cancel))))
		b.WriteString("\n")
	}

	if a.focus == focusInput {
		b.WriteString(helpLine(a.keys.Submit, a.keys.Focus))
	} else {
		b.WriteString(helpLine(a.keys.Remove, a.keys.Clear, a.keys.Export, a.keys.Focus, a.keys.Quit))
	}
	if a.status != "" {
		b.WriteString("\n")
		switch a.level {
		case levelWarn:
			b.WriteString(warnStyle.Render(a.status))
		case levelError:
			b.WriteString(errorStyle.Render(a.status))
		default:
			b.WriteString(statusStyle.Render(a.status))
		}
	}
	return b.String()
}

// messages
type restoreMsg struct{}

type statusMsg string

type errMsg struct{ error }
