package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/charmbracelet/x/ansi"

	"github.com/jask/jasktasks/internal/service"
)

// taskItem adapts a task to bubbles/list.
type taskItem struct {
	task service.Task
}

func (i taskItem) Title() string       { return displayText(i.task.Text) }
func (i taskItem) Description() string { return "" }
func (i taskItem) FilterValue() string { return i.task.Text }

// displayText renders task text as literal terminal content: escape
// sequences are stripped, control characters cannot move the cursor and
// format characters cannot reorder the row.
func displayText(s string) string {
	s = ansi.Strip(s)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		}
		return r
	}, s)
}

// similarTask returns the text of an existing task within maxDist edits of
// t, ignoring case. maxDist <= 0 disables the check. Texts no longer than
// maxDist only match exactly.
func similarTask(existing []service.Task, t service.Task, maxDist int) (string, bool) {
	if maxDist <= 0 {
		return "", false
	}
	needle := strings.ToLower(t.Text)
	short := utf8.RuneCountInString(needle) <= maxDist
	best, bestDist := "", maxDist+1
	for _, other := range existing {
		if other.ID == t.ID {
			continue
		}
		d := levenshtein.ComputeDistance(needle, strings.ToLower(other.Text))
		if short && d > 0 {
			continue
		}
		if d < bestDist {
			best, bestDist = other.Text, d
		}
	}
	return best, bestDist <= maxDist
}
