package service_test

import (
	"bytes"
	"context"
	"errors"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/jasktasks/internal/database"
	"github.com/jask/jasktasks/internal/database/repository"
	"github.com/jask/jasktasks/internal/service"
	"github.com/jask/jasktasks/internal/testutil"
)

func newStore(t *testing.T, rec service.Persistence) (*service.TaskStore, *testutil.RecordingView, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	s := service.NewTaskStore(rec, log.New(&buf, "", 0))
	view := &testutil.RecordingView{}
	s.Subscribe(view)
	return s, view, &buf
}

func TestAddAppendsAndPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)
	require.True(t, view.Empty)

	for _, text := range []string{"buy milk", "  call mom  ", "buy milk"} {
		_, ok, err := s.Add(ctx, text)
		require.NoError(t, err)
		require.True(t, ok)
	}

	want := []string{"buy milk", "call mom", "buy milk"}
	require.Equal(t, want, s.Texts())
	require.Equal(t, want, view.Texts())
	require.False(t, view.Empty)

	raw, ok := rec.Raw()
	require.True(t, ok)
	require.JSONEq(t, `["buy milk","call mom","buy milk"]`, raw)
	require.Equal(t, 3, rec.Saves)

	tasks := s.Tasks()
	require.NotEqual(t, tasks[0].ID, tasks[2].ID, "duplicate texts still get distinct ids")
}

func TestAddIgnoresBlankText(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := testutil.NewMemoryRecord(`["keep"]`)
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)
	events := len(view.Events)

	for _, text := range []string{"", "   ", "\t\n"} {
		task, ok, err := s.Add(ctx, text)
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, task.ID)
	}

	require.Equal(t, 1, s.Len())
	require.Equal(t, 0, rec.Saves)
	require.Len(t, view.Events, events)
	raw, _ := rec.Raw()
	require.Equal(t, `["keep"]`, raw)
}

func TestAddNormalizesText(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, _, _ := newStore(t, rec)
	s.Restore(ctx)

	task, ok, err := s.Add(ctx, "caf\xe9")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "caf\uFFFD", task.Text)

	task, ok, err = s.Add(ctx, "\uFEFF  read book \uFEFF")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "read book", task.Text)

	_, ok, err = s.Add(ctx, "\uFEFF")
	require.NoError(t, err)
	require.False(t, ok, "a lone byte order mark is blank")

	reloaded, _, _ := newStore(t, rec)
	reloaded.Restore(ctx)
	require.Equal(t, s.Texts(), reloaded.Texts())
}

func TestRestoreAfterPreviousSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	first, _, _ := newStore(t, rec)
	first.Restore(ctx)
	_, _, err := first.Add(ctx, "A")
	require.NoError(t, err)
	_, _, err = first.Add(ctx, "B")
	require.NoError(t, err)

	second, view, _ := newStore(t, rec)
	n := second.Restore(ctx)
	require.Equal(t, 2, n)
	require.Equal(t, []string{"A", "B"}, second.Texts())
	require.Equal(t, []string{"A", "B"}, view.Texts())
	require.Equal(t, []string{"clear", "append:A", "append:B"}, view.Events)
	require.False(t, view.Empty)
}

func TestRestoreMalformedRecordFailsOpen(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":      "not json",
		"object":        `{"tasks":["a"]}`,
		"numbers":       `[1,2]`,
		"truncated":     `["a",`,
		"mixed entries": `["a",null,3]`,
	}
	for name, raw := range cases {
		raw := raw
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			rec := testutil.NewMemoryRecord(raw)
			s, view, logs := newStore(t, rec)

			require.NotPanics(t, func() { s.Restore(ctx) })
			require.Zero(t, s.Len())
			require.True(t, view.Empty)
			require.Contains(t, logs.String(), service.ErrMalformedRecord.Error())

			stored, ok := rec.Raw()
			require.True(t, ok)
			require.Equal(t, raw, stored)
			require.Zero(t, rec.Saves)
			require.Zero(t, rec.Deletes)

			// a second restore sees the same record again
			s.Restore(ctx)
			stored, _ = rec.Raw()
			require.Equal(t, raw, stored)
		})
	}
}

func TestRestoreNullAndMissingRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, view, _ := newStore(t, testutil.NewMemoryRecord("null"))
	require.Zero(t, s.Restore(ctx))
	require.True(t, view.Empty)

	s, view, logs := newStore(t, &testutil.MemoryRecord{})
	require.Zero(t, s.Restore(ctx))
	require.True(t, view.Empty)
	require.NotContains(t, logs.String(), "warn")
}

func TestRestoreLoadErrorFailsOpen(t *testing.T) {
	t.Parallel()

	rec := testutil.NewMemoryRecord(`["a"]`)
	rec.LoadErr = errors.New("disk gone")
	s, view, logs := newStore(t, rec)

	require.Zero(t, s.Restore(context.Background()))
	require.True(t, view.Empty)
	require.Contains(t, logs.String(), "disk gone")
}

func TestRemoveOnlyTaskShowsEmptyIndicator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)

	task, ok, err := s.Add(ctx, "only")
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, view.Empty)

	removed, ok, err := s.Remove(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, task, removed)
	require.True(t, view.Empty)
	require.True(t, s.Empty())
	require.Empty(t, view.Items)

	raw, present := rec.Raw()
	require.True(t, present)
	require.JSONEq(t, `[]`, raw)
}

func TestRemoveTargetsExactDuplicate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)

	first, _, _ := s.Add(ctx, "dup")
	_, _, _ = s.Add(ctx, "middle")
	second, _, _ := s.Add(ctx, "dup")

	_, ok, err := s.Remove(ctx, second.ID)
	require.NoError(t, err)
	require.True(t, ok)

	tasks := s.Tasks()
	require.Len(t, tasks, 2)
	require.Equal(t, first.ID, tasks[0].ID, "the first duplicate survives")
	require.Equal(t, []string{"dup", "middle"}, view.Texts())
	raw, _ := rec.Raw()
	require.JSONEq(t, `["dup","middle"]`, raw)
}

func TestRemoveUnknownIDIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)
	_, _, _ = s.Add(ctx, "a")
	saves, events := rec.Saves, len(view.Events)

	_, ok, err := s.Remove(ctx, "no-such-id")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, []string{"a"}, s.Texts())
	require.Equal(t, saves, rec.Saves)
	require.Len(t, view.Events, events)
}

func TestClearDeletesRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)
	for _, text := range []string{"a", "b", "c"} {
		_, _, err := s.Add(ctx, text)
		require.NoError(t, err)
	}

	require.NoError(t, s.Clear(ctx))
	require.Zero(t, s.Len())
	require.Empty(t, view.Items)
	require.True(t, view.Empty)
	_, present := rec.Raw()
	require.False(t, present, "record key must be absent, not an empty array")
	require.Equal(t, 1, rec.Deletes)
}

func TestWriteFailureKeepsMemoryAndView(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, logs := newStore(t, rec)
	s.Restore(ctx)
	rec.SaveErr = errors.New("quota exceeded")

	task, ok, err := s.Add(ctx, "unsaved")
	require.True(t, ok)
	require.ErrorIs(t, err, service.ErrPersistenceWrite)
	require.Equal(t, []string{"unsaved"}, s.Texts())
	require.Equal(t, []string{"unsaved"}, view.Texts())
	require.Contains(t, logs.String(), "quota exceeded")
	_, present := rec.Raw()
	require.False(t, present)

	_, ok, err = s.Remove(ctx, task.ID)
	require.True(t, ok)
	require.ErrorIs(t, err, service.ErrPersistenceWrite)
	require.True(t, view.Empty)

	rec.DeleteErr = errors.New("locked")
	_, _, _ = s.Add(ctx, "x")
	err = s.Clear(ctx)
	require.ErrorIs(t, err, service.ErrPersistenceWrite)
	require.Zero(t, s.Len())
	require.True(t, view.Empty)
}

func TestExportIsReadOnly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rec := &testutil.MemoryRecord{}
	s, view, _ := newStore(t, rec)
	s.Restore(ctx)

	out, err := s.Export()
	require.NoError(t, err)
	require.Equal(t, "[]", out)

	_, _, _ = s.Add(ctx, "a")
	_, _, _ = s.Add(ctx, `quote " and <b>`)
	saves, events := rec.Saves, len(view.Events)
	before, _ := rec.Raw()

	for i := 0; i < 2; i++ {
		out, err = s.Export()
		require.NoError(t, err)
		require.Equal(t, "[\n  \"a\",\n  \"quote \\\" and \\u003cb\\u003e\"\n]", out)
	}
	require.Equal(t, []string{"a", `quote " and <b>`}, s.Texts())
	require.Equal(t, saves, rec.Saves)
	require.Len(t, view.Events, events)
	after, _ := rec.Raw()
	require.Equal(t, before, after)
}

func TestRoundTripThroughSqliteRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := database.OpenMigrated(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	rec := repository.NewRecordRepo(db).Record("tasks")

	s, _, _ := newStore(t, rec)
	s.Restore(ctx)
	ids := map[string]string{}
	for _, text := range []string{"one", "two", "three", "two", "four"} {
		task, _, err := s.Add(ctx, text)
		require.NoError(t, err)
		ids[text] = task.ID
	}
	_, _, err = s.Remove(ctx, ids["three"])
	require.NoError(t, err)
	_, _, err = s.Remove(ctx, ids["one"])
	require.NoError(t, err)
	want := s.Texts()

	reloaded, view, _ := newStore(t, rec)
	reloaded.Restore(ctx)
	require.Equal(t, want, reloaded.Texts())
	require.Equal(t, want, view.Texts())

	require.NoError(t, reloaded.Clear(ctx))
	_, ok, err := rec.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIndependentStores(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a, _, _ := newStore(t, &testutil.MemoryRecord{})
	b, _, _ := newStore(t, &testutil.MemoryRecord{})
	_, _, _ = a.Add(ctx, "only in a")
	require.Equal(t, 1, a.Len())
	require.Zero(t, b.Len())
}
