package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var (
	// ErrMalformedRecord marks a persisted record that is not a JSON array of strings.
	ErrMalformedRecord = errors.New("malformed task record")
	// ErrPersistenceWrite wraps save and delete failures. Memory and views keep
	// the change when it is returned.
	ErrPersistenceWrite = errors.New("persist tasks")
)

// Task is a single to-do item. ID is assigned when the task enters memory and
// is never persisted.
type Task struct {
	ID   string
	Text string
}

// Persistence stores the serialized task list under one record.
type Persistence interface {
	// Load returns ok=false when no record exists.
	Load(ctx context.Context) (data []byte, ok bool, err error)
	Save(ctx context.Context, data []byte) error
	// Delete removes the record entirely.
	Delete(ctx context.Context) error
}

// View receives change notifications from a TaskStore. Implementations must
// render task text as literal content.
type View interface {
	AppendItem(t Task)
	RemoveItem(t Task)
	ClearItems()
	ShowEmpty(empty bool)
}

// TaskStore owns the ordered task list and keeps memory, storage and the
// subscribed views consistent. It is not safe for concurrent use; callers
// drive it from a single event loop.
type TaskStore struct {
	store  Persistence
	logger *log.Logger
	views  []View
	tasks  []Task
}

// NewTaskStore returns an empty store backed by p. A nil logger uses log.Default().
func NewTaskStore(p Persistence, logger *log.Logger) *TaskStore {
	if logger == nil {
		logger = log.Default()
	}
	return &TaskStore{store: p, logger: logger}
}

// Subscribe registers v for change notifications.
func (s *TaskStore) Subscribe(v View) {
	if v == nil {
		return
	}
	s.views = append(s.views, v)
}

// Restore replaces the in-memory list with the persisted one. A missing,
// unreadable or malformed record yields an empty list and is left in storage
// as it was.
func (s *TaskStore) Restore(ctx context.Context) int {
	texts, err := s.load(ctx)
	if err != nil {
		s.logger.Printf("warn: restore tasks: %v", err)
		texts = nil
	}
	s.tasks = make([]Task, 0, len(texts))
	for _, text := range texts {
		s.tasks = append(s.tasks, newTask(text))
	}
	for _, v := range s.views {
		v.ClearItems()
		for _, t := range s.tasks {
			v.AppendItem(t)
		}
	}
	s.updateEmptyIndicator()
	s.logger.Printf("restored %d tasks", len(s.tasks))
	return len(s.tasks)
}

func (s *TaskStore) load(ctx context.Context) ([]string, error) {
	data, ok, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return texts, nil
}

// Add appends the trimmed text as a new task. Empty or whitespace-only text is
// ignored and reported with ok=false. A returned error means the task was
// added but could not be persisted.
func (s *TaskStore) Add(ctx context.Context, text string) (Task, bool, error) {
	text = normalizeText(text)
	if text == "" {
		return Task{}, false, nil
	}
	t := newTask(text)
	s.tasks = append(s.tasks, t)
	for _, v := range s.views {
		v.AppendItem(t)
	}
	s.updateEmptyIndicator()
	return t, true, s.persist(ctx)
}

// Remove deletes the task with the given id. Unknown ids leave everything
// untouched and report ok=false.
func (s *TaskStore) Remove(ctx context.Context, id string) (Task, bool, error) {
	idx := s.indexOf(id)
	if idx < 0 {
		return Task{}, false, nil
	}
	t := s.tasks[idx]
	s.tasks = append(s.tasks[:idx], s.tasks[idx+1:]...)
	for _, v := range s.views {
		v.RemoveItem(t)
	}
	s.updateEmptyIndicator()
	return t, true, s.persist(ctx)
}

// Clear empties the list and deletes the persisted record. Memory and views
// are always cleared, even when the delete fails.
func (s *TaskStore) Clear(ctx context.Context) error {
	s.tasks = nil
	for _, v := range s.views {
		v.ClearItems()
	}
	s.updateEmptyIndicator()
	if err := s.store.Delete(ctx); err != nil {
		err = fmt.Errorf("%w: delete record: %v", ErrPersistenceWrite, err)
		s.logger.Printf("error: %v", err)
		return err
	}
	s.logger.Printf("all tasks cleared")
	return nil
}

// Export returns an indented JSON snapshot of the task texts.
func (s *TaskStore) Export() (string, error) {
	data, err := json.MarshalIndent(s.Texts(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("export tasks: %w", err)
	}
	return string(data), nil
}

// Tasks returns a copy of the tasks in order.
func (s *TaskStore) Tasks() []Task {
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Texts returns the task texts in order, as they are persisted.
func (s *TaskStore) Texts() []string {
	out := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Text
	}
	return out
}

// Len reports the number of tasks.
func (s *TaskStore) Len() int { return len(s.tasks) }

// Empty reports whether the list has no tasks.
func (s *TaskStore) Empty() bool { return len(s.tasks) == 0 }

func (s *TaskStore) persist(ctx context.Context) error {
	data, err := json.Marshal(s.Texts())
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrPersistenceWrite, err)
	}
	if err := s.store.Save(ctx, data); err != nil {
		err = fmt.Errorf("%w: %v", ErrPersistenceWrite, err)
		s.logger.Printf("error: %v", err)
		return err
	}
	return nil
}

func (s *TaskStore) updateEmptyIndicator() {
	empty := len(s.tasks) == 0
	for _, v := range s.views {
		v.ShowEmpty(empty)
	}
}

func (s *TaskStore) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// normalizeText trims whitespace and byte order marks and replaces invalid
// UTF-8, so memory holds exactly what the JSON record will hold.
func normalizeText(text string) string {
	text = strings.ToValidUTF8(text, "\uFFFD")
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\uFEFF'
	})
}

func newTask(text string) Task {
	return Task{ID: uuid.NewString(), Text: text}
}
