// Package testutil provides in-memory fakes for the task store collaborators.
package testutil

import (
	"context"
	"sync"

	"github.com/jask/jasktasks/internal/service"
)

// MemoryRecord is an in-memory service.Persistence.
// Set SaveErr or DeleteErr to simulate storage failures.
type MemoryRecord struct {
	mu        sync.Mutex
	data      []byte
	present   bool
	Saves     int
	Deletes   int
	LoadErr   error
	SaveErr   error
	DeleteErr error
}

// NewMemoryRecord returns a record that already holds data.
func NewMemoryRecord(data string) *MemoryRecord {
	return &MemoryRecord{data: []byte(data), present: true}
}

func (m *MemoryRecord) Load(ctx context.Context) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, false, m.LoadErr
	}
	if !m.present {
		return nil, false, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, true, nil
}

func (m *MemoryRecord) Save(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Saves++
	m.data = append([]byte(nil), data...)
	m.present = true
	return nil
}

func (m *MemoryRecord) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.Deletes++
	m.data = nil
	m.present = false
	return nil
}

// Raw returns the stored bytes and whether the record exists.
func (m *MemoryRecord) Raw() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.data), m.present
}

// RecordingView is a service.View that mirrors the notifications it receives.
type RecordingView struct {
	Items  []service.Task
	Empty  bool
	Events []string
}

func (v *RecordingView) AppendItem(t service.Task) {
	v.Items = append(v.Items, t)
	v.Events = append(v.Events, "append:"+t.Text)
}

func (v *RecordingView) RemoveItem(t service.Task) {
	for i, it := range v.Items {
		if it.ID == t.ID {
			v.Items = append(v.Items[:i], v.Items[i+1:]...)
			break
		}
	}
	v.Events = append(v.Events, "remove:"+t.Text)
}

func (v *RecordingView) ClearItems() {
	v.Items = nil
	v.Events = append(v.Events, "clear")
}

func (v *RecordingView) ShowEmpty(empty bool) {
	v.Empty = empty
}

// Texts returns the text of every rendered item in order.
func (v *RecordingView) Texts() []string {
	out := make([]string, 0, len(v.Items))
	for _, it := range v.Items {
		out = append(out, it.Text)
	}
	return out
}
