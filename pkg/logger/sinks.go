package logger

import (
	"context"
	"strings"
	"sync"
)

type nopLogger struct{}

// Nop returns a logger that discards every record.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Info(context.Context, string, ...Field)  {}
func (nopLogger) Error(context.Context, string, ...Field) {}
func (nopLogger) Debug(context.Context, string, ...Field) {}
func (nopLogger) Warn(context.Context, string, ...Field)  {}
func (nopLogger) Fatal(context.Context, string, ...Field) {}

func (n nopLogger) Named(string) Logger { return n }

// Entry is a single record captured by a Recorder.
type Entry struct {
	Level   string
	Name    string
	Message string
	Fields  []Field
}

// Field returns the value of the named field and whether it was present.
func (e Entry) Field(key string) (interface{}, bool) {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Recorder is a Logger that keeps every record in memory. Fatal is recorded
// but does not exit. Named loggers share the parent's storage.
type Recorder struct {
	name  string
	store *recorderStore
}

type recorderStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{store: &recorderStore{}}
}

func (r *Recorder) Info(_ context.Context, msg string, fields ...Field) {
	r.add("info", msg, fields)
}

func (r *Recorder) Error(_ context.Context, msg string, fields ...Field) {
	r.add("error", msg, fields)
}

func (r *Recorder) Debug(_ context.Context, msg string, fields ...Field) {
	r.add("debug", msg, fields)
}

func (r *Recorder) Warn(_ context.Context, msg string, fields ...Field) {
	r.add("warn", msg, fields)
}

func (r *Recorder) Fatal(_ context.Context, msg string, fields ...Field) {
	r.add("fatal", msg, fields)
}

func (r *Recorder) Named(name string) Logger {
	full := name
	if r.name != "" {
		full = r.name + "." + name
	}
	return &Recorder{name: full, store: r.store}
}

// Entries returns a copy of the captured records in order.
func (r *Recorder) Entries() []Entry {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]Entry, len(r.store.entries))
	copy(out, r.store.entries)
	return out
}

// ByLevel returns the captured records of one level.
func (r *Recorder) ByLevel(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if strings.EqualFold(e.Level, level) {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all captured records.
func (r *Recorder) Reset() {
	r.store.mu.Lock()
	r.store.entries = nil
	r.store.mu.Unlock()
}

func (r *Recorder) add(level, msg string, fields []Field) {
	cp := make([]Field, len(fields))
	copy(cp, fields)
	r.store.mu.Lock()
	r.store.entries = append(r.store.entries, Entry{Level: level, Name: r.name, Message: msg, Fields: cp})
	r.store.mu.Unlock()
}
