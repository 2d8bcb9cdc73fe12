// Package progress records what an operation does to each entity, grouped
// in nested sections, and forwards it to a pluggable sink.
package progress

import (
	"strings"
	"sync"

	"github.com/nhle/lifeplan/internal/model"
)

// Action is the lifecycle step a scope covers.
type Action string

const (
	ActionCreating  Action = "creating"
	ActionUpdating  Action = "updating"
	ActionArchiving Action = "archiving"
	ActionRemoving  Action = "removing"
)

// Entry is the finished record of one entity scope.
type Entry struct {
	Section        string           `json:"section,omitempty"`
	Action         Action           `json:"action"`
	EntityType     model.EntityType `json:"entity_type"`
	RefID          string           `json:"ref_id,omitempty"`
	Name           string           `json:"name,omitempty"`
	LocalChange    bool             `json:"local_change"`
	ExternalChange bool             `json:"external_change"`
	Steps          []string         `json:"steps,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// Failed reports whether the scope recorded a failure.
func (e Entry) Failed() bool {
	return e.Error != ""
}

// Sink receives section boundaries and finished entries. Implementations
// are called with the reporter lock held and must not call back into it.
type Sink interface {
	SectionStarted(path []string)
	SectionEnded(path []string)
	EntryDone(e Entry)
}

// Reporter tracks the current section path and hands finished scopes to
// its sink. It is safe for concurrent use.
type Reporter struct {
	mu   sync.Mutex
	sink Sink
	path []string
}

// New returns a reporter writing to sink.
func New(sink Sink) *Reporter {
	if sink == nil {
		sink = NoopSink{}
	}
	return &Reporter{sink: sink}
}

// Noop returns a reporter that discards everything.
func Noop() *Reporter {
	return New(NoopSink{})
}

// Section opens a nested section and returns the function closing it.
//
//	defer r.Section("Recurring tasks")()
func (r *Reporter) Section(title string) func() {
	r.mu.Lock()
	r.path = append(r.path, title)
	path := append([]string(nil), r.path...)
	r.sink.SectionStarted(path)
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if n := len(r.path); n > 0 && r.path[n-1] == title {
				r.path = r.path[:n-1]
			}
			r.sink.SectionEnded(path)
		})
	}
}

// Creating opens a scope for an entity about to be created.
func (r *Reporter) Creating(kind model.EntityType, name string) *Scope {
	return r.scope(ActionCreating, kind, "", name)
}

// Updating opens a scope for an existing entity.
func (r *Reporter) Updating(kind model.EntityType, refID, name string) *Scope {
	return r.scope(ActionUpdating, kind, refID, name)
}

// Archiving opens a scope for an entity about to be archived.
func (r *Reporter) Archiving(kind model.EntityType, refID, name string) *Scope {
	return r.scope(ActionArchiving, kind, refID, name)
}

// Removing opens a scope for an entity about to be hard-deleted.
func (r *Reporter) Removing(kind model.EntityType, refID, name string) *Scope {
	return r.scope(ActionRemoving, kind, refID, name)
}

func (r *Reporter) scope(action Action, kind model.EntityType, refID, name string) *Scope {
	r.mu.Lock()
	section := strings.Join(r.path, " / ")
	r.mu.Unlock()
	return &Scope{
		r: r,
		entry: Entry{
			Section:    section,
			Action:     action,
			EntityType: kind,
			RefID:      refID,
			Name:       name,
		},
	}
}

func (r *Reporter) emit(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink.EntryDone(e)
}

// Scope accumulates what happened to one entity. A scope belongs to a
// single goroutine; Done hands it to the sink exactly once.
type Scope struct {
	r     *Reporter
	entry Entry
	done  bool
}

// WithID records the ref id once it is known.
func (s *Scope) WithID(refID string) *Scope {
	s.entry.RefID = refID
	return s
}

// WithName records the entity name once it is known.
func (s *Scope) WithName(name string) *Scope {
	s.entry.Name = name
	return s
}

// MarkLocalChange records that the local store was modified.
func (s *Scope) MarkLocalChange() *Scope {
	s.entry.LocalChange = true
	return s
}

// MarkExternalChange records that the mirror was modified.
func (s *Scope) MarkExternalChange() *Scope {
	s.entry.ExternalChange = true
	return s
}

// Step appends a free-form progress note.
func (s *Scope) Step(msg string) *Scope {
	s.entry.Steps = append(s.entry.Steps, msg)
	return s
}

// Fail records err on the scope and returns it unchanged.
func (s *Scope) Fail(err error) error {
	if err != nil {
		s.entry.Error = err.Error()
	}
	return err
}

// Entry returns the record accumulated so far.
func (s *Scope) Entry() Entry {
	e := s.entry
	e.Steps = append([]string(nil), s.entry.Steps...)
	return e
}

// Done finishes the scope. Later calls are ignored.
func (s *Scope) Done() {
	if s.done {
		return
	}
	s.done = true
	s.r.emit(s.Entry())
}

// NoopSink discards everything.
type NoopSink struct{}

func (NoopSink) SectionStarted([]string) {}
func (NoopSink) SectionEnded([]string)   {}
func (NoopSink) EntryDone(Entry)         {}

// Recorder keeps every finished entry in memory.
type Recorder struct {
	mu       sync.Mutex
	sections []string
	entries  []Entry
}

func (r *Recorder) SectionStarted(path []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections = append(r.sections, strings.Join(path, " / "))
}

func (r *Recorder) SectionEnded([]string) {}

func (r *Recorder) EntryDone(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

// Entries returns a copy of the recorded entries in completion order.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.entries...)
}

// Sections returns every section path opened, in order.
func (r *Recorder) Sections() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sections...)
}

// Count returns how many entries match action and kind.
func (r *Recorder) Count(action Action, kind model.EntityType) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Action == action && e.EntityType == kind {
			n++
		}
	}
	return n
}

// Func adapts a function to a Sink that only sees entries.
type Func func(Entry)

func (Func) SectionStarted([]string) {}
func (Func) SectionEnded([]string)   {}
func (f Func) EntryDone(e Entry)     { f(e) }

// Tee forwards to every sink in order.
type Tee []Sink

func (t Tee) SectionStarted(path []string) {
	for _, s := range t {
		s.SectionStarted(path)
	}
}

func (t Tee) SectionEnded(path []string) {
	for _, s := range t {
		s.SectionEnded(path)
	}
}

func (t Tee) EntryDone(e Entry) {
	for _, s := range t {
		s.EntryDone(e)
	}
}
