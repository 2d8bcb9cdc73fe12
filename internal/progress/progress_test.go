package progress

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/lifeplan/internal/model"
)

func TestScopesRecordSectionAndChanges(t *testing.T) {
	rec := &Recorder{}
	r := New(rec)

	end := r.Section("Generate")
	inner := r.Section("Recurring tasks")
	r.Creating(model.EntityInboxTask, "Exercise 23:Dec19").
		WithID("abc").
		MarkLocalChange().
		Step("scheduled").
		Done()
	inner()

	s := r.Updating(model.EntityInboxTask, "def", "Read")
	err := s.Fail(errors.New("mirror down"))
	s.Done()
	s.Done()
	end()

	require.Error(t, err)
	entries := rec.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "Generate / Recurring tasks", entries[0].Section)
	assert.Equal(t, ActionCreating, entries[0].Action)
	assert.Equal(t, "abc", entries[0].RefID)
	assert.True(t, entries[0].LocalChange)
	assert.False(t, entries[0].ExternalChange)
	assert.Equal(t, []string{"scheduled"}, entries[0].Steps)

	assert.Equal(t, "Generate", entries[1].Section)
	assert.True(t, entries[1].Failed())
	assert.Equal(t, []string{"Generate", "Generate / Recurring tasks"}, rec.Sections())
	assert.Equal(t, 1, rec.Count(ActionCreating, model.EntityInboxTask))
}

func TestConsoleSerializesConcurrentScopes(t *testing.T) {
	var buf bytes.Buffer
	r := New(NewConsole(&buf))
	defer r.Section("Sync")()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Creating(model.EntityProject, "Home").MarkExternalChange().Done()
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 21)
	for _, l := range lines[1:] {
		assert.Contains(t, l, "project")
	}
}

func TestJSONSinkEncodesEntries(t *testing.T) {
	var buf bytes.Buffer
	r := New(NewJSON(&buf))
	r.Archiving(model.EntityInboxTask, "x1", "Old").MarkLocalChange().Done()

	assert.JSONEq(t, `{"action":"archiving","entity_type":"inbox_task","ref_id":"x1","name":"Old",
		"local_change":true,"external_change":false}`, buf.String())
}

func TestNoopAcceptsEverything(t *testing.T) {
	r := Noop()
	defer r.Section("Nothing")()
	r.Removing(model.EntityVacation, "v", "Summer").Done()
}
