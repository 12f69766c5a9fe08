// File: internal/progress/store_test.go
package progress

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "training_progress.json")
	return NewStore(path, zap.NewNop()), path
}

// -- Lifecycle --

func TestNewStore_MissingFileStartsEmpty(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Equal(t, 0, store.Len())
}

func TestNewStore_UnparseableFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_progress.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	// Availability over diagnostics: no error, zero modules.
	store := NewStore(path, zap.NewNop())
	assert.Equal(t, 0, store.Len())
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	store, path := newTestStore(t)
	store.GetOrCreate("m1", "Safety 101")
	store.MarkVideoWatched("m1")
	store.RecordAttempt("m1", false, 5, 3)

	reloaded := NewStore(path, zap.NewNop())
	require.Equal(t, 1, reloaded.Len())

	m := reloaded.GetOrCreate("m1", "")
	assert.Equal(t, "Safety 101", m.ModuleName)
	assert.True(t, m.VideoWatched)
	assert.Equal(t, 1, m.AssessmentAttempts)
	assert.False(t, m.AssessmentPassed)
	assert.NotEmpty(t, m.LastAttempt)
}

func TestStore_SavesOnEveryMutation(t *testing.T) {
	store, path := newTestStore(t)

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err), "no document before the first mutation")

	store.GetOrCreate("m1", "Safety 101")
	assert.FileExists(t, path, "get-or-create must persist immediately")
}

// -- GetOrCreate --

func TestGetOrCreate_Idempotent(t *testing.T) {
	store, _ := newTestStore(t)

	first := store.GetOrCreate("m1", "Safety 101")
	second := store.GetOrCreate("m1", "A Different Name")

	assert.Same(t, first, second, "second call must return the identical record")
	assert.Equal(t, 1, store.Len())
	// The name from the first call wins.
	assert.Equal(t, "Safety 101", second.ModuleName)
}

func TestGetOrCreate_FillsEmptyName(t *testing.T) {
	store, _ := newTestStore(t)

	store.MarkVideoWatched("m1") // creates with name defaulted to the id
	m := store.GetOrCreate("m1", "")
	assert.Equal(t, "m1", m.ModuleName)
}

// -- RecordAttempt --

func TestRecordAttempt_MonotonicAttempts(t *testing.T) {
	store, _ := newTestStore(t)

	outcomes := []bool{false, true, false, false, true}
	for i, passed := range outcomes {
		m := store.RecordAttempt("m1", passed, 5, 3)
		assert.Equal(t, i+1, m.AssessmentAttempts)
	}
}

func TestRecordAttempt_PassIsSticky(t *testing.T) {
	store, _ := newTestStore(t)

	store.RecordAttempt("m1", true, 5, 5)
	m := store.RecordAttempt("m1", false, 5, 2)

	// A failed attempt after a pass is counted but never demotes the module.
	assert.True(t, m.AssessmentPassed)
	assert.Equal(t, 2, m.AssessmentAttempts)
	// Score fields reflect the latest attempt.
	assert.Equal(t, 2, m.QuestionsCorrect)
}

func TestRecordAttempt_DoesNotValidateScores(t *testing.T) {
	store, _ := newTestStore(t)
	// The store records what it is told; validation lives with the caller.
	m := store.RecordAttempt("m1", true, 3, 7)
	assert.Equal(t, 3, m.QuestionsAnswered)
	assert.Equal(t, 7, m.QuestionsCorrect)
}

// -- Queries --

func TestFailedNeedingRetry_RequiresWatchedVideo(t *testing.T) {
	store, _ := newTestStore(t)

	// Video watched, failed attempt: needs retry.
	store.MarkVideoWatched("m1")
	store.RecordAttempt("m1", false, 5, 3)
	// No video watched, no attempts: not "failed".
	store.GetOrCreate("m2", "Untouched")
	// Failed attempt but video never watched: not "failed needing retry".
	store.RecordAttempt("m3", false, 5, 1)

	failed := store.FailedNeedingRetry()
	require.Len(t, failed, 1)
	assert.Equal(t, "m1", failed[0].ID)
	assert.Equal(t, 1, failed[0].Attempts)
}

func TestScenario_FailThenPass(t *testing.T) {
	store, _ := newTestStore(t)

	store.GetOrCreate("m1", "Safety 101")
	store.MarkVideoWatched("m1")
	store.RecordAttempt("m1", false, 5, 3)

	failed := store.FailedNeedingRetry()
	require.Len(t, failed, 1)
	assert.Equal(t, "m1", failed[0].ID)
	assert.Equal(t, 1, failed[0].Attempts)

	store.RecordAttempt("m1", true, 5, 5)
	assert.Empty(t, store.FailedNeedingRetry())
}

func TestIncomplete_IncludesUnwatchedModules(t *testing.T) {
	store, _ := newTestStore(t)

	store.GetOrCreate("m1", "Not started")
	store.MarkVideoWatched("m2")
	store.RecordAttempt("m3", true, 5, 5)

	incomplete := store.Incomplete()
	require.Len(t, incomplete, 2)
	assert.Equal(t, "m1", incomplete[0].ID)
	assert.Equal(t, "m2", incomplete[1].ID)
}

// -- Summary --

func TestSummary_EmptyStore(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Contains(t, store.Summary(), "No modules tracked yet")
}

func TestSummary_Deterministic(t *testing.T) {
	store, _ := newTestStore(t)
	store.MarkVideoWatched("b-module")
	store.RecordAttempt("a-module", true, 4, 4)

	first := store.Summary()
	assert.Equal(t, first, store.Summary(), "summary must be stable across calls")
	assert.Contains(t, first, "Modules tracked: 2")
	assert.Contains(t, first, "Assessments passed: 1/2")
	assert.Contains(t, first, "a-module: PASSED")
	assert.Contains(t, first, "b-module: IN PROGRESS")
}
