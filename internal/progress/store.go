// File: internal/progress/store.go
package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ModuleProgress is one training module's lifecycle state.
type ModuleProgress struct {
	ModuleID           string `json:"module_id"`
	ModuleName         string `json:"module_name"`
	VideoWatched       bool   `json:"video_watched"`
	AssessmentAttempts int    `json:"assessment_attempts"`
	AssessmentPassed   bool   `json:"assessment_passed"`
	QuestionsAnswered  int    `json:"questions_answered"`
	QuestionsCorrect   int    `json:"questions_correct"`
	LastAttempt        string `json:"last_attempt,omitempty"`
}

// document is the on-disk shape: the full module mapping plus a save
// timestamp, overwritten wholesale on every mutation.
type document struct {
	Modules   map[string]*ModuleProgress `json:"modules"`
	LastSaved string                     `json:"last_saved"`
}

// RetryItem is a query result row for modules needing another attempt.
type RetryItem struct {
	ID       string
	Name     string
	Watched  bool
	Attempts int
}

// Store is the durable record of per-module training state. Every mutation
// persists immediately: the agent may be interrupted at any moment, and a
// redundant write is cheaper than replayed training time.
type Store struct {
	path         string
	logger       *zap.Logger
	modules      map[string]*ModuleProgress
	sessionStart time.Time
	now          func() time.Time
}

// NewStore loads the progress document at path. Load is best-effort: a
// missing or unparseable file starts an empty store rather than failing the
// run.
func NewStore(path string, logger *zap.Logger) *Store {
	s := &Store{
		path:    path,
		logger:  logger.Named("progress"),
		modules: make(map[string]*ModuleProgress),
		now:     time.Now,
	}
	s.sessionStart = s.now()
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No previous progress found, starting fresh")
		} else {
			s.logger.Error("Failed to read progress document", zap.Error(err))
		}
		return
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Error("Progress document unparseable, starting fresh", zap.Error(err))
		return
	}
	if doc.Modules != nil {
		s.modules = doc.Modules
	}
	s.logger.Info("Loaded progress", zap.Int("modules", len(s.modules)))
}

// save overwrites the full document. A temp-file rename keeps the document
// whole even if the process dies mid-write.
func (s *Store) save() {
	doc := document{
		Modules:   s.modules,
		LastSaved: s.now().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		s.logger.Error("Failed to marshal progress document", zap.Error(err))
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("Failed to write progress document", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		s.logger.Error("Failed to replace progress document", zap.Error(err))
	}
}

// Path returns the document location.
func (s *Store) Path() string {
	return filepath.Clean(s.path)
}

// Len reports the number of tracked modules.
func (s *Store) Len() int {
	return len(s.modules)
}

// GetOrCreate returns the module record, creating and persisting it on first
// sight. Idempotent: the module name from the first call wins; a later call
// only fills a name that is still empty.
func (s *Store) GetOrCreate(moduleID, moduleName string) *ModuleProgress {
	if m, ok := s.modules[moduleID]; ok {
		if moduleName != "" && m.ModuleName == "" {
			m.ModuleName = moduleName
			s.save()
		}
		return m
	}

	if moduleName == "" {
		moduleName = moduleID
	}
	m := &ModuleProgress{ModuleID: moduleID, ModuleName: moduleName}
	s.modules[moduleID] = m
	s.save()
	return m
}

// MarkVideoWatched sets the watched flag. Videos are never "unwatched"; the
// flag only transitions false to true.
func (s *Store) MarkVideoWatched(moduleID string) {
	m := s.GetOrCreate(moduleID, "")
	m.VideoWatched = true
	s.save()
	s.logger.Info("Video watched", zap.String("module_id", moduleID))
}

// RecordAttempt records one assessment attempt. The attempt counter only
// increases. A pass is sticky: a later failed attempt is still counted but
// never demotes a previously passed module.
func (s *Store) RecordAttempt(moduleID string, passed bool, questionsTotal, questionsCorrect int) *ModuleProgress {
	m := s.GetOrCreate(moduleID, "")
	m.AssessmentAttempts++
	if passed {
		m.AssessmentPassed = true
	}
	m.QuestionsAnswered = questionsTotal
	m.QuestionsCorrect = questionsCorrect
	m.LastAttempt = s.now().Format(time.RFC3339)
	s.save()

	s.logger.Info("Assessment attempt recorded",
		zap.String("module_id", moduleID),
		zap.Bool("passed", passed),
		zap.Int("attempt", m.AssessmentAttempts),
		zap.Int("correct", questionsCorrect),
		zap.Int("total", questionsTotal),
	)
	return m
}

// Incomplete lists modules that have not passed their assessment yet.
func (s *Store) Incomplete() []RetryItem {
	var items []RetryItem
	for _, m := range s.modules {
		if !m.AssessmentPassed {
			items = append(items, RetryItem{
				ID:       m.ModuleID,
				Name:     m.ModuleName,
				Watched:  m.VideoWatched,
				Attempts: m.AssessmentAttempts,
			})
		}
	}
	sortItems(items)
	return items
}

// FailedNeedingRetry lists modules whose video is watched but whose
// assessment has not passed. A module never attempted after its video counts;
// a module with no video watched does not.
func (s *Store) FailedNeedingRetry() []RetryItem {
	var items []RetryItem
	for _, m := range s.modules {
		if m.VideoWatched && !m.AssessmentPassed {
			items = append(items, RetryItem{
				ID:       m.ModuleID,
				Name:     m.ModuleName,
				Watched:  true,
				Attempts: m.AssessmentAttempts,
			})
		}
	}
	sortItems(items)
	return items
}

func sortItems(items []RetryItem) {
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// Summary renders deterministic aggregate counts plus a per-module status
// table, consumed both by the operator and by the collaborator.
func (s *Store) Summary() string {
	if len(s.modules) == 0 {
		return "Training Progress Summary:\n  No modules tracked yet."
	}

	var videosWatched, assessmentsPassed, totalAttempts int
	ids := make([]string, 0, len(s.modules))
	for id, m := range s.modules {
		ids = append(ids, id)
		if m.VideoWatched {
			videosWatched++
		}
		if m.AssessmentPassed {
			assessmentsPassed++
		}
		totalAttempts += m.AssessmentAttempts
	}
	sort.Strings(ids)

	var b strings.Builder
	fmt.Fprintf(&b, "Training Progress Summary:\n")
	fmt.Fprintf(&b, "  Modules tracked: %d\n", len(s.modules))
	fmt.Fprintf(&b, "  Videos watched: %d\n", videosWatched)
	fmt.Fprintf(&b, "  Assessments passed: %d/%d\n", assessmentsPassed, len(s.modules))
	fmt.Fprintf(&b, "  Total assessment attempts: %d\n", totalAttempts)
	fmt.Fprintf(&b, "  Session started: %s\n", s.sessionStart.Format(time.RFC3339))
	fmt.Fprintf(&b, "\n  Module Details:")
	for _, id := range ids {
		m := s.modules[id]
		status := "NOT STARTED"
		switch {
		case m.AssessmentPassed:
			status = "PASSED"
		case m.VideoWatched:
			status = "IN PROGRESS"
		}
		fmt.Fprintf(&b, "\n    - %s: %s", m.ModuleName, status)
		if m.AssessmentAttempts > 0 {
			fmt.Fprintf(&b, " (%d/%d on attempt %d)", m.QuestionsCorrect, m.QuestionsAnswered, m.AssessmentAttempts)
		}
	}
	return b.String()
}
