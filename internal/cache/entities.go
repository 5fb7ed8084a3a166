package cache

import (
	"context"
	"time"

	"github.com/owlet-labs/owletsync/internal/remote"
	"github.com/owlet-labs/owletsync/internal/schema"
)

// Syncable is the entity-agnostic surface of a store, used by the daemon
// and the CLI to drive every store uniformly.
type Syncable interface {
	Name() string
	Fetch(ctx context.Context)
	Refresh(ctx context.Context)
	ClearAll()
	Flush()
	Status() Status
	Err() string
	LastSyncedAt() *time.Time
	Count() int
}

// Stores bundles one store per entity type. Reference entities (lessons,
// sections, questions) are read-only mirrors of the server; log entities
// accept optimistic local writes.
type Stores struct {
	Lessons      *Store[schema.Lesson]
	Sections     *Store[schema.Section]
	Questions    *Store[schema.Question]
	QuestionLogs *Store[schema.QuestionLog]
	LessonLogs   *Store[schema.LessonLog]
	GameScores   *Store[schema.GameScore]
	Sessions     *Store[schema.SessionRecord]
}

// NewStores constructs every entity store against the shared collaborators.
func NewStores(deps Deps) *Stores {
	return &Stores{
		Lessons: New(Config[schema.Lesson]{
			Table:   "lessons",
			OrderBy: remote.Order{Column: "title"},
		}, deps),

		Sections: New(Config[schema.Section]{
			Table:   "sections",
			OrderBy: remote.Order{Column: "title"},
		}, deps),

		Questions: New(Config[schema.Question]{
			Table:   "questions",
			OrderBy: remote.Order{Column: "questiontext"},
		}, deps),

		QuestionLogs: New(Config[schema.QuestionLog]{
			Table:      "questionlogs",
			OrderBy:    remote.Order{Column: "completedat", Descending: true},
			NaturalKey: schema.QuestionLog.NaturalKey,
		}, deps),

		LessonLogs: New(Config[schema.LessonLog]{
			Table:      "lessonlogs",
			OrderBy:    remote.Order{Column: "completedat", Descending: true},
			NaturalKey: schema.LessonLog.NaturalKey,
		}, deps),

		GameScores: New(Config[schema.GameScore]{
			Table:      "gamescores",
			OrderBy:    remote.Order{Column: "achievedat", Descending: true},
			NaturalKey: schema.GameScore.NaturalKey,
		}, deps),

		Sessions: New(Config[schema.SessionRecord]{
			Table:      "sessions",
			OrderBy:    remote.Order{Column: "starttime", Descending: true},
			NaturalKey: schema.SessionRecord.NaturalKey,
		}, deps),
	}
}

// All returns every store in a stable order.
func (s *Stores) All() []Syncable {
	return []Syncable{
		s.Lessons,
		s.Sections,
		s.Questions,
		s.QuestionLogs,
		s.LessonLogs,
		s.GameScores,
		s.Sessions,
	}
}

// ByName finds a store by its table name.
func (s *Stores) ByName(name string) (Syncable, bool) {
	for _, store := range s.All() {
		if store.Name() == name {
			return store, true
		}
	}
	return nil, false
}

// ClearAll resets every store. Used on account sign-out.
func (s *Stores) ClearAll() {
	for _, store := range s.All() {
		store.ClearAll()
	}
}

// Flush drains every store's in-flight remote writes.
func (s *Stores) Flush() {
	for _, store := range s.All() {
		store.Flush()
	}
}
