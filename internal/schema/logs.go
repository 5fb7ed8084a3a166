package schema

import "fmt"

// QuestionLog records one answered question for a child.
// Logs are ordered by completion time, newest first.
type QuestionLog struct {
	ID          string  `json:"id"`
	ChildID     ChildID `json:"childid"`
	QuestionID  string  `json:"questionid"`
	IsCorrect   bool    `json:"iscorrect"`
	CompletedAt string  `json:"completedat"`
}

// RowID returns the opaque row identifier.
func (q QuestionLog) RowID() string { return q.ID }

// NaturalKey identifies the log independent of its row ID: one entry per
// child per question.
func (q QuestionLog) NaturalKey() string {
	return q.ChildID.String() + "|" + q.QuestionID
}

// Validate checks required QuestionLog fields.
func (q QuestionLog) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("id is required")
	}
	if q.ChildID.IsZero() {
		return fmt.Errorf("childid is required")
	}
	if q.QuestionID == "" {
		return fmt.Errorf("questionid is required")
	}
	return nil
}

// LessonLog records one completed lesson for a child.
type LessonLog struct {
	ID          string  `json:"id"`
	ChildID     ChildID `json:"childid"`
	LessonID    string  `json:"lessonid"`
	Score       int     `json:"score,omitempty"`
	CompletedAt string  `json:"completedat"`
}

// RowID returns the opaque row identifier.
func (l LessonLog) RowID() string { return l.ID }

// NaturalKey is child + completed lesson: finishing the same lesson twice
// does not produce a second entry.
func (l LessonLog) NaturalKey() string {
	return l.ChildID.String() + "|" + l.LessonID
}

// Validate checks required LessonLog fields.
func (l LessonLog) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if l.ChildID.IsZero() {
		return fmt.Errorf("childid is required")
	}
	if l.LessonID == "" {
		return fmt.Errorf("lessonid is required")
	}
	return nil
}

// GameScore records one finished game round for a child.
type GameScore struct {
	ID         string  `json:"id"`
	ChildID    ChildID `json:"childid"`
	GameName   string  `json:"gamename"`
	Score      int     `json:"score"`
	AchievedAt string  `json:"achievedat"`
}

// RowID returns the opaque row identifier.
func (g GameScore) RowID() string { return g.ID }

// NaturalKey dedups identical submissions of the same round; distinct rounds
// of the same game differ by timestamp and are all kept.
func (g GameScore) NaturalKey() string {
	return g.ChildID.String() + "|" + g.GameName + "|" + g.AchievedAt
}

// Validate checks required GameScore fields.
func (g GameScore) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("id is required")
	}
	if g.ChildID.IsZero() {
		return fmt.Errorf("childid is required")
	}
	if g.GameName == "" {
		return fmt.Errorf("gamename is required")
	}
	return nil
}
