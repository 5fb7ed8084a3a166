package schema

import "fmt"

// Lesson is a read-only reference row from the lessons table.
// Lessons are ordered by title for display.
type Lesson struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Subject     string `json:"subject,omitempty"`
	Level       int    `json:"level,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// RowID returns the opaque row identifier.
func (l Lesson) RowID() string { return l.ID }

// Validate checks required Lesson fields.
func (l Lesson) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if l.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Section is a read-only reference row from the sections table.
// Sections belong to a lesson and are ordered by title.
type Section struct {
	ID       string `json:"id"`
	LessonID string `json:"lessonid"`
	Title    string `json:"title"`
	Position int    `json:"position,omitempty"`
}

// RowID returns the opaque row identifier.
func (s Section) RowID() string { return s.ID }

// Validate checks required Section fields.
func (s Section) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.LessonID == "" {
		return fmt.Errorf("lessonid is required")
	}
	if s.Title == "" {
		return fmt.Errorf("title is required")
	}
	return nil
}

// Question is a read-only reference row from the questions table.
// Questions are ordered by their question text.
type Question struct {
	ID           string   `json:"id"`
	SectionID    string   `json:"sectionid"`
	QuestionText string   `json:"questiontext"`
	Options      []string `json:"options,omitempty"`
	Answer       string   `json:"answer,omitempty"`
}

// RowID returns the opaque row identifier.
func (q Question) RowID() string { return q.ID }

// Validate checks required Question fields.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("id is required")
	}
	if q.QuestionText == "" {
		return fmt.Errorf("questiontext is required")
	}
	return nil
}
