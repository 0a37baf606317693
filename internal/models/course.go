package models

import (
	"fmt"
	"time"
)

// ContentType distinguishes the items a chapter can hold.
type ContentType string

const (
	ContentTypeLesson     ContentType = "lesson"
	ContentTypeAssignment ContentType = "assignment"
)

// Course is the top-level container of chapters. Version changes whenever chapters or
// their content change, so progress writers can tell they graded against a stale structure.
type Course struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"size:255;not null" json:"title"`
	Description  string    `gorm:"type:text" json:"description"`
	InstructorID uint      `gorm:"index" json:"instructor_id"`
	Version      uint      `gorm:"not null;default:0" json:"version"`
	Chapters     []Chapter `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"chapters"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chapter groups lessons and assignments. Order is 1-based and contiguous within a course.
type Chapter struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CourseID  uint             `gorm:"not null;uniqueIndex:idx_chapter_course_order" json:"course_id"`
	Title     string           `gorm:"size:255" json:"title"`
	Order     int              `gorm:"column:sort_order;not null;uniqueIndex:idx_chapter_course_order" json:"order"`
	Content   []ChapterContent `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"content"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ChapterContent references a lesson or an assignment at a position inside a chapter.
type ChapterContent struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	ChapterID    uint        `gorm:"not null;uniqueIndex:idx_content_chapter_order" json:"chapter_id"`
	ContentType  ContentType `gorm:"size:32;not null" json:"content_type"`
	LessonID     *uint       `gorm:"index" json:"lesson_id,omitempty"`
	AssignmentID *uint       `gorm:"index" json:"assignment_id,omitempty"`
	Order        int         `gorm:"column:sort_order;not null;uniqueIndex:idx_content_chapter_order" json:"order"`
	CreatedAt    time.Time   `json:"created_at"`
}

// DefaultChapterTitle names chapters created implicitly while authoring.
func DefaultChapterTitle(order int) string {
	return fmt.Sprintf("Chapter %d", order)
}

// LocateAssignment returns the order of the first chapter that references the assignment.
func (c Course) LocateAssignment(assignmentID uint) (int, bool) {
	return c.locate(ContentTypeAssignment, assignmentID)
}

// LocateLesson returns the order of the first chapter that references the lesson.
func (c Course) LocateLesson(lessonID uint) (int, bool) {
	return c.locate(ContentTypeLesson, lessonID)
}

func (c Course) locate(kind ContentType, id uint) (int, bool) {
	for _, chapter := range c.Chapters {
		for _, item := range chapter.Content {
			if item.References(kind, id) {
				return chapter.Order, true
			}
		}
	}
	return 0, false
}

// ChapterByOrder finds the chapter carrying the given order.
func (c Course) ChapterByOrder(order int) (Chapter, bool) {
	for _, chapter := range c.Chapters {
		if chapter.Order == order {
			return chapter, true
		}
	}
	return Chapter{}, false
}

// CanAppendChapter reports whether a chapter with the given order would extend the course
// without leaving a gap.
func (c Course) CanAppendChapter(order int) bool {
	if order == len(c.Chapters)+1 {
		return true
	}
	n := len(c.Chapters)
	return n > 0 && order == c.Chapters[n-1].Order+1
}

// NextContentOrder is the order a newly appended content item receives. Orders are never
// reused, so it follows the highest existing order.
func (ch Chapter) NextContentOrder() int {
	next := len(ch.Content) + 1
	for _, item := range ch.Content {
		if item.Order >= next {
			next = item.Order + 1
		}
	}
	return next
}

// References reports whether the item points at the given lesson or assignment.
func (cc ChapterContent) References(kind ContentType, id uint) bool {
	if cc.ContentType != kind {
		return false
	}
	switch kind {
	case ContentTypeAssignment:
		return cc.AssignmentID != nil && *cc.AssignmentID == id
	case ContentTypeLesson:
		return cc.LessonID != nil && *cc.LessonID == id
	default:
		return false
	}
}
