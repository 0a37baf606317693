package models

import (
	"errors"
	"time"

	"gorm.io/datatypes"
)

// ProgressStatus is the completion state of one chapter for one student.
type ProgressStatus string

const (
	ProgressNotStarted ProgressStatus = "not-started"
	ProgressInProgress ProgressStatus = "in-progress"
	ProgressCompleted  ProgressStatus = "completed"
)

// ErrChapterSlotMissing indicates the ledger has no slot for the requested chapter order.
var ErrChapterSlotMissing = errors.New("chapter slot missing")

// ChapterProgress is the ledger slot of one chapter. Slot i holds chapter order i+1.
type ChapterProgress struct {
	ChapterOrder         int            `json:"chapter_order"`
	LessonsCompleted     []uint         `json:"lessons_completed"`
	AssignmentsCompleted []uint         `json:"assignments_completed"`
	Status               ProgressStatus `json:"status"`
}

// CourseProgress is the per-student, per-course progress ledger.
type CourseProgress struct {
	ID        uint                                 `gorm:"primaryKey" json:"id"`
	StudentID uint                                 `gorm:"not null;uniqueIndex:idx_progress_student_course" json:"student_id"`
	CourseID  uint                                 `gorm:"not null;uniqueIndex:idx_progress_student_course;index" json:"course_id"`
	Chapters  datatypes.JSONSlice[ChapterProgress] `gorm:"type:json" json:"progress"`
	Version   uint                                 `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time                            `json:"created_at"`
	UpdatedAt time.Time                            `json:"updated_at"`
}

// NewCourseProgress seeds a ledger with one not-started slot per existing chapter.
func NewCourseProgress(studentID uint, course Course) CourseProgress {
	progress := CourseProgress{
		StudentID: studentID,
		CourseID:  course.ID,
		Chapters:  datatypes.JSONSlice[ChapterProgress]{},
	}
	for _, chapter := range course.Chapters {
		progress.grow(chapter.Order, ProgressNotStarted)
	}
	return progress
}

// IsNew reports whether the ledger has not been persisted yet.
func (p CourseProgress) IsNew() bool {
	return p.ID == 0
}

// Slot returns a copy of the slot for the chapter order.
func (p CourseProgress) Slot(order int) (ChapterProgress, bool) {
	if order < 1 || order > len(p.Chapters) {
		return ChapterProgress{}, false
	}
	return p.Chapters[order-1], true
}

// EnsureChapterSlot grows the ledger until it holds a slot for the chapter order.
// Back-filled slots start in-progress. It returns the number of slots added.
func (p *CourseProgress) EnsureChapterSlot(order int) int {
	return p.grow(order, ProgressInProgress)
}

// AppendChapterSlot adds a not-started slot for a chapter that was just created.
func (p *CourseProgress) AppendChapterSlot(order int) int {
	return p.grow(order, ProgressNotStarted)
}

func (p *CourseProgress) grow(order int, status ProgressStatus) int {
	added := 0
	for len(p.Chapters) < order {
		p.Chapters = append(p.Chapters, ChapterProgress{
			ChapterOrder:         len(p.Chapters) + 1,
			LessonsCompleted:     []uint{},
			AssignmentsCompleted: []uint{},
			Status:               status,
		})
		added++
	}
	return added
}

// MarkAssignmentCompleted records an assignment for the chapter and recomputes its status.
func (p *CourseProgress) MarkAssignmentCompleted(order int, assignmentID uint, chapter Chapter) (ProgressStatus, error) {
	return p.mark(order, chapter, func(slot *ChapterProgress) {
		slot.AssignmentsCompleted = appendUnique(slot.AssignmentsCompleted, assignmentID)
	})
}

// MarkLessonCompleted records a lesson for the chapter and recomputes its status.
func (p *CourseProgress) MarkLessonCompleted(order int, lessonID uint, chapter Chapter) (ProgressStatus, error) {
	return p.mark(order, chapter, func(slot *ChapterProgress) {
		slot.LessonsCompleted = appendUnique(slot.LessonsCompleted, lessonID)
	})
}

func (p *CourseProgress) mark(order int, chapter Chapter, apply func(slot *ChapterProgress)) (ProgressStatus, error) {
	if order < 1 || order > len(p.Chapters) {
		return "", ErrChapterSlotMissing
	}

	slot := &p.Chapters[order-1]
	apply(slot)
	if slot.Status == ProgressNotStarted {
		slot.Status = ProgressInProgress
	}
	slot.Status = slot.derive(chapter)

	return slot.Status, nil
}

// DemoteChapter moves a completed slot back to in-progress when the chapter gained content.
func (p *CourseProgress) DemoteChapter(order int, chapter Chapter) bool {
	if order < 1 || order > len(p.Chapters) {
		return false
	}
	slot := &p.Chapters[order-1]
	if slot.Status != ProgressCompleted || slot.Covers(chapter) {
		return false
	}
	slot.Status = ProgressInProgress
	return true
}

// Reconcile aligns the ledger with the current course structure: missing chapters gain
// not-started slots and statuses are recomputed from coverage. It reports whether anything changed.
func (p *CourseProgress) Reconcile(course Course) bool {
	changed := false
	for _, chapter := range course.Chapters {
		if chapter.Order < 1 {
			continue
		}
		if p.grow(chapter.Order, ProgressNotStarted) > 0 {
			changed = true
		}
		slot := &p.Chapters[chapter.Order-1]
		if status := slot.derive(chapter); status != slot.Status {
			slot.Status = status
			changed = true
		}
	}
	return changed
}

// Covers reports whether every content item of the chapter is in the completed sets.
func (cp ChapterProgress) Covers(chapter Chapter) bool {
	if len(chapter.Content) == 0 {
		return false
	}
	for _, item := range chapter.Content {
		switch item.ContentType {
		case ContentTypeAssignment:
			if item.AssignmentID == nil || !containsID(cp.AssignmentsCompleted, *item.AssignmentID) {
				return false
			}
		case ContentTypeLesson:
			if item.LessonID == nil || !containsID(cp.LessonsCompleted, *item.LessonID) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func (cp ChapterProgress) derive(chapter Chapter) ProgressStatus {
	switch {
	case cp.Covers(chapter):
		return ProgressCompleted
	case cp.Status != ProgressNotStarted || len(cp.LessonsCompleted)+len(cp.AssignmentsCompleted) > 0:
		return ProgressInProgress
	default:
		return ProgressNotStarted
	}
}

func appendUnique(ids []uint, id uint) []uint {
	if containsID(ids, id) {
		return ids
	}
	return append(ids, id)
}

func containsID(ids []uint, id uint) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
