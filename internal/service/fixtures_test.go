package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	putErr  error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Put(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if m.putErr != nil {
		return "", m.putErr
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://cdn.example.com/" + key, nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

// Publish mirrors the NATS publisher and refuses cancelled contexts.
func (p *recordingPublisher) Publish(ctx context.Context, eventType string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}

// conflictingSubmissions fails the first n updates with a version conflict.
type conflictingSubmissions struct {
	repository.SubmissionRepository
	mu       sync.Mutex
	failures int
}

func (c *conflictingSubmissions) Update(ctx context.Context, submission *models.Submission) error {
	c.mu.Lock()
	if c.failures > 0 {
		c.failures--
		c.mu.Unlock()
		return repository.ErrVersionConflict
	}
	c.mu.Unlock()
	return c.SubmissionRepository.Update(ctx, submission)
}

// staleSubmissions answers the next lookups with a snapshot read before other writers
// committed. A nil snapshot reads as a missing ledger.
type staleSubmissions struct {
	repository.SubmissionRepository
	mu        sync.Mutex
	snapshot  *models.Submission
	remaining int
}

func (s *staleSubmissions) Find(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	s.mu.Lock()
	if s.remaining == 0 {
		s.mu.Unlock()
		return s.SubmissionRepository.Find(ctx, assignmentID, studentID)
	}
	s.remaining--
	snapshot := s.snapshot
	s.mu.Unlock()

	if snapshot == nil {
		return models.Submission{}, gorm.ErrRecordNotFound
	}
	stale := *snapshot
	stale.Attempts = append(snapshot.Attempts[:0:0], snapshot.Attempts...)
	return stale, nil
}

func (s *staleSubmissions) left() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// staleCourses answers the next structure reads with a course loaded before an authoring
// change committed.
type staleCourses struct {
	repository.CourseRepository
	mu        sync.Mutex
	snapshot  models.Course
	remaining int
}

func (c *staleCourses) GetWithChapters(ctx context.Context, id uint) (models.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.remaining == 0 || id != c.snapshot.ID {
		return c.CourseRepository.GetWithChapters(ctx, id)
	}
	c.remaining--
	return c.snapshot, nil
}

func (c *staleCourses) left() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// racingProgress runs write once, right after the first ledger read returns.
type racingProgress struct {
	repository.ProgressRepository
	once  sync.Once
	write func()
}

func (r *racingProgress) Find(ctx context.Context, studentID, courseID uint) (models.CourseProgress, error) {
	progress, err := r.ProgressRepository.Find(ctx, studentID, courseID)
	r.once.Do(r.write)
	return progress, err
}

type fixture struct {
	db          *gorm.DB
	tx          repository.Transactor
	submissions repository.SubmissionRepository
	progress    repository.ProgressRepository
	assignments repository.AssignmentRepository
	answerKeys  repository.AnswerKeyRepository
	courses     repository.CourseRepository
	activity    repository.ActivityLogRepository
	storage     *memoryStorage
	events      *recordingPublisher
	redis       *miniredis.Miniredis
	cache       *redis.Client
	validator   *validator.Validate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.AnswerKey{},
		&models.Assignment{},
		&models.Course{},
		&models.Chapter{},
		&models.ChapterContent{},
		&models.Submission{},
		&models.CourseProgress{},
		&models.ActivityLog{},
	))

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	cache := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	return &fixture{
		db:          db,
		tx:          repository.NewTransactor(db),
		submissions: repository.NewSubmissionRepository(db),
		progress:    repository.NewProgressRepository(db),
		assignments: repository.NewAssignmentRepository(db),
		answerKeys:  repository.NewAnswerKeyRepository(db),
		courses:     repository.NewCourseRepository(db),
		activity:    repository.NewActivityLogRepository(db),
		storage:     newMemoryStorage(),
		events:      &recordingPublisher{},
		redis:       server,
		cache:       cache,
		validator:   validator.New(),
	}
}

func (f *fixture) submissionDeps() SubmissionDependencies {
	return SubmissionDependencies{
		Transactor:  f.tx,
		Submissions: f.submissions,
		Progress:    f.progress,
		Assignments: f.assignments,
		AnswerKeys:  f.answerKeys,
		Courses:     f.courses,
		Uploads:     NewUploadService(f.storage, 1, 0, testLogger()),
		Cache:       f.cache,
		Events:      f.events,
		Audit:       f.auditTrail(),
		Validator:   f.validator,
	}
}

func (f *fixture) submissionService() SubmissionService {
	return NewSubmissionService(f.submissionDeps(), testLogger())
}

func (f *fixture) progressService() ProgressService {
	return NewProgressService(f.tx, f.progress, f.courses, f.cache, f.events, 0, 0, testLogger())
}

func (f *fixture) courseService() CourseService {
	return NewCourseService(f.tx, f.courses, f.assignments, f.answerKeys, f.progress, f.cache, f.events, f.auditTrail(), f.validator, 0, testLogger())
}

func (f *fixture) auditTrail() AuditTrail {
	return NewAuditTrail(f.activity, f.validator, testLogger())
}

func (f *fixture) createAssignment(t *testing.T, kind models.AssignmentType, answers ...string) models.Assignment {
	t.Helper()
	ctx := context.Background()

	assignment := models.Assignment{Title: "Assignment " + string(kind), Type: kind, DurationMinutes: 30}
	if len(answers) > 0 {
		key := models.AnswerKey{Answers: datatypes.JSONSlice[string](answers)}
		require.NoError(t, f.answerKeys.Create(ctx, &key))
		assignment.AnswerKeyID = &key.ID
	}
	require.NoError(t, f.assignments.Create(ctx, &assignment))
	return assignment
}

// createCourse persists a course whose chapters hold the given items in order.
func (f *fixture) createCourse(t *testing.T, instructorID uint, chapters ...[]models.ChapterContent) models.Course {
	t.Helper()
	ctx := context.Background()

	course := models.Course{Title: "Go Fundamentals", InstructorID: instructorID}
	require.NoError(t, f.courses.Create(ctx, &course))

	for i, items := range chapters {
		chapter := models.Chapter{CourseID: course.ID, Title: fmt.Sprintf("Chapter %d", i+1), Order: i + 1}
		require.NoError(t, f.courses.CreateChapter(ctx, &chapter))
		for j, item := range items {
			item.ChapterID = chapter.ID
			item.Order = j + 1
			require.NoError(t, f.courses.AppendContent(ctx, &item))
		}
	}

	loaded, err := f.courses.GetWithChapters(ctx, course.ID)
	require.NoError(t, err)
	return loaded
}

func assignmentItem(id uint) models.ChapterContent {
	return models.ChapterContent{ContentType: models.ContentTypeAssignment, AssignmentID: &id}
}

func lessonItem(id uint) models.ChapterContent {
	return models.ChapterContent{ContentType: models.ContentTypeLesson, LessonID: &id}
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	writer.Close()

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

func requireNoSubmission(t *testing.T, f *fixture, assignmentID, studentID uint) {
	t.Helper()
	_, err := f.submissions.Find(context.Background(), assignmentID, studentID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound), "expected no submission, got %v", err)
}

func requireNoProgress(t *testing.T, f *fixture, studentID, courseID uint) {
	t.Helper()
	_, err := f.progress.Find(context.Background(), studentID, courseID)
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound), "expected no progress, got %v", err)
}
