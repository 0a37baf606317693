package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-courseware-api/internal/config"
	"github.com/noah-isme/gema-courseware-api/internal/handler"
	"github.com/noah-isme/gema-courseware-api/internal/models"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
	"github.com/noah-isme/gema-courseware-api/internal/router"
	"github.com/noah-isme/gema-courseware-api/internal/service"
	"github.com/noah-isme/gema-courseware-api/pkg/events"
)

const (
	studentID    uint = 42
	instructorID uint = 7
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryStorage) Put(_ context.Context, key string, reader io.Reader, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://files.example.com/" + key, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type testApp struct {
	app         *fiber.App
	courses     repository.CourseRepository
	assignments repository.AssignmentRepository
	answerKeys  repository.AnswerKeyRepository
	storage     *memoryStorage
}

// caller identifies who a test request is sent as. The zero value is anonymous.
type caller struct {
	id   uint
	role string
}

var (
	asStudent    = caller{id: studentID, role: "student"}
	asInstructor = caller{id: instructorID, role: "instructor"}
)

func newTestApp(t *testing.T) *testApp {
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

	logger := zerolog.New(io.Discard)
	validate := validator.New()
	publisher := events.Nop{}
	storage := &memoryStorage{objects: make(map[string][]byte)}

	tx := repository.NewTransactor(db)
	courses := repository.NewCourseRepository(db)
	assignments := repository.NewAssignmentRepository(db)
	answerKeys := repository.NewAnswerKeyRepository(db)
	submissions := repository.NewSubmissionRepository(db)
	progress := repository.NewProgressRepository(db)
	audit := service.NewAuditTrail(repository.NewActivityLogRepository(db), validate, logger)

	submissionService := service.NewSubmissionService(service.SubmissionDependencies{
		Transactor:  tx,
		Submissions: submissions,
		Progress:    progress,
		Assignments: assignments,
		AnswerKeys:  answerKeys,
		Courses:     courses,
		Uploads:     service.NewUploadService(storage, 1, 0, logger),
		Cache:       cache,
		Events:      publisher,
		Audit:       audit,
		Validator:   validate,
	}, logger)
	progressService := service.NewProgressService(tx, progress, courses, cache, publisher, 0, 0, logger)
	courseService := service.NewCourseService(tx, courses, assignments, answerKeys, progress, cache, publisher, audit, validate, 0, logger)
	assignmentService := service.NewAssignmentService(assignments, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test", AppEnv: "test", JWTSecret: "secret"}, router.Dependencies{
		SubmissionHandler: handler.NewSubmissionHandler(submissionService, logger),
		ProgressHandler:   handler.NewProgressHandler(progressService, logger),
		CourseHandler:     handler.NewCourseHandler(courseService, logger),
		AssignmentHandler: handler.NewAssignmentHandler(assignmentService, logger),
		ActivityHandler:   handler.NewActivityHandler(audit, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			if raw := c.Get("X-Test-User"); raw != "" {
				id, err := strconv.ParseUint(raw, 10, 64)
				if err == nil {
					c.Locals("user_id", uint(id))
				}
			}
			if role := c.Get("X-Test-Role"); role != "" {
				c.Locals("user_role", role)
			}
			return c.Next()
		},
	})

	return &testApp{
		app:         app,
		courses:     courses,
		assignments: assignments,
		answerKeys:  answerKeys,
		storage:     storage,
	}
}

func (a *testApp) createAssignment(t *testing.T, kind models.AssignmentType, answers ...string) models.Assignment {
	t.Helper()
	ctx := context.Background()

	assignment := models.Assignment{Title: "Assignment " + string(kind), Type: kind, DurationMinutes: 15}
	if len(answers) > 0 {
		key := models.AnswerKey{Answers: datatypes.JSONSlice[string](answers)}
		require.NoError(t, a.answerKeys.Create(ctx, &key))
		assignment.AnswerKeyID = &key.ID
	}
	require.NoError(t, a.assignments.Create(ctx, &assignment))
	return assignment
}

func (a *testApp) createCourse(t *testing.T, chapters ...[]models.ChapterContent) models.Course {
	t.Helper()
	ctx := context.Background()

	course := models.Course{Title: "Web Basics", InstructorID: instructorID}
	require.NoError(t, a.courses.Create(ctx, &course))
	for i, items := range chapters {
		chapter := models.Chapter{CourseID: course.ID, Title: fmt.Sprintf("Chapter %d", i+1), Order: i + 1}
		require.NoError(t, a.courses.CreateChapter(ctx, &chapter))
		for j, item := range items {
			item.ChapterID = chapter.ID
			item.Order = j + 1
			require.NoError(t, a.courses.AppendContent(ctx, &item))
		}
	}
	return course
}

func assignmentItem(id uint) models.ChapterContent {
	return models.ChapterContent{ContentType: models.ContentTypeAssignment, AssignmentID: &id}
}

func lessonItem(id uint) models.ChapterContent {
	return models.ChapterContent{ContentType: models.ContentTypeLesson, LessonID: &id}
}

func (a *testApp) send(t *testing.T, method, path string, who caller, payload interface{}) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", fiber.MIMEApplicationJSON)
	}
	return a.do(t, req, who)
}

func (a *testApp) do(t *testing.T, req *http.Request, who caller) *http.Response {
	t.Helper()
	if who.id > 0 {
		req.Header.Set("X-Test-User", strconv.FormatUint(uint64(who.id), 10))
	}
	if who.role != "" {
		req.Header.Set("X-Test-Role", who.role)
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func decode[T any](t *testing.T, resp *http.Response) envelope[T] {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var out envelope[T]
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}
