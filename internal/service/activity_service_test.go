package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-courseware-api/internal/dto"
)

func TestAuditTrailRecordsAndFilters(t *testing.T) {
	f := newFixture(t)
	trail := f.auditTrail()
	ctx := context.Background()

	require.NoError(t, trail.Record(ctx, AuditEntry{
		Actor:      Actor{ID: 3, Role: " Instructor "},
		Action:     "submission.graded",
		EntityType: "submission",
		EntityID:   11,
		Metadata:   map[string]interface{}{"grader_email": "grader@example.com", "score": 9},
	}))
	require.NoError(t, trail.Record(ctx, AuditEntry{
		Actor:      Actor{ID: 4},
		Action:     "course.assignment_added",
		EntityType: "assignment",
	}))

	graded, err := trail.List(ctx, dto.ActivityListRequest{ActorID: 3})
	require.NoError(t, err)
	require.Len(t, graded.Items, 1)
	require.Equal(t, "instructor", graded.Items[0].ActorRole)
	require.Equal(t, "***", graded.Items[0].Metadata["grader_email"])
	require.Equal(t, uint(11), *graded.Items[0].EntityID)

	all, err := trail.List(ctx, dto.ActivityListRequest{PageSize: 1})
	require.NoError(t, err)
	require.Equal(t, int64(2), all.Pagination.TotalItems)
	require.Equal(t, 2, all.Pagination.TotalPages)
	require.Len(t, all.Items, 1)

	added, err := trail.List(ctx, dto.ActivityListRequest{EntityType: "Assignment"})
	require.NoError(t, err)
	require.Len(t, added.Items, 1)
	require.Equal(t, "system", added.Items[0].ActorRole)
	require.Nil(t, added.Items[0].EntityID)
}

func TestAuditTrailRejectsIncompleteEntry(t *testing.T) {
	f := newFixture(t)

	err := f.auditTrail().Record(context.Background(), AuditEntry{Actor: Actor{ID: 1}, EntityType: "submission"})
	require.Error(t, err)

	_, err = f.auditTrail().List(context.Background(), dto.ActivityListRequest{PageSize: 500})
	require.Error(t, err)
}
