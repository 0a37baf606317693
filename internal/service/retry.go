package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-courseware-api/internal/observability"
	"github.com/noah-isme/gema-courseware-api/internal/repository"
)

const defaultConflictRetries = 3

// retryOnConflict runs fn until it stops reporting a version conflict. After retries extra
// runs it gives up with ErrConcurrencyConflict.
func retryOnConflict(ctx context.Context, retries int, logger zerolog.Logger, fn func(ctx context.Context) error) error {
	if retries < 0 {
		retries = 0
	}

	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}

		observability.SubmissionConflicts().Inc()
		logger.Debug().Int("attempt", attempt+1).Msg("version conflict, retrying commit")
	}

	return fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
}
