package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/repository"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

func clockOrDefault(now func() time.Time) func() time.Time {
	if now == nil {
		now = time.Now
	}
	return func() time.Time { return now().UTC() }
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, event)
}

// lookupError maps a repository miss to a NotFound domain error.
func lookupError(err error, resource string, details map[string]any) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, details)
	}
	return apperrors.MapError(err)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func stringPtr(s string) *string {
	return &s
}
