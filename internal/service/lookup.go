package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "classroom_chat/pkg/errors"
)

// withLookupTimeout ограничивает внешние запросы (auth, зачисления)
func withLookupTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// lookupError превращает истекший дедлайн в повторяемый ErrTimeout
func lookupError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", apperrors.ErrTimeout, op)
	}
	return err
}

// internalError скрывает ошибку хранилища за ErrInternal, сохраняя причину для логов
func internalError(op string, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", apperrors.ErrInternal, op, err)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrValidation, fmt.Sprintf(format, args...))
}

func forbiddenError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrForbidden, fmt.Sprintf(format, args...))
}

func notFoundError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apperrors.ErrNotFound, fmt.Sprintf(format, args...))
}

// uniqueIDs убирает дубликаты, сохраняя порядок первого появления
func uniqueIDs(ids ...[]int64) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, list := range ids {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func without(ids []int64, exclude int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func sortedIDs(ids []int64) []int64 {
	out := append([]int64(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
