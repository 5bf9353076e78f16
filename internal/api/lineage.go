package api

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/richhaase/autose/internal/logger"
)

// Lineage is one of the two backend task families. Both expose status and
// history under the same shape.
type Lineage string

const (
	Dev   Lineage = "dev"
	Cover Lineage = "cover"
)

// Lineages lists every lineage in the order the CLI tries them.
var Lineages = []Lineage{Dev, Cover}

// Valid reports whether l is a known lineage.
func (l Lineage) Valid() bool {
	return l == Dev || l == Cover
}

// SubmitPath is where new tasks of this lineage are posted.
func (l Lineage) SubmitPath() string {
	return "/" + string(l)
}

// StatusPath returns the status endpoint for task id.
func (l Lineage) StatusPath(id string) string {
	return fmt.Sprintf("/%s/tasks/%s", l, url.PathEscape(id))
}

// HistoryPath returns the streaming history endpoint for task id.
func (l Lineage) HistoryPath(id string) string {
	return fmt.Sprintf("/%s/histories/%s", l, url.PathEscape(id))
}

// ValidateTaskID rejects ids that cannot be used as a path segment or as a
// file name.
func ValidateTaskID(id string) error {
	if strings.TrimSpace(id) == "" {
		return InvalidParameters("task id is empty")
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return InvalidParameters("task id %q is not a valid identifier", id)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return InvalidParameters("task id %q contains control characters", id)
		}
	}
	return nil
}

// TryBoth runs op against primary and, if that fails, against fallback. The
// fallback result is returned as is; primary is never retried. A cancelled
// context stops before the fallback is tried.
func TryBoth[T any](
	ctx context.Context,
	primary, fallback Lineage,
	op func(context.Context, Lineage) (T, error),
) (T, error) {
	res, err := op(ctx, primary)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, err
	}

	logger.FromContext(ctx).Debug("primary lineage failed, trying fallback",
		"primary", primary, "fallback", fallback, "error", err)
	return op(ctx, fallback)
}
