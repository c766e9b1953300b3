package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDuplicateCategory is returned when a category name collides with a
	// reserved tag or an existing category. The check is advisory; the store
	// stays the final arbiter.
	ErrDuplicateCategory = errors.New("catalog: category name already exists")
	// ErrInvalidParent is returned when a parent reference does not name an
	// existing top-level category. Nesting is limited to one level.
	ErrInvalidParent = errors.New("catalog: parent must be an existing top-level category")
)

// CascadeError reports a partially failed category cascade: some of the
// per-product remote calls succeeded while others failed. The succeeded
// products have already been migrated remotely and locally; there is no
// rollback. Callers must surface which items failed, not just log and move on.
type CascadeError struct {
	Op       string // "rename" or "delete"
	Total    int
	Failures map[string]error // keyed by product id
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("catalog: category %s cascade: %d of %d products updated, failed: %s",
		e.Op, e.Total-len(e.Failures), e.Total, strings.Join(e.FailedIDs(), ", "))
}

// Succeeded returns how many per-product calls completed.
func (e *CascadeError) Succeeded() int {
	return e.Total - len(e.Failures)
}

// FailedIDs returns the ids of the products whose cascade call failed,
// in stable order.
func (e *CascadeError) FailedIDs() []string {
	ids := make([]string, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
