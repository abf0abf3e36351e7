// Package listview tracks the state of a paginated list across fetches and
// discards responses that resolve after a newer fetch was started.
package listview

import (
	"sync"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	"github.com/noah-isme/clinic-dashboard/internal/pagination"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
)

// Status is the phase of a list view.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
)

// Ticket identifies one fetch. Only the newest ticket may change the state.
type Ticket struct {
	generation uint64
	Page       int
	Search     string
}

// State is a copy of a view's current phase and data.
type State[T any] struct {
	Status     Status
	Records    []T
	Pagination models.Pagination
	Search     string
	Error      string
}

// Window returns the page links for the current pagination.
func (s State[T]) Window() []pagination.Item {
	return pagination.Window(s.Pagination.Page, s.Pagination.PageCount)
}

// View is the state machine of one paginated list.
type View[T any] struct {
	mu         sync.Mutex
	generation uint64
	state      State[T]
	known      bool
}

// New returns a view in the Loading state.
func New[T any]() *View[T] {
	return &View[T]{state: State[T]{Status: StatusLoading}}
}

// Begin starts a fetch of page. Pages below 1, or beyond the known page count
// for an unchanged search, are ignored and report false.
func (v *View[T]) Begin(page int, search string) (Ticket, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if page < 1 {
		return Ticket{}, false
	}
	if page > 1 && v.known && search == v.state.Search && !pagination.InRange(page, v.state.Pagination.PageCount) {
		return Ticket{}, false
	}

	v.generation++
	v.state.Status = StatusLoading
	v.state.Error = ""
	return Ticket{generation: v.generation, Page: page, Search: search}, true
}

// Resolve stores a fetched page unless a newer fetch has begun since t.
func (v *View[T]) Resolve(t Ticket, result *models.PageResult[T]) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if t.generation != v.generation || result == nil {
		return false
	}
	records := make([]T, len(result.Records))
	copy(records, result.Records)
	v.state = State[T]{
		Status:     StatusReady,
		Records:    records,
		Pagination: result.Pagination,
		Search:     t.Search,
	}
	v.known = true
	return true
}

// Fail records a failed fetch unless a newer fetch has begun since t. The
// second result reports whether the client has to sign in again; it is set
// even for stale tickets because the session is gone either way.
func (v *View[T]) Fail(t Ticket, err error) (applied bool, needsSignIn bool) {
	needsSignIn = appErrors.IsAuthProblem(err)

	v.mu.Lock()
	defer v.mu.Unlock()

	if t.generation != v.generation {
		return false, needsSignIn
	}
	v.state.Status = StatusFailed
	v.state.Search = t.Search
	if appErr := appErrors.FromError(err); appErr != nil {
		v.state.Error = appErr.Message
	}
	return true, needsSignIn
}

// StateFor returns the state to show for the fetch behind t. While t is the
// newest ticket that is the current state; once a newer fetch has begun, the
// superseded caller gets its own result instead of rows that belong to the
// newer fetch.
func (v *View[T]) StateFor(t Ticket, result *models.PageResult[T], err error) State[T] {
	v.mu.Lock()
	current := t.generation == v.generation
	v.mu.Unlock()
	if current {
		return v.Snapshot()
	}

	state := State[T]{Search: t.Search, Pagination: models.Pagination{Page: t.Page}}
	switch {
	case err != nil:
		state.Status = StatusFailed
		if appErr := appErrors.FromError(err); appErr != nil {
			state.Error = appErr.Message
		}
	case result != nil:
		state.Status = StatusReady
		state.Records = make([]T, len(result.Records))
		copy(state.Records, result.Records)
		state.Pagination = result.Pagination
	default:
		state.Status = StatusFailed
	}
	return state
}

// Snapshot copies the current state.
func (v *View[T]) Snapshot() State[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	state := v.state
	state.Records = make([]T, len(v.state.Records))
	copy(state.Records, v.state.Records)
	return state
}
