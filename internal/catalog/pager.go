package catalog

// PageState tracks where the paginated product listing is in its lifecycle.
// Transitions:
//
//	Idle -> Loading -> Loaded <-> LoadingMore -> ... -> Exhausted
//
// Any loading state moves to PageError on remote failure; Retry re-enters
// loading from the last known cursor, or from the top if there is none.
// Changing the active filter invalidates the cursor and restarts from Loading.
type PageState int

const (
	PageIdle PageState = iota
	PageLoading
	PageLoaded
	PageLoadingMore
	PageError
	PageExhausted
)

func (s PageState) String() string {
	switch s {
	case PageIdle:
		return "idle"
	case PageLoading:
		return "loading"
	case PageLoaded:
		return "loaded"
	case PageLoadingMore:
		return "loading_more"
	case PageError:
		return "error"
	case PageExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}
