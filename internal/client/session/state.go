package session

// State is the lifecycle state of a Session.
type State int

const (
	Idle State = iota
	LoadingFirstPage
	Ready
	LoadingMorePages
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingFirstPage:
		return "loading"
	case Ready:
		return "ready"
	case LoadingMorePages:
		return "loading-more"
	default:
		return "unknown"
	}
}

func (s State) loading() bool {
	return s == LoadingFirstPage || s == LoadingMorePages
}
