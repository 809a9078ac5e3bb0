package types

// DefaultPageLimit applies when a request leaves Limit at zero.
const DefaultPageLimit = 10

// Pagination selects a window of an ascending listing. Min is inclusive, Max
// exclusive; Skip entries are dropped from the start of the range before at
// most Limit entries are returned.
type Pagination[K any] struct {
	Min   *K     `json:"min,omitempty"`
	Max   *K     `json:"max,omitempty"`
	Skip  uint32 `json:"skip,omitempty"`
	Limit uint32 `json:"limit,omitempty"`
}

// PageLimit returns Limit or the default when unset.
func (p Pagination[K]) PageLimit() uint32 {
	if p.Limit == 0 {
		return DefaultPageLimit
	}
	return p.Limit
}
