package domain

// Region addresses a unit of UI content that may contain notation
// requiring the external typesetting engine.
type Region struct {
	ID       string `json:"id"`
	Selector string `json:"selector,omitempty"` // engine-side address; defaults to ID
}

// Target returns the address the engine should typeset.
func (r Region) Target() string {
	if r.Selector != "" {
		return r.Selector
	}
	return r.ID
}

// RegionResolver answers whether a region still exists at dispatch time.
// Renders for regions that have been torn down are silently abandoned.
type RegionResolver interface {
	Exists(id string) bool
}
