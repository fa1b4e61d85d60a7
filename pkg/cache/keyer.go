package cache

// Keyer builds cache keys.
type Keyer interface {
	// LayoutKey identifies the layout of one graph under one geometry.
	LayoutKey(graphHash string, opts LayoutKeyOpts) string
}

// LayoutKeyOpts are the layout settings that change the result.
type LayoutKeyOpts struct {
	Engine  string `json:"engine"`
	Options string `json:"options"`
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// LayoutKey returns "layout:<hash>".
func (DefaultKeyer) LayoutKey(graphHash string, opts LayoutKeyOpts) string {
	return hashKey("layout", graphHash, opts)
}

var _ Keyer = DefaultKeyer{}
