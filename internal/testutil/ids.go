package testutil

// FixedIDGenerator generates the same attempt id every time.
//
// Thread-safety: FixedIDGenerator is stateless and safe for concurrent use.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator returning id. An empty id
// becomes "test-attempt".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-attempt"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed id.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}
