package aggregator

// Domain describes which half of the graph an aggregator reduces over.
type Domain int

const (
	// VertexDomain aggregators are mapped over owned local vertices.
	VertexDomain Domain = iota
	// EdgeDomain aggregators are mapped over in-edges of local vertices.
	EdgeDomain
)

// String returns a textual representation of a Domain, for logging.
func (d Domain) String() string {
	switch d {
	case VertexDomain:
		return "vertex"
	case EdgeDomain:
		return "edge"
	default:
		return "unknown"
	}
}
