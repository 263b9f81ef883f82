package exchange

// InspectRequest carries one marshaled plan envelope.
type InspectRequest struct {
	Plan []byte `msgpack:"plan"`
}

// InspectResponse describes a decoded plan.
type InspectResponse struct {
	// Canonical is the plan re-marshaled by the server.
	Canonical []byte `msgpack:"canonical"`
	// Roots describes each root entry in plan order.
	Roots []RootInfo `msgpack:"roots,omitempty"`
	// Functions lists the function declarations of the canonical encoding.
	Functions []FunctionInfo `msgpack:"functions,omitempty"`
	// Explain is the indented plan tree.
	Explain string `msgpack:"explain"`
}

// RootInfo is the visible output of one plan root.
type RootInfo struct {
	Names []string `msgpack:"names"`
	Types []string `msgpack:"types"`
	// ArrowSchema is the root schema as an Arrow IPC stream, empty when the
	// output has no Arrow equivalent.
	ArrowSchema []byte `msgpack:"arrow_schema,omitempty"`
}

// FunctionInfo is one entry of the anchor table.
type FunctionInfo struct {
	Anchor uint32 `msgpack:"anchor"`
	URI    string `msgpack:"uri"`
	Name   string `msgpack:"name"`
}

// ExplainRequest carries plan envelopes to render.
type ExplainRequest struct {
	Plans [][]byte `msgpack:"plans"`
}

// ExplainResponse carries one rendering per request plan, in order.
type ExplainResponse struct {
	Explains []string `msgpack:"explains"`
}
