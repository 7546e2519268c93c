package health

// NewReadyGraph returns a root node for readiness dependencies.
// Callers add one node per database environment via ready.Add.
func NewReadyGraph() *Node {
	return &Node{Name: "ready"}
}
