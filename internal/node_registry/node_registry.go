package node_registry

// Node is a sandfs server a client knows how to reach.
type Node struct {
	ID      string
	Address string
	Healthy bool
}

type NodeRegistry interface {
	RegisterNode(node Node) error
	DeregisterNode(node Node) error
	GetNode(id string) (Node, error)
	// SetHealthy records the outcome of the last call to a node.
	SetHealthy(id string, healthy bool) error
	// Nodes lists every registered node ordered by ID.
	Nodes() []Node
	GetHealthyNodes() ([]Node, error)
}
