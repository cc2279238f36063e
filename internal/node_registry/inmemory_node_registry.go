package node_registry

import (
	"sort"
	"sync"
)

type InMemoryNodeRegistry struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

func NewInMemoryNodeRegistry() *InMemoryNodeRegistry {
	return &InMemoryNodeRegistry{
		nodes: make(map[string]Node),
	}
}

func (r *InMemoryNodeRegistry) RegisterNode(node Node) error {
	if node.ID == "" {
		return ErrInvalidNodeID
	}
	if node.Address == "" {
		return ErrInvalidNodeAddress
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.ID]; exists {
		return ErrNodeAlreadyExists
	}
	r.nodes[node.ID] = node
	return nil
}

func (r *InMemoryNodeRegistry) DeregisterNode(node Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.ID]; !exists {
		return ErrNodeNotFound
	}
	delete(r.nodes, node.ID)
	return nil
}

func (r *InMemoryNodeRegistry) GetNode(id string) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[id]
	if !ok {
		return Node{}, ErrNodeNotFound
	}
	return node, nil
}

func (r *InMemoryNodeRegistry) SetHealthy(id string, healthy bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, ok := r.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	node.Healthy = healthy
	r.nodes[id] = node
	return nil
}

func (r *InMemoryNodeRegistry) Nodes() []Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *InMemoryNodeRegistry) GetHealthyNodes() ([]Node, error) {
	var healthy []Node
	for _, n := range r.Nodes() {
		if n.Healthy {
			healthy = append(healthy, n)
		}
	}
	if len(healthy) == 0 {
		return nil, ErrNoHealthyNodes
	}
	return healthy, nil
}

var _ NodeRegistry = (*InMemoryNodeRegistry)(nil)
