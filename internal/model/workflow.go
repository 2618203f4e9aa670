package model

import (
	"encoding/json"
	"fmt"
)

// Chain identifies a network a node or manifest entry is bound to.
type Chain struct {
	Name    string  `json:"name"`
	ChainID *uint64 `json:"chain_id,omitempty"`
	RPCURL  *string `json:"rpc_url,omitempty"`
}

// ChainNamed builds a bare Chain reference with no RPC/chain-id metadata, mirroring
// the original's Chain::named(name) convenience constructor.
func ChainNamed(name string) Chain { return Chain{Name: name} }

// ChainHyperEVM and ChainBase mirror the original's Chain::hyperevm()/Chain::base()
// fixture constructors used throughout the reference test suite.
func ChainHyperEVM() Chain {
	id := uint64(999)
	return Chain{Name: "hyperevm", ChainID: &id}
}

func ChainBase() Chain {
	id := uint64(8453)
	return Chain{Name: "base", ChainID: &id}
}

// TokenManifest maps symbol -> chain name -> checksummed address.
type TokenManifest map[string]map[string]string

// ContractManifest maps logical name -> chain name -> checksummed address.
type ContractManifest map[string]map[string]string

// Workflow is the root document: a DAG of Node vertices and typed Edge flows.
type Workflow struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Tokens      TokenManifest     `json:"tokens,omitempty"`
	Contracts   ContractManifest  `json:"contracts,omitempty"`
	Reserve     *ReserveConfig    `json:"reserve,omitempty"`
	Valuer      *ValuerConfig     `json:"valuer,omitempty"`
	Nodes       []Node            `json:"nodes"`
	Edges       []Edge            `json:"edges"`
}

// NodeByID returns the node with the given id, or nil if absent.
func (w *Workflow) NodeByID(id string) Node {
	for _, n := range w.Nodes {
		if n.ID() == id {
			return n
		}
	}
	return nil
}

// Successors returns the node ids directly reachable from fromID via an edge.
func (w *Workflow) Successors(fromID string) []string {
	var out []string
	for _, e := range w.Edges {
		if e.FromNode == fromID {
			out = append(out, e.ToNode)
		}
	}
	return out
}

type workflowJSON struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Tokens      TokenManifest    `json:"tokens,omitempty"`
	Contracts   ContractManifest `json:"contracts,omitempty"`
	Reserve     *ReserveConfig   `json:"reserve,omitempty"`
	Valuer      *ValuerConfig    `json:"valuer,omitempty"`
	Nodes       []json.RawMessage `json:"nodes"`
	Edges       []Edge           `json:"edges"`
}

// UnmarshalJSON dispatches each node's variant type, since encoding/json cannot
// unmarshal into the Node interface directly.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var raw workflowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	nodes := make([]Node, 0, len(raw.Nodes))
	for _, rn := range raw.Nodes {
		n, err := UnmarshalNode(rn)
		if err != nil {
			return fmt.Errorf("workflow %q: %w", raw.Name, err)
		}
		nodes = append(nodes, n)
	}
	if raw.Reserve != nil {
		raw.Reserve.Normalize()
	}
	if raw.Valuer != nil {
		raw.Valuer.Normalize()
	}
	*w = Workflow{
		Name:        raw.Name,
		Description: raw.Description,
		Tokens:      raw.Tokens,
		Contracts:   raw.Contracts,
		Reserve:     raw.Reserve,
		Valuer:      raw.Valuer,
		Nodes:       nodes,
		Edges:       raw.Edges,
	}
	return nil
}

func (w Workflow) MarshalJSON() ([]byte, error) {
	rawNodes := make([]json.RawMessage, 0, len(w.Nodes))
	for _, n := range w.Nodes {
		b, err := MarshalNode(n)
		if err != nil {
			return nil, err
		}
		rawNodes = append(rawNodes, b)
	}
	return json.Marshal(workflowJSON{
		Name:        w.Name,
		Description: w.Description,
		Tokens:      w.Tokens,
		Contracts:   w.Contracts,
		Reserve:     w.Reserve,
		Valuer:      w.Valuer,
		Nodes:       rawNodes,
		Edges:       w.Edges,
	})
}
