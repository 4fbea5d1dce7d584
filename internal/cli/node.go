// Package cli implements the hierarchical command-line parser and
// dispatcher: tokenizer, command-tree walker, the authenticated UART
// session, password-masked login, and the interactive checkbox menus.
// The session/tokenizer/tree-walk structure favors small structs,
// explicit mutex-guarded shared state, and `log.Printf`-gated
// diagnostics; the command tree's DAG-by-construction shape is
// deliberate -- built top-down once at init, never mutated.
package cli

import "switchfw/internal/sysstate"

// maxTreeDepth and maxTokens bound tree depth and the token count a
// single line may decode into.
const (
	maxTreeDepth = 12
	maxTokens    = 127
	maxParamBuf  = 20
	maxStaticParams = 15
)

// Node is one command-tree entry. The tree is a `Children []*Node` DAG
// built once at init and never mutated afterward, so ordinary pointers
// are safe: a cyclic pointer structure would need a back-edge, and
// nothing here ever builds one.
type Node struct {
	Text               string
	Help               string
	IsTerminal         bool
	ParamsRequired     int
	UserProvidesParams bool
	Handler            Handler
	StaticParams       []byte
	Children           []*Node
	RequiredPermission sysstate.Role
}

// Handler is the CLI command-body contract: invoke the handler with
// the accumulated parameter buffer and report success/failure based on
// its boolean return.
type Handler func(params []byte) bool

// Valid checks the tree-construction invariant: every non-terminal
// node's Children is non-empty, every terminal node's Handler is
// non-nil, and static_param_count ≤ params_required.
func (n *Node) Valid() bool {
	if n.IsTerminal {
		if n.Handler == nil {
			return false
		}
	} else if len(n.Children) == 0 {
		return false
	}
	if len(n.StaticParams) > n.ParamsRequired {
		return false
	}
	for _, c := range n.Children {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// find returns the child matching token at this node's depth: an
// exact text match, or the first user-provides-params child (which
// accepts any token).
func (n *Node) find(token string) *Node {
	var wildcard *Node
	for _, c := range n.Children {
		if c.Text == token {
			return c
		}
		if c.UserProvidesParams && wildcard == nil {
			wildcard = c
		}
	}
	return wildcard
}
