// Package graph validates workflow node graphs and computes traversal
// plans. Nodes are held in a table keyed by id with labeled successor
// edges, so reachability and cycle checks are plain graph traversals.
package graph

import (
	"fmt"
	"strings"
)

// ErrorKind identifies one class of structural violation. Every check in
// Validate reports a distinct kind so callers can surface the specific
// problem, never a generic failure.
type ErrorKind string

const (
	ErrNoTrigger        ErrorKind = "no_trigger"
	ErrMultipleTriggers ErrorKind = "multiple_triggers"
	ErrTriggerIncoming  ErrorKind = "trigger_has_incoming_edge"
	ErrDuplicateNode    ErrorKind = "duplicate_node_id"
	ErrDanglingEdge     ErrorKind = "dangling_edge"
	ErrMissingBranch    ErrorKind = "missing_branch_edge"
	ErrTooManyEdges     ErrorKind = "too_many_edges"
	ErrUnreachableNode  ErrorKind = "unreachable_node"
	ErrCycle            ErrorKind = "cycle"
	ErrNoDefaultBranch  ErrorKind = "branch_missing_default"
	ErrBadCondition     ErrorKind = "invalid_condition"
	ErrBadNodeConfig    ErrorKind = "invalid_node_config"
	ErrBadDelay         ErrorKind = "invalid_delay"
	ErrBadAction        ErrorKind = "invalid_action"
	ErrBadTrigger       ErrorKind = "invalid_trigger"
)

// Issue is one violation, tied to the node(s) it concerns.
type Issue struct {
	Kind    ErrorKind `json:"kind"`
	NodeIDs []string  `json:"node_ids,omitempty"`
	Detail  string    `json:"detail"`
}

func (i Issue) String() string {
	if len(i.NodeIDs) == 0 {
		return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
	}

	return fmt.Sprintf("%s [%s]: %s", i.Kind, strings.Join(i.NodeIDs, ", "), i.Detail)
}

// ValidationResult aggregates every issue found in one pass. It doubles
// as an error so activation paths can return it directly.
type ValidationResult struct {
	Issues []Issue `json:"issues"`
}

// Valid reports whether the workflow passed every check.
func (r *ValidationResult) Valid() bool {
	return len(r.Issues) == 0
}

func (r *ValidationResult) Error() string {
	if r.Valid() {
		return "workflow is valid"
	}

	parts := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		parts = append(parts, issue.String())
	}

	return "workflow validation failed: " + strings.Join(parts, "; ")
}

func (r *ValidationResult) add(kind ErrorKind, detail string, nodeIDs ...string) {
	r.Issues = append(r.Issues, Issue{Kind: kind, NodeIDs: nodeIDs, Detail: detail})
}
