// Package lattice defines the domain model of a discretized 6-DoF
// configuration lattice: poses quantized into keys, deduplicated nodes,
// and the fixed 12-direction adjacency vocabulary that connects them.
//
// The package is storage-agnostic. The Store interface describes what a
// backing store must provide; pkg/engine implements it on a relational
// database.
package lattice

import (
	"context"
	"fmt"
	"math"
)

// NodeID is the store-assigned identity of a node. IDs are positive and
// never reused within one database.
type NodeID int64

// JointCount is the fixed number of joint angles carried by a node.
const JointCount = 12

// JointAngles is the per-node actuator payload, stored verbatim and
// never part of the node identity.
type JointAngles []float64

// NormalizeJointAngles validates a caller-supplied joint payload. A nil
// slice is allowed and expands to JointCount zeros. Any other length,
// or a non-finite angle, fails with ErrInvalidPose.
func NormalizeJointAngles(j JointAngles) (JointAngles, error) {
	if j == nil {
		return make(JointAngles, JointCount), nil
	}
	if len(j) != JointCount {
		return nil, fmt.Errorf("%w: got %d joint angles, want %d", ErrInvalidPose, len(j), JointCount)
	}
	for i, v := range j {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite joint angle at index %d", ErrInvalidPose, i)
		}
	}
	out := make(JointAngles, JointCount)
	copy(out, j)
	return out, nil
}

// NodeData is the caller-supplied payload of a node before it is
// persisted. JointAngles may be nil, which stands for all zeros.
type NodeData struct {
	Pose        Pose
	JointAngles JointAngles
	Visited     bool
}

// Neighbors maps every direction of a node to the id it links to, or
// nil where the slot is unset. A nil Neighbors value means the node
// itself does not exist; an all-nil 12-entry map means the node exists
// with no links yet.
type Neighbors map[Direction]*NodeID

// Node is a stored lattice node as read back from the store.
type Node struct {
	ID          NodeID
	Key         Key
	JointAngles JointAngles
	Visited     bool
	Neighbors   Neighbors
}

// Link is one directed adjacency assignment: From's Dir slot is set to
// To. Applying the same link twice is a no-op.
type Link struct {
	From NodeID
	To   NodeID
	Dir  Direction
}

// Store is the persistence contract of the lattice. All write
// operations are idempotent, duplicates collapse silently, and storage
// failures wrap ErrStorageUnavailable.
type Store interface {
	// AddNode inserts a single node, or returns the id of the existing
	// node when the quantized key is already present.
	AddNode(ctx context.Context, nd NodeData) (NodeID, error)

	// BulkAddNodes ingests a batch in chunks and returns a complete
	// key-to-id mapping covering every distinct quantized key of the
	// input, whether freshly inserted or already present.
	BulkAddNodes(ctx context.Context, batch []NodeData) (map[Key]NodeID, error)

	// NodeID resolves a pose to its stored id, or ErrNodeNotFound.
	NodeID(ctx context.Context, p Pose) (NodeID, error)

	// Node reads one node with its full adjacency, or ErrNodeNotFound.
	Node(ctx context.Context, id NodeID) (Node, error)

	// AllNodeKeys returns the key-to-id mapping of every stored node.
	AllNodeKeys(ctx context.Context) (map[Key]NodeID, error)

	// KeySnapshot returns an ordered in-memory index of every stored
	// key, detached from later writes.
	KeySnapshot(ctx context.Context) (*KeyIndex, error)

	// MarkVisited flips the visited flag of one node.
	MarkVisited(ctx context.Context, id NodeID, visited bool) error

	// CountNodes reports the number of stored nodes.
	CountNodes(ctx context.Context) (int64, error)

	// SetLink assigns one adjacency slot. The direction is validated
	// before any write; a missing From node makes the call a no-op.
	SetLink(ctx context.Context, from, to NodeID, dir Direction) error

	// BulkSetLinks applies link assignments in chunks, each chunk as
	// one transaction. A failing chunk is rolled back whole; chunks
	// already committed stay committed.
	BulkSetLinks(ctx context.Context, links []Link) error

	// Neighbors returns the 12-entry adjacency of a node, or a nil map
	// when the node does not exist.
	Neighbors(ctx context.Context, id NodeID) (Neighbors, error)

	Close() error
}
