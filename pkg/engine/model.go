package engine

import (
	"gorm.io/datatypes"

	"github.com/sanonone/latticedb/pkg/lattice"
)

// nodeRow is the GORM model of one lattice node. The six pose columns
// hold the quantized key values, so the composite unique index over
// them is exactly the dedup identity. The 12 direction columns point at
// other node ids; they are plain integers on purpose, dangling targets
// are permitted.
type nodeRow struct {
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`

	X  float64 `gorm:"column:x;not null;uniqueIndex:uq_nodes_position_rotation,priority:1"`
	Y  float64 `gorm:"column:y;not null;uniqueIndex:uq_nodes_position_rotation,priority:2"`
	Z  float64 `gorm:"column:z;not null;uniqueIndex:uq_nodes_position_rotation,priority:3"`
	RX float64 `gorm:"column:rx;not null;uniqueIndex:uq_nodes_position_rotation,priority:4"`
	RY float64 `gorm:"column:ry;not null;uniqueIndex:uq_nodes_position_rotation,priority:5"`
	RZ float64 `gorm:"column:rz;not null;uniqueIndex:uq_nodes_position_rotation,priority:6"`

	JointAngle datatypes.JSONSlice[float64] `gorm:"column:joint_angle"`
	IsVisited  int                          `gorm:"column:is_visited"`

	UpNodeID      *int64 `gorm:"column:up_node_id"`
	DownNodeID    *int64 `gorm:"column:down_node_id"`
	LeftNodeID    *int64 `gorm:"column:left_node_id"`
	RightNodeID   *int64 `gorm:"column:right_node_id"`
	FrontNodeID   *int64 `gorm:"column:front_node_id"`
	BackNodeID    *int64 `gorm:"column:back_node_id"`
	RXPlusNodeID  *int64 `gorm:"column:rx_plus_node_id"`
	RXMinusNodeID *int64 `gorm:"column:rx_minus_node_id"`
	RYPlusNodeID  *int64 `gorm:"column:ry_plus_node_id"`
	RYMinusNodeID *int64 `gorm:"column:ry_minus_node_id"`
	RZPlusNodeID  *int64 `gorm:"column:rz_plus_node_id"`
	RZMinusNodeID *int64 `gorm:"column:rz_minus_node_id"`
}

func (nodeRow) TableName() string { return "nodes" }

// nodeInsertColumns limits inserts to the payload columns; id comes
// from the database and the direction slots start NULL.
var nodeInsertColumns = []string{"x", "y", "z", "rx", "ry", "rz", "joint_angle", "is_visited"}

func newNodeRow(k lattice.Key, joints lattice.JointAngles, visited bool) nodeRow {
	v := 0
	if visited {
		v = 1
	}
	return nodeRow{
		X: k.X, Y: k.Y, Z: k.Z,
		RX: k.RX, RY: k.RY, RZ: k.RZ,
		JointAngle: datatypes.JSONSlice[float64](joints),
		IsVisited:  v,
	}
}

func (r *nodeRow) key() lattice.Key {
	return lattice.Key{X: r.X, Y: r.Y, Z: r.Z, RX: r.RX, RY: r.RY, RZ: r.RZ}
}

// linkColumn maps a direction to its column. The mapping is total over
// the valid vocabulary; anything else yields "" and must be rejected by
// the caller before touching the database.
func linkColumn(d lattice.Direction) string {
	switch d {
	case lattice.DirUp:
		return "up_node_id"
	case lattice.DirDown:
		return "down_node_id"
	case lattice.DirLeft:
		return "left_node_id"
	case lattice.DirRight:
		return "right_node_id"
	case lattice.DirFront:
		return "front_node_id"
	case lattice.DirBack:
		return "back_node_id"
	case lattice.DirRXPlus:
		return "rx_plus_node_id"
	case lattice.DirRXMinus:
		return "rx_minus_node_id"
	case lattice.DirRYPlus:
		return "ry_plus_node_id"
	case lattice.DirRYMinus:
		return "ry_minus_node_id"
	case lattice.DirRZPlus:
		return "rz_plus_node_id"
	case lattice.DirRZMinus:
		return "rz_minus_node_id"
	default:
		return ""
	}
}

// slot returns the stored target of one direction slot.
func (r *nodeRow) slot(d lattice.Direction) *int64 {
	switch d {
	case lattice.DirUp:
		return r.UpNodeID
	case lattice.DirDown:
		return r.DownNodeID
	case lattice.DirLeft:
		return r.LeftNodeID
	case lattice.DirRight:
		return r.RightNodeID
	case lattice.DirFront:
		return r.FrontNodeID
	case lattice.DirBack:
		return r.BackNodeID
	case lattice.DirRXPlus:
		return r.RXPlusNodeID
	case lattice.DirRXMinus:
		return r.RXMinusNodeID
	case lattice.DirRYPlus:
		return r.RYPlusNodeID
	case lattice.DirRYMinus:
		return r.RYMinusNodeID
	case lattice.DirRZPlus:
		return r.RZPlusNodeID
	case lattice.DirRZMinus:
		return r.RZMinusNodeID
	default:
		return nil
	}
}

// neighbors expands the row into the full 12-entry adjacency map.
func (r *nodeRow) neighbors() lattice.Neighbors {
	out := make(lattice.Neighbors, len(lattice.Directions()))
	for _, d := range lattice.Directions() {
		if p := r.slot(d); p != nil {
			id := lattice.NodeID(*p)
			out[d] = &id
		} else {
			out[d] = nil
		}
	}
	return out
}

func (r *nodeRow) node() lattice.Node {
	return lattice.Node{
		ID:          lattice.NodeID(r.ID),
		Key:         r.key(),
		JointAngles: lattice.JointAngles(r.JointAngle),
		Visited:     r.IsVisited != 0,
		Neighbors:   r.neighbors(),
	}
}
