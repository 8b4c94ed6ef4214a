package ast

// NodeID is a 1-based index into a tree's node arena.
type NodeID uint32

const NoNodeID NodeID = 0

func (id NodeID) IsValid() bool { return id != NoNodeID }
