package nnue

import "github.com/arkchess/nnueval/internal/board"

// InvalidSquare marks an absent from/to square in a DirtyPiece: a piece that
// was added has no from, one that was removed has no to. Square is a uint8
// over the 64 legal squares, so 0xFF is safely out of range.
const InvalidSquare = board.Square(0xFF)

// InvalidScore is the NNScore sentinel meaning "not yet computed".
const InvalidScore = int32(1 << 30)

// DirtyPiece records one piece's board-delta between a node and its parent.
// From invalid means an addition, To invalid means a removal, both valid
// means a move (including captures and promotions, which the caller
// expresses as a removal of the captured/old piece plus an add/move of the
// other).
type DirtyPiece struct {
	Piece board.PieceType
	Color board.Color
	From  board.Square
	To    board.Square
}

// NodeContext is the per-node NNUE bookkeeping a search tree owns alongside
// each position.
type NodeContext struct {
	Accumulator [2]Accumulator
	AccumDirty  [2]bool
	DirtyPieces []DirtyPiece
	NNScore     int32
}

// Node is one position in a search tree, linked to its parent so the
// incremental evaluator can walk upward looking for reusable accumulator
// state.
type Node struct {
	Position *board.Position
	Parent   *Node
	Context  NodeContext
}

// NewRootNode builds a node with no parent and nothing cached; the first
// Evaluate call on it always performs a full refresh for both perspectives.
func NewRootNode(pos *board.Position) *Node {
	return &Node{
		Position: pos,
		Context: NodeContext{
			AccumDirty: [2]bool{true, true},
			NNScore:    InvalidScore,
		},
	}
}

// NewChild builds a node for a position reached from parent by the given
// dirty pieces. The caller supplies the already-applied child position;
// dirtyPieces describes the delta parent.Position -> pos.
func NewChild(parent *Node, pos *board.Position, dirtyPieces []DirtyPiece) *Node {
	return &Node{
		Position: pos,
		Parent:   parent,
		Context: NodeContext{
			AccumDirty:  [2]bool{true, true},
			DirtyPieces: dirtyPieces,
			NNScore:     InvalidScore,
		},
	}
}
