package nnue

import "github.com/arkchess/nnueval/internal/board"

// Evaluator pairs a trained Network with the incremental node-walking
// algorithm. It holds no mutable state of its own; all per-position state
// lives in the Node/NodeContext the caller passes in.
type Evaluator struct {
	Net *Network
}

// NewEvaluator wraps net.
func NewEvaluator(net *Network) *Evaluator {
	return &Evaluator{Net: net}
}

// kingSide reports whether perspective p's own king sits on files a-d in
// n's position.
func kingSide(n *Node, p board.Color) bool {
	return n.Position.KingSquare[p].File() < 4
}

// Evaluate returns the network's scalar score for node, from the
// side-to-move's perspective, resolving and caching accumulators along the
// way. It mutates node and, when it finds a two-stage sharing opportunity,
// node.Parent.
func (e *Evaluator) Evaluate(node *Node) int32 {
	if node.Context.NNScore != InvalidScore {
		return node.Context.NNScore
	}

	for _, p := range [2]board.Color{board.White, board.Black} {
		e.resolvePerspective(node, p)
	}

	variant := Variant(node.Position)
	stm := node.Position.SideToMove
	own := &node.Context.Accumulator[stm]
	their := &node.Context.Accumulator[stm.Other()]
	score := e.Net.Run(own, their, variant)

	node.Context.NNScore = score
	return score
}

// resolvePerspective ensures node.Context.Accumulator[p] is valid and
// node.Context.AccumDirty[p] is false, finding the cheapest path to do so
// by walking the parent chain.
func (e *Evaluator) resolvePerspective(node *Node, p board.Color) {
	if !node.Context.AccumDirty[p] {
		return
	}

	refreshCost := node.Position.NumPieces()
	updateCost := 0
	var prevAccumNode *Node
	kingSideHere := kingSide(node, p)

	for n := node; n != nil; n = n.Parent {
		updateCost += len(n.Context.DirtyPieces)
		if updateCost > refreshCost {
			break
		}
		if kingSide(n, p) != kingSideHere {
			break
		}
		if !n.Context.AccumDirty[p] {
			prevAccumNode = n
			break
		}
	}

	switch {
	case prevAccumNode == node:
		// Already valid; nothing to do.
	case node.Parent != nil && prevAccumNode != node.Parent && node.Parent.Context.AccumDirty[p]:
		e.applyUpdate(node.Parent, prevAccumNode, p)
		e.applyUpdate(node, node.Parent, p)
	default:
		e.applyUpdate(node, prevAccumNode, p)
	}
}

// applyUpdate resolves target.Context.Accumulator[p] from source (nil means
// full refresh), walking the dirty-piece lists from target up to source
// (source excluded, target included).
func (e *Evaluator) applyUpdate(target, source *Node, p board.Color) {
	if source == nil {
		target.Context.Accumulator[p].Refresh(e.Net, target.Position, p)
		target.Context.AccumDirty[p] = false
		return
	}

	var added, removed []int
	for n := target; n != source; n = n.Parent {
		for _, dp := range n.Context.DirtyPieces {
			if dp.To != InvalidSquare {
				added = append(added, DeltaIndex(dp.Piece, dp.Color, dp.To, target.Position, p))
			}
			if dp.From != InvalidSquare {
				removed = append(removed, DeltaIndex(dp.Piece, dp.Color, dp.From, target.Position, p))
			}
		}
	}

	added, removed = cancelPairs(added, removed)

	if len(added) == 0 && len(removed) == 0 {
		target.Context.Accumulator[p] = source.Context.Accumulator[p]
	} else {
		target.Context.Accumulator[p].Update(&source.Context.Accumulator[p], e.Net, added, removed)
	}
	target.Context.AccumDirty[p] = false
}

// cancelPairs removes indices that appear in both added and removed —
// pairs that arise, for instance, from a capture interacting with an en
// passant flag across the walked span. O(|added|*|removed|); acceptable
// under the 64-element cap both lists respect.
func cancelPairs(added, removed []int) ([]int, []int) {
	keptAdded := added[:0:0]
	removedUsed := make([]bool, len(removed))

	for _, a := range added {
		cancelled := false
		for i, r := range removed {
			if !removedUsed[i] && r == a {
				removedUsed[i] = true
				cancelled = true
				break
			}
		}
		if !cancelled {
			keptAdded = append(keptAdded, a)
		}
	}

	keptRemoved := removed[:0:0]
	for i, r := range removed {
		if !removedUsed[i] {
			keptRemoved = append(keptRemoved, r)
		}
	}

	return keptAdded, keptRemoved
}

// EvaluatePosition is the stateless fallback: it builds both feature
// vectors from scratch and runs the network directly, with no node or
// parent-chain bookkeeping. Used for validation and for evaluation outside
// a search tree, e.g. the sampler's training filter.
func (e *Evaluator) EvaluatePosition(pos *board.Position) int32 {
	own := Features(pos, pos.SideToMove)
	their := Features(pos, pos.SideToMove.Other())
	return e.Net.RunFeatures(own, their, Variant(pos))
}
