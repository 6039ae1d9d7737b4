package nnue

import "github.com/arkchess/nnueval/internal/board"

// L1Size is the width of the first hidden layer, per perspective.
const L1Size = 256

// Accumulator is the dense hidden-layer activation vector for one
// perspective. It is otherwise opaque: callers only ever Refresh it from a
// position or Update it from an ancestor's accumulator plus a set of changed
// feature indices.
type Accumulator struct {
	Values [L1Size]int16
}

// Refresh recomputes the accumulator from scratch for (pos, perspective).
func (a *Accumulator) Refresh(net *Network, pos *board.Position, perspective board.Color) {
	copy(a.Values[:], net.L1Bias[:])
	for _, idx := range Features(pos, perspective) {
		row := &net.L1Weights[idx]
		for i := range a.Values {
			a.Values[i] += row[i]
		}
	}
	recordRefresh()
}

// Update sets a = prev + sum(W[added]) - sum(W[removed]).
func (a *Accumulator) Update(prev *Accumulator, net *Network, added, removed []int) {
	a.Values = prev.Values
	for _, idx := range removed {
		row := &net.L1Weights[idx]
		for i := range a.Values {
			a.Values[i] -= row[i]
		}
	}
	for _, idx := range added {
		row := &net.L1Weights[idx]
		for i := range a.Values {
			a.Values[i] += row[i]
		}
	}
	recordUpdate()
}
