package nnue

// Network architecture: a shared feature transformer (L1Weights/L1Bias)
// feeding 16 independent output heads, one per Variant bucket. Sharing the
// feature transformer across buckets keeps the weight file a manageable
// size; only the small L2/output stage varies per bucket, in the spirit of
// the "layer stacks" buckets use in comparable NNUE designs.
const (
	L2Size      = 32
	NumVariants = 16

	l1QuantShift = 6
	l2QuantShift = 6
	outputScale  = 600
)

// OutputHead is the per-variant tail of the network: L1 output (both
// perspectives concatenated) -> L2 -> scalar.
type OutputHead struct {
	L2Weights     [L1Size * 2][L2Size]int8
	L2Bias        [L2Size]int32
	OutputWeights [L2Size]int8
	OutputBias    int32
}

// Network holds the full set of quantised weights.
type Network struct {
	L1Weights [FeatureSize][L1Size]int16
	L1Bias    [L1Size]int16
	Heads     [NumVariants]OutputHead
}

// NewNetwork returns a network with zero weights; callers must either load
// weights from disk or call InitRandom for testing.
func NewNetwork() *Network {
	return &Network{}
}

// clampedReLU clamps to [0, 127] for quantised inference.
func clampedReLU(x int16) int8 {
	if x < 0 {
		return 0
	}
	if x > 127 {
		return 127
	}
	return int8(x)
}

// Run computes the network's scalar output given both perspectives'
// accumulators and a variant bucket. own is the side-to-move's accumulator.
func (n *Network) Run(own, their *Accumulator, variant int) int32 {
	var l1Out [L1Size * 2]int8
	for i := 0; i < L1Size; i++ {
		l1Out[i] = clampedReLU(own.Values[i])
		l1Out[L1Size+i] = clampedReLU(their.Values[i])
	}
	return n.Heads[variant].forward(l1Out[:])
}

func (h *OutputHead) forward(l1Out []int8) int32 {
	var l2Out [L2Size]int8
	for i := 0; i < L2Size; i++ {
		sum := h.L2Bias[i]
		for j, v := range l1Out {
			sum += int32(v) * int32(h.L2Weights[j][i])
		}
		l2Out[i] = clampedReLU(int16(sum >> l1QuantShift))
	}

	output := h.OutputBias
	for i := 0; i < L2Size; i++ {
		output += int32(l2Out[i]) * int32(h.OutputWeights[i])
	}
	return (output * outputScale) >> (l2QuantShift + 8)
}

// RunFeatures is the stateless direct form: it builds both accumulators
// from scratch off raw feature lists and runs the network, without any
// node/parent-chain bookkeeping. Used for validation and for evaluation
// outside a search tree (e.g. the sampler's training filter).
func (n *Network) RunFeatures(ownFeatures, theirFeatures []int, variant int) int32 {
	var own, their Accumulator
	copy(own.Values[:], n.L1Bias[:])
	copy(their.Values[:], n.L1Bias[:])

	for _, idx := range ownFeatures {
		row := &n.L1Weights[idx]
		for i := range own.Values {
			own.Values[i] += row[i]
		}
	}
	for _, idx := range theirFeatures {
		row := &n.L1Weights[idx]
		for i := range their.Values {
			their.Values[i] += row[i]
		}
	}
	return n.Run(&own, &their, variant)
}

// InitRandom fills the network with small deterministic pseudo-random
// weights, for tests that need a network but not a trained one.
func (n *Network) InitRandom(seed int64) {
	state := uint64(seed)
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state>>48)&0xFF) - 128
	}

	for i := 0; i < FeatureSize; i++ {
		for j := 0; j < L1Size; j++ {
			n.L1Weights[i][j] = next() >> 5
		}
	}
	for i := 0; i < L1Size; i++ {
		n.L1Bias[i] = next() >> 3
	}

	clampInt8 := func(v int16) int8 {
		if v > 127 {
			return 127
		}
		if v < -128 {
			return -128
		}
		return int8(v)
	}

	for v := 0; v < NumVariants; v++ {
		h := &n.Heads[v]
		for i := 0; i < L1Size*2; i++ {
			for j := 0; j < L2Size; j++ {
				h.L2Weights[i][j] = clampInt8(next() >> 6)
			}
		}
		for i := 0; i < L2Size; i++ {
			h.L2Bias[i] = int32(next())
		}
		for i := 0; i < L2Size; i++ {
			h.OutputWeights[i] = clampInt8(next() >> 6)
		}
		h.OutputBias = int32(next()) * 100
	}
}
