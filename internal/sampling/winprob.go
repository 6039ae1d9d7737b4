package sampling

import "math"

// expectedScore maps a pawn-scale evaluation to an expected game score in
// (0, 1) via the standard logistic curve. Centipawn scores are divided by
// 100 before calling this, per the filter table's literal "score/100".
// Not drawn from any example source — a standard choice, documented as
// such rather than grounded in a specific file.
func expectedScore(pawns float64) float64 {
	return 1 / (1 + math.Exp(-pawns/4))
}

// winProbability reads a centipawn score as the probability the
// side-to-move goes on to win, with a ply-dependent divisor: the same
// centipawn score is a stronger signal later in the game, since material
// and tactics have had more chances to simplify by then.
func winProbability(score int16, ply int) float64 {
	divisor := 400 - float64(ply)
	if divisor < 100 {
		divisor = 100
	}
	return 1 / (1 + math.Exp(-float64(score)/divisor))
}
