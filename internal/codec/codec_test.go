package codec

import (
	"testing"

	"github.com/arkchess/nnueval/internal/board"
)

func TestEntrySizeIsExactly32Bytes(t *testing.T) {
	const scoreBytes, wdlBytes, hmcBytes, mcBytes = 2, 1, 1, 2
	sum := packedBoardSize + scoreBytes + wdlBytes + hmcBytes + mcBytes
	if sum != 32 {
		t.Fatalf("field sizes add up to %d, the on-disk wire contract requires exactly 32", sum)
	}
	if EntrySize != 32 {
		t.Fatalf("EntrySize = %d, want 32", EntrySize)
	}
}

func TestRoundTripStartingPosition(t *testing.T) {
	pos := board.NewPosition()
	entry := &PositionEntry{
		Position:      pos,
		Score:         35,
		WDL:           Draw,
		HalfMoveCount: 0,
		MoveCount:     1,
	}

	buf, err := Encode(entry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, ok := Decode(buf)
	if !ok {
		t.Fatalf("Decode rejected a freshly encoded starting position")
	}

	if got.Score != entry.Score || got.WDL != entry.WDL || got.HalfMoveCount != entry.HalfMoveCount || got.MoveCount != entry.MoveCount {
		t.Fatalf("scalar fields did not round-trip: got %+v, want score=%d wdl=%d hmc=%d mc=%d",
			got, entry.Score, entry.WDL, entry.HalfMoveCount, entry.MoveCount)
	}

	for sq := board.A1; sq <= board.H8; sq++ {
		if got.Position.PieceAt(sq) != pos.PieceAt(sq) {
			t.Fatalf("square %v: got piece %v, want %v", sq, got.Position.PieceAt(sq), pos.PieceAt(sq))
		}
	}
	if got.Position.SideToMove != pos.SideToMove {
		t.Fatalf("side to move did not round-trip")
	}
	if got.Position.CastlingRights != pos.CastlingRights {
		t.Fatalf("castling rights did not round-trip: got %v, want %v", got.Position.CastlingRights, pos.CastlingRights)
	}
}

func TestRoundTripEnPassant(t *testing.T) {
	pos, err := board.ParseFEN("rnbqkbnr/ppp1pppp/8/8/3pP3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 3")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	entry := &PositionEntry{Position: pos, Score: -12, WDL: WhiteWins, HalfMoveCount: 0, MoveCount: 3}
	buf, err := Encode(entry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, ok := Decode(buf)
	if !ok {
		t.Fatalf("Decode rejected a position with an en-passant target")
	}
	if got.Position.EnPassant != pos.EnPassant {
		t.Fatalf("en-passant square did not round-trip: got %v, want %v", got.Position.EnPassant, pos.EnPassant)
	}
}

func TestRoundTripMidgamePosition(t *testing.T) {
	pos, err := board.ParseFEN("r1bqk2r/pppp1ppp/2n2n2/2b1p3/2B1P3/2N2N2/PPPP1PPP/R1BQK2R w KQkq - 4 5")
	if err != nil {
		t.Fatalf("ParseFEN: %v", err)
	}

	entry := &PositionEntry{Position: pos, Score: 18, WDL: Draw, HalfMoveCount: 4, MoveCount: 5}
	buf, err := Encode(entry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, ok := Decode(buf)
	if !ok {
		t.Fatalf("Decode rejected a valid midgame position")
	}
	if got.Position.NumPieces() != pos.NumPieces() {
		t.Fatalf("piece count did not round-trip: got %d, want %d", got.Position.NumPieces(), pos.NumPieces())
	}
	for sq := board.A1; sq <= board.H8; sq++ {
		if got.Position.PieceAt(sq) != pos.PieceAt(sq) {
			t.Fatalf("square %v mismatch: got %v, want %v", sq, got.Position.PieceAt(sq), pos.PieceAt(sq))
		}
	}
}

func TestDecodeRejectsInvalidNibble(t *testing.T) {
	pos := board.NewPosition()
	entry := &PositionEntry{Position: pos, Score: 0, WDL: Draw}
	buf, err := Encode(entry)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Corrupt the first piece nibble to an out-of-range value (12 = NoPiece,
	// 13-15 unused).
	buf[8] = (buf[8] & 0xF0) | 0x0F

	if _, ok := Decode(buf); ok {
		t.Fatalf("Decode accepted a record with an invalid piece nibble")
	}
}
