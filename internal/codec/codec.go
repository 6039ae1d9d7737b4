// Package codec packs and unpacks the fixed 32-byte on-disk position
// record the sampling pipeline reads directly off disk at byte offsets.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/arkchess/nnueval/internal/board"
)

// WDL is the game result as recorded alongside a position.
type WDL uint8

const (
	WhiteWins WDL = 0
	Draw      WDL = 1
	BlackWins WDL = 2
)

// EntrySize is the binding wire size of a PositionEntry.
const EntrySize = 32

// packedBoardSize is the portion of EntrySize the board itself occupies:
// 8-byte occupancy bitboard + 16 bytes of piece nibbles + 1 meta byte +
// 1 en-passant-file byte.
const packedBoardSize = 26

const (
	metaBlackToMove  = 1 << 0
	metaCastleShift  = 1
	metaCastleMask   = 0x0F << metaCastleShift
	metaEnPassantBit = 1 << 5
)

// PositionEntry is the fully decoded form of one on-disk record.
type PositionEntry struct {
	Position      *board.Position
	Score         int16 // centipawns, side-to-move POV
	WDL           WDL
	HalfMoveCount uint8
	MoveCount     uint16
}

// Encode packs e into a 32-byte wire record.
func Encode(e *PositionEntry) ([EntrySize]byte, error) {
	var buf [EntrySize]byte

	packed, err := packBoard(e.Position)
	if err != nil {
		return buf, err
	}
	copy(buf[0:packedBoardSize], packed[:])

	binary.LittleEndian.PutUint16(buf[26:28], uint16(e.Score))
	buf[28] = byte(e.WDL)
	buf[29] = e.HalfMoveCount
	binary.LittleEndian.PutUint16(buf[30:32], e.MoveCount)

	return buf, nil
}

// Decode unpacks a 32-byte wire record. It returns false if the packed
// board is internally inconsistent (a nibble names a piece kind that
// doesn't exist, or more bits are set in the occupancy bitboard than fit
// the record) — the on-disk format is a strict binary contract and callers
// should treat a false return as fatal, not as "try the next record".
func Decode(buf [EntrySize]byte) (PositionEntry, bool) {
	var boardBytes [packedBoardSize]byte
	copy(boardBytes[:], buf[0:packedBoardSize])

	pos, ok := unpackBoard(boardBytes)
	if !ok {
		return PositionEntry{}, false
	}

	entry := PositionEntry{
		Position:      pos,
		Score:         int16(binary.LittleEndian.Uint16(buf[26:28])),
		WDL:           WDL(buf[28]),
		HalfMoveCount: buf[29],
		MoveCount:     binary.LittleEndian.Uint16(buf[30:32]),
	}
	pos.HalfMoveClock = int(entry.HalfMoveCount)
	pos.FullMoveNumber = int(entry.MoveCount)
	return entry, true
}

// packBoard serialises pos into the 26-byte packed board layout: an 8-byte
// occupancy bitboard, 16 bytes of 4-bit piece nibbles (one per occupied
// square in ascending bit-scan order, low nibble first), a meta byte (bit 0
// side to move, bits 1-4 castling rights, bit 5 en-passant valid), and an
// en-passant-file byte meaningful only when that bit is set.
func packBoard(pos *board.Position) ([packedBoardSize]byte, error) {
	var out [packedBoardSize]byte

	occ := pos.AllOccupied
	if occ.PopCount() > 32 {
		return out, fmt.Errorf("codec: position has %d pieces, packed format caps at 32", occ.PopCount())
	}
	binary.LittleEndian.PutUint64(out[0:8], uint64(occ))

	squares := occ.Squares()
	for i, sq := range squares {
		piece := pos.PieceAt(sq)
		nibble := byte(piece)
		byteIdx := 8 + i/2
		if i%2 == 0 {
			out[byteIdx] = nibble
		} else {
			out[byteIdx] |= nibble << 4
		}
	}

	var meta byte
	if pos.SideToMove == board.Black {
		meta |= metaBlackToMove
	}
	meta |= byte(pos.CastlingRights) << metaCastleShift
	if pos.EnPassant != board.NoSquare {
		meta |= metaEnPassantBit
	}
	out[24] = meta

	if pos.EnPassant != board.NoSquare {
		out[25] = byte(pos.EnPassant.File())
	}

	return out, nil
}

// unpackBoard is the inverse of packBoard.
func unpackBoard(in [packedBoardSize]byte) (*board.Position, bool) {
	occ := board.Bitboard(binary.LittleEndian.Uint64(in[0:8]))
	if occ.PopCount() > 32 {
		return nil, false
	}

	pos := &board.Position{}
	pos.Clear()

	squares := occ.Squares()
	for i, sq := range squares {
		byteIdx := 8 + i/2
		var nibble byte
		if i%2 == 0 {
			nibble = in[byteIdx] & 0x0F
		} else {
			nibble = in[byteIdx] >> 4
		}
		if nibble >= byte(board.NoPiece) {
			return nil, false
		}
		pos.SetPiece(board.Piece(nibble), sq)
	}
	pos.RecomputeOccupancy()

	meta := in[24]
	if meta&metaBlackToMove != 0 {
		pos.SideToMove = board.Black
	} else {
		pos.SideToMove = board.White
	}
	pos.CastlingRights = board.CastlingRights((meta & metaCastleMask) >> metaCastleShift)

	pos.EnPassant = board.NoSquare
	if meta&metaEnPassantBit != 0 {
		file := int(in[25])
		if file < 0 || file > 7 {
			return nil, false
		}
		rank := 5 // a3-h3/a6-h6 target rank depends on side to move
		if pos.SideToMove == board.White {
			rank = 5
		} else {
			rank = 2
		}
		pos.EnPassant = board.NewSquare(file, rank)
	}

	if err := pos.Validate(); err != nil {
		return nil, false
	}
	return pos, true
}
