package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Weight file format constants.
const (
	MagicNumber = 0x4e554556 // "NUEV"
	Version     = 1
)

// FileHeader is the header of the weight file.
type FileHeader struct {
	Magic       uint32
	Version     uint32
	FeatureSize uint32
	L1Size      uint32
	L2Size      uint32
	NumVariants uint32
}

// LoadWeights loads network weights from filename.
func (n *Network) LoadWeights(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("nnue: open weights file: %w", err)
	}
	defer f.Close()
	return n.LoadWeightsFromReader(f)
}

// SaveWeights writes network weights to filename.
func (n *Network) SaveWeights(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("nnue: create weights file: %w", err)
	}
	defer f.Close()
	return n.SaveWeightsToWriter(f)
}

// LoadWeightsFromReader loads network weights from an io.Reader.
//
// File layout: FileHeader, then L1Weights (FeatureSize x L1Size int16),
// L1Bias (L1Size int16), then NumVariants repetitions of
// {L2Weights, L2Bias, OutputWeights, OutputBias} for each OutputHead.
func (n *Network) LoadWeightsFromReader(r io.Reader) error {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("nnue: read header: %w", err)
	}
	if header.Magic != MagicNumber {
		return fmt.Errorf("nnue: invalid magic number: expected %x, got %x", MagicNumber, header.Magic)
	}
	if header.Version != Version {
		return fmt.Errorf("nnue: unsupported version: expected %d, got %d", Version, header.Version)
	}
	if header.FeatureSize != FeatureSize {
		return fmt.Errorf("nnue: feature size mismatch: expected %d, got %d", FeatureSize, header.FeatureSize)
	}
	if header.L1Size != L1Size {
		return fmt.Errorf("nnue: L1 size mismatch: expected %d, got %d", L1Size, header.L1Size)
	}
	if header.L2Size != L2Size {
		return fmt.Errorf("nnue: L2 size mismatch: expected %d, got %d", L2Size, header.L2Size)
	}
	if header.NumVariants != NumVariants {
		return fmt.Errorf("nnue: variant count mismatch: expected %d, got %d", NumVariants, header.NumVariants)
	}

	for i := 0; i < FeatureSize; i++ {
		if err := binary.Read(r, binary.LittleEndian, &n.L1Weights[i]); err != nil {
			return fmt.Errorf("nnue: read L1 weights at %d: %w", i, err)
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &n.L1Bias); err != nil {
		return fmt.Errorf("nnue: read L1 bias: %w", err)
	}

	for v := 0; v < NumVariants; v++ {
		h := &n.Heads[v]
		for i := 0; i < L1Size*2; i++ {
			if err := binary.Read(r, binary.LittleEndian, &h.L2Weights[i]); err != nil {
				return fmt.Errorf("nnue: read L2 weights for variant %d at %d: %w", v, i, err)
			}
		}
		if err := binary.Read(r, binary.LittleEndian, &h.L2Bias); err != nil {
			return fmt.Errorf("nnue: read L2 bias for variant %d: %w", v, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &h.OutputWeights); err != nil {
			return fmt.Errorf("nnue: read output weights for variant %d: %w", v, err)
		}
		if err := binary.Read(r, binary.LittleEndian, &h.OutputBias); err != nil {
			return fmt.Errorf("nnue: read output bias for variant %d: %w", v, err)
		}
	}

	return nil
}

// SaveWeightsToWriter writes network weights to w, in the format
// LoadWeightsFromReader expects.
func (n *Network) SaveWeightsToWriter(w io.Writer) error {
	header := FileHeader{
		Magic:       MagicNumber,
		Version:     Version,
		FeatureSize: FeatureSize,
		L1Size:      L1Size,
		L2Size:      L2Size,
		NumVariants: NumVariants,
	}
	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("nnue: write header: %w", err)
	}

	for i := 0; i < FeatureSize; i++ {
		if err := binary.Write(w, binary.LittleEndian, &n.L1Weights[i]); err != nil {
			return fmt.Errorf("nnue: write L1 weights at %d: %w", i, err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, &n.L1Bias); err != nil {
		return fmt.Errorf("nnue: write L1 bias: %w", err)
	}

	for v := 0; v < NumVariants; v++ {
		h := &n.Heads[v]
		for i := 0; i < L1Size*2; i++ {
			if err := binary.Write(w, binary.LittleEndian, &h.L2Weights[i]); err != nil {
				return fmt.Errorf("nnue: write L2 weights for variant %d at %d: %w", v, i, err)
			}
		}
		if err := binary.Write(w, binary.LittleEndian, &h.L2Bias); err != nil {
			return fmt.Errorf("nnue: write L2 bias for variant %d: %w", v, err)
		}
		if err := binary.Write(w, binary.LittleEndian, &h.OutputWeights); err != nil {
			return fmt.Errorf("nnue: write output weights for variant %d: %w", v, err)
		}
		if err := binary.Write(w, binary.LittleEndian, &h.OutputBias); err != nil {
			return fmt.Errorf("nnue: write output bias for variant %d: %w", v, err)
		}
	}

	return nil
}
