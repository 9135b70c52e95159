package gridsource

import (
	"context"
	"errors"
	"sync"

	"github.com/AzielCF/az-sheetboard/domains/grid"
)

// ErrUnreachable simulates a dead remote source.
var ErrUnreachable = errors.New("grid source unreachable")

// MemorySource is an in-process grid used by tests and local development.
type MemorySource struct {
	mu    sync.RWMutex
	id    string
	cells [][]string

	// FailExtent / FailCells force errors to exercise fallback paths.
	FailExtent bool
	FailCells  bool
}

func NewMemorySource(id string, cells [][]string) *MemorySource {
	return &MemorySource{id: id, cells: cells}
}

func (s *MemorySource) ID() string {
	return s.id
}

// SetCell mutates one cell, growing the grid if needed.
func (s *MemorySource) SetCell(row, col int, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.cells) <= row {
		s.cells = append(s.cells, nil)
	}
	for len(s.cells[row]) <= col {
		s.cells[row] = append(s.cells[row], "")
	}
	s.cells[row][col] = value
}

func (s *MemorySource) Extent(ctx context.Context) (grid.Extent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailExtent {
		return grid.Extent{}, ErrUnreachable
	}
	cols := 0
	if len(s.cells) > 0 {
		cols = len(s.cells[0])
	}
	return grid.Extent{Rows: len(s.cells), Cols: cols}, nil
}

func (s *MemorySource) Cell(ctx context.Context, row, col int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailCells {
		return "", ErrUnreachable
	}
	if row < 0 || row >= len(s.cells) || col < 0 || col >= len(s.cells[row]) {
		return "", errors.New("cell out of range")
	}
	return s.cells[row][col], nil
}

func (s *MemorySource) Rows(ctx context.Context, startRow, count int) ([][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailCells {
		return nil, ErrUnreachable
	}
	if startRow < 0 || startRow >= len(s.cells) {
		return nil, nil
	}
	end := startRow + count
	if end > len(s.cells) {
		end = len(s.cells)
	}
	out := make([][]string, 0, end-startRow)
	for _, r := range s.cells[startRow:end] {
		out = append(out, append([]string(nil), r...))
	}
	return out, nil
}
