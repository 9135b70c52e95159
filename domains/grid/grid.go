package grid

import "context"

// Extent describes the current size of a remote sheet.
type Extent struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// ISource is the contract every hosted-grid backend must satisfy.
// Extent and Cell are cheap point reads used for staleness fingerprints;
// Rows is the bulk read used by report loaders.
type ISource interface {
	ID() string
	Extent(ctx context.Context) (Extent, error)
	Cell(ctx context.Context, row, col int) (string, error)
	Rows(ctx context.Context, startRow, count int) ([][]string, error)
}
