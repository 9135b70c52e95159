package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AzielCF/az-sheetboard/infrastructure/gridsource"
)

func sampleSource() *gridsource.MemorySource {
	return gridsource.NewMemorySource("sheet-1", [][]string{
		{"id", "name", "hours"},
		{"1", "alice", "40"},
		{"2", "bob", "32"},
	})
}

func TestFingerprint_Stable(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()
	src := sampleSource()

	a := svc.Fingerprint(ctx, src)
	b := svc.Fingerprint(ctx, src)
	assert.Equal(t, a, b, "an unchanged source must produce an identical fingerprint")
	assert.Len(t, a, 32)
}

func TestFingerprint_ChangesWithExtent(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()
	src := sampleSource()

	before := svc.Fingerprint(ctx, src)
	src.SetCell(3, 0, "3") // new row changes the extent
	after := svc.Fingerprint(ctx, src)
	assert.NotEqual(t, before, after)
}

func TestFingerprint_ChangesWithLastCell(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()
	src := sampleSource()

	before := svc.Fingerprint(ctx, src)
	src.SetCell(2, 2, "33")
	after := svc.Fingerprint(ctx, src)
	assert.NotEqual(t, before, after)
}

func TestFingerprint_InteriorEditNotDetected(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()
	src := sampleSource()

	before := svc.Fingerprint(ctx, src)
	src.SetCell(1, 1, "carol") // neither first nor last cell
	after := svc.Fingerprint(ctx, src)
	assert.Equal(t, before, after, "the boundary heuristic deliberately misses interior edits")
}

func TestFingerprint_ExtentOnlyWhenCellsUnreadable(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()

	src := sampleSource()
	src.FailCells = true

	a := svc.Fingerprint(ctx, src)
	b := svc.Fingerprint(ctx, src)
	assert.Equal(t, a, b, "extent-only fingerprints are still stable")
	assert.Len(t, a, 32)

	src.FailCells = false
	full := svc.Fingerprint(ctx, src)
	assert.NotEqual(t, a, full)
}

func TestFingerprint_OneUnreadableCellDropsBoth(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()

	// A ragged grid: the extent reports 2x2 but the last cell does not
	// exist, so only that read fails.
	ragged := gridsource.NewMemorySource("sheet-1", [][]string{
		{"a", "b"},
		{"c"},
	})

	extentOnly := gridsource.NewMemorySource("sheet-1", [][]string{
		{"a", "b"},
		{"c"},
	})
	extentOnly.FailCells = true

	assert.Equal(t, svc.Fingerprint(ctx, extentOnly), svc.Fingerprint(ctx, ragged),
		"a partial boundary read must degrade all the way to extent-only")
}

func TestFingerprint_UnreachableSourceForcesRefresh(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()

	src := sampleSource()
	src.FailExtent = true

	a := svc.Fingerprint(ctx, src)
	b := svc.Fingerprint(ctx, src)
	assert.True(t, strings.HasPrefix(a, "unreachable-"))
	assert.NotEqual(t, a, b, "fallback fingerprints must never match a cached one")
}

func TestFingerprint_EmptySheet(t *testing.T) {
	svc := NewFingerprintService()
	ctx := context.Background()

	empty := gridsource.NewMemorySource("empty", nil)
	fp := svc.Fingerprint(ctx, empty)
	require.Len(t, fp, 32)
	assert.Equal(t, fp, svc.Fingerprint(ctx, empty))
}
