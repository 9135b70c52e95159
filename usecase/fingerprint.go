package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-sheetboard/domains/grid"
)

// FingerprintService digests the current shape of a remote sheet so callers
// can detect staleness without reading the whole dataset. The digest covers
// the extent plus the first and last data cells only; two different datasets
// with identical extent and boundary cells will collide. That is an accepted
// heuristic limitation, not a guarantee.
type FingerprintService struct{}

func NewFingerprintService() *FingerprintService {
	return &FingerprintService{}
}

// Fingerprint returns a stable digest of the source's current state.
//
// Failure handling is soft by design:
//   - a boundary cell that cannot be read is dropped, leaving an extent-only
//     fingerprint
//   - an unreachable source yields a time-based fallback that can never match
//     a previously cached fingerprint, forcing a refresh
func (s *FingerprintService) Fingerprint(ctx context.Context, source grid.ISource) string {
	extent, err := source.Extent(ctx)
	if err != nil {
		logrus.Warnf("[Fingerprint] source %s unreachable, forcing refresh: %v", source.ID(), err)
		return fmt.Sprintf("unreachable-%d-%s", time.Now().UnixNano(), uuid.NewString())
	}

	var first, last string
	if extent.Rows > 0 && extent.Cols > 0 {
		f, ferr := source.Cell(ctx, 0, 0)
		l, lerr := source.Cell(ctx, extent.Rows-1, extent.Cols-1)
		if ferr != nil || lerr != nil {
			// Either cell failing drops both, so the digest depends on the
			// extent alone rather than on which read happened to succeed.
			logrus.Debugf("[Fingerprint] source %s: boundary cell unreadable, extent-only", source.ID())
		} else {
			first, last = f, l
		}
	}

	payload := fmt.Sprintf("%s|%dx%d|%s|%s", source.ID(), extent.Rows, extent.Cols, first, last)
	hi := xxhash.Sum64String(payload)
	lo := xxhash.Sum64String("azsb|" + payload)
	return fmt.Sprintf("%016x%016x", hi, lo)
}
