package fetch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"

	"github.com/anoma/kassandra-service/internal/masp"
)

// RangesFile is the on-disk file name for the persisted FetchedRanges,
// matching the original's fetcher.dat naming (CBOR-encoded here instead
// of Borsh, since CBOR is already this project's wire codec).
const RangesFile = "fetcher.dat"

// loadRanges reads the persisted FetchedRanges from dir/RangesFile. A
// missing file is not an error: it means nothing has been fetched yet.
func loadRanges(dir string) (*masp.FetchedRanges, error) {
	path := filepath.Join(dir, RangesFile)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return masp.FetchedRangesFromBounds(nil), nil
		}
		return nil, fmt.Errorf("fetch: read %s: %w", path, err)
	}

	var bounds []uint64
	if err := cbor.Unmarshal(raw, &bounds); err != nil {
		return nil, fmt.Errorf("fetch: decode %s: %w", path, err)
	}
	return masp.FetchedRangesFromBounds(bounds), nil
}

// saveRanges persists ranges to dir/RangesFile.
func saveRanges(dir string, ranges *masp.FetchedRanges) error {
	raw, err := cbor.Marshal(ranges.Bounds())
	if err != nil {
		return fmt.Errorf("fetch: encode ranges: %w", err)
	}
	path := filepath.Join(dir, RangesFile)
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("fetch: write %s: %w", path, err)
	}
	return nil
}
