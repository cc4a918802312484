package hostapi

import (
	"context"
	"fmt"
	"sort"

	"github.com/anoma/kassandra-service/internal/fetch"
	"github.com/anoma/kassandra-service/internal/wire"
)

// PerformFmd runs one FMD tick against the enclave per §4.8: ask which
// heights the enclave's registered keys still need, gather the flags
// at those heights from the store, send them back, and persist the
// results.
func (h *Handler) PerformFmd(ctx context.Context, syncedTo *fetch.Watch[uint64]) error {
	if err := h.Enclave.WriteFrame(wire.MsgFromHost{RequiredBlocks: &struct{}{}}); err != nil {
		return fmt.Errorf("hostapi: request required blocks: %w", err)
	}

	var required wire.MsgToHost
	if err := h.Enclave.ReadFrame(&required); err != nil {
		return fmt.Errorf("hostapi: read required blocks: %w", err)
	}
	if required.Error != nil {
		return fmt.Errorf("hostapi: enclave reported error: %s", *required.Error)
	}

	heights := dedupSorted(required.BlockRequests)
	if len(heights) == 0 {
		return nil
	}

	records, err := h.Store.TxsAtHeights(ctx, heights)
	if err != nil {
		return fmt.Errorf("hostapi: load txs at requested heights: %w", err)
	}

	flags := make([]wire.FlagEntry, 0, len(records))
	for _, r := range records {
		flags = append(flags, wire.FlagEntry{Index: r.Index, Flag: r.Flag})
	}

	syncedToHeight := uint64(1)
	if syncedTo != nil {
		syncedToHeight = syncedTo.Get()
	}

	if err := h.Enclave.WriteFrame(wire.MsgFromHost{
		RequestedFlags: &wire.RequestedFlagsMsg{SyncedTo: syncedToHeight, Flags: flags},
	}); err != nil {
		return fmt.Errorf("hostapi: send requested flags: %w", err)
	}

	var result wire.MsgToHost
	if err := h.Enclave.ReadFrame(&result); err != nil {
		return fmt.Errorf("hostapi: read fmd results: %w", err)
	}
	if result.Error != nil {
		return fmt.Errorf("hostapi: enclave rejected fmd tick: %s", *result.Error)
	}
	if result.ErrorForClient != nil {
		return fmt.Errorf("hostapi: enclave rejected fmd tick: %s", *result.ErrorForClient)
	}

	for _, resp := range result.FmdResults {
		if err := h.Store.UpsertIndices(ctx, resp.Owner, resp); err != nil {
			return fmt.Errorf("hostapi: persist fmd result for %s: %w", resp.Owner, err)
		}
	}
	return nil
}

// dedupSorted returns heights sorted ascending with duplicates removed.
func dedupSorted(heights []uint64) []uint64 {
	if len(heights) == 0 {
		return nil
	}
	sorted := append([]uint64(nil), heights...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := sorted[:1]
	for _, h := range sorted[1:] {
		if h != out[len(out)-1] {
			out = append(out, h)
		}
	}
	return out
}
