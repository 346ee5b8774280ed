package snapshot

import (
	"github.com/slateos/backend/internal/domain/runtime"
	"github.com/slateos/backend/internal/shared/types"
)

// Replay applies a snapshot to a runtime.
//
// Cold runtimes (just constructed, no live state) take a straight load.
// Hot runtimes merge instead: live entities and components absent from the
// snapshot are preserved (they may be newer than the snapshot), snapshot
// entries absent live are added. Naive overwrite was found to resurrect
// stale state while erasing legitimately-newer live state during rapid
// switching.
//
// Returns the ids merged into a hot runtime so a subsequent reconciliation
// pass does not treat them as deletions; nil for a cold load.
func Replay(rt *runtime.Runtime, snap *types.Snapshot, hot bool) []string {
	if snap == nil {
		return nil
	}

	if !hot {
		rt.Apply(snap.OpenEntities, snap.Components, snap.Camera)
		rt.SeedRevision(snap.Revision)
		return nil
	}

	return rt.Merge(snap.OpenEntities, snap.Components)
}
