package snapshot

import (
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/slateos/backend/internal/shared/types"
)

// Codec is the pure serialization boundary between a runtime's state and
// the transport-neutral payload the persistence gateway stores. No
// dependencies, no side effects.
type Codec struct{}

// NewCodec creates a codec
func NewCodec() *Codec {
	return &Codec{}
}

// Encode serializes a snapshot to its payload form
func (c *Codec) Encode(snap *types.Snapshot) ([]byte, error) {
	data, err := sonic.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot %s: %w", snap.ContextID, err)
	}
	return data, nil
}

// Decode deserializes a payload back into a snapshot
func (c *Codec) Decode(data []byte) (*types.Snapshot, error) {
	var snap types.Snapshot
	if err := sonic.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.ContextID == "" {
		return nil, fmt.Errorf("decoded snapshot has empty context id")
	}
	if snap.Components == nil {
		snap.Components = make(map[string]types.Component)
	}
	return &snap, nil
}
