package snapshot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slateos/backend/internal/shared/types"
)

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec()

	snap := &types.Snapshot{
		ContextID: "ctx-1",
		Revision:  3,
		OpenEntities: []types.OpenEntity{
			{EntityID: "ent-a", Anchor: "line:12"},
			{EntityID: "ent-b", Anchor: "top"},
		},
		Components: map[string]types.Component{
			"cmp-1": {
				ID:       "cmp-1",
				Type:     "timer",
				Position: types.Position{X: 10, Y: 20},
				Size:     types.Size{Width: 200, Height: 100},
				Metadata: map[string]interface{}{"remaining": float64(42)},
				IsActive: true,
			},
		},
		Camera:     types.Camera{X: 5, Y: -3, Zoom: 1.5},
		CapturedAt: 99,
	}

	data, err := codec.Encode(snap)
	require.NoError(t, err)

	decoded, err := codec.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, snap.ContextID, decoded.ContextID)
	assert.Equal(t, snap.Revision, decoded.Revision)
	assert.Equal(t, snap.OpenEntities, decoded.OpenEntities)
	assert.Equal(t, snap.Components, decoded.Components)
	assert.Equal(t, snap.Camera, decoded.Camera)
	assert.Equal(t, snap.CapturedAt, decoded.CapturedAt)
}

func TestCodecRejectsMissingContextID(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode([]byte(`{"revision": 1}`))
	assert.Error(t, err)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := NewCodec()

	_, err := codec.Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestCodecDecodeNormalizesNilComponents(t *testing.T) {
	codec := NewCodec()

	decoded, err := codec.Decode([]byte(`{"context_id": "ctx-1", "revision": 1}`))
	require.NoError(t, err)
	assert.NotNil(t, decoded.Components)
}
