package daemon

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/marketplace"
)

func TestMetadataRefreshPayload(t *testing.T) {
	minted := marketplace.TokenMinted{
		Ref:   entity.TokenRef{TokenAddress: "revnft", TokenID: 7},
		Owner: "alice",
		Time:  time.Now(),
	}

	body, ok := metadataRefreshPayload(minted)
	require.True(t, ok)

	var ref entity.TokenRef
	require.NoError(t, json.Unmarshal(body, &ref))
	assert.Equal(t, minted.Ref, ref)
}

func TestMetadataRefreshPayloadIgnoresOtherEvents(t *testing.T) {
	_, ok := metadataRefreshPayload(entity.SaleListing{})
	assert.False(t, ok)
}
