package marketplace

import (
	"time"

	"github.com/revmarket/marketplace-engine/internal/entity"
)

// TokenMinted is the payload of a TokenMintedEvent.
type TokenMinted struct {
	Ref      entity.TokenRef `json:"ref"`
	Owner    string          `json:"owner"`
	TokenURI string          `json:"tokenURI"`
	Time     time.Time       `json:"time"`
}

// TokenTransfer is the payload of a TokenTransferEvent.
type TokenTransfer struct {
	Ref  entity.TokenRef `json:"ref"`
	From string          `json:"from"`
	To   string          `json:"to"`
	Time time.Time       `json:"time"`
}
