package elastic_search

import (
	"fmt"

	"github.com/revmarket/marketplace-engine/internal/config"
)

type Indices string

var (
	TokenIndex        Indices = "token"
	MarketActionIndex Indices = "marketaction"
	DevErrorIndex     Indices = "deverror"
)

// Sets the network and returns the full string
func (i *Indices) Get() string {
	return fmt.Sprintf("%s.%s.%s", config.Get().Network, config.Get().Index, string(*i))
}
