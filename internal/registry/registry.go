package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gosimple/slug"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/access"
	"github.com/revmarket/marketplace-engine/internal/entity"
	"github.com/revmarket/marketplace-engine/internal/ledger"
)

var (
	ErrNotOwner      = errors.New("not owner")
	ErrAlreadyAdded  = errors.New("already added")
	ErrNotExistToken = errors.New("not exist token")
	ErrNotTokenOwner = errors.New("not token owner")
	ErrIncorrectInfo = errors.New("incorrect info")
	ErrTokenListed   = errors.New("already listed")
)

const trendingCacheKey = "trending"

// Collection is a token namespace minted through the marketplace itself.
type Collection struct {
	Address     string          `json:"address"`
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	BaseURI     string          `json:"baseUri"`
	MintFee     decimal.Decimal `json:"mintFee"`
	NextTokenID uint64          `json:"nextTokenId"`
}

// Registry tracks every token known to the marketplace: ownership, sale and
// auction flags, offers and trade history. The sale, auction and offer
// engines all mutate token state through it, which is what guarantees a
// token is never simultaneously forSale and forAuction past settlement.
type Registry struct {
	mu          sync.RWMutex
	led         ledger.Ledger
	acl         *access.Control
	tokens      map[string]*entity.Token
	order       []string
	collections map[string]*Collection
	nativeNFT   string
	trending    *cache.Cache
}

func New(led ledger.Ledger, acl *access.Control, nativeNFT string, mintFee decimal.Decimal) *Registry {
	r := &Registry{
		led:         led,
		acl:         acl,
		tokens:      make(map[string]*entity.Token),
		order:       make([]string, 0),
		collections: make(map[string]*Collection),
		nativeNFT:   nativeNFT,
		trending:    cache.New(5*time.Second, time.Minute),
	}

	r.collections[nativeNFT] = &Collection{
		Address: nativeNFT,
		Name:    "Rev NFT",
		Symbol:  "RNT",
		MintFee: mintFee,
	}

	return r
}

func (r *Registry) NativeCollection() string {
	return r.nativeNFT
}

// AddCollection registers tokens the caller already owns on the ledger.
func (r *Registry) AddCollection(caller, collection string, tokenIDs []uint64) error {
	if err := r.acl.RequireClean(caller); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tokenID := range tokenIDs {
		owner, err := r.led.OwnerOf(collection, tokenID)
		if err != nil || owner != caller {
			return ErrNotOwner
		}
		if _, ok := r.tokens[entity.CreateTokenSlug(tokenID, collection)]; ok {
			return ErrAlreadyAdded
		}
	}

	for _, tokenID := range tokenIDs {
		r.register(&entity.Token{
			TokenAddress: collection,
			TokenID:      tokenID,
			Owner:        caller,
			Creator:      caller,
		})
	}

	zap.L().With(
		zap.String("collection", collection),
		zap.Int("tokens", len(tokenIDs)),
		zap.String("owner", caller),
	).Info("Registry: collection added")

	return nil
}

// RemoveNFT deregisters tokens; only their current owner may do so, and a
// token with a live sale or auction listing stays put until it is delisted.
func (r *Registry) RemoveNFT(caller, collection string, tokenIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, tokenID := range tokenIDs {
		token, ok := r.tokens[entity.CreateTokenSlug(tokenID, collection)]
		if !ok || token.Owner != caller {
			return ErrNotOwner
		}
		if token.ForSale || token.ForAuction {
			return ErrTokenListed
		}
	}

	for _, tokenID := range tokenIDs {
		key := entity.CreateTokenSlug(tokenID, collection)
		delete(r.tokens, key)
		for i, k := range r.order {
			if k == key {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}

	return nil
}

// BatchTransfer moves a set of registered tokens to one recipient. The whole
// batch is validated before any ownership changes, and listed tokens are
// rejected so a live sale or auction can never lose its underlying bundle.
func (r *Registry) BatchTransfer(caller, to string, refs []entity.TokenRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ref := range refs {
		owner, err := r.led.OwnerOf(ref.TokenAddress, ref.TokenID)
		if err != nil || owner != caller {
			return ErrNotTokenOwner
		}
		token, ok := r.tokens[ref.Slug()]
		if !ok {
			return ErrNotExistToken
		}
		if token.ForSale || token.ForAuction {
			return ErrTokenListed
		}
	}

	for _, ref := range refs {
		if err := r.led.TransferToken(ref.TokenAddress, ref.TokenID, caller, to); err != nil {
			return err
		}
		r.tokens[ref.Slug()].Owner = to
	}

	return nil
}

// MintNFT mints into the marketplace's native collection for a fixed fee
// paid in native currency and auto-registers the new token.
func (r *Registry) MintNFT(caller, tokenURI string, payment decimal.Decimal) (entity.TokenRef, error) {
	if err := r.acl.RequireClean(caller); err != nil {
		return entity.TokenRef{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.mint(caller, r.nativeNFT, tokenURI, payment)
}

// CreateCollection registers a fresh token namespace with its own mint fee.
func (r *Registry) CreateCollection(caller, name, symbol, baseURI string, mintFee decimal.Decimal) (string, error) {
	if err := r.acl.RequireClean(caller); err != nil {
		return "", err
	}
	if name == "" || symbol == "" {
		return "", ErrIncorrectInfo
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	address := slug.Make(fmt.Sprintf("%s-%d", symbol, len(r.collections)))
	r.collections[address] = &Collection{
		Address: address,
		Name:    name,
		Symbol:  symbol,
		BaseURI: baseURI,
		MintFee: mintFee,
	}

	zap.L().With(zap.String("address", address), zap.String("symbol", symbol)).Info("Registry: collection created")

	return address, nil
}

// MintInCollection mints into a collection created through the marketplace.
func (r *Registry) MintInCollection(caller, collection, tokenURI string, payment decimal.Decimal) (entity.TokenRef, error) {
	if err := r.acl.RequireClean(caller); err != nil {
		return entity.TokenRef{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.mint(caller, collection, tokenURI, payment)
}

func (r *Registry) mint(caller, collection, tokenURI string, payment decimal.Decimal) (entity.TokenRef, error) {
	col, ok := r.collections[collection]
	if !ok {
		return entity.TokenRef{}, ErrNotExistToken
	}
	if payment.LessThan(col.MintFee) {
		return entity.TokenRef{}, ledger.ErrInsufficientFunds
	}

	if err := r.led.Transfer(caller, ledger.EscrowAccount, ledger.Native, payment); err != nil {
		return entity.TokenRef{}, err
	}

	tokenID := col.NextTokenID
	if err := r.led.MintToken(collection, tokenID, caller); err != nil {
		return entity.TokenRef{}, err
	}
	col.NextTokenID++

	r.register(&entity.Token{
		TokenAddress: collection,
		TokenID:      tokenID,
		TokenURI:     tokenURI,
		Owner:        caller,
		Creator:      caller,
	})

	zap.L().With(
		zap.String("collection", collection),
		zap.Uint64("tokenId", tokenID),
		zap.String("owner", caller),
	).Info("Registry: token minted")

	return entity.TokenRef{TokenAddress: collection, TokenID: tokenID}, nil
}

func (r *Registry) register(token *entity.Token) {
	key := token.Slug()
	r.tokens[key] = token
	r.order = append(r.order, key)
}

// Get returns the live token record; engines mutate it under Mutate.
func (r *Registry) Get(ref entity.TokenRef) (*entity.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[ref.Slug()]
	if !ok {
		return nil, ErrNotExistToken
	}

	return token, nil
}

// Mutate runs fn against the token record under the registry write lock.
func (r *Registry) Mutate(ref entity.TokenRef, fn func(*entity.Token) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.tokens[ref.Slug()]
	if !ok {
		return ErrNotExistToken
	}

	return fn(token)
}

// RecordTrade appends a settlement to the token's history and hands
// ownership to the buyer.
func (r *Registry) RecordTrade(ref entity.TokenRef, price decimal.Decimal, kind entity.TradeKind, buyer string, at time.Time) error {
	return r.Mutate(ref, func(token *entity.Token) error {
		token.History = append(token.History, entity.PriceEntry{Price: price, Time: at, Kind: kind})
		token.Owner = buyer
		return nil
	})
}

func (r *Registry) GetAllTokens() []entity.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]entity.Token, 0, len(r.order))
	for _, key := range r.order {
		tokens = append(tokens, *r.tokens[key])
	}

	return tokens
}

func (r *Registry) GetTokensByOwner(owner string) []entity.Token {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]entity.Token, 0)
	for _, key := range r.order {
		if r.tokens[key].Owner == owner {
			tokens = append(tokens, *r.tokens[key])
		}
	}

	return tokens
}

func (r *Registry) GetTokenDetail(collection string, tokenID uint64) (entity.Token, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[entity.CreateTokenSlug(tokenID, collection)]
	if !ok {
		return entity.Token{}, ErrNotExistToken
	}

	return *token, nil
}

// GetTrendingList returns every traded token, highest mean trade price
// first. The result is cached briefly; settlements invalidate it.
func (r *Registry) GetTrendingList() []entity.Token {
	if cached, ok := r.trending.Get(trendingCacheKey); ok {
		return cached.([]entity.Token)
	}

	r.mu.RLock()
	tokens := make([]entity.Token, 0)
	for _, key := range r.order {
		if len(r.tokens[key].History) > 0 {
			tokens = append(tokens, *r.tokens[key])
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(tokens, func(i, j int) bool {
		return tokens[i].TradePrice().GreaterThan(tokens[j].TradePrice())
	})

	r.trending.Set(trendingCacheKey, tokens, cache.DefaultExpiration)

	return tokens
}

// InvalidateTrending drops the cached trending projection after a trade.
func (r *Registry) InvalidateTrending() {
	r.trending.Delete(trendingCacheKey)
}

func (r *Registry) GetPriceHistory(collection string, tokenID uint64) ([]entity.PriceEntry, error) {
	return r.historyByKind(collection, tokenID, "")
}

func (r *Registry) GetSaleHistory(collection string, tokenID uint64) ([]entity.PriceEntry, error) {
	return r.historyByKind(collection, tokenID, entity.SaleTrade)
}

func (r *Registry) GetAuctionHistory(collection string, tokenID uint64) ([]entity.PriceEntry, error) {
	return r.historyByKind(collection, tokenID, entity.AuctionTrade)
}

func (r *Registry) historyByKind(collection string, tokenID uint64, kind entity.TradeKind) ([]entity.PriceEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[entity.CreateTokenSlug(tokenID, collection)]
	if !ok {
		return nil, ErrNotExistToken
	}

	entries := make([]entity.PriceEntry, 0, len(token.History))
	for _, entry := range token.History {
		if kind == "" || entry.Kind == kind {
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (r *Registry) GetOffers(collection string, tokenID uint64) ([]entity.Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.tokens[entity.CreateTokenSlug(tokenID, collection)]
	if !ok {
		return nil, ErrNotExistToken
	}

	offers := make([]entity.Offer, len(token.Offers))
	copy(offers, token.Offers)

	return offers, nil
}
