package repository

import (
	"encoding/json"
	"errors"

	"github.com/olivere/elastic/v7"

	"github.com/revmarket/marketplace-engine/internal/elastic_search"
	"github.com/revmarket/marketplace-engine/internal/entity"
)

var (
	ErrTokenNotFound = errors.New("token not found")
)

type TokenRepository interface {
	GetToken(contract string, tokenID uint64) (*entity.Token, error)
	GetTokensByOwner(owner string, size, page int) ([]entity.Token, int64, error)
	GetTokensForSale(size, page int) ([]entity.Token, int64, error)
}

type tokenRepository struct {
	elastic elastic_search.Index
}

func NewTokenRepository(elastic elastic_search.Index) TokenRepository {
	return tokenRepository{elastic}
}

func (r tokenRepository) GetToken(contract string, tokenID uint64) (*entity.Token, error) {
	pendingRequest := r.elastic.GetRequest(entity.CreateTokenSlug(tokenID, contract))
	if pendingRequest != nil {
		pending := pendingRequest.Entity.(entity.Token)
		return &pending, nil
	}

	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("tokenAddress.keyword", contract),
		elastic.NewTermQuery("tokenID", tokenID),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.TokenIndex.Get()).
		Query(query).
		Size(1))

	return r.findOne(result, err)
}

func (r tokenRepository) GetTokensByOwner(owner string, size, page int) ([]entity.Token, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("owner.keyword", owner),
	)

	from := size*page - size

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.TokenIndex.Get()).
		Query(query).
		Sort("tokenID", true).
		TrackTotalHits(true).
		Size(size).
		From(from))

	return r.findMany(result, err)
}

func (r tokenRepository) GetTokensForSale(size, page int) ([]entity.Token, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("forSale", true),
	)

	from := size*page - size

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.TokenIndex.Get()).
		Query(query).
		Sort("tokenID", true).
		TrackTotalHits(true).
		Size(size).
		From(from))

	return r.findMany(result, err)
}

func (r tokenRepository) findOne(results *elastic.SearchResult, err error) (*entity.Token, error) {
	if err != nil {
		return nil, err
	}

	if len(results.Hits.Hits) == 0 {
		return nil, ErrTokenNotFound
	}

	var token entity.Token
	hit := results.Hits.Hits[0]
	err = json.Unmarshal(hit.Source, &token)

	return &token, err
}

func (r tokenRepository) findMany(results *elastic.SearchResult, err error) ([]entity.Token, int64, error) {
	tokens := make([]entity.Token, 0)

	if err != nil {
		return tokens, 0, err
	}

	for _, hit := range results.Hits.Hits {
		var token entity.Token
		if err := json.Unmarshal(hit.Source, &token); err == nil {
			tokens = append(tokens, token)
		}
	}

	return tokens, results.TotalHits(), nil
}
