package repository

import (
	"encoding/json"
	"errors"

	"github.com/olivere/elastic/v7"

	"github.com/revmarket/marketplace-engine/internal/elastic_search"
	"github.com/revmarket/marketplace-engine/internal/entity"
)

var (
	ErrMarketActionNotFound = errors.New("market action not found")
)

type MarketActionRepository interface {
	GetActionsByToken(contract string, tokenID uint64, size, page int) ([]entity.MarketAction, int64, error)
	GetActionsByAddress(addr string, size, page int) ([]entity.MarketAction, int64, error)
	GetSettlements(contract string, tokenID uint64) ([]entity.MarketAction, error)
	GetLastSettlement(contract string, tokenID uint64) (*entity.MarketAction, error)
}

type marketActionRepository struct {
	elastic elastic_search.Index
}

func NewMarketActionRepository(elastic elastic_search.Index) MarketActionRepository {
	return marketActionRepository{elastic}
}

func (r marketActionRepository) GetActionsByToken(contract string, tokenID uint64, size, page int) ([]entity.MarketAction, int64, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("contract.keyword", contract),
		elastic.NewTermQuery("tokenId", tokenID),
	)

	from := size*page - size

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("time", false).
		TrackTotalHits(true).
		Size(size).
		From(from))

	return r.findMany(result, err)
}

func (r marketActionRepository) GetActionsByAddress(addr string, size, page int) ([]entity.MarketAction, int64, error) {
	query := elastic.NewBoolQuery().Should(
		elastic.NewTermQuery("from.keyword", addr),
		elastic.NewTermQuery("to.keyword", addr),
	).MinimumNumberShouldMatch(1)

	from := size*page - size

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("time", false).
		TrackTotalHits(true).
		Size(size).
		From(from))

	return r.findMany(result, err)
}

func (r marketActionRepository) GetSettlements(contract string, tokenID uint64) ([]entity.MarketAction, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("contract.keyword", contract),
		elastic.NewTermQuery("tokenId", tokenID),
		elastic.NewTermsQuery("action.keyword", "sale", "auction", "offer"),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("time", true).
		Size(10000))

	actions, _, err := r.findMany(result, err)

	return actions, err
}

func (r marketActionRepository) GetLastSettlement(contract string, tokenID uint64) (*entity.MarketAction, error) {
	query := elastic.NewBoolQuery().Must(
		elastic.NewTermQuery("contract.keyword", contract),
		elastic.NewTermQuery("tokenId", tokenID),
		elastic.NewTermsQuery("action.keyword", "sale", "auction", "offer"),
	)

	result, err := search(r.elastic.GetClient().
		Search(elastic_search.MarketActionIndex.Get()).
		Query(query).
		Sort("time", false).
		Size(1))

	return r.findOne(result, err)
}

func (r marketActionRepository) findOne(results *elastic.SearchResult, err error) (*entity.MarketAction, error) {
	if err != nil {
		return nil, err
	}

	if len(results.Hits.Hits) == 0 {
		return nil, ErrMarketActionNotFound
	}

	var action entity.MarketAction
	hit := results.Hits.Hits[0]
	err = json.Unmarshal(hit.Source, &action)

	return &action, err
}

func (r marketActionRepository) findMany(results *elastic.SearchResult, err error) ([]entity.MarketAction, int64, error) {
	actions := make([]entity.MarketAction, 0)

	if err != nil {
		return actions, 0, err
	}

	for _, hit := range results.Hits.Hits {
		var action entity.MarketAction
		if err := json.Unmarshal(hit.Source, &action); err == nil {
			actions = append(actions, action)
		}
	}

	return actions, results.TotalHits(), nil
}
