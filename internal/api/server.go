package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/revmarket/marketplace-engine/internal/marketplace"
	"github.com/revmarket/marketplace-engine/internal/metadata"
)

// Server exposes the read side of the marketplace over HTTP. Mutations go
// through the engines directly, never through here.
type Server struct {
	market          *marketplace.Marketplace
	metadataService metadata.Service
}

func NewServer(market *marketplace.Marketplace, metadataService metadata.Service) Server {
	return Server{market, metadataService}
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHomepage).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")

	r.HandleFunc("/tokens", s.handleGetTokens).Methods("GET")
	r.HandleFunc("/tokens/trending", s.handleGetTrending).Methods("GET")
	r.HandleFunc("/tokens/{contractAddr}/{tokenId}", s.handleGetTokenDetail).Methods("GET")
	r.HandleFunc("/tokens/{contractAddr}/{tokenId}/metadata", s.handleGetTokenMetadata).Methods("GET")
	r.HandleFunc("/tokens/{contractAddr}/{tokenId}/offers", s.handleGetOffers).Methods("GET")
	r.HandleFunc("/tokens/{contractAddr}/{tokenId}/history", s.handleGetHistory).Methods("GET")

	r.HandleFunc("/sales", s.handleGetSales).Methods("GET")
	r.HandleFunc("/auctions", s.handleGetAuctions).Methods("GET")
	r.HandleFunc("/auctions/{auctionId}/bidders", s.handleGetBidders).Methods("GET")

	r.HandleFunc("/royalty", s.handleGetRoyalty).Methods("GET")
	r.NotFoundHandler = notFoundHandler()

	return r
}

func (s Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	_, _ = fmt.Fprintf(w, "RevMarket API")
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func (s Server) handleGetTokens(w http.ResponseWriter, r *http.Request) {
	if owner := r.URL.Query().Get("owner"); owner != "" {
		jsonResponse(w, s.market.GetTokensByOwner(owner))
		return
	}

	jsonResponse(w, s.market.GetAllTokens())
}

func (s Server) handleGetTrending(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.market.GetTrendingList())
}

func (s Server) handleGetTokenDetail(w http.ResponseWriter, r *http.Request) {
	contractAddr := mux.Vars(r)["contractAddr"]
	tokenId, err := getTokenId(r)
	if err != nil {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}

	token, err := s.market.GetTokenDetail(contractAddr, tokenId)
	if err != nil {
		http.Error(w, "Token not available", http.StatusNotFound)
		return
	}

	jsonResponse(w, token)
}

func (s Server) handleGetTokenMetadata(w http.ResponseWriter, r *http.Request) {
	contractAddr := mux.Vars(r)["contractAddr"]
	tokenId, err := getTokenId(r)
	if err != nil {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}

	token, err := s.market.GetTokenDetail(contractAddr, tokenId)
	if err != nil {
		http.Error(w, "Token not available", http.StatusNotFound)
		return
	}

	md, err := s.metadataService.GetTokenMetadata(token)
	if err != nil {
		zap.L().With(zap.Error(err)).Warn("Token metadata not available")
		http.Error(w, "Token metadata not available", http.StatusNotFound)
		return
	}

	jsonResponse(w, md)
}

func (s Server) handleGetOffers(w http.ResponseWriter, r *http.Request) {
	contractAddr := mux.Vars(r)["contractAddr"]
	tokenId, err := getTokenId(r)
	if err != nil {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}

	offers, err := s.market.GetOffers(contractAddr, tokenId)
	if err != nil {
		http.Error(w, "Token not available", http.StatusNotFound)
		return
	}

	jsonResponse(w, offers)
}

func (s Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	contractAddr := mux.Vars(r)["contractAddr"]
	tokenId, err := getTokenId(r)
	if err != nil {
		http.Error(w, "Invalid token id", http.StatusBadRequest)
		return
	}

	var history interface{}
	switch r.URL.Query().Get("kind") {
	case "sale":
		history, err = s.market.GetSaleHistory(contractAddr, tokenId)
	case "auction":
		history, err = s.market.GetAuctionHistory(contractAddr, tokenId)
	default:
		history, err = s.market.GetPriceHistory(contractAddr, tokenId)
	}
	if err != nil {
		http.Error(w, "Token not available", http.StatusNotFound)
		return
	}

	jsonResponse(w, history)
}

func (s Server) handleGetSales(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")

	if owner := r.URL.Query().Get("owner"); owner != "" {
		jsonResponse(w, s.market.GetSaleTokensByOwner(viewer, owner))
		return
	}

	jsonResponse(w, s.market.GetTokensForSale(viewer))
}

func (s Server) handleGetAuctions(w http.ResponseWriter, r *http.Request) {
	viewer := r.URL.Query().Get("viewer")

	if owner := r.URL.Query().Get("owner"); owner != "" {
		jsonResponse(w, s.market.GetAuctionListByOwner(viewer, owner))
		return
	}

	jsonResponse(w, s.market.GetAuctionList(viewer))
}

func (s Server) handleGetBidders(w http.ResponseWriter, r *http.Request) {
	auctionId, err := strconv.ParseUint(mux.Vars(r)["auctionId"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid auction id", http.StatusBadRequest)
		return
	}

	bidders, err := s.market.GetBidderInfo(auctionId)
	if err != nil {
		http.Error(w, "Auction not available", http.StatusNotFound)
		return
	}

	jsonResponse(w, bidders)
}

func (s Server) handleGetRoyalty(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]int64{"royalty": s.market.Access.Royalty()})
}

func getTokenId(r *http.Request) (uint64, error) {
	tokenId, ok := mux.Vars(r)["tokenId"]
	if !ok {
		return 0, errors.New("invalid parameters")
	}

	return strconv.ParseUint(tokenId, 10, 64)
}

func jsonResponse(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().With(zap.Error(err)).Error("Failed to encode response")
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		_, _ = fmt.Fprintf(w, "Page not found")
	})
}
