package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"

	"wallet-monitor/internal/models"
	"wallet-monitor/internal/networks"
	"wallet-monitor/internal/validation"
)

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Usage   *Usage      `json:"usage,omitempty"`
}

type analyzeWalletRequest struct {
	Address string `json:"address"`
	Network string `json:"network,omitempty"`
	Refresh bool   `json:"refresh,omitempty"`
}

type walletBalancesRequest struct {
	Addresses []string `json:"addresses,omitempty"`
	Network   string   `json:"network,omitempty"`
}

type stablecoinTransfersRequest struct {
	Limit int `json:"limit,omitempty"`
}

type transfersRequest struct {
	Limit     int  `json:"limit,omitempty"`
	WhaleOnly bool `json:"whale_only,omitempty"`
}

type trackWalletRequest struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
	Network string `json:"network,omitempty"`
}

// resolveNetwork applies the documented fallback: an absent network means
// eth, an unknown one is a 400.
func resolveNetwork(raw string) (models.Network, bool) {
	if raw == "" {
		return networks.Default(), true
	}
	n := models.Network(raw)
	if _, ok := networks.Lookup(n); !ok {
		return "", false
	}
	return n, true
}

func (s *Server) handleAnalyzeWallet(w http.ResponseWriter, r *http.Request, usage *Usage) int {
	var req analyzeWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.respondError(w, http.StatusBadRequest, "invalid JSON body", usage)
	}

	network, ok := resolveNetwork(req.Network)
	if !ok {
		return s.respondError(w, http.StatusBadRequest, "unsupported network: "+req.Network, usage)
	}
	if err := validation.ValidateAddress(req.Address, network); err != nil {
		return s.respondError(w, http.StatusBadRequest, err.Error(), usage)
	}

	rating, err := s.Analyzer.Analyze(r.Context(), req.Address, network, req.Refresh)
	if err != nil {
		s.Logger.Error().Err(err).Str("address", req.Address).Msg("Wallet analysis failed")
		return s.respondError(w, http.StatusInternalServerError, "analysis failed", usage)
	}

	if s.Metrics != nil {
		s.Metrics.RiskAnalyses.Inc()
	}
	return s.respond(w, http.StatusOK, rating, usage)
}

func (s *Server) handleWalletBalances(w http.ResponseWriter, r *http.Request, usage *Usage) int {
	var req walletBalancesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.respondError(w, http.StatusBadRequest, "invalid JSON body", usage)
	}

	network, ok := resolveNetwork(req.Network)
	if !ok {
		return s.respondError(w, http.StatusBadRequest, "unsupported network: "+req.Network, usage)
	}

	addresses := req.Addresses
	if len(addresses) == 0 {
		tracked, err := s.ListTracked(network)
		if err != nil {
			s.Logger.Error().Err(err).Msg("Failed to list tracked wallets")
			return s.respondError(w, http.StatusInternalServerError, "failed to list tracked wallets", usage)
		}
		for _, wlt := range tracked {
			addresses = append(addresses, wlt.Address)
		}
	}
	for i, addr := range addresses {
		if err := validation.ValidateAddress(addr, network); err != nil {
			return s.respondError(w, http.StatusBadRequest, err.Error(), usage)
		}
		addresses[i] = validation.NormalizeAddress(addr, network)
	}

	snapshots := s.Tracker.Fetch(r.Context(), addresses, network)
	return s.respond(w, http.StatusOK, snapshots, usage)
}

func (s *Server) handleStablecoinTransfers(w http.ResponseWriter, r *http.Request, usage *Usage) int {
	var req stablecoinTransfersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.respondError(w, http.StatusBadRequest, "invalid JSON body", usage)
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	transfers, err := s.RecentStablecoin(limit)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to read stablecoin transfers")
		return s.respondError(w, http.StatusInternalServerError, "failed to read transfers", usage)
	}
	return s.respond(w, http.StatusOK, transfers, usage)
}

func (s *Server) handleTrackWallet(w http.ResponseWriter, r *http.Request, usage *Usage) int {
	var req trackWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.respondError(w, http.StatusBadRequest, "invalid JSON body", usage)
	}

	network, ok := resolveNetwork(req.Network)
	if !ok {
		return s.respondError(w, http.StatusBadRequest, "unsupported network: "+req.Network, usage)
	}
	if err := validation.ValidateAddress(req.Address, network); err != nil {
		return s.respondError(w, http.StatusBadRequest, err.Error(), usage)
	}

	wallet, err := s.TrackWallet(validation.NormalizeAddress(req.Address, network), req.Name, network)
	if err != nil {
		s.Logger.Error().Err(err).Str("address", req.Address).Msg("Failed to track wallet")
		return s.respondError(w, http.StatusInternalServerError, "failed to track wallet", usage)
	}
	return s.respond(w, http.StatusOK, wallet, usage)
}

func (s *Server) handleUntrackWallet(w http.ResponseWriter, r *http.Request, usage *Usage) int {
	var req trackWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.respondError(w, http.StatusBadRequest, "invalid JSON body", usage)
	}

	network, ok := resolveNetwork(req.Network)
	if !ok {
		return s.respondError(w, http.StatusBadRequest, "unsupported network: "+req.Network, usage)
	}
	if err := validation.ValidateAddress(req.Address, network); err != nil {
		return s.respondError(w, http.StatusBadRequest, err.Error(), usage)
	}

	if err := s.UntrackWallet(validation.NormalizeAddress(req.Address, network), network); err != nil {
		s.Logger.Error().Err(err).Str("address", req.Address).Msg("Failed to untrack wallet")
		return s.respondError(w, http.StatusInternalServerError, "failed to untrack wallet", usage)
	}
	return s.respond(w, http.StatusOK, map[string]string{"address": validation.NormalizeAddress(req.Address, network)}, usage)
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request, usage *Usage) int {
	var req transfersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return s.respondError(w, http.StatusBadRequest, "invalid JSON body", usage)
	}

	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	transfers, err := s.RecentTransfers(limit, req.WhaleOnly)
	if err != nil {
		s.Logger.Error().Err(err).Msg("Failed to read transfers")
		return s.respondError(w, http.StatusInternalServerError, "failed to read transfers", usage)
	}
	return s.respond(w, http.StatusOK, transfers, usage)
}

func (s *Server) respond(w http.ResponseWriter, status int, data interface{}, usage *Usage) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data, Usage: usage})
	return status
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string, usage *Usage) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiResponse{Success: false, Error: msg, Usage: usage})
	return status
}

func statusLabel(status int) string {
	return strconv.Itoa(status)
}
