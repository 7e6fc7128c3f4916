package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/fastprodman/fliphouse/internal/fair"
	"github.com/fastprodman/fliphouse/internal/repos/burns"
	"github.com/fastprodman/fliphouse/internal/services/settlement"
	"github.com/fastprodman/fliphouse/internal/verify"
)

// SettlementService is what the handlers need from the settlement layer.
type SettlementService interface {
	CommitHash() string
	PreviewFlip(clientSeed string, nonce uint64) (*settlement.Reveal, error)
	Settle(ctx context.Context, req settlement.SettleRequest) (*settlement.SettleResult, error)
	HouseExposure(ctx context.Context) (reserve, maxStake int64, err error)
	StatsSummary(ctx context.Context) (*settlement.Summary, error)
	RecentBurns(ctx context.Context, limit int) (*settlement.BurnFeed, error)
}

// HandlerProvider wraps a SettlementService and exposes HTTP handlers.
type HandlerProvider struct {
	svc SettlementService
}

// NewHandler returns a new Handler provider.
func NewHandler(svc SettlementService) *HandlerProvider {
	return &HandlerProvider{svc: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)

		http.Error(w, `{"error":"internal json encode failure"}`, http.StatusInternalServerError)
	}
}

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`

	// Populated only for stake_exceeds_cap.
	MaxBetLamports int64 `json:"maxBetLamports,omitempty"`
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, body)
}

// writeSettleError maps settlement and verification failures to HTTP status
// codes and machine-readable reason strings.
func writeSettleError(w http.ResponseWriter, err error) {
	var (
		ire    *settlement.InvalidRequestError
		capErr *settlement.StakeExceedsCapError
		amErr  *verify.AmountMismatchError
	)

	switch {
	case errors.As(err, &ire):
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: ire.Reason})
	case errors.Is(err, settlement.ErrAlreadySettled):
		writeError(w, http.StatusConflict, errorBody{Error: "already_settled", Message: "signature already settled"})
	case errors.Is(err, verify.ErrNotConfirmed):
		// Not an invalid claim, just an early one.
		writeError(w, http.StatusBadRequest, errorBody{
			Error:     "not_yet_confirmed",
			Message:   "transaction not found or not confirmed yet, retry shortly",
			Retryable: true,
		})
	case errors.Is(err, verify.ErrOnChainFailure):
		writeError(w, http.StatusBadRequest, errorBody{Error: "onchain_failure", Message: "transaction failed on-chain"})
	case errors.Is(err, verify.ErrNoPayment):
		writeError(w, http.StatusBadRequest, errorBody{Error: "no_payment_found", Message: "no transfer to house wallet found"})
	case errors.Is(err, verify.ErrAmbiguousPayer):
		writeError(w, http.StatusBadRequest, errorBody{Error: "ambiguous_payer", Message: "multiple payer sources in transaction"})
	case errors.As(err, &amErr):
		writeError(w, http.StatusBadRequest, errorBody{Error: "amount_mismatch", Message: amErr.Error()})
	case errors.Is(err, verify.ErrPayerMismatch):
		writeError(w, http.StatusBadRequest, errorBody{Error: "payer_mismatch", Message: "fee payer does not match transfer source"})
	case errors.As(err, &capErr):
		writeError(w, http.StatusBadRequest, errorBody{
			Error:          "stake_exceeds_cap",
			Message:        capErr.Error(),
			MaxBetLamports: capErr.MaxStake,
		})
	case errors.Is(err, settlement.ErrInsufficientHouseFunds):
		writeError(w, http.StatusConflict, errorBody{Error: "insufficient_house_funds", Message: "house wallet cannot cover the payout"})
	case errors.Is(err, settlement.ErrPayoutSubmitFailed):
		writeError(w, http.StatusBadGateway, errorBody{
			Error:     "payout_submit_failed",
			Message:   "payout broadcast failed, wager reopened for retry",
			Retryable: true,
		})
	default:
		slog.Error("settle failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
	}
}

// --- Wire types ---

const lamportsPerSol = 1_000_000_000

func sol(lamports int64) float64 {
	return float64(lamports) / lamportsPerSol
}

type flipRequest struct {
	ClientSeed string `json:"clientSeed"`
	Nonce      uint64 `json:"nonce"`

	// Optional: when present, the response reports whether this side won.
	Side string `json:"side"`
}

type settleRequest struct {
	Signature        string `json:"signature"`
	ExpectedLamports int64  `json:"expectedLamports"`
	ClientSeed       string `json:"clientSeed"`
	Nonce            uint64 `json:"nonce"`
	Side             string `json:"side"`
}

type revealResponse struct {
	ServerSeed     string `json:"serverSeed"`
	ServerHash     string `json:"serverHash"`
	ClientSeed     string `json:"clientSeed"`
	Nonce          uint64 `json:"nonce"`
	Digest         string `json:"digest"`
	Result         string `json:"result"`
	NextServerHash string `json:"nextServerHash"`
}

type flipResponse struct {
	revealResponse

	Win *bool `json:"win,omitempty"`
}

type settleResponse struct {
	revealResponse

	Win             bool   `json:"win"`
	PayoutLamports  int64  `json:"payoutLamports,omitempty"`
	PayoutSig       string `json:"payoutSig,omitempty"`
	PayoutConfirmed bool   `json:"payoutConfirmed"`
}

type burnItem struct {
	Signature string    `json:"signature"`
	Lamports  int64     `json:"lamports"`
	BurnedAt  time.Time `json:"burnedAt"`
}

func toReveal(rev settlement.Reveal) revealResponse {
	return revealResponse{
		ServerSeed:     rev.ServerSeed,
		ServerHash:     rev.ServerHash,
		ClientSeed:     rev.ClientSeed,
		Nonce:          rev.Nonce,
		Digest:         rev.Digest,
		Result:         string(rev.Result),
		NextServerHash: rev.NextServerHash,
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "empty body"})
			return false
		}

		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "invalid JSON"})
		return false
	}

	return true
}

// --- Handlers ---

// FairCommitHandler handles GET /fair/commit
func (h *HandlerProvider) FairCommitHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"serverHash": h.svc.CommitHash()})
}

// FairFlipHandler handles POST /fair/flip: a no-stakes flip against the
// current commitment, revealing and rotating the seed.
func (h *HandlerProvider) FairFlipHandler(w http.ResponseWriter, r *http.Request) {
	var req flipRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var side fair.Side
	if req.Side != "" {
		var ok bool
		side, ok = fair.ParseSide(req.Side)
		if !ok {
			writeError(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "side must be heads or tails"})
			return
		}
	}

	rev, err := h.svc.PreviewFlip(req.ClientSeed, req.Nonce)
	if err != nil {
		writeSettleError(w, err)
		return
	}

	resp := flipResponse{revealResponse: toReveal(*rev)}
	if side != "" {
		win := rev.Result == side
		resp.Win = &win
	}

	writeJSON(w, http.StatusOK, resp)
}

// SettleHandler handles POST /settle
func (h *HandlerProvider) SettleHandler(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	side, ok := fair.ParseSide(req.Side)
	if !ok {
		writeError(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "side must be heads or tails"})
		return
	}

	res, err := h.svc.Settle(r.Context(), settlement.SettleRequest{
		Signature:        req.Signature,
		ExpectedLamports: req.ExpectedLamports,
		ClientSeed:       req.ClientSeed,
		Nonce:            req.Nonce,
		Side:             side,
	})
	if err != nil {
		writeSettleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settleResponse{
		revealResponse:  toReveal(res.Reveal),
		Win:             res.Win,
		PayoutLamports:  res.PayoutLamports,
		PayoutSig:       res.PayoutRef,
		PayoutConfirmed: res.PayoutConfirmed,
	})
}

// HouseBalanceHandler handles GET /house-balance
func (h *HandlerProvider) HouseBalanceHandler(w http.ResponseWriter, r *http.Request) {
	reserve, maxStake, err := h.svc.HouseExposure(r.Context())
	if err != nil {
		slog.Error("house balance read failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"houseLamports":  reserve,
		"maxBetLamports": maxStake,
		"houseSol":       sol(reserve),
		"maxBetSol":      sol(maxStake),
	})
}

// StatsHandler handles GET /stats
func (h *HandlerProvider) StatsHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := h.svc.StatsSummary(r.Context())
	if err != nil {
		slog.Error("stats read failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totalWageredLamports": sum.TotalWageredLamports,
		"totalPaidLamports":    sum.TotalPaidLamports,
		"lastPayoutSig":        sum.LastPayoutRef,
		"houseBalanceLamports": sum.HouseBalanceLamports,
		"totalWageredSol":      sol(sum.TotalWageredLamports),
		"totalPaidSol":         sol(sum.TotalPaidLamports),
		"houseBalanceSol":      sol(sum.HouseBalanceLamports),
	})
}

// BurnsHandler handles GET /burns?limit=N
func (h *HandlerProvider) BurnsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, errorBody{Error: "invalid_request", Message: "limit must be 1-100"})
			return
		}
		limit = n
	}

	feed, err := h.svc.RecentBurns(r.Context(), limit)
	if err != nil {
		slog.Error("burns read failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"burns":            toBurnItems(feed.Burns),
		"nextBurnAt":       feed.NextBurnAt,
		"secondsRemaining": feed.SecondsRemaining,
		"intervalSeconds":  feed.IntervalSeconds,
	})
}

func toBurnItems(list []burns.Burn) []burnItem {
	items := make([]burnItem, 0, len(list))
	for _, b := range list {
		items = append(items, burnItem{
			Signature: b.TxRef,
			Lamports:  b.Lamports,
			BurnedAt:  b.BurnedAt,
		})
	}

	return items
}
