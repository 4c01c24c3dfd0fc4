package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/tipgate/service/gateway"
	"github.com/brojonat/tipgate/service/ledger"
)

// recordResponse is the REST representation of a ledger record. The raw
// transaction payload is deliberately omitted.
type recordResponse struct {
	ID          string     `json:"id"`
	FromAddress string     `json:"from_address"`
	ToAddress   string     `json:"to_address"`
	Amount      uint64     `json:"amount"`
	Memo        string     `json:"memo,omitempty"`
	Status      string     `json:"status"`
	Signature   string     `json:"signature"`
	CreatedAt   time.Time  `json:"created_at"`
	BlockTime   *time.Time `json:"block_time,omitempty"`
}

func recordToResponse(rec ledger.Record) recordResponse {
	return recordResponse{
		ID:          rec.ID,
		FromAddress: rec.FromAddress,
		ToAddress:   rec.ToAddress,
		Amount:      rec.Amount,
		Memo:        rec.Memo,
		Status:      string(rec.Status),
		Signature:   rec.Signature,
		CreatedAt:   rec.CreatedAt,
		BlockTime:   rec.BlockTime,
	}
}

// handleListTransactions returns a handler that lists relayed transactions,
// newest first.
// GET /api/v1/transactions?address={address}
func handleListTransactions(gw *gateway.Gateway, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		address := r.URL.Query().Get("address")

		var records []ledger.Record
		if address != "" {
			records = gw.ListRecordsByAddress(address)
		} else {
			records = gw.ListRecords()
		}

		logger.Debug("transactions listed", "count", len(records), "address", address)

		resp := make([]recordResponse, len(records))
		for i, rec := range records {
			resp[i] = recordToResponse(rec)
		}

		writeJSON(w, map[string]interface{}{
			"transactions": resp,
			"count":        len(resp),
		}, http.StatusOK)
	})
}

// handleGetTransaction returns a handler that retrieves a single relayed
// transaction by record id.
// GET /api/v1/transactions/{id}
func handleGetTransaction(gw *gateway.Gateway, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "" {
			writeError(w, "transaction id is required", http.StatusBadRequest)
			return
		}

		rec, ok := gw.GetRecord(id)
		if !ok {
			writeError(w, "transaction not found", http.StatusNotFound)
			return
		}

		logger.Debug("transaction retrieved", "id", id, "status", rec.Status)
		writeJSON(w, recordToResponse(rec), http.StatusOK)
	})
}

// handleClearTransactions returns a handler that removes every stored record.
// DELETE /api/v1/transactions
func handleClearTransactions(gw *gateway.Gateway, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.ClearRecords()
		logger.Info("transaction ledger cleared")
		w.WriteHeader(http.StatusNoContent)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
