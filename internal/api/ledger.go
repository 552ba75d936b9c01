package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/ledger"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

// LedgerHandler handles the workbook mutation endpoints.
type LedgerHandler struct {
	svc *ledger.Service
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(svc *ledger.Service) *LedgerHandler {
	return &LedgerHandler{svc: svc}
}

// SubmitPayment handles POST /payments.
func (h *LedgerHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req ledger.Payment
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.svc.SubmitPayment(r.Context(), req))
}

// SubmitBatchPayment handles POST /payments/batch.
func (h *LedgerHandler) SubmitBatchPayment(w http.ResponseWriter, r *http.Request) {
	var req ledger.BatchPayment
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.svc.SubmitBatchPayment(r.Context(), req))
}

// CellRequest is the body of POST /cells. Value may be a string, a number or
// null.
type CellRequest struct {
	Sheet string          `json:"sheet"`
	Cell  string          `json:"cell"`
	Value json.RawMessage `json:"value"`
}

// UpdateCell handles POST /cells.
func (h *LedgerHandler) UpdateCell(w http.ResponseWriter, r *http.Request) {
	var req CellRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Cell == "" || len(req.Value) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Missing cell or value")
		return
	}
	value, err := cellValue(req.Value)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", err.Error())
		return
	}
	writeResult(w, h.svc.UpdateCell(r.Context(), ledger.CellUpdate{Sheet: req.Sheet, Cell: req.Cell, Value: value}))
}

func cellValue(raw json.RawMessage) (workbook.Cell, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return workbook.Empty, fmt.Errorf("invalid value: %w", err)
	}
	switch t := v.(type) {
	case nil:
		return workbook.Empty, nil
	case string:
		return workbook.Text(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return workbook.Empty, fmt.Errorf("invalid number %s", t)
		}
		return workbook.Number(f), nil
	}
	return workbook.Empty, fmt.Errorf("value must be a string, a number or null")
}

// UpdatePersonalAccount handles POST /personal-accounts.
func (h *LedgerHandler) UpdatePersonalAccount(w http.ResponseWriter, r *http.Request) {
	var req ledger.PersonalAccountUpdate
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.svc.UpdatePersonalAccount(r.Context(), req))
}

// CheckLimit handles POST /personal-accounts/limit-check.
func (h *LedgerHandler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	var req ledger.LimitCheck
	if !decode(w, r, &req) {
		return
	}
	report, err := h.svc.ValidateCapitalLimit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// UpdateMainLedger handles POST /main-ledger.
func (h *LedgerHandler) UpdateMainLedger(w http.ResponseWriter, r *http.Request) {
	var req ledger.MainLedgerUpdate
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.svc.UpdateMainLedger(r.Context(), req))
}

// UpdateCapitalTrialBalance handles POST /trial-balance/capital.
func (h *LedgerHandler) UpdateCapitalTrialBalance(w http.ResponseWriter, r *http.Request) {
	var req ledger.TrialBalanceUpdate
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.svc.UpdateCapitalTrialBalance(r.Context(), req))
}

// UpdateInterestTrialBalance handles POST /trial-balance/interest.
func (h *LedgerHandler) UpdateInterestTrialBalance(w http.ResponseWriter, r *http.Request) {
	var req ledger.TrialBalanceUpdate
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.svc.UpdateInterestTrialBalance(r.Context(), req))
}

// NextRow handles GET /cashbook/next-row?hint=5&count=1.
func (h *LedgerHandler) NextRow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hint, err := strconv.Atoi(q.Get("hint"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid hint")
		return
	}
	count := 1
	if s := q.Get("count"); s != "" {
		if count, err = strconv.Atoi(s); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid count")
			return
		}
	}
	row, err := h.svc.NextEntryRow(hint, count)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"row": row, "count": count})
}

// Banks handles GET /banks.
func (h *LedgerHandler) Banks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"banks": h.svc.Banks().Names()})
}
