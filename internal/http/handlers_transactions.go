package http

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"conti/internal/core"
)

type entryLineRequest struct {
	AccountGUID    string `json:"account_guid"`
	Amount         string `json:"amount"`
	Side           string `json:"side,omitempty"`
	CashflowTypeID int64  `json:"cashflow_type_id,omitempty"`
	Memo           string `json:"memo,omitempty"`
}

type transactionRequest struct {
	PostDate     string             `json:"post_date"`
	Num          string             `json:"num,omitempty"`
	Description  string             `json:"description"`
	BusinessType string             `json:"business_type,omitempty"`
	ReferenceNo  string             `json:"reference_no,omitempty"`
	Lines        []entryLineRequest `json:"lines"`
}

type entryLineResponse struct {
	GUID           string `json:"guid"`
	AccountGUID    string `json:"account_guid"`
	Amount         string `json:"amount"`
	CashflowTypeID int64  `json:"cashflow_type_id,omitempty"`
	Memo           string `json:"memo,omitempty"`
}

type transactionResponse struct {
	GUID         string              `json:"guid"`
	Num          string              `json:"num,omitempty"`
	PostDate     string              `json:"post_date"`
	EnterDate    time.Time           `json:"enter_date"`
	Description  string              `json:"description"`
	BusinessType string              `json:"business_type,omitempty"`
	ReferenceNo  string              `json:"reference_no,omitempty"`
	Lines        []entryLineResponse `json:"lines"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// toDraft converts the wire representation into a voucher draft. Dates
// default to today, amounts are parsed exactly.
func (req transactionRequest) toDraft() (core.TransactionDraft, error) {
	postDate := time.Now().UTC().Truncate(24 * time.Hour)
	if v := req.PostDate; v != "" {
		parsed, err := time.ParseInLocation(core.DateOnly, v, time.UTC)
		if err != nil {
			return core.TransactionDraft{}, err
		}
		postDate = parsed
	}

	draft := core.TransactionDraft{
		PostDate:     postDate,
		Num:          sanitizeInput(req.Num),
		Description:  sanitizeInput(req.Description),
		BusinessType: sanitizeInput(req.BusinessType),
		ReferenceNo:  sanitizeInput(req.ReferenceNo),
		Lines:        make([]core.EntryLineDraft, 0, len(req.Lines)),
	}

	for _, l := range req.Lines {
		amount, err := core.ParseAmount(l.Amount)
		if err != nil {
			return core.TransactionDraft{}, err
		}
		draft.Lines = append(draft.Lines, core.EntryLineDraft{
			AccountGUID:    l.AccountGUID,
			Amount:         amount,
			Side:           core.Side(l.Side),
			CashflowTypeID: l.CashflowTypeID,
			Memo:           sanitizeInput(l.Memo),
		})
	}

	return draft, nil
}

func toTransactionResponse(t *core.Transaction) transactionResponse {
	resp := transactionResponse{
		GUID:         t.GUID,
		Num:          t.Num,
		PostDate:     t.PostDate.Format(core.DateOnly),
		EnterDate:    t.EnterDate,
		Description:  t.Description,
		BusinessType: t.BusinessType,
		ReferenceNo:  t.ReferenceNo,
		Lines:        make([]entryLineResponse, 0, len(t.Lines)),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
	for _, l := range t.Lines {
		resp.Lines = append(resp.Lines, entryLineResponse{
			GUID:           l.GUID,
			AccountGUID:    l.AccountGUID,
			Amount:         core.FormatAmount(l.Amount),
			CashflowTypeID: l.CashflowTypeID,
			Memo:           l.Memo,
		})
	}
	return resp
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx, err := s.ledger.CreateTransaction(r.Context(), draft)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	atomic.AddInt64(&s.metrics.transactionsPosted, 1)
	s.slogger.LogTransactionPosted(r.Context(), tx.GUID, len(tx.Lines))
	s.invalidateStatements()
	writeJSON(w, http.StatusCreated, toTransactionResponse(tx))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := s.ledger.GetTransaction(r.Context(), r.PathValue("guid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	draft, err := req.toDraft()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	tx, err := s.ledger.UpdateTransaction(r.Context(), r.PathValue("guid"), draft)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.invalidateStatements()
	writeJSON(w, http.StatusOK, toTransactionResponse(tx))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("guid")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	s.invalidateStatements()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := s.listLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, r, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	txs, err := s.ledger.ListTransactions(r.Context(), limit)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(txs))
	for i := range txs {
		resp = append(resp, toTransactionResponse(&txs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
