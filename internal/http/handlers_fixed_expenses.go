package http

import (
	"net/http"
	"strconv"
	"time"

	"conti/internal/core"
	"conti/internal/services"
)

type fixedExpenseRequest struct {
	Name                string `json:"name"`
	Amount              string `json:"amount"`
	ExpenseAccountGUID  string `json:"expense_account_guid"`
	PrimaryAccountGUID  string `json:"primary_account_guid"`
	FallbackAccountGUID string `json:"fallback_account_guid,omitempty"`
	DayOfMonth          int    `json:"day_of_month"`
	Active              *bool  `json:"active,omitempty"`
}

type fixedExpenseResponse struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	Amount              string    `json:"amount"`
	ExpenseAccountGUID  string    `json:"expense_account_guid"`
	PrimaryAccountGUID  string    `json:"primary_account_guid"`
	FallbackAccountGUID string    `json:"fallback_account_guid,omitempty"`
	DayOfMonth          int       `json:"day_of_month"`
	Active              bool      `json:"active"`
	LastRunMonth        string    `json:"last_run_month,omitempty"`
	LastRunAt           time.Time `json:"last_run_at"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type executionResponse struct {
	FixedExpenseID  int64  `json:"fixed_expense_id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	TransactionGUID string `json:"transaction_guid,omitempty"`
	FundingGUID     string `json:"funding_guid,omitempty"`
	Advisory        string `json:"advisory,omitempty"`
	Error           string `json:"error,omitempty"`
}

func (req fixedExpenseRequest) toFixedExpense() (core.FixedExpense, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.FixedExpense{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return core.FixedExpense{
		Name:                sanitizeInput(req.Name),
		Amount:              amount,
		ExpenseAccountGUID:  req.ExpenseAccountGUID,
		PrimaryAccountGUID:  req.PrimaryAccountGUID,
		FallbackAccountGUID: req.FallbackAccountGUID,
		DayOfMonth:          req.DayOfMonth,
		Active:              active,
	}, nil
}

func toFixedExpenseResponse(f *core.FixedExpense) fixedExpenseResponse {
	resp := fixedExpenseResponse{
		ID:                  f.ID,
		Name:                f.Name,
		Amount:              core.FormatAmount(f.Amount),
		ExpenseAccountGUID:  f.ExpenseAccountGUID,
		PrimaryAccountGUID:  f.PrimaryAccountGUID,
		FallbackAccountGUID: f.FallbackAccountGUID,
		DayOfMonth:          f.DayOfMonth,
		Active:              f.Active,
		LastRunAt:           f.LastRunAt,
		CreatedAt:           f.CreatedAt,
		UpdatedAt:           f.UpdatedAt,
	}
	if !f.LastRunMonth.IsZero() {
		resp.LastRunMonth = f.LastRunMonth.Format(MonthOnly)
	}
	return resp
}

func toExecutionResponse(res *services.ExecutionResult) executionResponse {
	resp := executionResponse{
		FixedExpenseID:  res.FixedExpenseID,
		Name:            res.Name,
		Status:          string(res.Status),
		TransactionGUID: res.TransactionGUID,
		FundingGUID:     res.FundingGUID,
		Advisory:        res.Advisory,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	return resp
}

func fixedExpenseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (s *Server) handleCreateFixedExpense(w http.ResponseWriter, r *http.Request) {
	var req fixedExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	fixed, err := req.toFixedExpense()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err := s.fixed.CreateFixedExpense(r.Context(), &fixed); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFixedExpenseResponse(&fixed))
}

func (s *Server) handleListFixedExpenses(w http.ResponseWriter, r *http.Request) {
	items, err := s.fixed.ListFixedExpenses(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]fixedExpenseResponse, 0, len(items))
	for i := range items {
		resp = append(resp, toFixedExpenseResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFixedExpense(w http.ResponseWriter, r *http.Request) {
	id, err := fixedExpenseID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid fixed expense id")
		return
	}

	fixed, err := s.fixed.GetFixedExpense(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFixedExpenseResponse(fixed))
}

func (s *Server) handleUpdateFixedExpense(w http.ResponseWriter, r *http.Request) {
	id, err := fixedExpenseID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid fixed expense id")
		return
	}

	var req fixedExpenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	existing, err := s.fixed.GetFixedExpense(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	updated, err := req.toFixedExpense()
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	updated.ID = existing.ID
	updated.LastRunMonth = existing.LastRunMonth
	updated.LastRunAt = existing.LastRunAt
	updated.CreatedAt = existing.CreatedAt
	if err := s.fixed.UpdateFixedExpense(r.Context(), &updated); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFixedExpenseResponse(&updated))
}

func (s *Server) handleDeleteFixedExpense(w http.ResponseWriter, r *http.Request) {
	id, err := fixedExpenseID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid fixed expense id")
		return
	}

	if err := s.fixed.DeleteFixedExpense(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExecuteFixedExpense forces execution of one fixed expense for
// the current period. A period that already ran reports as skipped.
func (s *Server) handleExecuteFixedExpense(w http.ResponseWriter, r *http.Request) {
	id, err := fixedExpenseID(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid fixed expense id")
		return
	}

	result, err := s.fixed.Execute(r.Context(), id, time.Now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if result.Status == services.StatusExecuted {
		s.invalidateStatements()
	}
	writeJSON(w, http.StatusOK, toExecutionResponse(result))
}

// handleExecuteDue runs every active fixed expense that is due,
// best-effort per item.
func (s *Server) handleExecuteDue(w http.ResponseWriter, r *http.Request) {
	results, err := s.fixed.ExecuteAllDue(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	executed := false
	resp := make([]executionResponse, 0, len(results))
	for i := range results {
		if results[i].Status == services.StatusExecuted {
			executed = true
		}
		resp = append(resp, toExecutionResponse(&results[i]))
	}
	if executed {
		s.invalidateStatements()
	}
	writeJSON(w, http.StatusOK, resp)
}
