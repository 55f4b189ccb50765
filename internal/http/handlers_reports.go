package http

import (
	"fmt"
	"net/http"
	"time"

	"conti/internal/core"
	"conti/internal/services"
)

type cashflowTypeResponse struct {
	ID        int64  `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	FlowType  string `json:"flow_type"`
	Direction string `json:"direction"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"active"`
}

type rebuildRequest struct {
	Month string `json:"month"`
	Kind  string `json:"kind,omitempty"`
}

// handleStatement generates an ad-hoc statement over an arbitrary
// period. Responses are cached briefly and invalidated on postings.
func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseStatementKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	prev := services.PreviousFullMonth(time.Now())
	start, err := parseDateQuery(r, "start")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := parseDateQuery(r, "end")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid end date")
		return
	}
	if start.IsZero() {
		start = prev
	}
	if end.IsZero() {
		end = prev.AddDate(0, 1, -1)
	}
	if end.Before(start) {
		writeError(w, r, http.StatusBadRequest, "end date before start date")
		return
	}

	key := fmt.Sprintf("%d|%s|%s|%s",
		s.cacheGen.Load(), kind, start.Format(core.DateOnly), end.Format(core.DateOnly))
	if stmt, ok := s.cachedStatement(r.Context(), key); ok {
		writeJSON(w, http.StatusOK, stmt)
		return
	}

	stmt, err := s.reports.Generate(r.Context(), kind, start, end)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	s.statementCache.Set(key, stmt)
	writeJSON(w, http.StatusOK, stmt)
}

// handleMonthlyReport serves a frozen monthly snapshot, building it on
// first access.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseStatementKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	month, err := parseMonthQuery(r, "month", services.PreviousFullMonth(time.Now()))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return
	}

	stmt, err := s.reports.GetOrBuildMonthlyReport(r.Context(), month, kind)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

// handleRebuildMonthlyReport regenerates frozen snapshots from the
// entry lines. An empty kind rebuilds all three statements.
func (s *Server) handleRebuildMonthlyReport(w http.ResponseWriter, r *http.Request) {
	var req rebuildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Month == "" {
		writeError(w, r, http.StatusBadRequest, "month is required")
		return
	}
	month, err := time.ParseInLocation(MonthOnly, req.Month, time.UTC)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid month, expected YYYY-MM")
		return
	}

	kinds := []core.StatementKind{core.KindBalanceSheet, core.KindIncomeStatement, core.KindCashflowStatement}
	if req.Kind != "" {
		kind, err := core.ParseStatementKind(req.Kind)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		kinds = []core.StatementKind{kind}
	}

	rebuilt := make([]*core.Statement, 0, len(kinds))
	for _, kind := range kinds {
		stmt, err := s.reports.RebuildMonthlyReport(r.Context(), month, kind)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		rebuilt = append(rebuilt, stmt)
	}

	s.invalidateStatements()
	writeJSON(w, http.StatusOK, rebuilt)
}

func (s *Server) handleCashflowTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	types, err := s.ledger.ListCashflowTypes(r.Context(), activeOnly)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]cashflowTypeResponse, 0, len(types))
	for _, t := range types {
		resp = append(resp, cashflowTypeResponse{
			ID:        t.ID,
			Code:      t.Code,
			Name:      t.Name,
			FlowType:  string(t.FlowType),
			Direction: string(t.Direction),
			SortOrder: t.SortOrder,
			Active:    t.Active,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
