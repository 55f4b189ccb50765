package http

import (
	"net/http"
	"time"

	"conti/internal/core"
)

type accountRequest struct {
	Name        string `json:"name"`
	AccountType string `json:"account_type"`
	ParentGUID  string `json:"parent_guid,omitempty"`
	Code        string `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
	Placeholder bool   `json:"placeholder,omitempty"`
	IsCash      bool   `json:"is_cash,omitempty"`
}

type accountResponse struct {
	GUID           string    `json:"guid"`
	Name           string    `json:"name"`
	AccountType    string    `json:"account_type"`
	ParentGUID     string    `json:"parent_guid,omitempty"`
	Code           string    `json:"code,omitempty"`
	Description    string    `json:"description,omitempty"`
	Hidden         bool      `json:"hidden"`
	Placeholder    bool      `json:"placeholder"`
	IsCash         bool      `json:"is_cash"`
	CurrentBalance string    `json:"current_balance"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type balanceResponse struct {
	AccountGUID string `json:"account_guid"`
	Category    string `json:"category"`
	Signed      string `json:"signed"`
	Natural     string `json:"natural"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
}

func (req accountRequest) toAccount() core.Account {
	return core.Account{
		Name:        sanitizeInput(req.Name),
		AccountType: sanitizeInput(req.AccountType),
		ParentGUID:  req.ParentGUID,
		Code:        sanitizeInput(req.Code),
		Description: sanitizeInput(req.Description),
		Hidden:      req.Hidden,
		Placeholder: req.Placeholder,
		IsCash:      req.IsCash,
	}
}

func toAccountResponse(a *core.Account) accountResponse {
	return accountResponse{
		GUID:           a.GUID,
		Name:           a.Name,
		AccountType:    a.AccountType,
		ParentGUID:     a.ParentGUID,
		Code:           a.Code,
		Description:    a.Description,
		Hidden:         a.Hidden,
		Placeholder:    a.Placeholder,
		IsCash:         a.IsCash,
		CurrentBalance: core.FormatAmount(a.CurrentBalance),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	account := req.toAccount()
	if err := s.ledger.CreateAccount(r.Context(), &account); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(&account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	includeHidden := r.URL.Query().Get("include_hidden") == "true"

	accounts, err := s.ledger.ListAccounts(r.Context(), includeHidden)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for i := range accounts {
		resp = append(resp, toAccountResponse(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.ledger.GetAccount(r.Context(), r.PathValue("guid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	account, err := s.ledger.GetAccount(r.Context(), r.PathValue("guid"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	updated := req.toAccount()
	updated.GUID = account.GUID
	updated.CurrentBalance = account.CurrentBalance
	updated.CreatedAt = account.CreatedAt
	if err := s.ledger.UpdateAccount(r.Context(), &updated); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(&updated))
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteAccount(r.Context(), r.PathValue("guid")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAccountBalance reports signed and natural balances over an
// optional from/to date range. as_of is shorthand for to alone, the
// cumulative balance at a date.
func (s *Server) handleAccountBalance(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateQuery(r, "from")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid from date")
		return
	}
	to, err := parseDateQuery(r, "to")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid to date")
		return
	}
	if to.IsZero() {
		if to, err = parseDateQuery(r, "as_of"); err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid as_of date")
			return
		}
	}

	report, err := s.ledger.AccountBalance(r.Context(), r.PathValue("guid"), from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := balanceResponse{
		AccountGUID: report.AccountGUID,
		Category:    string(report.Category),
		Signed:      core.FormatAmount(report.Signed),
		Natural:     core.FormatAmount(report.Natural),
	}
	if !report.From.IsZero() {
		resp.From = report.From.Format(core.DateOnly)
	}
	if !report.To.IsZero() {
		resp.To = report.To.Format(core.DateOnly)
	}
	writeJSON(w, http.StatusOK, resp)
}
