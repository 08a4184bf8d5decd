package http

import (
	"errors"
	"net/http"
	"strings"

	"smartexpense/internal/apiclient"
	"smartexpense/internal/contract"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
)

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func writeEnvelope(w http.ResponseWriter, status int, env contract.Envelope) {
	writeJSON(w, status, env)
}

func writeOK(w http.ResponseWriter, status int, data any) {
	env, err := contract.OK(data)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	writeEnvelope(w, status, env)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeEnvelope(w, status, contract.Fail(msg))
}

var domainErrors = []error{
	core.ErrInvalidAmount,
	core.ErrEmptyCategory,
	core.ErrUnknownCategory,
	core.ErrMissingDate,
	core.ErrInvalidDate,
	core.ErrDescriptionTooLong,
}

// failureStatus maps an error from the tracker or the backend to the status
// reported to the caller.
func (s *Server) failureStatus(err error) int {
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, core.ErrNotFound) {
		return http.StatusNotFound
	}
	for _, derr := range domainErrors {
		if errors.Is(err, derr) {
			return http.StatusBadRequest
		}
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity) {
		return http.StatusBadRequest
	}
	if s.backend != nil && s.backend.Remote {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) backendErrorType() string {
	if s.backend != nil && s.backend.Remote {
		return applog.ErrorTypeNetwork
	}
	return applog.ErrorTypeDatabase
}

func (s *Server) readFailure(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := s.failureStatus(err)
	if status >= http.StatusInternalServerError {
		s.metrics.BackendError(op)
	}
	s.logger.ErrorContext(r.Context(), "Backend read failed",
		applog.FieldOperation, op,
		applog.FieldErrorType, s.backendErrorType(),
		applog.FieldError, err)
	writeFail(w, status, apiclient.Message(err))
}

func (s *Server) handleAPIListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.backend.Backend.ListExpenses(r.Context())
	if err != nil {
		s.readFailure(w, r, applog.OpList, err)
		return
	}
	writeOK(w, http.StatusOK, contract.FromExpenses(list))
}

// parseSubmission reads a JSON or form body. It writes the 400 response and
// returns false when the body cannot be used.
func parseSubmission(w http.ResponseWriter, r *http.Request) (core.Submission, bool) {
	p := NewRequestBodyParser(r)
	if err := p.RequireBody(); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return core.Submission{}, false
	}
	return p.Submission(), true
}

func (s *Server) handleAPICreateExpense(w http.ResponseWriter, r *http.Request) {
	sub, ok := parseSubmission(w, r)
	if !ok {
		return
	}
	created, err := s.tracker.Add(r.Context(), sub)
	if err != nil {
		status, msg := s.writeFailure(r, applog.OpCreate, err)
		writeFail(w, status, msg)
		return
	}
	s.writeSuccess(r, applog.OpCreate, created)
	writeOK(w, http.StatusCreated, contract.FromExpense(created))
}

func (s *Server) handleAPIUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseExpenseID(r)
	if !ok {
		writeFail(w, http.StatusNotFound, msgNotFound)
		return
	}
	sub, ok := parseSubmission(w, r)
	if !ok {
		return
	}
	updated, err := s.tracker.Edit(r.Context(), id, sub)
	if err != nil {
		status, msg := s.writeFailure(r, applog.OpUpdate, err)
		writeFail(w, status, msg)
		return
	}
	s.writeSuccess(r, applog.OpUpdate, updated)
	writeOK(w, http.StatusOK, contract.FromExpense(updated))
}

func (s *Server) handleAPIDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := parseExpenseID(r)
	if !ok {
		writeFail(w, http.StatusNotFound, msgNotFound)
		return
	}
	if err := s.tracker.Delete(r.Context(), id); err != nil {
		status, msg := s.writeFailure(r, applog.OpDelete, err)
		writeFail(w, status, msg)
		return
	}
	s.writeSuccess(r, applog.OpDelete, core.Expense{ID: id})
	writeOK(w, http.StatusOK, map[string]int64{"id": id})
}

func (s *Server) handleAPIMonthly(w http.ResponseWriter, r *http.Request) {
	monthly, err := s.backend.Backend.MonthlySummary(r.Context())
	if err != nil {
		s.readFailure(w, r, applog.OpAnalytics, err)
		return
	}
	writeOK(w, http.StatusOK, contract.FromMonthSummaries(monthly))
}

func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.backend.Backend.CategorySummary(r.Context())
	if err != nil {
		s.readFailure(w, r, applog.OpAnalytics, err)
		return
	}
	writeOK(w, http.StatusOK, contract.FromCategoryTotals(cats))
}

func (s *Server) handleAPISpendingAlert(w http.ResponseWriter, r *http.Request) {
	report, err := s.backend.Backend.SpendingAlert(r.Context())
	if err != nil {
		s.readFailure(w, r, applog.OpAnalytics, err)
		return
	}
	writeOK(w, http.StatusOK, contract.FromAlertReport(report))
}
