package http

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"smartexpense/internal/apiclient"
	"smartexpense/internal/core"
	applog "smartexpense/internal/log"
	"smartexpense/internal/tracker"
)

const (
	msgExpenseAdded   = "Expense added successfully!"
	msgExpenseUpdated = "Expense updated successfully!"
	msgExpenseDeleted = "Expense deleted"
	msgNotFound       = "Expense not found"
)

type page struct {
	Title  string
	Active string
	Flash  *Flash
	Error  string
}

type dashboardPage struct {
	page
	Loading bool
	Loaded  bool
	Total   core.Money
	Count   int
	Recent  []core.Expense
	Alerts  []core.Alert
}

type formPage struct {
	page
	Categories  []core.Category
	Values      core.Submission
	EditID      int64
	Errors      []string
	SubmitLabel string
}

type categoryBar struct {
	Category core.Category
	Amount   core.Money
	Width    int
}

type summaryPage struct {
	page
	Loading       bool
	Total         core.Money
	Count         int
	Average       core.Money
	CategoryCount int
	Bars          []categoryBar
}

func (s *Server) newPage(w http.ResponseWriter, r *http.Request, title, active string) page {
	return page{Title: title, Active: active, Flash: popFlash(w, r)}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, status int, data any) {
	t := s.pages[name]
	if t == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldTemplate, name,
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template render failed",
			applog.FieldTemplate, name,
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) snapshot(r *http.Request) tracker.Snapshot {
	return s.tracker.EnsureLoaded(r.Context(), s.snapshotMaxAge)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	sum := core.Summarize(snap.Expenses)

	data := dashboardPage{
		page:    s.newPage(w, r, "Dashboard", "dashboard"),
		Loading: snap.Loading && !snap.Loaded(),
		Loaded:  snap.Loaded(),
		Total:   sum.Total,
		Count:   sum.Count,
		Recent:  sum.Recent,
	}
	data.Error = snap.Error

	if s.backend != nil && s.backend.Backend != nil {
		report, err := s.backend.Backend.SpendingAlert(r.Context())
		if err != nil {
			s.logger.WarnContext(r.Context(), "Failed to load spending alert",
				applog.FieldOperation, applog.OpAnalytics,
				applog.FieldError, err)
		} else {
			data.Alerts = report.Alerts
		}
	}

	s.render(w, r, "dashboard", http.StatusOK, data)
}

func (s *Server) emptyForm(w http.ResponseWriter, r *http.Request) formPage {
	now := s.now()
	return formPage{
		page:        s.newPage(w, r, "Add Expense", "add"),
		Categories:  core.Categories(),
		Values:      core.Submission{Date: core.NewDate(now.Year(), int(now.Month()), now.Day()).String()},
		SubmitLabel: "Add Expense",
	}
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	data := s.emptyForm(w, r)

	raw := strings.TrimSpace(r.URL.Query().Get("edit"))
	if raw == "" {
		s.render(w, r, "add", http.StatusOK, data)
		return
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	expense, found := core.Expense{}, false
	if err == nil {
		expense, found = s.snapshot(r).Find(id)
	}
	if !found {
		data.Error = msgNotFound
		s.render(w, r, "add", http.StatusNotFound, data)
		return
	}

	data.Title = "Edit Expense"
	data.Values = core.SubmissionFromExpense(expense)
	data.EditID = id
	data.SubmitLabel = "Update Expense"
	s.render(w, r, "add", http.StatusOK, data)
}

func (s *Server) handleSubmitExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.logger.WarnContext(r.Context(), "Parse request body error",
			applog.FieldError, err,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	sub := p.Submission()
	var editID int64
	if raw := p.Get("edit_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			BadRequestError(msgNotFound).Write(w)
			return
		}
		editID = id
	}

	if msgs := core.ValidateSubmission(sub); len(msgs) > 0 {
		s.logger.DebugContext(r.Context(), "Expense submission rejected",
			applog.FieldOperation, applog.OpValidate,
			applog.FieldErrorType, applog.ErrorTypeValidation,
			"messages", msgs)
		if isHTMX(r) {
			UnprocessableEntityError(strings.Join(msgs, "; ")).Write(w)
			return
		}
		data := s.submittedForm(w, r, sub, editID)
		data.Errors = msgs
		s.render(w, r, "add", http.StatusUnprocessableEntity, data)
		return
	}

	op := applog.OpCreate
	var (
		saved core.Expense
		err   error
	)
	if editID != 0 {
		op = applog.OpUpdate
		saved, err = s.tracker.Edit(r.Context(), editID, sub)
	} else {
		saved, err = s.tracker.Add(r.Context(), sub)
	}
	if err != nil {
		status, msg := s.writeFailure(r, op, err)
		if isHTMX(r) {
			ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
			return
		}
		data := s.submittedForm(w, r, sub, editID)
		data.Error = msg
		s.render(w, r, "add", status, data)
		return
	}
	s.writeSuccess(r, op, saved)

	msg := msgExpenseAdded
	if editID != 0 {
		msg = msgExpenseUpdated
	}
	if isHTMX(r) {
		b := NewHTMXResponse().TriggerFormReset().TriggerSuccessNotification(msg)
		if editID != 0 {
			b.TriggerExpenseUpdated(saved.ID)
		} else {
			b.TriggerExpenseCreated(saved.ID)
		}
		b.Write(w)
		return
	}
	setFlash(w, NotificationSuccess, msg)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) submittedForm(w http.ResponseWriter, r *http.Request, sub core.Submission, editID int64) formPage {
	data := s.emptyForm(w, r)
	data.Values = sub
	if editID != 0 {
		data.Title = "Edit Expense"
		data.EditID = editID
		data.SubmitLabel = "Update Expense"
	}
	return data
}

// handleDeleteExpense serves both the form post of the dashboard and DELETE
// requests from scripts.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	scripted := r.Method == http.MethodDelete || isHTMX(r)

	id, ok := parseExpenseID(r)
	if !ok {
		if scripted {
			NotFoundError(msgNotFound).Write(w)
			return
		}
		setFlash(w, NotificationError, msgNotFound)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if err := s.tracker.Delete(r.Context(), id); err != nil {
		status, msg := s.writeFailure(r, applog.OpDelete, err)
		if scripted {
			ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
			return
		}
		setFlash(w, NotificationError, msg)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.writeSuccess(r, applog.OpDelete, core.Expense{ID: id})

	if scripted {
		NewHTMXResponse().
			TriggerExpenseDeleted(id).
			TriggerSuccessNotification(msgExpenseDeleted).
			Write(w)
		return
	}
	setFlash(w, NotificationSuccess, msgExpenseDeleted)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	sum := core.Summarize(snap.Expenses)

	bars := make([]categoryBar, 0, len(sum.Top))
	for _, c := range sum.Top {
		bars = append(bars, categoryBar{
			Category: c.Category,
			Amount:   c.Amount,
			Width:    core.BarWidth(c.Amount, sum.MaxCategory),
		})
	}

	data := summaryPage{
		page:          s.newPage(w, r, "Summary", "summary"),
		Loading:       snap.Loading && !snap.Loaded(),
		Total:         sum.Total,
		Count:         sum.Count,
		Average:       sum.Average,
		CategoryCount: len(sum.ByCategory),
		Bars:          bars,
	}
	data.Error = snap.Error
	s.render(w, r, "summary", http.StatusOK, data)
}

// writeFailure records a failed write and returns the status and message to report.
func (s *Server) writeFailure(r *http.Request, op string, err error) (int, string) {
	status := s.failureStatus(err)
	msg := apiclient.Message(err)
	if status >= http.StatusInternalServerError {
		s.metrics.BackendError(op)
		s.structured.LogError(r.Context(), "Expense write failed", err, applog.ComponentExpense, op,
			applog.NewFields().WithErrorType(s.backendErrorType()))
	} else {
		s.logger.WarnContext(r.Context(), "Expense write rejected",
			applog.FieldOperation, op,
			applog.FieldStatusCode, status,
			applog.FieldError, err)
	}
	return status, msg
}

func (s *Server) writeSuccess(r *http.Request, op string, e core.Expense) {
	s.metrics.ExpenseWritten(op)
	s.structured.LogExpenseWritten(r.Context(), op, e.ID, e.Amount.Cents, string(e.Category), e.Date.String())
}
