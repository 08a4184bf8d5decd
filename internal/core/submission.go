package core

import (
	"strings"
	"unicode/utf8"
)

// Validation messages shown next to the expense form.
const (
	MsgAmountPositive   = "Amount must be greater than 0"
	MsgCategoryRequired = "Please select a category"
	MsgCategoryUnknown  = "Unknown category"
	MsgDateRequired     = "Date is required"
	MsgDateInvalid      = "Invalid date"
	MsgDescriptionLong  = "Description too long (max 200 characters)"
)

// Submission holds the raw values of an expense form or JSON body, before parsing.
type Submission struct {
	Amount      string
	Category    string
	Date        string
	Description string
}

// ValidationError carries the field-level messages of a rejected submission.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ValidateSubmission checks a submission and returns human-readable messages,
// empty when the submission is valid.
func ValidateSubmission(s Submission) []string {
	var errs []string

	if _, err := ParseDecimalToCents(s.Amount); err != nil {
		errs = append(errs, MsgAmountPositive)
	}

	category := strings.TrimSpace(s.Category)
	if category == "" {
		errs = append(errs, MsgCategoryRequired)
	} else if _, ok := ParseCategory(category); !ok {
		errs = append(errs, MsgCategoryUnknown)
	}

	if strings.TrimSpace(s.Date) == "" {
		errs = append(errs, MsgDateRequired)
	} else if _, err := ParseDate(s.Date); err != nil {
		errs = append(errs, MsgDateInvalid)
	}

	if utf8.RuneCountInString(strings.TrimSpace(s.Description)) > MaxDescriptionLength {
		errs = append(errs, MsgDescriptionLong)
	}

	return errs
}

// Expense converts a valid submission into an Expense without an ID.
func (s Submission) Expense() (Expense, error) {
	if msgs := ValidateSubmission(s); len(msgs) > 0 {
		return Expense{}, &ValidationError{Messages: msgs}
	}
	cents, _ := ParseDecimalToCents(s.Amount)
	category, _ := ParseCategory(s.Category)
	date, _ := ParseDate(s.Date)
	return Expense{
		Amount:      Money{Cents: cents},
		Category:    category,
		Date:        date,
		Description: strings.TrimSpace(s.Description),
	}, nil
}

// SubmissionFromExpense renders an expense back into form values, used to prefill edits.
func SubmissionFromExpense(e Expense) Submission {
	return Submission{
		Amount:      e.Amount.Decimal().StringFixed(2),
		Category:    string(e.Category),
		Date:        e.Date.String(),
		Description: e.Description,
	}
}
