// Package validation holds the pure checks an installment request must pass
// before anything is persisted. Checks run in a fixed order and the first
// violation wins, so a client always sees one precise error at a time.
package validation

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	TitleMinLength = 1
	TitleMaxLength = 100
	MonthCountMin  = 1
)

// Dates must be plain calendar dates, no time component.
var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const dateLayout = "2006-01-02"

// Error is a single failed rule. Index is the offending payment row for
// per-entry checks and -1 otherwise.
type Error struct {
	Code    string
	Index   int
	Details map[string]any
}

func (e *Error) Error() string { return e.Code }

func fail(code string) *Error { return &Error{Code: code, Index: -1} }

func failAt(code string, index int) *Error { return &Error{Code: code, Index: index} }

// InstallmentInput is the decoded body of a create or update request.
// Fields stay raw JSON so the validator can tell an absent field from a
// wrong-typed one and report each with its own code.
type InstallmentInput struct {
	Title           json.RawMessage `json:"title"`
	Amount          json.RawMessage `json:"amount"`
	MonthCount      json.RawMessage `json:"monthCount"`
	StartDate       json.RawMessage `json:"startDate"`
	MonthlyPayments json.RawMessage `json:"monthlyPayments"`
}

type paymentInput struct {
	Date   json.RawMessage `json:"date"`
	Amount json.RawMessage `json:"amount"`
}

// Installment is the validated form of an InstallmentInput.
type Installment struct {
	Title      string
	Amount     float64
	MonthCount int
	StartDate  time.Time
	Payments   []Payment
}

type Payment struct {
	Date   time.Time
	Amount float64
}

// ValidateInstallment checks the candidate field by field in the documented
// order: title, amount, month count, start date, payment list shape, each
// payment entry, then the 2-decimal sum reconciliation.
func ValidateInstallment(in InstallmentInput) (*Installment, *Error) {
	title, verr := validateTitle(in.Title)
	if verr != nil {
		return nil, verr
	}
	amount, verr := validateAmount(in.Amount)
	if verr != nil {
		return nil, verr
	}
	monthCount, verr := validateMonthCount(in.MonthCount)
	if verr != nil {
		return nil, verr
	}
	startDate, verr := validateStartDate(in.StartDate)
	if verr != nil {
		return nil, verr
	}
	payments, verr := validatePayments(in.MonthlyPayments, monthCount, amount)
	if verr != nil {
		return nil, verr
	}
	return &Installment{
		Title:      title,
		Amount:     amount,
		MonthCount: monthCount,
		StartDate:  startDate,
		Payments:   payments,
	}, nil
}

func validateTitle(raw json.RawMessage) (string, *Error) {
	if absent(raw) {
		return "", fail("title_required")
	}
	s, ok := asString(raw)
	if !ok {
		return "", fail("title_not_string")
	}
	trimmed := strings.TrimSpace(s)
	// Bounds are in characters, not bytes.
	runes := utf8.RuneCountInString(trimmed)
	if runes < TitleMinLength {
		return "", fail("title_too_short")
	}
	if runes > TitleMaxLength {
		return "", fail("title_too_long")
	}
	return trimmed, nil
}

func validateAmount(raw json.RawMessage) (float64, *Error) {
	if absent(raw) {
		return 0, fail("amount_required")
	}
	f, ok := asNumber(raw)
	if !ok {
		return 0, fail("amount_not_number")
	}
	if f <= 0 {
		return 0, fail("amount_not_positive")
	}
	return f, nil
}

func validateMonthCount(raw json.RawMessage) (int, *Error) {
	if absent(raw) {
		return 0, fail("month_count_required")
	}
	f, ok := asNumber(raw)
	if !ok || f != math.Trunc(f) {
		return 0, fail("month_count_not_integer")
	}
	n := int(f)
	if n < MonthCountMin {
		return 0, fail("month_count_too_small")
	}
	return n, nil
}

func validateStartDate(raw json.RawMessage) (time.Time, *Error) {
	if absent(raw) {
		return time.Time{}, fail("start_date_required")
	}
	s, ok := asString(raw)
	if !ok {
		return time.Time{}, fail("start_date_not_string")
	}
	d, ok := parseDate(s)
	if !ok {
		return time.Time{}, fail("start_date_invalid")
	}
	return d, nil
}

func validatePayments(raw json.RawMessage, monthCount int, amount float64) ([]Payment, *Error) {
	if absent(raw) {
		return nil, fail("monthly_payments_required")
	}
	var entries []paymentInput
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fail("monthly_payments_not_array")
	}
	if len(entries) != monthCount {
		return nil, &Error{
			Code:  "monthly_payments_count_mismatch",
			Index: -1,
			Details: map[string]any{
				"expected": monthCount,
				"actual":   len(entries),
			},
		}
	}

	payments := make([]Payment, 0, len(entries))
	sum := decimal.Zero
	for i, entry := range entries {
		if absent(entry.Date) {
			return nil, failAt("payment_date_required", i)
		}
		s, ok := asString(entry.Date)
		if !ok {
			return nil, failAt("payment_date_not_string", i)
		}
		d, ok := parseDate(s)
		if !ok {
			return nil, failAt("payment_date_invalid", i)
		}
		if absent(entry.Amount) {
			return nil, failAt("payment_amount_required", i)
		}
		f, ok := asNumber(entry.Amount)
		if !ok {
			return nil, failAt("payment_amount_not_number", i)
		}
		if f <= 0 {
			return nil, failAt("payment_amount_not_positive", i)
		}
		payments = append(payments, Payment{Date: d, Amount: f})
		sum = sum.Add(decimal.NewFromFloat(f))
	}

	// Reconciliation: both sides rounded half away from zero to 2 decimals.
	sumRounded := sum.Round(2)
	amountRounded := decimal.NewFromFloat(amount).Round(2)
	if !sumRounded.Equal(amountRounded) {
		return nil, &Error{
			Code:  "monthly_payments_total_mismatch",
			Index: -1,
			Details: map[string]any{
				"paymentsTotal": sumRounded.InexactFloat64(),
				"amount":        amountRounded.InexactFloat64(),
			},
		}
	}
	return payments, nil
}

// absent covers both a missing key and an explicit null.
func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func asString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func asNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
	if !dateRe.MatchString(s) {
		return time.Time{}, false
	}
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
