package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Status is the settlement state printed next to each statement line.
type Status string

const (
	StatusCompleted Status = "Completed"
	StatusCanceled  Status = "Canceled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Amount is a signed decimal amount. It serializes as a bare JSON number and
// as a plain decimal string in CSV.
type Amount struct {
	decimal.Decimal
}

// NewAmount wraps a decimal value.
func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

// MarshalJSON emits the amount as a JSON number, e.g. -42.5.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted numbers.
func (a *Amount) UnmarshalJSON(data []byte) error {
	if err := a.Decimal.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (a Amount) MarshalCSV() (string, error) {
	return a.Decimal.String(), nil
}

// Transaction is one statement line recognized on a page.
type Transaction struct {
	Date        string `json:"date" csv:"date"`
	Description string `json:"description" csv:"description"`
	Amount      Amount `json:"amount" csv:"amount"`
	Status      Status `json:"status" csv:"status"`
}

// DocumentMetadata holds statement header fields found on a page.
// Missing fields are omitted from JSON.
type DocumentMetadata struct {
	Period        string `json:"period,omitempty"`
	AccountHolder string `json:"account_holder,omitempty"`
}

// IsEmpty reports whether no metadata field was found.
func (m DocumentMetadata) IsEmpty() bool {
	return m.Period == "" && m.AccountHolder == ""
}
