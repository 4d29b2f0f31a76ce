package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-extractor/internal/domain"
)

// USDStatementName is the registry name of USDStatement.
const USDStatementName = "usd-statement"

var (
	// date, description, amount and status on four consecutive lines.
	transactionPattern = regexp.MustCompile(`(\d{2}\s+[A-Za-z]+,\s+\d{4})\n([^\n]+)\n([+-]?[\d,]+\.\d{2}\s+USD)\n(Completed|Canceled)`)

	periodPattern = regexp.MustCompile(`Period\s*(\d{2}/\d{2}/\d{4}\s*-\s*\d{2}/\d{2}/\d{4})`)

	// A letters-only line directly above a line starting with "Period".
	accountHolderPattern = regexp.MustCompile(`(?m)^([A-Za-z \t]+)\nPeriod`)
)

// USDStatement reads statements that list each transaction as
//
//	15 March, 2024
//	Grocery Store
//	-42.50 USD
//	Completed
//
// with the account holder's name on the line above "Period DD/MM/YYYY - DD/MM/YYYY".
type USDStatement struct{}

func (USDStatement) Name() string { return USDStatementName }

// Transactions returns every non-overlapping match in text order.
func (USDStatement) Transactions(text string) []domain.Transaction {
	matches := transactionPattern.FindAllStringSubmatch(text, -1)
	txs := make([]domain.Transaction, 0, len(matches))
	for _, m := range matches {
		amount, err := ParseAmount(m[3])
		if err != nil {
			continue
		}
		txs = append(txs, domain.Transaction{
			Date:        strings.TrimSpace(m[1]),
			Description: strings.TrimSpace(m[2]),
			Amount:      domain.NewAmount(amount),
			Status:      domain.Status(m[4]),
		})
	}
	return txs
}

// Metadata extracts the statement period and account holder independently.
func (USDStatement) Metadata(text string) domain.DocumentMetadata {
	var md domain.DocumentMetadata
	if m := periodPattern.FindStringSubmatch(text); m != nil {
		md.Period = m[1]
	}
	if m := accountHolderPattern.FindStringSubmatch(text); m != nil {
		md.AccountHolder = strings.TrimSpace(m[1])
	}
	return md
}

// ParseAmount keeps only digits, '.' and '-' and parses the rest as a
// decimal, so "+1,234.56 USD" becomes 1234.56. Strings that still are not a
// number after stripping return an error; odd inputs such as "1-2" are not
// guarded against.
func ParseAmount(s string) (decimal.Decimal, error) {
	clean := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}
