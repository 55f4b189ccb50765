package core

import "github.com/shopspring/decimal"

// CheckBalanced enforces the double-entry invariant on a proposed
// voucher: at least two entry lines whose signed amounts sum to
// exactly zero. It runs before any persistence side effect, on create
// and on update alike.
func CheckBalanced(lines []EntryLineDraft) error {
	if len(lines) < 2 {
		return ErrInsufficientLines
	}
	sum := decimal.Zero
	for _, line := range lines {
		signed, err := line.Signed()
		if err != nil {
			return err
		}
		sum = sum.Add(signed)
	}
	if !sum.IsZero() {
		return &ImbalancedError{Residual: sum}
	}
	return nil
}

// NormalizeLines converts draft lines to their canonical signed form.
// It assumes CheckBalanced already passed.
func NormalizeLines(lines []EntryLineDraft) ([]EntryLine, error) {
	out := make([]EntryLine, len(lines))
	for i, line := range lines {
		signed, err := line.Signed()
		if err != nil {
			return nil, err
		}
		out[i] = EntryLine{
			AccountGUID:    line.AccountGUID,
			Memo:           line.Memo,
			Amount:         signed,
			CashflowTypeID: line.CashflowTypeID,
		}
	}
	return out, nil
}
