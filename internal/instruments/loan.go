package instruments

import (
	"math"

	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// LoanTerms are the validated terms of a lending or borrowing issuance.
// Collateral is known at creation for borrowing and at engagement for
// lending; RepaymentItem is set at engagement.
type LoanTerms struct {
	CollateralAsset ir.AssetID
	LoanAsset       ir.AssetID
	Amount          int64
	TenorDays       int64
	CollateralRatio int64
	InterestRate    int64
	Interest        int64
	Collateral      int64
	RepaymentItem   int64
}

// Repayment is principal plus interest.
func (t LoanTerms) Repayment() int64 { return t.Amount + t.Interest }

// loan implements both lending (the maker lends) and borrowing (the maker
// borrows). The two differ only in which party plays lender.
type loan struct {
	name        string
	makerLends  bool
	assetField  string
	amountField string
	dueEvent    string
	oracle      PriceOracle
}

// NewLending returns the lending variant: the maker offers a loan that a
// taker engages by posting collateral.
func NewLending(oracle PriceOracle) issuance.Variant {
	return &loan{
		name:        Lending,
		makerLends:  true,
		assetField:  "lending_asset",
		amountField: "lending_amount",
		dueEvent:    "lending_due",
		oracle:      oracle,
	}
}

// NewBorrowing returns the borrowing variant: the maker posts collateral and
// asks for a loan that a taker engages by funding it.
func NewBorrowing(oracle PriceOracle) issuance.Variant {
	return &loan{
		name:        Borrowing,
		makerLends:  false,
		assetField:  "borrowing_asset",
		amountField: "borrowing_amount",
		dueEvent:    "borrowing_due",
		oracle:      oracle,
	}
}

func (l *loan) Name() string { return l.name }
func (l *loan) DataKey() string { return l.name + "_data" }
func (l *loan) DueEvents() []string { return []string{l.dueEvent} }

func (l *loan) ValidateCreation(params []byte) (issuance.Terms, error) {
	var p loanParams
	if l.makerLends {
		var raw struct {
			CollateralAsset ir.AssetID `json:"collateral_asset"`
			LendingAsset    ir.AssetID `json:"lending_asset"`
			LendingAmount   int64      `json:"lending_amount"`
			TenorDays       int64      `json:"tenor_days"`
			CollateralRatio int64      `json:"collateral_ratio"`
			InterestRate    int64      `json:"interest_rate"`
		}
		if err := decodeParams(params, &raw); err != nil {
			return nil, err
		}
		p = loanParams{raw.CollateralAsset, raw.LendingAsset, raw.LendingAmount, raw.TenorDays, raw.CollateralRatio, raw.InterestRate}
	} else {
		var raw struct {
			CollateralAsset ir.AssetID `json:"collateral_asset"`
			BorrowingAsset  ir.AssetID `json:"borrowing_asset"`
			BorrowingAmount int64      `json:"borrowing_amount"`
			TenorDays       int64      `json:"tenor_days"`
			CollateralRatio int64      `json:"collateral_ratio"`
			InterestRate    int64      `json:"interest_rate"`
		}
		if err := decodeParams(params, &raw); err != nil {
			return nil, err
		}
		p = loanParams{raw.CollateralAsset, raw.BorrowingAsset, raw.BorrowingAmount, raw.TenorDays, raw.CollateralRatio, raw.InterestRate}
	}
	if err := p.validate(l.assetField, l.amountField); err != nil {
		return nil, err
	}

	interest, err := interestFor(p.Amount, p.InterestRate, p.TenorDays)
	if err != nil {
		return nil, err
	}
	if p.Amount > math.MaxInt64-interest {
		return nil, ir.ValidationError("%s %d plus interest %d overflows", l.amountField, p.Amount, interest)
	}
	return LoanTerms{
		CollateralAsset: p.CollateralAsset,
		LoanAsset:       p.LoanAsset,
		Amount:          p.Amount,
		TenorDays:       p.TenorDays,
		CollateralRatio: p.CollateralRatio,
		InterestRate:    p.InterestRate,
		Interest:        interest,
	}, nil
}

func (l *loan) lender(iss *issuance.Issuance) ir.Address {
	if l.makerLends {
		return iss.Maker
	}
	return iss.Taker
}

func (l *loan) borrower(iss *issuance.Issuance) ir.Address {
	if l.makerLends {
		return iss.Taker
	}
	return iss.Maker
}

// lockCollateral sizes the collateral at the current rate and locks it for
// the borrower.
func (l *loan) lockCollateral(c *issuance.Context, t LoanTerms, borrower ir.Address) (LoanTerms, error) {
	amount, err := collateralFor(l.oracle, t.LoanAsset, t.CollateralAsset, t.Amount, t.CollateralRatio)
	if err != nil {
		return t, err
	}
	if amount <= 0 {
		return t, ir.ValidationError("collateral for %d %s rounds to zero", t.Amount, t.LoanAsset)
	}
	if err := c.Funds.Lock(borrower, t.CollateralAsset, amount); err != nil {
		return t, err
	}
	t.Collateral = amount
	return t, nil
}

func (l *loan) OnCreate(c *issuance.Context) error {
	iss := c.Issuance
	t := c.Terms().(LoanTerms)
	iss.EngagementDueAt = c.Now + EngagementWindowDays*ir.Day

	if l.makerLends {
		return c.Funds.Lock(iss.Maker, t.LoanAsset, t.Amount)
	}
	t, err := l.lockCollateral(c, t, iss.Maker)
	if err != nil {
		return err
	}
	c.SetTerms(t)
	return nil
}

func (l *loan) OnEngage(c *issuance.Context, _ []byte) (ir.IssuanceState, error) {
	iss := c.Issuance
	t := c.Terms().(LoanTerms)
	lender, borrower := l.lender(iss), l.borrower(iss)

	if l.makerLends {
		var err error
		if t, err = l.lockCollateral(c, t, borrower); err != nil {
			return 0, err
		}
	} else if err := c.Funds.Lock(lender, t.LoanAsset, t.Amount); err != nil {
		return 0, err
	}

	// Principal goes to the borrower's free balance.
	if err := c.Settle(lender, borrower, t.LoanAsset, t.Amount); err != nil {
		return 0, err
	}

	iss.IssuanceDueAt = c.Now + ir.Timestamp(t.TenorDays)*ir.Day
	id, err := c.AddLineItem(ir.LineItem{
		Type:    ir.LineItemTransfer,
		State:   ir.LineItemStateEngaged,
		Obligor: borrower,
		Claimor: lender,
		Asset:   t.LoanAsset,
		Amount:  t.Repayment(),
		DueAt:   iss.IssuanceDueAt,
	})
	if err != nil {
		return 0, err
	}
	t.RepaymentItem = id
	c.SetTerms(t)
	return ir.StateEngaged, nil
}

func (l *loan) OnDeposit(c *issuance.Context, asset ir.AssetID, amount int64) (ir.IssuanceState, error) {
	iss := c.Issuance
	t := c.Terms().(LoanTerms)
	lender, borrower := l.lender(iss), l.borrower(iss)

	if c.Sender != borrower {
		return 0, ir.Unauthorized(c.Sender, "only the borrower may repay").WithIssuance(iss.ID)
	}
	if asset != t.LoanAsset {
		return 0, ir.ValidationError("repayment must be in %s, got %s", t.LoanAsset, asset)
	}
	if amount != t.Repayment() {
		return 0, ir.ValidationError("repayment must be exactly %d, got %d", t.Repayment(), amount)
	}
	if c.Now >= iss.IssuanceDueAt {
		return 0, ir.InvalidStatef("issuance due at %d has passed", iss.IssuanceDueAt).WithIssuance(iss.ID)
	}

	if err := c.Funds.Lock(borrower, asset, amount); err != nil {
		return 0, err
	}
	if err := c.Settle(borrower, lender, asset, amount); err != nil {
		return 0, err
	}
	if err := c.Funds.Release(borrower, t.CollateralAsset, t.Collateral); err != nil {
		return 0, err
	}
	if err := c.SetLineItemState(t.RepaymentItem, ir.LineItemStatePaid); err != nil {
		return 0, err
	}
	return ir.StateCompleteEngaged, nil
}

func (l *loan) OnDue(c *issuance.Context, _ string) (ir.IssuanceState, error) {
	iss := c.Issuance
	t := c.Terms().(LoanTerms)

	// Collateral goes to the lender.
	if err := c.Settle(l.borrower(iss), l.lender(iss), t.CollateralAsset, t.Collateral); err != nil {
		return 0, err
	}
	if err := c.SetLineItemState(t.RepaymentItem, ir.LineItemStateDelinquent); err != nil {
		return 0, err
	}
	return ir.StateDelinquent, nil
}

func (l *loan) Properties(iss *issuance.Issuance) []issuance.Property {
	t, _ := iss.Terms.(LoanTerms)
	return []issuance.Property{
		{Key: "collateral_asset", Value: string(t.CollateralAsset)},
		{Key: l.assetField, Value: string(t.LoanAsset)},
		{Key: l.amountField, Value: formatInt(t.Amount)},
		{Key: "tenor_days", Value: formatInt(t.TenorDays)},
		{Key: "collateral_ratio", Value: formatInt(t.CollateralRatio)},
		{Key: "interest_rate", Value: formatInt(t.InterestRate)},
		{Key: "interest_amount", Value: formatInt(t.Interest)},
		{Key: "collateral_amount", Value: formatInt(t.Collateral)},
	}
}
