package instruments

import (
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/issuance"
)

// SwapTerms are the validated terms of a spot swap. The maker sells
// InputAmount of InputAsset for OutputAmount of OutputAsset.
type SwapTerms struct {
	InputAsset   ir.AssetID
	OutputAsset  ir.AssetID
	InputAmount  int64
	OutputAmount int64
	DurationDays int64
	SettleItem   int64
}

type spotSwap struct{}

// NewSpotSwap returns the spot swap variant: the maker locks the input
// asset and the first taker to pay the output amount receives it, settling
// the issuance in the same action.
func NewSpotSwap() issuance.Variant { return spotSwap{} }

func (spotSwap) Name() string { return SpotSwap }
func (spotSwap) DataKey() string { return "swap_data" }
func (spotSwap) DueEvents() []string { return nil }

func (spotSwap) ValidateCreation(params []byte) (issuance.Terms, error) {
	var raw struct {
		InputAsset   ir.AssetID `json:"input_asset"`
		OutputAsset  ir.AssetID `json:"output_asset"`
		InputAmount  int64      `json:"input_amount"`
		OutputAmount int64      `json:"output_amount"`
		DurationDays int64      `json:"duration_days"`
	}
	if err := decodeParams(params, &raw); err != nil {
		return nil, err
	}
	if err := checkAssets(raw.InputAsset, raw.OutputAsset, "input_asset", "output_asset"); err != nil {
		return nil, err
	}
	if err := checkPositive("input_amount", raw.InputAmount); err != nil {
		return nil, err
	}
	if err := checkPositive("output_amount", raw.OutputAmount); err != nil {
		return nil, err
	}
	if err := checkRange("duration_days", raw.DurationDays, MinSwapDays, MaxSwapDays); err != nil {
		return nil, err
	}
	return SwapTerms{
		InputAsset:   raw.InputAsset,
		OutputAsset:  raw.OutputAsset,
		InputAmount:  raw.InputAmount,
		OutputAmount: raw.OutputAmount,
		DurationDays: raw.DurationDays,
	}, nil
}

func (spotSwap) OnCreate(c *issuance.Context) error {
	iss := c.Issuance
	t := c.Terms().(SwapTerms)

	due := c.Now + ir.Timestamp(t.DurationDays)*ir.Day
	iss.EngagementDueAt = due
	iss.IssuanceDueAt = due

	if err := c.Funds.Lock(iss.Maker, t.InputAsset, t.InputAmount); err != nil {
		return err
	}
	id, err := c.AddLineItem(ir.LineItem{
		Type:    ir.LineItemTransfer,
		State:   ir.LineItemStateInitiated,
		Obligor: c.Funds.Custodian(),
		Claimor: iss.Maker,
		Asset:   t.OutputAsset,
		Amount:  t.OutputAmount,
		DueAt:   due,
	})
	if err != nil {
		return err
	}
	t.SettleItem = id
	c.SetTerms(t)
	return nil
}

func (spotSwap) OnEngage(c *issuance.Context, _ []byte) (ir.IssuanceState, error) {
	iss := c.Issuance
	t := c.Terms().(SwapTerms)

	if err := c.Funds.Lock(iss.Taker, t.OutputAsset, t.OutputAmount); err != nil {
		return 0, err
	}
	if err := c.Settle(iss.Taker, iss.Maker, t.OutputAsset, t.OutputAmount); err != nil {
		return 0, err
	}
	if err := c.Settle(iss.Maker, iss.Taker, t.InputAsset, t.InputAmount); err != nil {
		return 0, err
	}
	if err := c.SetLineItemState(t.SettleItem, ir.LineItemStatePaid); err != nil {
		return 0, err
	}
	return ir.StateCompleteEngaged, nil
}

func (spotSwap) OnDeposit(c *issuance.Context, _ ir.AssetID, _ int64) (ir.IssuanceState, error) {
	return 0, ir.InvalidStatef("spot swap accepts no deposits").WithIssuance(c.Issuance.ID)
}

// OnDue is unreachable in practice: a swap settles in the action that
// engages it.
func (spotSwap) OnDue(c *issuance.Context, _ string) (ir.IssuanceState, error) {
	return c.Issuance.State, nil
}

func (spotSwap) Properties(iss *issuance.Issuance) []issuance.Property {
	t, _ := iss.Terms.(SwapTerms)
	return []issuance.Property{
		{Key: "input_asset", Value: string(t.InputAsset)},
		{Key: "output_asset", Value: string(t.OutputAsset)},
		{Key: "input_amount", Value: formatInt(t.InputAmount)},
		{Key: "output_amount", Value: formatInt(t.OutputAmount)},
		{Key: "duration_days", Value: formatInt(t.DurationDays)},
	}
}
