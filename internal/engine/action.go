package engine

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/roach88/instrumentd/internal/ir"
)

// Action kinds.
const (
	KindFundRegistry         = "fund_registry"
	KindDefundRegistry       = "defund_registry"
	KindSetInstrumentDeposit = "set_instrument_deposit"
	KindSetIssuanceDeposit   = "set_issuance_deposit"
	KindSetDepositPolicy     = "set_deposit_policy"
	KindActivateInstrument   = "activate_instrument"
	KindDeposit              = "deposit"
	KindWithdraw             = "withdraw"
	KindAdminDeposit         = "admin_deposit"
	KindAdminWithdraw        = "admin_withdraw"
	KindCreateIssuance       = "create_issuance"
	KindEngageIssuance       = "engage_issuance"
	KindDepositToIssuance    = "deposit_to_issuance"
	KindNotifyCustomEvent    = "notify_custom_event"
	KindDeactivate           = "deactivate"
)

// Kinds lists every action kind.
var Kinds = []string{
	KindFundRegistry,
	KindDefundRegistry,
	KindSetInstrumentDeposit,
	KindSetIssuanceDeposit,
	KindSetDepositPolicy,
	KindActivateInstrument,
	KindDeposit,
	KindWithdraw,
	KindAdminDeposit,
	KindAdminWithdraw,
	KindCreateIssuance,
	KindEngageIssuance,
	KindDepositToIssuance,
	KindNotifyCustomEvent,
	KindDeactivate,
}

// JSONText is a JSON document carried as text. In YAML it may be written
// either as a string or as a mapping, which is converted to JSON.
type JSONText string

// UnmarshalYAML implements yaml.Unmarshaler.
func (j *JSONText) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*j = JSONText(node.Value)
		return nil
	}
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("line %d: convert to JSON: %w", node.Line, err)
	}
	*j = JSONText(data)
	return nil
}

// Action is one request to the engine. Which fields matter depends on Kind;
// unused fields stay zero and are left out of the journaled args.
type Action struct {
	Kind   string     `yaml:"kind" json:"-"`
	Sender ir.Address `yaml:"sender" json:"sender,omitempty"`

	Instrument ir.InstrumentID `yaml:"instrument" json:"instrument,omitempty"`
	Issuance   ir.IssuanceID   `yaml:"issuance" json:"issuance,omitempty"`

	Owner  ir.Address `yaml:"owner" json:"owner,omitempty"`
	Asset  ir.AssetID `yaml:"asset" json:"asset,omitempty"`
	Amount int64      `yaml:"amount" json:"amount,omitempty"`

	Event   string   `yaml:"event" json:"event,omitempty"`
	Params  JSONText `yaml:"params" json:"params,omitempty"`
	Data    JSONText `yaml:"data" json:"data,omitempty"`
	Payload JSONText `yaml:"payload" json:"payload,omitempty"`

	Name         string       `yaml:"name" json:"name,omitempty"`
	Variant      string       `yaml:"variant" json:"variant,omitempty"`
	Policy       string       `yaml:"policy" json:"policy,omitempty"`
	Admin        ir.Address   `yaml:"admin" json:"admin,omitempty"`
	NativeAsset  ir.AssetID   `yaml:"native_asset" json:"native_asset,omitempty"`
	TerminatesAt ir.Timestamp `yaml:"terminates_at" json:"terminates_at,omitempty"`
	OverrideAt   ir.Timestamp `yaml:"override_at" json:"override_at,omitempty"`

	// At is the invocation time. Zero means the engine's time source.
	At ir.Timestamp `yaml:"at" json:"-"`
}

// Args returns the action's set fields as a canonical JSON object.
func (a Action) Args() map[string]any {
	args := map[string]any{}
	str := func(k, v string) {
		if v != "" {
			args[k] = v
		}
	}
	num := func(k string, v int64) {
		if v != 0 {
			args[k] = v
		}
	}
	str("sender", string(a.Sender))
	num("instrument", int64(a.Instrument))
	num("issuance", int64(a.Issuance))
	str("owner", string(a.Owner))
	str("asset", string(a.Asset))
	num("amount", a.Amount)
	str("event", a.Event)
	str("params", string(a.Params))
	str("data", string(a.Data))
	str("payload", string(a.Payload))
	str("name", a.Name)
	str("variant", a.Variant)
	str("policy", a.Policy)
	str("admin", string(a.Admin))
	str("native_asset", string(a.NativeAsset))
	num("terminates_at", int64(a.TerminatesAt))
	num("override_at", int64(a.OverrideAt))
	return args
}

// DecodeAction rebuilds an action from its journaled kind and args.
func DecodeAction(kind string, args map[string]any) (Action, error) {
	data, err := ir.MarshalCanonical(args)
	if err != nil {
		return Action{}, fmt.Errorf("decode action %s: %w", kind, err)
	}
	var a Action
	if err := json.Unmarshal(data, &a); err != nil {
		return Action{}, fmt.Errorf("decode action %s: %w", kind, err)
	}
	a.Kind = kind
	return a, nil
}
