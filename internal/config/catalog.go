// Package config loads instrumentd configuration: runtime settings from the
// environment and the instrument catalog from CUE.
//
// A catalog names the registry owner, the deposit settings, the oracle
// rates and the instruments to activate when a journal is first created.
// Catalogs are unified with an embedded schema before they are decoded, so
// range and enum violations are reported with CUE positions.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/instrumentd/internal/engine"
	"github.com/roach88/instrumentd/internal/instruments"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/registry"
)

//go:embed schema.cue
var schemaCUE string

// Catalog is a decoded instrument catalog.
type Catalog struct {
	Registry    RegistrySettings `json:"registry"`
	Oracle      []Rate           `json:"oracle"`
	Funding     []Funding        `json:"funding"`
	Instruments []Instrument     `json:"instruments"`
}

// RegistrySettings configures the registry.
type RegistrySettings struct {
	Owner             ir.Address `json:"owner"`
	DepositAsset      ir.AssetID `json:"deposit_asset"`
	InstrumentDeposit int64      `json:"instrument_deposit"`
	IssuanceDeposit   int64      `json:"issuance_deposit"`
	Policy            string     `json:"policy"`
}

// Rate is one oracle conversion rate.
type Rate struct {
	Base  ir.AssetID `json:"base"`
	Quote ir.AssetID `json:"quote"`
	Num   int64      `json:"num"`
	Den   int64      `json:"den"`
}

// Funding credits an owner's registry wallet at boot.
type Funding struct {
	Owner  ir.Address `json:"owner"`
	Amount int64      `json:"amount"`
}

// Instrument is one instrument activated at boot.
type Instrument struct {
	Name         string       `json:"name"`
	Variant      string       `json:"variant"`
	Owner        ir.Address   `json:"owner"`
	Admin        ir.Address   `json:"admin,omitempty"`
	NativeAsset  ir.AssetID   `json:"native_asset,omitempty"`
	TerminatesAt ir.Timestamp `json:"terminates_at"`
	OverrideAt   ir.Timestamp `json:"override_at"`
}

// LoadError is a catalog that failed to load or validate.
type LoadError struct {
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Message)
	}
	return e.Message
}

// Load reads a catalog from a .cue file or from a directory holding one
// CUE package.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	ctx := cuecontext.New()
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		return decode(ctx, ctx.CompileBytes(data, cue.Filename(path)))
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: path})
	if len(instances) == 0 {
		return nil, &LoadError{Message: fmt.Sprintf("no CUE instances in %s", path)}
	}
	if err := instances[0].Err; err != nil {
		return nil, formatCUEError(err)
	}
	return decode(ctx, ctx.BuildInstance(instances[0]))
}

// Parse decodes a catalog from CUE source. filename is used in positions.
func Parse(filename string, src []byte) (*Catalog, error) {
	ctx := cuecontext.New()
	return decode(ctx, ctx.CompileBytes(src, cue.Filename(filename)))
}

func decode(ctx *cue.Context, v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Catalog")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var c Catalog
	if err := unified.Decode(&c); err != nil {
		return nil, formatCUEError(err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// validate checks what the schema cannot express.
func (c *Catalog) validate() error {
	seen := make(map[string]bool, len(c.Instruments))
	for _, inst := range c.Instruments {
		if seen[inst.Name] {
			return &LoadError{Message: fmt.Sprintf("instrument %q declared twice", inst.Name)}
		}
		seen[inst.Name] = true
	}
	for _, r := range c.Oracle {
		if r.Base == r.Quote {
			return &LoadError{Message: fmt.Sprintf("oracle rate %s/%s converts an asset to itself", r.Base, r.Quote)}
		}
	}
	return nil
}

// PriceOracle builds the static price oracle the catalog describes.
func (c *Catalog) PriceOracle() (*instruments.StaticOracle, error) {
	o := instruments.NewStaticOracle()
	for _, r := range c.Oracle {
		if err := o.Set(r.Base, r.Quote, r.Num, r.Den); err != nil {
			return nil, fmt.Errorf("oracle rate %s/%s: %w", r.Base, r.Quote, err)
		}
	}
	return o, nil
}

// RegistryOptions returns the registry settings as registry options.
func (c *Catalog) RegistryOptions() ([]registry.Option, error) {
	policy, err := registry.ParsePolicy(c.Registry.Policy)
	if err != nil {
		return nil, err
	}
	oracle, err := c.PriceOracle()
	if err != nil {
		return nil, err
	}
	return []registry.Option{
		registry.WithDepositAsset(c.Registry.DepositAsset),
		registry.WithInstrumentDeposit(c.Registry.InstrumentDeposit),
		registry.WithIssuanceDeposit(c.Registry.IssuanceDeposit),
		registry.WithPolicy(policy),
		registry.WithOracle(oracle),
	}, nil
}

// EngineOptions returns the engine options that install the catalog's
// registry settings.
func (c *Catalog) EngineOptions() ([]engine.Option, error) {
	regOpts, err := c.RegistryOptions()
	if err != nil {
		return nil, err
	}
	return []engine.Option{engine.WithRegistryOptions(regOpts...)}, nil
}

// BootActions returns the actions that fund wallets and activate the
// catalog's instruments, in declaration order. They run once, against an
// empty journal.
func (c *Catalog) BootActions() []engine.Action {
	actions := make([]engine.Action, 0, len(c.Funding)+len(c.Instruments))
	for _, f := range c.Funding {
		actions = append(actions, engine.Action{
			Kind:   engine.KindFundRegistry,
			Sender: f.Owner,
			Amount: f.Amount,
		})
	}
	for _, inst := range c.Instruments {
		actions = append(actions, engine.Action{
			Kind:         engine.KindActivateInstrument,
			Sender:       inst.Owner,
			Name:         inst.Name,
			Variant:      inst.Variant,
			Admin:        inst.Admin,
			NativeAsset:  inst.NativeAsset,
			TerminatesAt: inst.TerminatesAt,
			OverrideAt:   inst.OverrideAt,
		})
	}
	return actions
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	format, args := first.Msg()
	le := &LoadError{Message: fmt.Sprintf(format, args...)}
	if path := first.Path(); len(path) > 0 {
		le.Message = fmt.Sprintf("%s: %s", strings.Join(path, "."), le.Message)
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
