package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/instrumentd/internal/codec"
	"github.com/roach88/instrumentd/internal/escrow"
	"github.com/roach88/instrumentd/internal/ir"
	"github.com/roach88/instrumentd/internal/manager"
	"github.com/roach88/instrumentd/internal/registry"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database   string
	Config     string
	Instrument int64
	Name       string
	Issuance   int64
	Key        string
}

// RegistryView summarizes the registry.
type RegistryView struct {
	Owner        ir.Address       `json:"owner"`
	DepositAsset ir.AssetID       `json:"deposit_asset"`
	Policy       string           `json:"policy"`
	Wallet       []escrow.Holding `json:"wallet"`
	Instruments  []InstrumentView `json:"instruments"`
}

// InstrumentView summarizes one instrument.
type InstrumentView struct {
	Instrument  ir.InstrumentID  `json:"instrument"`
	Name        string           `json:"name"`
	Variant     string           `json:"variant"`
	Owner       ir.Address       `json:"owner"`
	NativeAsset ir.AssetID       `json:"native_asset,omitempty"`
	ActivatedAt ir.Timestamp     `json:"activated_at"`
	Deactivated bool             `json:"deactivated"`
	Held        int64            `json:"held"`
	Issuances   int              `json:"issuances"`
	Pending     int              `json:"pending"`
	Escrow      []escrow.Holding `json:"escrow,omitempty"`
	States      []IssuanceView   `json:"states,omitempty"`
}

// IssuanceView shows one issuance with its decoded custom data.
type IssuanceView struct {
	Issuance   ir.IssuanceID     `json:"issuance"`
	State      string            `json:"state"`
	Escrow     []escrow.Holding  `json:"escrow,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show registry, instrument or issuance state",
		Long: `Show state rebuilt from the journal.

Without flags the registry is summarized: wallet holdings and every
instrument. --instrument (or --name) shows one instrument with its escrow
and issuance states; adding --issuance shows one issuance with its escrow
and decoded custom data; --key limits the output to one custom data key.

The journal is replayed on a fresh engine; nothing is written.

Examples:
  instrumentd show --db ./instrumentd.db --config ./catalog.cue
  instrumentd show --name lending
  instrumentd show --instrument 1 --issuance 1 --format json
  instrumentd show --instrument 1 --issuance 1 --key lending_data`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $INSTRUMENTD_DB)")
	cmd.Flags().StringVar(&opts.Config, "config", "", "path to catalog (default $INSTRUMENTD_CONFIG)")
	cmd.Flags().Int64Var(&opts.Instrument, "instrument", 0, "instrument id")
	cmd.Flags().StringVar(&opts.Name, "name", "", "instrument name")
	cmd.Flags().Int64Var(&opts.Issuance, "issuance", 0, "issuance id (needs --instrument or --name)")
	cmd.Flags().StringVar(&opts.Key, "key", "", "custom data key (issuance_data or the variant key)")

	return cmd
}

func runShow(opts *ShowOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Issuance != 0 && opts.Instrument == 0 && opts.Name == "" {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--issuance requires --instrument or --name", nil)
	}
	if opts.Key != "" && opts.Issuance == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "--key requires --issuance", nil)
	}
	catalogPath, err := opts.catalogPath(opts.Config)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCatalog, err.Error(), nil)
	}

	eng, _, err := rebuild(context.Background(), opts.RootOptions, opts.database(opts.Database), catalogPath)
	if err != nil {
		code := ErrCodeJournal
		if isCatalogError(err) {
			code = ErrCodeCatalog
		}
		return formatter.Fail(ExitCommandError, code, "failed to rebuild state", err)
	}

	var view any
	err = eng.View(func(r *registry.Registry) error {
		if opts.Instrument == 0 && opts.Name == "" {
			view = registryView(r)
			return nil
		}

		var m *manager.Manager
		var err error
		if opts.Name != "" {
			m, err = r.LookupByName(opts.Name)
		} else {
			m, err = r.LookupInstrumentManager(ir.InstrumentID(opts.Instrument))
		}
		if err != nil {
			return err
		}

		if opts.Issuance != 0 {
			view, err = issuanceView(m, ir.IssuanceID(opts.Issuance), opts.Key)
			return err
		}
		v, err := instrumentView(r, m, true)
		view = v
		return err
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "lookup failed", err)
	}

	if formatter.JSON() {
		return writeResponse(formatter.Writer, CLIResponse{Status: "ok", Data: view})
	}
	outputShowText(formatter.Writer, view)
	return nil
}

func registryView(r *registry.Registry) RegistryView {
	v := RegistryView{
		Owner:        r.Owner(),
		DepositAsset: r.DepositAsset(),
		Policy:       string(r.Policy()),
		Wallet:       r.Wallet().Holdings(),
		Instruments:  make([]InstrumentView, 0),
	}
	for _, m := range r.Instruments() {
		iv, _ := instrumentView(r, m, false)
		v.Instruments = append(v.Instruments, iv)
	}
	return v
}

// instrumentView summarizes m; detail adds its escrow and issuance states.
func instrumentView(r *registry.Registry, m *manager.Manager, detail bool) (InstrumentView, error) {
	cfg := m.Config()
	v := InstrumentView{
		Instrument:  cfg.Instrument,
		Name:        cfg.Name,
		Variant:     m.Variant(),
		Owner:       cfg.Owner,
		NativeAsset: cfg.NativeAsset,
		ActivatedAt: cfg.ActivatedAt,
		Deactivated: m.Deactivated(),
		Held:        r.Held(cfg.Instrument),
		Issuances:   m.Count(),
		Pending:     m.Pending(),
	}
	if !detail {
		return v, nil
	}

	v.Escrow = m.InstrumentEscrow().Holdings()
	for i := 1; i <= m.Count(); i++ {
		id := ir.IssuanceID(i)
		state, err := m.IssuanceState(id)
		if err != nil {
			return v, err
		}
		v.States = append(v.States, IssuanceView{Issuance: id, State: state.String()})
	}
	return v, nil
}

// issuanceView decodes the issuance's custom data under both its keys, or
// only under key when it is set.
func issuanceView(m *manager.Manager, id ir.IssuanceID, key string) (IssuanceView, error) {
	state, err := m.IssuanceState(id)
	if err != nil {
		return IssuanceView{}, err
	}
	ledger, err := m.IssuanceEscrow(id)
	if err != nil {
		return IssuanceView{}, err
	}
	v := IssuanceView{Issuance: id, State: state.String(), Escrow: ledger.Holdings()}

	if key != "" {
		v.Data, err = customFields(m, id, key)
		return v, err
	}
	if v.Data, err = customFields(m, id, codec.KeyIssuanceData); err != nil {
		return v, err
	}
	if dk := m.DataKey(); dk != codec.KeyIssuanceData {
		if v.Properties, err = customFields(m, id, dk); err != nil {
			return v, err
		}
	}
	return v, nil
}

func customFields(m *manager.Manager, id ir.IssuanceID, key string) (map[string]string, error) {
	data, err := m.CustomData(id, key)
	if err != nil {
		return nil, err
	}
	fields, err := codec.Fields(key, data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return fields, nil
}

func outputShowText(w io.Writer, view any) {
	switch v := view.(type) {
	case RegistryView:
		fmt.Fprintf(w, "Registry owner %s (deposit asset %s, policy %s)\n", v.Owner, v.DepositAsset, v.Policy)
		fmt.Fprintln(w, "=== Wallet ===")
		writeHoldings(w, v.Wallet)
		fmt.Fprintln(w, "=== Instruments ===")
		if len(v.Instruments) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, iv := range v.Instruments {
			writeInstrument(w, iv)
		}

	case InstrumentView:
		writeInstrument(w, v)
		fmt.Fprintln(w, "=== Escrow ===")
		writeHoldings(w, v.Escrow)
		fmt.Fprintln(w, "=== Issuances ===")
		if len(v.States) == 0 {
			fmt.Fprintln(w, "  (none)")
		}
		for _, s := range v.States {
			fmt.Fprintf(w, "  %d: %s\n", s.Issuance, s.State)
		}

	case IssuanceView:
		fmt.Fprintf(w, "Issuance %d: %s\n", v.Issuance, v.State)
		fmt.Fprintln(w, "=== Escrow ===")
		writeHoldings(w, v.Escrow)
		fmt.Fprintln(w, "=== Data ===")
		writeFields(w, v.Data)
		if len(v.Properties) > 0 {
			fmt.Fprintln(w, "=== Properties ===")
			writeFields(w, v.Properties)
		}
	}
}

func writeInstrument(w io.Writer, v InstrumentView) {
	status := "active"
	if v.Deactivated {
		status = "deactivated"
	}
	fmt.Fprintf(w, "  [%d] %s (%s, %s) owner %s: %d issuances, %d pending, %d held\n",
		v.Instrument, v.Name, v.Variant, status, v.Owner, v.Issuances, v.Pending, v.Held)
}

func writeHoldings(w io.Writer, holdings []escrow.Holding) {
	if len(holdings) == 0 {
		fmt.Fprintln(w, "  (empty)")
		return
	}
	for _, h := range holdings {
		fmt.Fprintf(w, "  %s: %d %s\n", h.Owner, h.Amount, h.Asset)
	}
}

// writeFields prints fields with sorted keys.
func writeFields(w io.Writer, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s = %s\n", k, fields[k])
	}
}
