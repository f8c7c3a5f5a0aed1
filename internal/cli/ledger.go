package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/csledger/internal/changesource"
	"github.com/roach88/csledger/internal/store"
)

// LedgerOptions holds flags shared by the ledger commands.
type LedgerOptions struct {
	*RootOptions
	Database string
	Master   string
}

// addDatabaseFlag registers the required --db flag.
func addDatabaseFlag(cmd *cobra.Command, opts *LedgerOptions) {
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

// openStore opens the ledger database, reporting failures through f.
func openStore(f *OutputFormatter, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, f.Fail("failed to open database", changesource.NewStoreError("open", 0, err))
	}
	f.VerboseLog("opened database %s", path)
	return st, nil
}

// parseIDArg parses a change-source ID argument.
func parseIDArg(f *OutputFormatter, arg string) (changesource.ID, error) {
	id, err := changesource.ParseID(arg)
	if err != nil {
		msg := fmt.Sprintf("invalid change source id %q", arg)
		if outErr := f.Error(ErrCodeInvalidArgument, msg, nil); outErr != nil {
			return 0, outErr
		}
		return 0, WrapExitError(ExitCommandError, msg, err)
	}
	return id, nil
}

// registration is one row of register output.
type registration struct {
	ID   changesource.ID `json:"id"`
	Name string          `json:"name"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <name>...",
		Short: "Resolve change-source names to ids, creating them if needed",
		Long: `Resolve change-source names to their stable ids.

Names seen for the first time are created. Registering an existing name
returns its existing id.

Example:
  csledger register --db ./ledger.db git-poller-1 svn-poller-2`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			st, err := openStore(f, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			regs := make([]registration, 0, len(args))
			for _, name := range args {
				id, err := st.FindOrCreateChangeSource(cmd.Context(), name)
				if err != nil {
					return f.Fail(fmt.Sprintf("failed to register %q", name), err)
				}
				normalized, _ := changesource.NormalizeName(name)
				regs = append(regs, registration{ID: id, Name: normalized})
			}

			if opts.Format == "json" {
				return f.Success(regs)
			}
			for _, r := range regs {
				fmt.Fprintf(f.Writer, "%d\t%s\n", r.ID, r.Name)
			}
			return nil
		},
	}

	addDatabaseFlag(cmd, opts)
	return cmd
}

// claimOutput is the payload of a successful claim.
type claimOutput struct {
	ID     changesource.ID       `json:"id"`
	Master changesource.MasterID `json:"master"`
	Result string                `json:"result"`
}

// NewClaimCommand creates the claim command.
func NewClaimCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim a change source for a master",
		Long: `Claim a change source for a master.

Fails with exit code 1 if any master, including the given one, already
owns the change source.

Example:
  csledger claim --db ./ledger.db --master m-alpha 1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			id, err := parseIDArg(f, args[0])
			if err != nil {
				return err
			}
			st, err := openStore(f, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			master := changesource.MasterID(opts.Master)
			result, err := st.ClaimChangeSource(cmd.Context(), id, master)
			if err != nil {
				return f.Fail(fmt.Sprintf("failed to claim change source %d", id), err)
			}
			if err := result.Err(); err != nil {
				if !changesource.IsAlreadyClaimed(err) {
					return f.Fail(fmt.Sprintf("failed to claim change source %d", id), err)
				}
				owner := knownOwner(cmd.Context(), st, id)
				msg := fmt.Sprintf("change source %d is already claimed", id)
				if owner != "" {
					msg = fmt.Sprintf("change source %d is owned by %s", id, owner)
				}
				return f.Fail(msg, changesource.NewAlreadyClaimedError(id, owner))
			}

			if opts.Format == "json" {
				return f.Success(claimOutput{ID: id, Master: master, Result: result.String()})
			}
			fmt.Fprintf(f.Writer, "claimed change source %d for %s\n", id, master)
			return nil
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.Master, "master", "", "claiming master id (required)")
	_ = cmd.MarkFlagRequired("master")
	return cmd
}

// knownOwner returns the owner of id, or "" if the ledger cannot report one.
// The claim was already refused, so a failed lookup only drops the name.
func knownOwner(ctx context.Context, st *store.Store, id changesource.ID) changesource.MasterID {
	owner, ok, err := st.ChangeSourceOwner(ctx, id)
	if err != nil || !ok {
		return ""
	}
	return owner
}

// releaseOutput is the payload of a release.
type releaseOutput struct {
	ID       changesource.ID `json:"id"`
	Released bool            `json:"released"`
}

// NewReleaseCommand creates the release command.
func NewReleaseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "release <id>",
		Short: "Release a change-source claim",
		Long: `Release a change-source claim.

With --master, the claim is only released if that master owns it.
Without --master, any claim is removed regardless of owner; reserve this
for reaping claims of masters known to be dead.

Examples:
  csledger release --db ./ledger.db --master m-alpha 1
  csledger release --db ./ledger.db 1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			id, err := parseIDArg(f, args[0])
			if err != nil {
				return err
			}
			st, err := openStore(f, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			if opts.Master == "" {
				f.VerboseLog("releasing change source %d without owner check", id)
				if err := st.ReleaseChangeSource(cmd.Context(), id); err != nil {
					return f.Fail(fmt.Sprintf("failed to release change source %d", id), err)
				}
			} else {
				released, err := st.ReleaseChangeSourceFor(cmd.Context(), id, changesource.MasterID(opts.Master))
				if err != nil {
					return f.Fail(fmt.Sprintf("failed to release change source %d", id), err)
				}
				if !released {
					msg := fmt.Sprintf("change source %d is not owned by %s", id, opts.Master)
					if outErr := f.Error(ErrCodeNotOwner, msg, nil); outErr != nil {
						return outErr
					}
					return NewExitError(ExitFailure, msg)
				}
			}

			if opts.Format == "json" {
				return f.Success(releaseOutput{ID: id, Released: true})
			}
			fmt.Fprintf(f.Writer, "released change source %d\n", id)
			return nil
		},
	}

	addDatabaseFlag(cmd, opts)
	cmd.Flags().StringVar(&opts.Master, "master", "", "only release if this master owns the claim")
	return cmd
}

// ownerOutput is the payload of the owner command.
type ownerOutput struct {
	ID    changesource.ID       `json:"id"`
	Owner changesource.MasterID `json:"owner,omitempty"`
}

// NewOwnerCommand creates the owner command.
func NewOwnerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "owner <id>",
		Short: "Show which master owns a change source",
		Long: `Show which master owns a change source.

Prints "-" when the change source is unowned.

Example:
  csledger owner --db ./ledger.db 1`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			id, err := parseIDArg(f, args[0])
			if err != nil {
				return err
			}
			st, err := openStore(f, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			owner, _, err := st.ChangeSourceOwner(cmd.Context(), id)
			if err != nil {
				return f.Fail(fmt.Sprintf("failed to read owner of change source %d", id), err)
			}

			if opts.Format == "json" {
				return f.Success(ownerOutput{ID: id, Owner: owner})
			}
			fmt.Fprintln(f.Writer, ownerText(owner))
			return nil
		},
	}

	addDatabaseFlag(cmd, opts)
	return cmd
}

// ownerText renders an owner for text output.
func ownerText(owner changesource.MasterID) string {
	if owner == "" {
		return "-"
	}
	return string(owner)
}
