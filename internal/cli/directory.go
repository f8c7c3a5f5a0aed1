package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/csledger/internal/changesource"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*LedgerOptions
	ID     int64
	Active bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{LedgerOptions: &LedgerOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List change sources and their owners",
		Long: `List change sources and their owners.

Filters:
  --id N          only change source N (other filters are ignored)
  --master M      only change sources owned by M
  --active=true   only owned change sources
  --active=false  only unowned change sources

--master combined with --active=false matches nothing.

Examples:
  csledger list --db ./ledger.db
  csledger list --db ./ledger.db --master m-alpha
  csledger list --db ./ledger.db --active=false --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(opts.RootOptions, cmd)
			filter := listFilter(cmd, opts)
			f.VerboseLog("filter: %#v", filter)

			st, err := openStore(f, opts.Database)
			if err != nil {
				return err
			}
			defer st.Close()

			views, err := st.ListChangeSources(cmd.Context(), filter)
			if err != nil {
				return f.Fail("failed to list change sources", err)
			}

			if opts.Format == "json" {
				return f.Success(views)
			}
			return writeViews(f.Writer, views)
		},
	}

	addDatabaseFlag(cmd, opts.LedgerOptions)
	cmd.Flags().Int64Var(&opts.ID, "id", 0, "only this change source id")
	cmd.Flags().StringVar(&opts.Master, "master", "", "only change sources owned by this master")
	cmd.Flags().BoolVar(&opts.Active, "active", false, "only owned (true) or unowned (false) change sources")
	return cmd
}

// listFilter folds the flags that were actually set into a Filter.
func listFilter(cmd *cobra.Command, opts *ListOptions) changesource.Filter {
	var (
		id     *changesource.ID
		owner  *changesource.MasterID
		active *bool
	)
	if cmd.Flags().Changed("id") {
		v := changesource.ID(opts.ID)
		id = &v
	}
	if cmd.Flags().Changed("master") {
		v := changesource.MasterID(opts.Master)
		owner = &v
	}
	if cmd.Flags().Changed("active") {
		active = &opts.Active
	}
	return changesource.NewFilter(id, owner, active)
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one change source and its owner",
		Long: `Show one change source and its owner.

Exits with code 1 if the change source does not exist.

Example:
  csledger get --db ./ledger.db 1`,
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

			view, ok, err := st.GetChangeSource(cmd.Context(), id)
			if err != nil {
				return f.Fail(fmt.Sprintf("failed to read change source %d", id), err)
			}
			if !ok {
				return f.Fail(fmt.Sprintf("failed to read change source %d", id),
					changesource.NewNotFoundError("get", id, ""))
			}

			if opts.Format == "json" {
				return f.Success(view)
			}
			return writeViews(f.Writer, []changesource.View{view})
		},
	}

	addDatabaseFlag(cmd, opts)
	return cmd
}

// writeViews renders views as an aligned table.
func writeViews(w io.Writer, views []changesource.View) error {
	if len(views) == 0 {
		_, err := fmt.Fprintln(w, "No change sources found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tOWNER")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", v.ID, v.Name, ownerText(v.Owner))
	}
	return tw.Flush()
}
