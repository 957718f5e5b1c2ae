package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

// ErrUnbalanced is returned when a trial balance or integrity scan fails.
var ErrUnbalanced = errors.New("ledger does not balance")

// LedgerTools are the read-side services used by ledger commands.
type LedgerTools struct {
	Reports   jobs.TrialBalancer
	Integrity *jobs.GLIntegrityJob
}

// Env supplies the runtime dependencies of the commands. Each opener is
// called lazily so commands only connect to what they use.
type Env struct {
	Stdout     io.Writer
	OpenJobs   func() (*JobsCLI, error)
	OpenLedger func(ctx context.Context) (LedgerTools, func(), error)
}

// NewRootCommand creates the ledgerctl command tree.
func NewRootCommand(env Env) *cobra.Command {
	if env.Stdout == nil {
		env.Stdout = os.Stdout
	}
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operator tooling for the Odyssey ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	root.SetOut(env.Stdout)
	root.AddCommand(newJobsCommand(env), newLedgerCommand(env))
	return root
}

func newJobsCommand(env Env) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Trigger and inspect background jobs"}

	var scan scanFlags
	trigger := &cobra.Command{
		Use:       "trigger TASK",
		Short:     "Enqueue a scan task",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskGLIntegrity, jobs.TaskInventoryRevaluation, jobs.TaskLayerWarmup},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobs(env, func(c *JobsCLI) error {
				info, err := c.Trigger(cmd.Context(), args[0], scan.payload())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
				return nil
			})
		},
	}
	scan.register(trigger)

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(env, func(c *JobsCLI) error {
				stats, err := c.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
				fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
				return tw.Flush()
			})
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withJobs(env, func(c *JobsCLI) error {
				infos, err := c.ListScheduled(cmd.Context(), size)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTYPE\tNEXT")
				for _, info := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", info.ID, info.Type, info.NextProcessAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, inspect, scheduled)
	return cmd
}

func newLedgerCommand(env Env) *cobra.Command {
	cmd := &cobra.Command{Use: "ledger", Short: "Check ledger balances"}

	var (
		business, branch int64
		asOf             dateFlag
	)
	tb := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print a trial balance and fail when it does not net to zero",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope := shared.NewScope(business, branch)
			if err := scope.Validate(); err != nil {
				return err
			}
			return withLedger(cmd.Context(), env, func(tools LedgerTools) error {
				report, err := tools.Reports.TrialBalance(cmd.Context(), scope, asOf.value())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', tabwriter.AlignRight)
				fmt.Fprintln(tw, "CODE\tNAME\tDEBIT\tCREDIT\t")
				for _, row := range report.Rows {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", row.Code, row.Name, row.Debit.StringFixed(2), row.Credit.StringFixed(2))
				}
				fmt.Fprintf(tw, "\tTOTAL\t%s\t%s\t\n", report.TotalDebit.StringFixed(2), report.TotalCredit.StringFixed(2))
				if err := tw.Flush(); err != nil {
					return err
				}
				if !report.IsBalanced {
					return ErrUnbalanced
				}
				return nil
			})
		},
	}
	tb.Flags().Int64Var(&business, "business", 0, "business id (required)")
	tb.Flags().Int64Var(&branch, "branch", 0, "branch id")
	tb.Flags().Var(&asOf, "as-of", "report date YYYY-MM-DD (default today)")
	_ = tb.MarkFlagRequired("business")

	var scan scanFlags
	integrity := &cobra.Command{
		Use:   "integrity",
		Short: "Scan for unbalanced batches and trial balances inline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), env, func(tools LedgerTools) error {
				report, err := tools.Integrity.Run(cmd.Context(), scan.payload())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "scanned %d businesses as of %s\n", report.Businesses, report.AsOf.Format(httpx.DateLayout))
				for _, b := range report.Batches {
					fmt.Fprintf(out, "unbalanced batch %s business=%d debit=%s credit=%s\n", b.BatchID, b.BusinessID, b.Debit, b.Credit)
				}
				for _, g := range report.Gaps {
					fmt.Fprintf(out, "trial balance gap business=%d debit=%s credit=%s\n", g.BusinessID, g.Debit, g.Credit)
				}
				if !report.Clean() {
					return ErrUnbalanced
				}
				return nil
			})
		},
	}
	scan.register(integrity)

	cmd.AddCommand(tb, integrity)
	return cmd
}

func withJobs(env Env, fn func(*JobsCLI) error) error {
	if env.OpenJobs == nil {
		return errors.New("jobs cli: not configured")
	}
	c, err := env.OpenJobs()
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

func withLedger(ctx context.Context, env Env, fn func(LedgerTools) error) error {
	if env.OpenLedger == nil {
		return errors.New("ledger cli: not configured")
	}
	tools, closeFn, err := env.OpenLedger(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(tools)
}

type scanFlags struct {
	business int64
	asOf     dateFlag
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.business, "business", 0, "limit to one business (default all)")
	cmd.Flags().Var(&f.asOf, "as-of", "scan date YYYY-MM-DD (default now)")
}

func (f *scanFlags) payload() jobs.ScanPayload {
	return jobs.ScanPayload{BusinessID: f.business, AsOf: f.asOf.t}
}

// dateFlag is a pflag.Value for calendar dates.
type dateFlag struct {
	t time.Time
}

func (d *dateFlag) String() string {
	if d.t.IsZero() {
		return ""
	}
	return d.t.Format(httpx.DateLayout)
}

func (d *dateFlag) Set(raw string) error {
	t, err := time.Parse(httpx.DateLayout, raw)
	if err != nil {
		return fmt.Errorf("want YYYY-MM-DD: %w", err)
	}
	d.t = t
	return nil
}

func (d *dateFlag) Type() string { return "date" }

func (d *dateFlag) value() time.Time {
	if d.t.IsZero() {
		return time.Now().UTC()
	}
	return d.t
}
