// Package search implements the one-shot discovery command: run a job from
// the terminal and print the enriched channels as a table.
package search

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/channelscout/cmd/common"
	"github.com/jonesrussell/channelscout/internal/domain"
	"github.com/jonesrussell/channelscout/internal/job"
)

const (
	// DefaultResultCount is the number of channels requested when -n is not
	// given.
	DefaultResultCount = 10

	pollInterval = 500 * time.Millisecond
)

// Command returns the search command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Discover and enrich channels for a keyword",
		Long: `Runs a discovery job to completion and prints the enriched channels.

Examples:
  # Find 10 channels about woodworking
  channelscout search -q woodworking

  # Find 25 channels with at least 10k subscribers
  channelscout search -q woodworking -n 25 --min-subscribers 10000
`,
		RunE: runSearch,
	}

	cmd.Flags().StringP("query", "q", "", "Keyword to search for (required)")
	cmd.Flags().IntP("count", "n", DefaultResultCount, "Number of channels to discover")
	cmd.Flags().Int64("min-subscribers", 0, "Only count channels with at least this many subscribers")

	if err := cmd.MarkFlagRequired("query"); err != nil {
		fmt.Fprintf(os.Stderr, "Error marking query flag as required: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// runSearch creates a job, polls it to a terminal state and renders the
// result.
func runSearch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	query, _ := cmd.Flags().GetString("query")
	count, _ := cmd.Flags().GetInt("count")
	minSubscribers, _ := cmd.Flags().GetInt64("min-subscribers")

	deps, err := common.NewDeps(cfgFile, debug)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, cleanup, err := common.BuildOrchestrator(ctx, deps)
	if err != nil {
		return err
	}
	defer cleanup()

	var filters domain.Filters
	if minSubscribers > 0 {
		filters = domain.Filters{"min_subscribers": minSubscribers}
	}

	jobID, err := orchestrator.CreateJob(ctx, query, count, filters)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	snapshot, err := pollUntilTerminal(ctx, orchestrator, jobID)
	if err != nil {
		return err
	}

	if snapshot.State == domain.JobFailed {
		return fmt.Errorf("job failed: %s", snapshot.Error)
	}

	renderChannels(snapshot)
	return nil
}

// pollUntilTerminal polls job status until a terminal state or ctx
// cancellation. On interrupt the job is cancelled and the partial snapshot
// returned.
func pollUntilTerminal(ctx context.Context, orchestrator *job.Orchestrator, jobID string) (*domain.Snapshot, error) {
	for {
		snapshot, err := orchestrator.GetStatus(jobID)
		if err != nil {
			return nil, fmt.Errorf("job status: %w", err)
		}
		if snapshot.State.IsTerminal() {
			return snapshot, nil
		}

		fmt.Fprintf(os.Stderr, "\r%s: %d discovered, %d enriched (%.0f%%)",
			snapshot.State, snapshot.Stats.Discovered, snapshot.Stats.Enriched, snapshot.ProgressPercent)

		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\ninterrupted, cancelling job")
			_ = orchestrator.Cancel(jobID)
			return orchestrator.GetStatus(jobID)
		case <-time.After(pollInterval):
		}
	}
}

// renderChannels prints the snapshot as a table.
func renderChannels(snapshot *domain.Snapshot) {
	fmt.Fprintln(os.Stderr)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Channel", "Subscribers", "Videos", "Views", "Emails", "Website"})

	for _, ch := range snapshot.Channels {
		t.AppendRow(table.Row{
			ch.Rank,
			ch.Name,
			formatCount(metricsField(ch, func(m *domain.Metrics) *int64 { return m.Subscribers })),
			formatCount(metricsField(ch, func(m *domain.Metrics) *int64 { return m.Videos })),
			formatCount(metricsField(ch, func(m *domain.Metrics) *int64 { return m.Views })),
			contactEmails(ch),
			contactWebsite(ch),
		})
	}

	t.Render()

	fmt.Printf("\n%d discovered, %d enriched, %d passing filters (job %s, %s)\n",
		snapshot.Stats.Discovered, snapshot.Stats.Enriched, snapshot.Stats.PassingFilter,
		snapshot.ID, snapshot.State)
}

// metricsField safely reads one metric pointer.
func metricsField(ch *domain.Channel, pick func(*domain.Metrics) *int64) *int64 {
	if ch.Metrics == nil {
		return nil
	}
	return pick(ch.Metrics)
}

// formatCount renders a count, distinguishing "unknown" from zero.
func formatCount(v *int64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}

// contactEmails joins the channel's emails for display.
func contactEmails(ch *domain.Channel) string {
	if ch.Contacts == nil || len(ch.Contacts.Emails) == 0 {
		return "-"
	}
	return strings.Join(ch.Contacts.Emails, ", ")
}

// contactWebsite returns the channel's website, if resolved.
func contactWebsite(ch *domain.Channel) string {
	if ch.Contacts == nil || ch.Contacts.Website == "" {
		return "-"
	}
	return ch.Contacts.Website
}
