package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"winnow/internal/api"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var scanJSON bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan library roots and register new items",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openCatalogSession()
			if err != nil {
				return err
			}
			defer session.Close()

			report, err := session.Access.Scan(cmd.Context())
			if err != nil {
				return err
			}
			if scanJSON {
				return writeJSON(cmd, report)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scanned %d root(s): %d items seen, %d new, %d swept gone\n",
				report.RootsScanned, report.ItemsSeen, report.NewItems, report.SweptGone)
			if report.RootsFailed > 0 {
				fmt.Fprintf(out, "Warning: %d root(s) failed to scan; check the daemon logs\n", report.RootsFailed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&scanJSON, "json", false, "Emit scan report as JSON")
	return cmd
}

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var reconcileJSON bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Run one maintenance cycle (scan, sweep, purge)",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openCatalogSession()
			if err != nil {
				return err
			}
			defer session.Close()

			summary, err := session.Access.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			if reconcileJSON {
				return writeJSON(cmd, summary)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cycle %s finished in %s\n", summary.CycleID, summary.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  Scan:  %d root(s), %d items seen, %d new, %d swept gone\n",
				summary.RootsScanned, summary.ItemsSeen, summary.NewItems, summary.SweptGone)
			fmt.Fprintf(out, "  Trash: %d swept to gone, %d purged (%d failed)\n",
				summary.TrashSwept, summary.Purged, summary.PurgeFailed)
			fmt.Fprintf(out, "  Marks: %d cleared for gone items\n", summary.MarksDeleted)
			if summary.Errors > 0 {
				fmt.Fprintf(out, "Completed with %d error(s); check the daemon logs\n", summary.Errors)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reconcileJSON, "json", false, "Emit cycle summary as JSON")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		listJSON bool
		listUser string
	)
	cmd := &cobra.Command{
		Use:       "list [movies|tv|trash]",
		Short:     "List catalog items",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"movies", "tv", "trash"},
		RunE: func(cmd *cobra.Command, args []string) error {
			scopeArg := ""
			if len(args) == 1 {
				scopeArg = args[0]
			}
			scope, err := api.ParseListScope(scopeArg)
			if err != nil {
				return err
			}

			session, err := ctx.openCatalogSession()
			if err != nil {
				return err
			}
			defer session.Close()

			items, err := session.Access.List(cmd.Context(), scope, listUser)
			if err != nil {
				return err
			}
			if listJSON {
				return writeJSON(cmd, map[string]any{"items": items})
			}

			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, emptyListMessage(scope))
				return nil
			}

			if scope == api.ScopeTrash {
				table := renderTable(
					[]string{"ID", "Title", "Size", "Trashed", "Votes"},
					buildTrashRows(items),
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight},
				)
				fmt.Fprintln(out, table)
				return nil
			}

			table := renderTable(
				[]string{"ID", "Title", "Type", "Status", "Size", "Votes"},
				buildItemRows(items),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}
	cmd.Flags().BoolVar(&listJSON, "json", false, "Emit items as JSON")
	cmd.Flags().StringVar(&listUser, "user", "", "Show the library as this user sees it (their permanent items included)")
	return cmd
}

func emptyListMessage(scope api.ListScope) string {
	switch scope {
	case api.ScopeMovies:
		return "No movies in the catalog"
	case api.ScopeTV:
		return "No TV seasons in the catalog"
	case api.ScopeTrash:
		return "Trash is empty"
	default:
		return "Catalog is empty"
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var showJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one catalog item with votes and ownership",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}

			session, err := ctx.openCatalogSession()
			if err != nil {
				return err
			}
			defer session.Close()

			detail, err := session.Access.Describe(cmd.Context(), id)
			if err != nil {
				return err
			}
			if showJSON {
				return writeJSON(cmd, detail)
			}

			out := cmd.OutOrStdout()
			item := detail.Item
			fmt.Fprintf(out, "%-12s %s\n", "Title:", item.Label)
			fmt.Fprintf(out, "%-12s %s\n", "Type:", formatTypeLabel(item.MediaType))
			fmt.Fprintf(out, "%-12s %s\n", "Status:", formatStatusLabel(item.Status))
			fmt.Fprintf(out, "%-12s %s\n", "Path:", item.Path)
			fmt.Fprintf(out, "%-12s %s\n", "Size:", item.Size)
			votes := formatVotes(item.MarkCount, item.TotalUsers)
			if len(detail.MarkedBy) > 0 {
				votes = fmt.Sprintf("%s (%s)", votes, strings.Join(detail.MarkedBy, ", "))
			}
			fmt.Fprintf(out, "%-12s %s\n", "Votes:", votes)
			if detail.Owner != "" {
				fmt.Fprintf(out, "%-12s %s\n", "Owner:", detail.Owner)
			}
			fmt.Fprintf(out, "%-12s %s\n", "First seen:", formatDisplayTime(item.FirstSeen))
			fmt.Fprintf(out, "%-12s %s\n", "Last seen:", formatDisplayTime(item.LastSeen))
			if item.TrashedAt != "" {
				fmt.Fprintf(out, "%-12s %s\n", "Trashed:", formatDisplayTime(item.TrashedAt))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showJSON, "json", false, "Emit item detail as JSON")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var healthJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check catalog database health (schema, integrity, columns)",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := ctx.openCatalogSession()
			if err != nil {
				return err
			}
			defer session.Close()

			health, err := session.Access.Health(cmd.Context())
			if err != nil {
				return err
			}
			if healthJSON {
				return writeJSON(cmd, health)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database path: %s\n", health.DBPath)
			fmt.Fprintf(out, "Database exists: %s\n", yesNo(health.DatabaseExists))
			fmt.Fprintf(out, "Readable: %s\n", yesNo(health.DatabaseReadable))
			fmt.Fprintf(out, "Schema version: %s\n", health.SchemaVersion)
			fmt.Fprintf(out, "media_items table present: %s\n", yesNo(health.TableExists))
			if len(health.ColumnsPresent) > 0 {
				cols := append([]string(nil), health.ColumnsPresent...)
				sort.Strings(cols)
				fmt.Fprintf(out, "Columns: %s\n", strings.Join(cols, ", "))
			}
			if len(health.MissingColumns) > 0 {
				missing := append([]string(nil), health.MissingColumns...)
				sort.Strings(missing)
				fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(missing, ", "))
			} else {
				fmt.Fprintln(out, "Missing columns: none")
			}
			fmt.Fprintf(out, "Integrity check: %s\n", yesNo(health.IntegrityCheck))
			fmt.Fprintf(out, "Total items: %d\n", health.TotalItems)
			if health.Error != "" {
				fmt.Fprintf(out, "Error: %s\n", health.Error)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&healthJSON, "json", false, "Emit health report as JSON")
	return cmd
}

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}
