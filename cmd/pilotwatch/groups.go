package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/kiranshivaraju/pilotwatch/pkg/models"
	"github.com/spf13/cobra"
)

func newGroupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "groups",
		Aliases: []string{"group"},
		Short:   "Manage competitor analysis groups",
	}
	cmd.AddCommand(newGroupsListCmd(a), newGroupsCreateCmd(a))
	return cmd
}

func newGroupsListCmd(a *app) *cobra.Command {
	var req models.ListAnalysisGroupsRequest

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List analysis groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			resp, err := a.client.ListAnalysisGroups(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("list groups: %w", err)
			}
			if len(resp.Groups) == 0 {
				fmt.Fprintln(a.stdout, mutedStyle.Render("No analysis groups"))
				return nil
			}
			fmt.Fprintln(a.stdout, groupsTable(resp.Groups))
			p := resp.Pagination
			fmt.Fprintln(a.stdout, mutedStyle.Render(fmt.Sprintf("page %d of %d, %d total", p.Page, p.TotalPages, p.Total)))
			return nil
		},
	}
	cmd.Flags().IntVar(&req.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&req.Limit, "limit", 20, "Page size (1-100)")
	cmd.Flags().StringVar(&req.Status, "status", "", "Filter by status")
	return cmd
}

func newGroupsCreateCmd(a *app) *cobra.Command {
	var req models.CreateAnalysisRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an analysis group",
		Example: `  pilotwatch groups create --name "Earbuds" --main B08N5WRWNW \
    --competitor B07FZ8S74R --competitor B09JQMJHXY`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireLogin(); err != nil {
				return err
			}
			resp, err := a.client.CreateAnalysisGroup(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("create group: %w", err)
			}
			fmt.Fprintf(a.stdout, "%s Created %s (%s)\n", successStyle.Render("✓"), resp.Name, resp.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Name, "name", "", "Group name")
	cmd.Flags().StringVar(&req.Description, "description", "", "Group description")
	cmd.Flags().StringVar(&req.MainProductID, "main", "", "ASIN of the product to position")
	cmd.Flags().StringSliceVar(&req.CompetitorProductIDs, "competitor", nil, "Competitor ASIN (repeatable)")
	cmd.Flags().StringSliceVar(&req.AnalysisMetrics, "metric", nil, "Metric to compare (repeatable)")
	return cmd
}

func groupsTable(groups []models.AnalysisGroup) string {
	t := table.New().
		Border(tableBorder).
		BorderStyle(mutedStyle).
		Headers("ID", "NAME", "MAIN ASIN", "COMPETITORS", "STATUS", "LAST ANALYSIS")
	for _, g := range groups {
		last := g.LastAnalysis
		if last == "" {
			last = "-"
		}
		t.Row(g.ID, g.Name, g.MainProductASIN, strconv.Itoa(g.CompetitorCount), g.Status, last)
	}
	return t.Render()
}
