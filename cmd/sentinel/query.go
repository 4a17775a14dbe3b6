package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/Sentinel/internal/sentinel/query"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filter and search classified event NDJSON",
	Long: `Query applies the dashboard filters to classified events: time range, risk level,
event type and endpoint status, followed by a case-insensitive search over the
endpoint hostname, user and IP and the event's own searchable fields.

Set filters are OR within a dimension and AND across dimensions; an empty
dimension matches everything.`,
	RunE: runQuery,
}

var (
	queryFlagInputs    []string
	queryFlagOutput    string
	queryFlagInventory string
	queryFlagRisk      []string
	queryFlagType      []string
	queryFlagStatus    []string
	queryFlagRange     string
	queryFlagSearch    string
	queryFlagSince     string
	queryFlagSummary   bool
	queryFlagLimit     int
)

func init() {
	queryCmd.Flags().StringSliceVar(&queryFlagInputs, "input", nil, "input NDJSON file(s) (default stdin)")
	queryCmd.Flags().StringVar(&queryFlagOutput, "output", "", "output NDJSON file (default stdout)")
	queryCmd.Flags().StringVar(&queryFlagInventory, "inventory", "", "YAML endpoint inventory")
	queryCmd.Flags().StringSliceVar(&queryFlagRisk, "risk", nil, "risk levels: Low,Medium,High,Critical")
	queryCmd.Flags().StringSliceVar(&queryFlagType, "type", nil, "event types, e.g. Process,Usb")
	queryCmd.Flags().StringSliceVar(&queryFlagStatus, "status", nil, "endpoint statuses: Online,Offline,Quarantined")
	queryCmd.Flags().StringVar(&queryFlagRange, "range", "all", "time range: 15m|1h|24h|all")
	queryCmd.Flags().StringVar(&queryFlagSearch, "search", "", "case-insensitive search term")
	queryCmd.Flags().StringVar(&queryFlagSince, "since", "", "only events at or after this time or duration ago (e.g. 2h, 7d)")
	queryCmd.Flags().BoolVar(&queryFlagSummary, "summary", false, "print summary counts instead of events")
	queryCmd.Flags().IntVar(&queryFlagLimit, "limit", 0, "stop after N matching events")
}

func runQuery(cmd *cobra.Command, args []string) error {
	filters := query.DefaultFilters()
	toggles := []struct {
		flag   string
		dim    query.Dimension
		values []string
	}{
		{"risk", query.DimRisk, queryFlagRisk},
		{"type", query.DimType, queryFlagType},
		{"status", query.DimStatus, queryFlagStatus},
		{"range", query.DimTime, []string{queryFlagRange}},
	}
	for _, t := range toggles {
		for _, v := range t.values {
			next, err := filters.Toggle(t.dim, v)
			if err != nil {
				return fmt.Errorf("invalid --%s value: %w", t.flag, err)
			}
			filters = next
		}
	}

	opts := query.Options{
		InputFiles:    queryFlagInputs,
		OutputFile:    queryFlagOutput,
		InventoryFile: queryFlagInventory,
		Filters:       filters,
		Search:        queryFlagSearch,
		Summary:       queryFlagSummary,
		Limit:         queryFlagLimit,
	}
	if queryFlagSince != "" {
		since, err := query.ParseSince(queryFlagSince)
		if err != nil {
			return err
		}
		opts.Since = since
	}
	return query.RunQuery(opts)
}
