package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelsurf/searchbridge/pkg/pipeline"
)

var (
	searchCount      int
	searchTimeRange  string
	searchStructured bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the web through the completions endpoint",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchCount, "count", "n", 0, fmt.Sprintf("how many results to ask for, 1-%d (default %d)", pipeline.MaxSearchCount, pipeline.DefaultSearchCount))
	searchCmd.Flags().StringVar(&searchTimeRange, "time-range", "", "recency filter, e.g. 'past week'")
	searchCmd.Flags().BoolVarP(&searchStructured, "structured", "j", false, "request structured JSON results")
}

func runSearch(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.Search(commandContext(cmd), pipeline.SearchRequest{
		Query:      strings.Join(args, " "),
		Count:      searchCount,
		TimeRange:  searchTimeRange,
		Structured: searchStructured,
	})
	if err != nil {
		return err
	}

	if !searchStructured {
		fmt.Println(resp.Text)
		return nil
	}
	encoded, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
