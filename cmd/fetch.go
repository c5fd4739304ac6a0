package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelsurf/searchbridge/pkg/pipeline"
)

var (
	fetchPrompt string
	fetchJSON   bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Fetch a web page and print its content",
	Args:  cobra.ExactArgs(1),
	RunE:  runFetch,
}

func init() {
	fetchCmd.Flags().StringVar(&fetchPrompt, "prompt", "", "what to extract from the page (defaults to a summary)")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "print the full document envelope as JSON")
}

func runFetch(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.Fetch(commandContext(cmd), pipeline.FetchRequest{
		URL:    args[0],
		Prompt: fetchPrompt,
	})
	if err != nil {
		return err
	}

	if !fetchJSON {
		fmt.Println(resp.Content)
		return nil
	}
	encoded, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
