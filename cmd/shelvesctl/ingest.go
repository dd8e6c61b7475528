package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newIngestCmd() *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Push discovery items into the catalog",
	}

	batchCmd := &cobra.Command{
		Use:   "batch <provider> <file>",
		Short: "Ingest a JSON file of discovery items under a provider name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var items []map[string]interface{}
			if err := json.Unmarshal(raw, &items); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}
			data, err := doPostJSON(apiFlag+"/api/ingest/"+args[0], actorFlag,
				map[string]interface{}{"items": items})
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	ingestCmd.AddCommand(batchCmd)

	runCmd := &cobra.Command{
		Use:   "run <provider>",
		Short: "Trigger a pull from a registered adapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doPostJSON(apiFlag+"/api/ingest/"+args[0]+"/run", actorFlag, map[string]string{})
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	ingestCmd.AddCommand(runCmd)

	return ingestCmd
}
