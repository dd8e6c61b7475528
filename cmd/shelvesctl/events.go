package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newEventCmd() *cobra.Command {
	eventCmd := &cobra.Command{
		Use:   "event",
		Short: "Record and inspect activity events",
	}

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record an activity event",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			contextID, _ := cmd.Flags().GetString("context")
			visibility, _ := cmd.Flags().GetString("visibility")
			payload, _ := cmd.Flags().GetString("payload")
			if kind == "" {
				return fmt.Errorf("--kind required")
			}
			body := map[string]interface{}{"kind": kind}
			if contextID != "" {
				body["contextId"] = contextID
			}
			if visibility != "" {
				body["visibility"] = visibility
			}
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return fmt.Errorf("--payload must be valid JSON")
				}
				body["payload"] = json.RawMessage(payload)
			}
			data, err := doPostJSON(apiFlag+"/api/events", actorFlag, body)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	recordCmd.Flags().StringP("kind", "k", "", "Event kind, e.g. added_book (required)")
	recordCmd.Flags().StringP("context", "c", "", "Context ID (shelf, collection)")
	recordCmd.Flags().String("visibility", "", "public | friends | private")
	recordCmd.Flags().StringP("payload", "p", "", "JSON payload")
	eventCmd.AddCommand(recordCmd)

	getCmd := &cobra.Command{
		Use:   "aggregate <aggregateId>",
		Short: "Get an aggregate with its log entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag+"/api/aggregates/"+args[0], actorFlag)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			entries, err := doGet(apiFlag+"/api/aggregates/"+args[0]+"/entries", actorFlag)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(entries))
			return nil
		},
	}
	eventCmd.AddCommand(getCmd)

	return eventCmd
}
