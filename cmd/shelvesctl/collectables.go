package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

func newCollectableCmd() *cobra.Command {
	collCmd := &cobra.Command{
		Use:   "collectable",
		Short: "Manage catalog collectables",
	}

	getCmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Get a collectable by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag+"/api/collectables/"+args[0], actorFlag)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	collCmd.AddCommand(getCmd)

	upsertCmd := &cobra.Command{
		Use:   "upsert",
		Short: "Upsert a collectable from a JSON file (or stdin with -)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if args[0] == "-" {
				raw, err = io.ReadAll(os.Stdin)
			} else {
				raw, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}
			var payload map[string]interface{}
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("invalid JSON: %w", err)
			}
			data, err := doPostJSON(apiFlag+"/api/collectables", actorFlag, payload)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	collCmd.AddCommand(upsertCmd)

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Find likely duplicates by title/creator",
		RunE: func(cmd *cobra.Command, args []string) error {
			title, _ := cmd.Flags().GetString("title")
			creator, _ := cmd.Flags().GetString("creator")
			kind, _ := cmd.Flags().GetString("kind")
			if title == "" {
				return fmt.Errorf("--title required")
			}
			q := url.Values{}
			q.Set("title", title)
			if creator != "" {
				q.Set("creator", creator)
			}
			if kind != "" {
				q.Set("kind", kind)
			}
			data, err := doGet(apiFlag+"/api/collectables/matches?"+q.Encode(), actorFlag)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	matchCmd.Flags().StringP("title", "t", "", "Title to match (required)")
	matchCmd.Flags().StringP("creator", "c", "", "Primary creator")
	matchCmd.Flags().StringP("kind", "k", "", "Restrict to a kind")
	collCmd.AddCommand(matchCmd)

	return collCmd
}
