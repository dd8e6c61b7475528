package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	actorFlag string
	rootCmd   = &cobra.Command{
		Use:   "shelvesctl",
		Short: "CLI client for the shelves service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Shelves service base URL")
	rootCmd.PersistentFlags().StringVarP(&actorFlag, "actor", "u", "", "Actor ID sent as X-Actor-Id")

	rootCmd.AddCommand(newEventCmd(), newFeedCmd(), newCollectableCmd(), newIngestCmd(), newSocialCmd(), newHealthCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check service health",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(apiFlag+"/api/health", actorFlag)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
}
