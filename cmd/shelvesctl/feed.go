package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newFeedCmd() *cobra.Command {
	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Read the composed activity feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, _ := cmd.Flags().GetString("scope")
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			q := url.Values{}
			if scope != "" {
				q.Set("scope", scope)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
			u := apiFlag + "/api/feed"
			if len(q) > 0 {
				u += "?" + q.Encode()
			}
			data, err := doGet(u, actorFlag)
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	feedCmd.Flags().StringP("scope", "s", "", "self | friends | global | all")
	feedCmd.Flags().IntP("limit", "l", 0, "Page size")
	feedCmd.Flags().IntP("offset", "o", 0, "Page offset")
	return feedCmd
}
