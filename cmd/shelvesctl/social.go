package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSocialCmd() *cobra.Command {
	socialCmd := &cobra.Command{
		Use:   "social",
		Short: "Likes, comments and friendships",
	}

	likeCmd := &cobra.Command{
		Use:   "like <aggregateId>",
		Short: "Like an aggregate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorFlag == "" {
				return fmt.Errorf("--actor required")
			}
			data, err := doPostJSON(apiFlag+"/api/aggregates/"+args[0]+"/likes", actorFlag, map[string]string{})
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	socialCmd.AddCommand(likeCmd)

	unlikeCmd := &cobra.Command{
		Use:   "unlike <aggregateId>",
		Short: "Remove a like",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorFlag == "" {
				return fmt.Errorf("--actor required")
			}
			return doDelete(apiFlag+"/api/aggregates/"+args[0]+"/likes", actorFlag)
		},
	}
	socialCmd.AddCommand(unlikeCmd)

	commentCmd := &cobra.Command{
		Use:   "comment <aggregateId>",
		Short: "Comment on an aggregate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, _ := cmd.Flags().GetString("body")
			if actorFlag == "" || body == "" {
				return fmt.Errorf("--actor and --body required")
			}
			data, err := doPostJSON(apiFlag+"/api/aggregates/"+args[0]+"/comments", actorFlag,
				map[string]string{"body": body})
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	commentCmd.Flags().StringP("body", "b", "", "Comment text (required)")
	socialCmd.AddCommand(commentCmd)

	friendCmd := &cobra.Command{
		Use:   "friend <friendId>",
		Short: "Create or update a friendship edge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			if actorFlag == "" {
				return fmt.Errorf("--actor required")
			}
			data, err := doPostJSON(apiFlag+"/api/friends", actorFlag,
				map[string]string{"friendId": args[0], "status": status})
			if err != nil {
				return err
			}
			fmt.Println(prettyPrint(data))
			return nil
		},
	}
	friendCmd.Flags().StringP("status", "s", "accepted", "pending | accepted")
	socialCmd.AddCommand(friendCmd)

	return socialCmd
}
