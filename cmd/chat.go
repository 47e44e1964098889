package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask a question about recent care records",
	Long:  "Answers in Japanese, grounded in the most recent stored records. Questions the records cannot answer get an honest \"not found\" rather than a guess.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		svc, err := initChat(st)
		if err != nil {
			return err
		}

		reply, err := svc.Ask(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Println(reply)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
