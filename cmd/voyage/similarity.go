package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity <a> <b>",
	Short: "Print the cosine similarity of two texts' embeddings",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		gw, err := newGateway()
		if err != nil {
			return err
		}
		score, err := gw.Similarity(cmd.Context(), args[0], args[1]).Await(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", score)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(similarityCmd)
}
