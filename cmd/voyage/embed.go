package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vinayprograms/voyagekit/errors"
)

var embedTexts []string

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Print the embedding of each --text as a JSON array, one per line",
	RunE:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.Flags().StringArrayVar(&embedTexts, "text", nil, "text to embed (repeatable)")
	embedCmd.Flags().String("model", "", "embedding model (default from config)")
	viper.BindPFlag("api.embedding_model", embedCmd.Flags().Lookup("model"))
}

func runEmbed(cmd *cobra.Command, args []string) error {
	if len(embedTexts) == 0 {
		return errors.InvalidInput("at least one --text is required")
	}
	gw, err := newGateway()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	enc := json.NewEncoder(cmd.OutOrStdout())
	s := gw.EmbedStream(ctx, embedTexts)
	defer s.Close()
	for {
		vec, ok := s.Next(ctx)
		if !ok {
			break
		}
		if err := enc.Encode(vec); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "embed interrupted")
	}
	return s.Err()
}
