package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vinayprograms/voyagekit/errors"
)

var (
	rerankQuery     string
	rerankDocuments []string
	rerankTop1      bool
)

var rerankCmd = &cobra.Command{
	Use:   "rerank",
	Short: "Rank documents by relevance to a query",
	Long: `Rank each --document against --query. One line is printed per result:
rank, relevance score and document, separated by tabs.`,
	RunE: runRerank,
}

func init() {
	rootCmd.AddCommand(rerankCmd)
	rerankCmd.Flags().StringVar(&rerankQuery, "query", "", "query to rank against")
	rerankCmd.Flags().StringArrayVar(&rerankDocuments, "document", nil, "candidate document (repeatable)")
	rerankCmd.Flags().BoolVar(&rerankTop1, "top1", false, "print only the best match")
	rerankCmd.Flags().Int("top-k", 0, "return at most this many results (0 returns every document)")
	rerankCmd.MarkFlagRequired("query")
	viper.BindPFlag("api.rerank_top_k", rerankCmd.Flags().Lookup("top-k"))
}

func runRerank(cmd *cobra.Command, args []string) error {
	gw, err := newGateway()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if rerankTop1 {
		item, err := gw.MostSimilar(ctx, rerankQuery, rerankDocuments).Await(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\t%.4f\t%s\n", item.Rank, item.Similarity, item.Document)
		return nil
	}

	s := gw.RerankStream(ctx, rerankQuery, rerankDocuments)
	defer s.Close()
	for {
		item, ok := s.Next(ctx)
		if !ok {
			break
		}
		fmt.Fprintf(out, "%d\t%.4f\t%s\n", item.Rank, item.Similarity, item.Document)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, "rerank interrupted")
	}
	return s.Err()
}
