package cli

import (
	"encoding/json"
	"fmt"

	"fatwa-rag-go/internal/bootstrap"
	"fatwa-rag-go/internal/model"

	"github.com/spf13/cobra"
)

var (
	retrieveQuery string
	retrieveLang  string
	retrieveJSON  bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve",
	Short: "Run a query through the retrieval gateway and print the context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		lang, err := model.ParseLanguage(retrieveLang)
		if err != nil {
			return err
		}
		backends, err := bootstrap.Open(cmd.Context(), cfg, bootstrap.Options{})
		if err != nil {
			return err
		}
		defer backends.Close()

		result, err := backends.NewRetrievalService().Retrieve(cmd.Context(), retrieveQuery, lang)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if retrieveJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		if result.ContextText == "" {
			fmt.Fprintln(out, "No relevant documents.")
			return nil
		}
		fmt.Fprintln(out, result.ContextText)
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, u := range result.SourceURLs {
			fmt.Fprintf(out, "- %s\n", u)
		}
		return nil
	},
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveQuery, "query", "q", "", "query text")
	retrieveCmd.Flags().StringVar(&retrieveLang, "lang", "en", "query language (en or ar)")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "print the result as JSON")
	_ = retrieveCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(retrieveCmd)
}
