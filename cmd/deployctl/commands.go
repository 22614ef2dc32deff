package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	deployment "github.com/haowjy/meridian-deploy-go"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available deployments and their models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEPLOYMENT\tMODELS\tRERANK\tSEARCH QUERIES")
			for _, d := range a.registry.Descriptors() {
				fmt.Fprintf(w, "%s\t%s\t%t\t%t\n", d.Name, strings.Join(d.Models, ","), d.RerankEnabled, d.SearchQueriesEnabled)
			}
			return w.Flush()
		},
	}
}

type chatFlags struct {
	deployment  string
	model       string
	preamble    string
	temperature float64
	maxTokens   int
}

func newChatCmd(a *app) *cobra.Command {
	var f chatFlags

	cmd := &cobra.Command{
		Use:   "chat MESSAGE...",
		Short: "Stream a chat response, one JSON event per line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params deployment.ChatParams
			if f.model != "" {
				params.Model = &f.model
			}
			if f.preamble != "" {
				params.Preamble = &f.preamble
			}
			if cmd.Flags().Changed("temperature") {
				params.Temperature = &f.temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				params.MaxTokens = &f.maxTokens
			}

			req := deployment.NewChatRequest(strings.Join(args, " "), nil, params)
			stream, err := a.orchestrator.Run(cmd.Context(), req, f.deployment)
			if err != nil {
				return err
			}
			defer stream.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			var last deployment.Event
			for stream.Next() {
				last = stream.Current()
				if err := enc.Encode(last); err != nil {
					return err
				}
			}
			if err := stream.Err(); err != nil {
				return err
			}
			if last.Error != nil {
				return last.Error
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&f.deployment, "deployment", "d", "mock", "deployment name")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model (default: the deployment's first model)")
	cmd.Flags().StringVar(&f.preamble, "preamble", "", "system preamble")
	cmd.Flags().Float64Var(&f.temperature, "temperature", deployment.DefaultTemperature, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum tokens to generate")
	return cmd
}

func newSearchQueriesCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "search-queries MESSAGE...",
		Short: "Generate web search queries for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := a.orchestrator.SearchQueries(cmd.Context(), name, strings.Join(args, " "), nil)
			if err != nil {
				return err
			}
			for _, q := range queries {
				fmt.Fprintln(cmd.OutOrStdout(), q)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "deployment", "d", "lorem", "deployment name")
	return cmd
}

func newRerankCmd(a *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "rerank QUERY DOCUMENT...",
		Short: "Order documents by relevance to a query",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, texts := args[0], args[1:]
			docs := make([]deployment.Document, len(texts))
			for i, text := range texts {
				docs[i] = deployment.Document{ID: strconv.Itoa(i), Fields: map[string]string{"text": text}}
			}

			result, err := a.orchestrator.Rerank(cmd.Context(), name, query, docs)
			if err != nil {
				return err
			}
			if result == nil {
				result = &deployment.RerankResult{Results: []deployment.RankedDocument{}}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVarP(&name, "deployment", "d", "lorem", "deployment name")
	return cmd
}
