package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchJSON  bool
	searchDir   string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search an indexed directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := searchDir
		if path == "" {
			var err error
			if path, err = pathArg(nil); err != nil {
				return err
			}
		}
		query := strings.Join(args, " ")

		idx, err := openIndex()
		if err != nil {
			return err
		}
		defer idx.Close()

		results, err := idx.SearchDirectory(cmd.Context(), path, searchLimit, query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}

		if len(results) == 0 {
			fmt.Fprintln(out, "no results")
			return nil
		}
		for _, r := range results {
			fmt.Fprintf(out, "%2d. %s:%d-%d  (%.4f)\n", r.Rank, r.RelPath, r.StartByte, r.EndByte, r.Similarity)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringVarP(&searchDir, "dir", "d", "", "directory to search (default is current directory)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
}
