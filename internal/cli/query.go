package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.lsp.dev/protocol"

	"lsp-bridge/internal/index"
)

var (
	queryName      string
	queryKinds     []string
	queryContainer string
	queryFile      string
	queryTopLevel  bool
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query <path>...",
	Short: "Index the given paths, then query the symbols",
	Long: `Query builds the symbol index for the given paths and prints the symbols
matching the filters. All filters are ANDed; with none set, every symbol is
printed. Kind names follow the LSP symbol kinds (class, method, function,
struct, ...).`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var kinds []protocol.SymbolKind
		for _, name := range queryKinds {
			kind, ok := index.ParseKind(name)
			if !ok {
				return fmt.Errorf("unknown symbol kind %q", name)
			}
			kinds = append(kinds, kind)
		}

		families, err := collectFiles(args)
		if err != nil {
			return err
		}
		if len(families) == 0 {
			return fmt.Errorf("no indexable files under %v", args)
		}

		ix, shutdown, err := buildIndex(cmd.Context(), families)
		if err != nil {
			return err
		}
		defer shutdown()

		q := index.Query{
			Name:          queryName,
			Kinds:         kinds,
			ContainerName: queryContainer,
			File:          queryFile,
		}
		if queryTopLevel {
			includeChildren := false
			q.IncludeChildren = &includeChildren
		}

		results := ix.QuerySymbols(q)
		if queryJSON {
			return json.NewEncoder(os.Stdout).Encode(results)
		}
		for _, sym := range results {
			container := ""
			if sym.ContainerName != "" {
				container = " in " + sym.ContainerName
			}
			fmt.Printf("%s\t%s%s\t%s:%d\n",
				sym.Name, index.KindName(sym.Kind), container,
				sym.Location.URI, sym.Location.Range.Start.Line+1)
		}
		fmt.Fprintf(os.Stderr, "%d symbols\n", len(results))
		return nil
	},
}

func init() {
	queryCmd.Flags().StringVar(&queryName, "name", "", "exact symbol name")
	queryCmd.Flags().StringSliceVar(&queryKinds, "kind", nil, "symbol kind, repeatable")
	queryCmd.Flags().StringVar(&queryContainer, "container", "", "exact container name")
	queryCmd.Flags().StringVar(&queryFile, "file", "", "restrict to one file")
	queryCmd.Flags().BoolVar(&queryTopLevel, "top-level", false, "ignore nested symbols")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print results as JSON")
}
