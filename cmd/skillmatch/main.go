// Command skillmatch imports competency catalogs, generates embeddings and
// answers similarity, search and match queries from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/skillmatch/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		printError(err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	jsonOutput bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "skillmatch",
		Short:         "Competency similarity search and course/people matching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to skillmatch.toml")
	root.PersistentFlags().BoolVar(&g.jsonOutput, "json", false, "print results as JSON")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newImportCmd(g),
		newBackfillCmd(g),
		newSimilarCmd(g),
		newSearchCmd(g),
		newMatchCmd(g),
		newReindexCmd(g),
	)
	return root
}

// printError writes err to stderr, as JSON when it carries a code.
func printError(err error) {
	if coded := errors.AsCoded(err); coded != nil {
		data, _ := json.MarshalIndent(coded, "", "  ")
		fmt.Fprintf(os.Stderr, "error: %v\n%s\n", err, data)
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}
