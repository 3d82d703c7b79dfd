package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/skillmatch/backfill"
	"github.com/vinayprograms/skillmatch/catalog"
	"github.com/vinayprograms/skillmatch/competency"
	"github.com/vinayprograms/skillmatch/matcher"
	"github.com/vinayprograms/skillmatch/search"
)

func newImportCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "import <catalog.yaml>",
		Short: "Load competencies, courses and people from a YAML catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			cat, err := catalog.Load(args[0])
			if err != nil {
				return err
			}
			s, err := a.needStore()
			if err != nil {
				return err
			}
			idx, err := a.needIndex(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := cat.Apply(cmd.Context(), s, idx)
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), g, sum, func(w io.Writer) {
				fmt.Fprintf(w, "imported %d competencies, %d courses, %d people\n",
					sum.Competencies, sum.Courses, sum.People)
			})
		},
	}
}

func newBackfillCmd(g *globalFlags) *cobra.Command {
	var (
		stale       bool
		concurrency int
		dryRun      bool
	)
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Generate embeddings for competencies that lack one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			s, err := a.needStore()
			if err != nil {
				return err
			}
			gen, err := a.needGenerator(ctx)
			if err != nil {
				return err
			}
			opts := []backfill.Option{backfill.WithLogger(a.logger.WithComponent("backfill"))}
			pg, err := a.needPostgres(ctx)
			if err != nil {
				return err
			}
			if pg != nil {
				opts = append(opts, backfill.WithMirror(pg))
			}
			runner := backfill.New(s, gen, opts...)

			runOpts := backfill.Options{
				IncludeStale: stale || a.cfg.Backfill.IncludeStale,
				Concurrency:  a.cfg.Backfill.Concurrency,
			}
			if cmd.Flags().Changed("concurrency") {
				runOpts.Concurrency = concurrency
			}

			if dryRun {
				pending, err := runner.Pending(ctx, runOpts)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), g, pending, func(w io.Writer) {
					for _, c := range pending {
						fmt.Fprintf(w, "%s\t%s\n", c.ID, c.Name)
					}
					fmt.Fprintf(w, "%d pending\n", len(pending))
				})
			}

			report, runErr := runner.Run(ctx, runOpts)
			if err := output(cmd.OutOrStdout(), g, report, func(w io.Writer) {
				fmt.Fprintf(w, "generated %d of %d embeddings, %d failed (%s)\n",
					report.Generated, report.Total, report.Failed, report.Duration.Round(time.Millisecond))
				for _, f := range report.Failures {
					fmt.Fprintf(w, "  %s (%s): %s\n", f.CompetencyID, f.Name, f.Error)
				}
			}); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d embeddings failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stale, "stale", false, "also regenerate embeddings of renamed competencies or of another model")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel provider calls (default from config)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending competencies without calling the provider")
	return cmd
}

// searchFlags are shared by similar and search.
type searchFlags struct {
	threshold float64
	limit     int
	category  string
	cmd       *cobra.Command
}

func (f *searchFlags) register(cmd *cobra.Command) {
	f.cmd = cmd
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "minimum similarity in [0,1] (default from config)")
	cmd.Flags().IntVarP(&f.limit, "limit", "n", 10, "maximum results, 0 for all")
	cmd.Flags().StringVar(&f.category, "category", "", "restrict results to a category")
}

func (f *searchFlags) options() (search.Options, error) {
	opts := search.Options{Limit: f.limit}
	if f.cmd.Flags().Changed("threshold") {
		opts.Threshold = &f.threshold
	}
	if f.category != "" {
		cat, err := competency.ParseCategory(f.category)
		if err != nil {
			return opts, err
		}
		opts.Category = cat
	}
	return opts, nil
}

func newSimilarCmd(g *globalFlags) *cobra.Command {
	sf := &searchFlags{}
	cmd := &cobra.Command{
		Use:   "similar <competency-id>",
		Short: "List competencies similar to a stored one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			opts, err := sf.options()
			if err != nil {
				return err
			}
			svc, err := a.searchService(cmd.Context(), false)
			if err != nil {
				return err
			}
			hits, err := svc.Similar(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), g, hits, func(w io.Writer) { printHits(w, hits) })
		},
	}
	sf.register(cmd)
	return cmd
}

func newSearchCmd(g *globalFlags) *cobra.Command {
	sf := &searchFlags{}
	var mode string
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search competencies by meaning or keywords",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			opts, err := sf.options()
			if err != nil {
				return err
			}
			if opts.Mode, err = search.ParseMode(mode); err != nil {
				return err
			}
			svc, err := a.searchService(cmd.Context(), opts.Mode != search.ModeKeyword)
			if err != nil {
				return err
			}
			hits, err := svc.Search(cmd.Context(), strings.Join(args, " "), opts)
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), g, hits, func(w io.Writer) { printHits(w, hits) })
		},
	}
	sf.register(cmd)
	cmd.Flags().StringVar(&mode, "mode", "hybrid", "semantic, keyword or hybrid")
	return cmd
}

func newMatchCmd(g *globalFlags) *cobra.Command {
	var (
		semantic  bool
		minPct    int
		threshold float64
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "match <courses|people> <competency-id>...",
		Short: "Rank courses or people by coverage of the selected competencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			kind, err := competency.ParseKind(args[0])
			if err != nil {
				return err
			}
			svc, err := a.searchService(cmd.Context(), false)
			if err != nil {
				return err
			}

			opts := svc.Defaults()
			if cmd.Flags().Changed("min") {
				opts.MinPercentage = minPct
			}
			if cmd.Flags().Changed("threshold") {
				opts.SimilarityThreshold = threshold
			}
			opts.Limit = limit

			var results []matcher.Result
			if semantic {
				results, err = svc.MatchCandidatesSemantic(cmd.Context(), kind, args[1:], opts)
			} else {
				results, err = svc.MatchCandidates(cmd.Context(), kind, args[1:], opts)
			}
			if err != nil {
				return err
			}
			return output(cmd.OutOrStdout(), g, results, func(w io.Writer) { printResults(w, results) })
		},
	}
	cmd.Flags().BoolVar(&semantic, "semantic", false, "let similar competencies count as covering a selection")
	cmd.Flags().IntVar(&minPct, "min", 0, "minimum match percentage (default from config)")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "similarity needed for semantic coverage (default from config)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results, 0 for all")
	return cmd
}

func newReindexCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the keyword index from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(g)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.needStore()
			if err != nil {
				return err
			}
			comps, err := s.ListCompetencies(cmd.Context())
			if err != nil {
				return err
			}
			idx, err := a.needIndex(cmd.Context())
			if err != nil {
				return err
			}
			if err := idx.IndexAll(comps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d competencies\n", len(comps))
			return nil
		},
	}
}

// output prints v as JSON with --json, otherwise through text.
func output(w io.Writer, g *globalFlags, v interface{}, text func(io.Writer)) error {
	if g.jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func printHits(w io.Writer, hits []search.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, "no matches")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tID\tNAME\tCATEGORY\tMODE")
	for _, h := range hits {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\t%s\n", h.Score, h.Competency.ID, h.Competency.Name, h.Competency.Category, h.Mode)
	}
	tw.Flush()
}

func printResults(w io.Writer, results []matcher.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "no candidates reach the minimum match")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MATCH\tID\tNAME\tCOVERS")
	for _, r := range results {
		mark := ""
		if r.Complete {
			mark = " *"
		}
		fmt.Fprintf(tw, "%d%%%s\t%s\t%s\t%d/%d %s\n", r.MatchPercentage, mark, r.ID, r.Name,
			r.MatchedCount, r.SelectedCount, strings.Join(r.MatchingCompetencies, ","))
	}
	tw.Flush()
}
