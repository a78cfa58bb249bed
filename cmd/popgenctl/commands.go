package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"popgensim/internal/config"
	"popgensim/pkg/popgensim"
)

func newRunCommand(flags *globalFlags) *cobra.Command {
	var (
		seed        uint64
		generations int
		size        int
		workers     int
		jsonOut     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Simulate one population and persist the run",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (overrides run.seed)")
	cmd.Flags().IntVar(&generations, "generations", 0, "constant-size generations (overrides schedule)")
	cmd.Flags().IntVar(&size, "size", 0, "population size (overrides population.size)")
	cmd.Flags().IntVar(&workers, "workers", 0, "genetic value workers (overrides run.workers)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit the run summary as JSON")

	cmd.RunE = withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, cfg *config.Config) error {
		if cmd.Flags().Changed("seed") {
			cfg.Run.Seed = seed
		}
		if cmd.Flags().Changed("size") {
			cfg.Population.Size = size
		}
		if cmd.Flags().Changed("generations") {
			cfg.Schedule = config.ScheduleConfig{Generations: generations}
		}
		if cmd.Flags().Changed("workers") {
			cfg.Run.Workers = workers
		}

		start := time.Now()
		summary, err := client.Run(cmd.Context(), popgensim.RunRequest{Config: cfg})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return writeJSON(out, summary)
		}
		fmt.Fprintf(out, "run_id=%s seed=%d generations=%s final_size=%s wbar=%.6f fixations=%s segregating=%s elapsed=%s\n",
			summary.RunID,
			summary.Seed,
			humanize.Comma(int64(summary.Generations)),
			humanize.Comma(int64(summary.FinalSize)),
			summary.FinalMeanFitness,
			humanize.Comma(int64(summary.Fixations)),
			humanize.Comma(int64(summary.Segregating)),
			time.Since(start).Round(time.Millisecond),
		)
		fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
		return nil
	})
	return cmd
}

func newRunsCommand(flags *globalFlags) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List persisted runs, newest first",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit runs as JSON")

	cmd.RunE = withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, _ *config.Config) error {
		if limit <= 0 {
			return fmt.Errorf("limit must be > 0")
		}
		runs, err := client.Runs(cmd.Context(), popgensim.RunsRequest{Limit: limit})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			for i := range runs {
				runs[i].Config = nil
			}
			return writeJSON(out, runs)
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "no runs found")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "run_id=%s created=%s rules=%s seed=%d loci=%d n=%s gens=%s wbar=%.6f fixations=%s segregating=%s\n",
				r.ID,
				createdAt(r.CreatedAtUTC),
				r.Rules,
				r.Seed,
				r.Loci,
				humanize.Comma(int64(r.FinalSize)),
				humanize.Comma(int64(r.Generations)),
				r.FinalMeanFitness,
				humanize.Comma(int64(r.Fixations)),
				humanize.Comma(int64(r.Segregating)),
			)
		}
		return nil
	})
	return cmd
}

// runRefFlags binds the --run-id/--latest/--limit selector used by the
// per-run query commands.
func runRefFlags(cmd *cobra.Command, ref *popgensim.RunRef) {
	cmd.Flags().StringVar(&ref.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&ref.Latest, "latest", false, "use the most recent run")
	cmd.Flags().IntVar(&ref.Limit, "limit", 0, "max rows (0 = all)")
}

func newDiagnosticsCommand(flags *globalFlags) *cobra.Command {
	var (
		ref     popgensim.RunRef
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Show per-generation diagnostics of a run",
		Args:  cobra.NoArgs,
	}
	runRefFlags(cmd, &ref)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit diagnostics as JSON")

	cmd.RunE = withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, _ *config.Config) error {
		diagnostics, err := client.Diagnostics(cmd.Context(), ref)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return writeJSON(out, diagnostics)
		}
		for _, d := range diagnostics {
			fmt.Fprintf(out, "generation=%d n=%d wbar=%.6f var_w=%.6g mean_g=%.6g var_g=%.6g segregating=%d gametes=%d fixations=%d\n",
				d.Generation, d.N, d.MeanFitness, d.FitnessVar, d.MeanGenetic, d.GeneticVar, d.Segregating, d.LiveGametes, d.Fixations)
		}
		return nil
	})
	return cmd
}

func newFixationsCommand(flags *globalFlags) *cobra.Command {
	var (
		ref     popgensim.RunRef
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "fixations",
		Short: "List the fixations recorded by a run",
		Args:  cobra.NoArgs,
	}
	runRefFlags(cmd, &ref)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "emit fixations as JSON")

	cmd.RunE = withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, _ *config.Config) error {
		fixations, err := client.Fixations(cmd.Context(), ref)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOut {
			return writeJSON(out, fixations)
		}
		if len(fixations) == 0 {
			fmt.Fprintln(out, "no fixations")
			return nil
		}
		for _, f := range fixations {
			fmt.Fprintf(out, "generation=%d origin=%d pos=%.8f s=%.6g h=%.3g neutral=%t\n",
				f.Generation, f.Origin, f.Pos, f.S, f.H, f.Neutral)
		}
		return nil
	})
	return cmd
}

func newExportCommand(flags *globalFlags) *cobra.Command {
	var req popgensim.ExportRequest
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifacts to the exports directory",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "run id")
	cmd.Flags().BoolVar(&req.Latest, "latest", false, "export the most recent run")
	cmd.Flags().StringVar(&req.OutDir, "out", "", "export output directory (defaults to --exports-dir)")

	cmd.RunE = withClient(flags, func(cmd *cobra.Command, client *popgensim.Client, _ *config.Config) error {
		summary, err := client.Export(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s to=%s\n", summary.RunID, summary.Directory)
		return nil
	})
	return cmd
}

func createdAt(value string) string {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(ts)
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
