package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"sessionflow/internal/ingest"
)

type ingestFlags struct {
	skipDuplicates  bool
	quote           string
	metricsTextfile string
	traceFile       string
}

func (f *ingestFlags) register(c *cobra.Command) {
	c.Flags().BoolVar(&f.skipDuplicates, "skip-duplicates", true, "keep existing rows instead of failing on duplicate keys")
	c.Flags().StringVar(&f.quote, "quote", `"`, "CSV quote character")
	c.Flags().StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this node-exporter textfile")
	c.Flags().StringVar(&f.traceFile, "trace-file", "", "append one JSON line per step to this file")
}

func ingestCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "ingest",
		Short: "Load CSV or workbook sources from the blob store",
	}
	c.AddCommand(ingestLabCmd(a), ingestSubjectsCmd(a), ingestSessionsCmd(a), ingestAllCmd(a))
	return c
}

func labFlags(c *cobra.Command, files *ingest.LabFiles) {
	d := ingest.DefaultLabFiles()
	c.Flags().StringVar(&files.Labs, "labs", d.Labs, "labs source key")
	c.Flags().StringVar(&files.Projects, "projects", d.Projects, "projects source key")
	c.Flags().StringVar(&files.Publications, "publications", d.Publications, "publications source key")
	c.Flags().StringVar(&files.Keywords, "keywords", d.Keywords, "keywords source key")
	c.Flags().StringVar(&files.Protocols, "protocols", d.Protocols, "protocols source key")
	c.Flags().StringVar(&files.Users, "users", d.Users, "users source key")
	c.Flags().StringVar(&files.ProjectUsers, "project-users", d.ProjectUsers, "project users source key")
	c.Flags().StringVar(&files.Sources, "sources", d.Sources, "animal sources source key")
}

func subjectFlags(c *cobra.Command, files *ingest.SubjectFiles) {
	d := ingest.DefaultSubjectFiles()
	c.Flags().StringVar(&files.Subjects, "subjects", d.Subjects, "subjects source key")
	c.Flags().StringVar(&files.SubjectParts, "subjects-part", d.SubjectParts, "subject part tables source key")
	c.Flags().StringVar(&files.Allele, "allele", d.Allele, "allele source key")
	c.Flags().StringVar(&files.Cage, "cage", d.Cage, "cage source key")
	c.Flags().StringVar(&files.BreedingPair, "breedingpair", d.BreedingPair, "breeding pair source key")
	c.Flags().StringVar(&files.GenotypeTest, "genotype-test", d.GenotypeTest, "genotype test source key")
	c.Flags().StringVar(&files.Line, "line", d.Line, "line source key")
	c.Flags().StringVar(&files.Strain, "strain", d.Strain, "strain source key")
	c.Flags().StringVar(&files.Zygosity, "zygosity", d.Zygosity, "zygosity source key")
}

func sessionFlags(c *cobra.Command, files *ingest.SessionFiles) {
	c.Flags().StringVar(&files.Sessions, "sessions", ingest.DefaultSessionFiles().Sessions, "sessions source key")
}

func ingestLabCmd(a *app) *cobra.Command {
	var files ingest.LabFiles
	var f ingestFlags
	c := &cobra.Command{
		Use:   "lab",
		Short: "Load labs, projects, protocols, users and animal sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runIngest(cmd, f, func(ctx context.Context, ing *ingest.Ingester) (ingest.Report, error) {
				return ing.IngestLab(ctx, files)
			})
		},
	}
	labFlags(c, &files)
	f.register(c)
	return c
}

func ingestSubjectsCmd(a *app) *cobra.Command {
	var files ingest.SubjectFiles
	var f ingestFlags
	c := &cobra.Command{
		Use:   "subjects",
		Short: "Load subjects, lines, breeding and genotyping records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runIngest(cmd, f, func(ctx context.Context, ing *ingest.Ingester) (ingest.Report, error) {
				return ing.IngestSubjects(ctx, files)
			})
		},
	}
	subjectFlags(c, &files)
	f.register(c)
	return c
}

func ingestSessionsCmd(a *app) *cobra.Command {
	var files ingest.SessionFiles
	var f ingestFlags
	c := &cobra.Command{
		Use:   "sessions",
		Short: "Load sessions with their directories, notes and experimenters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runIngest(cmd, f, func(ctx context.Context, ing *ingest.Ingester) (ingest.Report, error) {
				return ing.IngestSessions(ctx, files)
			})
		},
	}
	sessionFlags(c, &files)
	f.register(c)
	return c
}

func ingestAllCmd(a *app) *cobra.Command {
	var (
		lab      ingest.LabFiles
		subjects ingest.SubjectFiles
		sessions ingest.SessionFiles
		f        ingestFlags
	)
	c := &cobra.Command{
		Use:   "all",
		Short: "Load lab, subject and session sources in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runIngest(cmd, f, func(ctx context.Context, ing *ingest.Ingester) (ingest.Report, error) {
				return ing.IngestAll(ctx, lab, subjects, sessions)
			})
		},
	}
	labFlags(c, &lab)
	subjectFlags(c, &subjects)
	sessionFlags(c, &sessions)
	f.register(c)
	return c
}

type ingestFunc func(ctx context.Context, ing *ingest.Ingester) (ingest.Report, error)

func (a *app) runIngest(cmd *cobra.Command, f ingestFlags, run ingestFunc) error {
	ctx := cmd.Context()
	quote, size := utf8.DecodeRuneInString(f.quote)
	if size == 0 || size != len(f.quote) {
		return fmt.Errorf("--quote must be a single character, got %q", f.quote)
	}
	p, err := a.pipeline(ctx, true)
	if err != nil {
		return err
	}
	defer p.Close()
	store, err := a.store(ctx)
	if err != nil {
		return err
	}

	opts := []ingest.Option{
		ingest.WithSkipDuplicates(f.skipDuplicates),
		ingest.WithVerbose(a.verbose),
		ingest.WithQuote(quote),
		ingest.WithLogger(a.log),
	}
	var metrics *ingest.PrometheusRecorder
	if f.metricsTextfile != "" {
		metrics = ingest.NewPrometheusRecorder()
		opts = append(opts, ingest.WithRecorder(metrics))
	}
	if f.traceFile != "" {
		tf, err := os.OpenFile(f.traceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer tf.Close()
		opts = append(opts, ingest.WithRecorder(ingest.NewTraceRecorder(tf)))
	}

	report, runErr := run(ctx, ingest.New(p, store, opts...))
	if metrics != nil {
		if err := metrics.WriteTextfile(f.metricsTextfile); err != nil {
			a.log.Error().Err(err).Str("path", f.metricsTextfile).Msg("write metrics textfile")
		}
	}
	if werr := printReport(cmd.OutOrStdout(), report); werr != nil && runErr == nil {
		return werr
	}
	return runErr
}

func printReport(w io.Writer, r ingest.Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tSOURCE\tREAD\tINSERTED\tSKIPPED\tFILTERED")
	for _, s := range r.Steps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", s.Table, s.Source, s.Read, s.Inserted, s.Skipped, s.Filtered)
	}
	fmt.Fprintf(tw, "run %s\t\t\t%d\t%d\t\n", r.RunID, r.Inserted(), r.Skipped())
	return tw.Flush()
}
