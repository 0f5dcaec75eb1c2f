package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sessionflow/internal/schema"
)

func schemaCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "schema",
		Short: "Create, inspect and drop the workflow tables",
	}
	c.AddCommand(schemaActivateCmd(a), schemaDDLCmd(a), schemaDescribeCmd(a), schemaDepsCmd(a), schemaDropCmd(a))
	return c
}

func schemaActivateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "activate",
		Short: "Create every table that does not exist yet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer p.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "activated %d tables (%s, prefix %q)\n",
				len(p.Catalog().Tables()), p.Dialect().Name(), p.Prefix())
			return nil
		},
	}
}

func schemaDDLCmd(a *app) *cobra.Command {
	var dialect string
	c := &cobra.Command{
		Use:   "ddl",
		Short: "Print the CREATE TABLE script",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name := dialect
			if name == "" {
				name = dialectForDriver(a.cfg.Storage.Driver)
			}
			d, err := schema.DialectFor(name)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), schema.DDL(d, a.cfg.Custom.Database.Prefix, schema.Default().Tables()))
			return nil
		},
	}
	c.Flags().StringVar(&dialect, "dialect", "", "sqlite|postgres|mysql (default: the configured storage driver)")
	return c
}

func dialectForDriver(driver string) string {
	switch driver {
	case "postgres":
		return schema.DialectPostgres
	case "mysql":
		return schema.DialectMySQL
	default:
		return schema.DialectSQLite
	}
}

func schemaDescribeCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table>",
		Short: "Print a table definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := schema.Default().Table(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n%s", t.QualifiedClass(), t.Tier, schema.Describe(t))
			return nil
		},
	}
}

func schemaDepsCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <table>",
		Short: "List the tables a table references and is referenced by",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := schema.Default()
			t, err := c.Table(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "parents: %s\n", names(c.Parents(t)))
			fmt.Fprintf(w, "children: %s\n", names(c.Children(t)))
			return nil
		},
	}
}

func names(tables []*schema.Table) string {
	if len(tables) == 0 {
		return "-"
	}
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.QualifiedClass()
	}
	return strings.Join(out, ", ")
}

func schemaDropCmd(a *app) *cobra.Command {
	var yes bool
	c := &cobra.Command{
		Use:   "drop",
		Short: "Drop every workflow table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer p.Close()
			if err := p.Drop(cmd.Context(), yes); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "dropped")
			return nil
		},
	}
	c.Flags().BoolVar(&yes, "yes", false, "confirm when safemode is on")
	return c
}
