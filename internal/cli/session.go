package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sessionflow/internal/session"
	"sessionflow/pkg/domain"
)

func sessionCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "session",
		Short: "Look up session records",
	}
	c.AddCommand(sessionDirCmd(a))
	return c
}

func sessionDirCmd(a *app) *cobra.Command {
	var (
		key     domain.SessionKey
		resolve bool
	)
	c := &cobra.Command{
		Use:   "dir",
		Short: "Print the directory recorded for a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.pipeline(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer p.Close()
			dir, err := session.Directory(cmd.Context(), p, key)
			if err != nil {
				return err
			}
			if resolve {
				if dir, err = session.FindFullPath(a.cfg.Custom.RootDataDir, dir); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), dir)
			return nil
		},
	}
	c.Flags().StringVar(&key.Subject, "subject", "", "subject id (required)")
	c.Flags().StringVar(&key.SessionDatetime, "datetime", "", "session datetime, e.g. 2018-07-03 20:32:28 (required)")
	c.Flags().BoolVar(&resolve, "resolve", false, "resolve against the configured root data directories")
	_ = c.MarkFlagRequired("subject")
	_ = c.MarkFlagRequired("datetime")
	return c
}
