package cli

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sessionflow/internal/blob"
)

func dataCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "data",
		Short: "Manage source files in the blob store",
	}
	c.AddCommand(dataLsCmd(a), dataPutCmd(a))
	return c
}

func dataLsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List stored source files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			infos, err := store.List(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", info.Key, info.Size, info.LastModified.UTC().Format("2006-01-02 15:04:05"))
			}
			return tw.Flush()
		},
	}
}

func dataPutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file> <key>",
		Short: "Upload a local file under key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			store, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			info, err := store.Put(cmd.Context(), args[1], f, blob.PutOptions{
				ContentType: mime.TypeByExtension(filepath.Ext(args[0])),
				Metadata:    map[string]string{"origin": filepath.Base(args[0])},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d bytes)\n", info.Key, info.Size)
			return nil
		},
	}
}
