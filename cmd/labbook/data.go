package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"labbook/internal/backup"
)

func newExportCommand(a *app) *cobra.Command {
	var toBlob bool
	cmd := &cobra.Command{
		Use:   "export [path|-]",
		Short: "Write the whole lab book as a JSON export file",
		Long: `Write the whole lab book as a JSON export file.

Without a path the file is written to the current directory as
lab_os_backup_YYYYMMDD_HHMMSS.json. A directory path receives the same
name; "-" writes to stdout. With --blob the file is stored in the
configured backup target instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if toBlob {
				store, err := a.blobStore(ctx)
				if err != nil {
					return err
				}
				info, err := backup.NewManager(a.svc, store, backup.WithClock(a.now)).Export(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s\t%s\n", info.Key, humanize.Bytes(uint64(info.Size)))
				return nil
			}

			target := ""
			if len(args) == 1 {
				target = args[0]
			}
			if target == "-" {
				_, err := backup.WriteTo(ctx, a.svc, a.out)
				return err
			}
			name := backup.FileName(a.now())
			if target == "" {
				target = name
			} else if fi, err := os.Stat(target); err == nil && fi.IsDir() {
				target = filepath.Join(target, name)
			}
			f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
			if err != nil {
				return fmt.Errorf("create export: %w", err)
			}
			n, err := backup.WriteTo(ctx, a.svc, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(target)
				return err
			}
			fmt.Fprintf(a.out, "%s\t%s\n", target, humanize.Bytes(uint64(n)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&toBlob, "blob", false, "store in the configured backup target")
	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	var fromBlob bool
	cmd := &cobra.Command{
		Use:   "import <path|-|backup-key>",
		Short: "Replace the whole lab book with an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var err error
			switch {
			case fromBlob:
				store, serr := a.blobStore(ctx)
				if serr != nil {
					return serr
				}
				err = backup.NewManager(a.svc, store).Import(ctx, args[0])
			case args[0] == "-":
				err = backup.ReadFrom(ctx, a.svc, cmd.InOrStdin())
			default:
				f, oerr := os.Open(args[0])
				if oerr != nil {
					return fmt.Errorf("open import: %w", oerr)
				}
				defer f.Close()
				err = backup.ReadFrom(ctx, a.svc, f)
			}
			if err != nil {
				return err
			}
			if a.reloaded {
				fmt.Fprintf(a.out, "imported %d pages, %d runs\n", len(a.svc.ListPages(ctx, "")), len(a.svc.ListRuns(ctx)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromBlob, "blob", false, "read the named backup from the configured backup target")
	return cmd
}

func newBackupCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "backup", Short: "Inspect backups in the configured backup target"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			infos, err := backup.NewManager(a.svc, store).List(cmd.Context())
			if err != nil {
				return err
			}
			tw := newTable(a.out)
			row(tw, "KEY", "SIZE", "STORED")
			for _, info := range infos {
				row(tw, info.Key, humanize.Bytes(uint64(info.Size)), formatAge(info.LastModified))
			}
			return tw.Flush()
		},
	})

	var expires time.Duration
	url := &cobra.Command{
		Use:   "url <backup-key>",
		Short: "Print a time-limited download link for a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.blobStore(cmd.Context())
			if err != nil {
				return err
			}
			link, err := backup.NewManager(a.svc, store).URL(cmd.Context(), args[0], expires)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, link)
			return nil
		},
	}
	url.Flags().DurationVar(&expires, "expires", 15*time.Minute, "link lifetime")
	cmd.AddCommand(url)
	return cmd
}
