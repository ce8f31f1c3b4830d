package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/EgorLis/autoreply/internal/backup"
	"github.com/EgorLis/autoreply/internal/config"
	"github.com/EgorLis/autoreply/internal/keywords"
)

func init() {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy the keyword documents into the backup dir",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "now",
		Short: "Write a backup right away",
		Args:  cobra.NoArgs,
		Run:   runBackupNow,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List existing backups, oldest first",
		Args:  cobra.NoArgs,
		Run:   runBackupList,
	})
	RootCmd.AddCommand(cmd)
}

func newBackup(cfg *config.Config, st *storage) (*backup.Scheduler, error) {
	return backup.New(st.Store, backup.Conf{
		Cron: cfg.Backup.Cron,
		Dir:  cfg.Backup.Dir,
		Keep: cfg.Backup.Keep,
	})
}

func runBackupNow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	st := mustOpenStorage(cfg)
	defer st.Close()

	bk, err := newBackup(cfg, st)
	if err != nil {
		exitErr("backup", err)
	}
	paths, err := bk.RunOnce()
	if err != nil {
		exitErr("backup", err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func runBackupList(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	bk, err := backup.New(nil, backup.Conf{Dir: cfg.Backup.Dir, Keep: cfg.Backup.Keep})
	if err != nil {
		exitErr("backup", err)
	}
	for _, name := range []string{keywords.DocOptions, keywords.DocOCR} {
		files, err := bk.List(name)
		if err != nil {
			exitErr("backup list", err)
		}
		for _, f := range files {
			fmt.Println(filepath.Base(f))
		}
	}
}
