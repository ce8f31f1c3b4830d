package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/EgorLis/autoreply/internal/keywords"
)

var errNoHistory = errors.New("revision history needs storage.driver: sqlite")

func init() {
	cmd := &cobra.Command{
		Use:   "history [options|ocr]",
		Short: "Show saved revisions of a document (sqlite storage only)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runHistory,
	}
	cmd.Flags().IntP("limit", "l", 20, "How many revisions to show")
	cmd.Flags().Bool("show", false, "Print the newest revision body")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Drop old revisions",
		Args:  cobra.NoArgs,
		Run:   runHistoryPrune,
	}
	prune.Flags().Int("keep", 50, "Revisions to keep per document")
	cmd.AddCommand(prune)

	RootCmd.AddCommand(cmd)
}

func runHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	show, _ := cmd.Flags().GetBool("show")
	name := keywords.DocOptions
	if len(args) == 1 {
		name = args[0]
	}

	st := mustOpenStorage(loadConfig())
	defer st.Close()
	if st.sqlite == nil {
		exitErr("history", errNoHistory)
	}

	revs, err := st.sqlite.Revisions(name, limit)
	if err != nil {
		exitErr("history", err)
	}
	if show && len(revs) > 0 {
		fmt.Println(string(revs[0].Body))
		return
	}
	for _, r := range revs {
		fmt.Printf("%s  %-14s %s\n", r.ID, humanize.Time(r.SavedAt), humanize.Bytes(uint64(len(r.Body))))
	}
}

func runHistoryPrune(cmd *cobra.Command, args []string) {
	keep, _ := cmd.Flags().GetInt("keep")

	st := mustOpenStorage(loadConfig())
	defer st.Close()
	if st.sqlite == nil {
		exitErr("history prune", errNoHistory)
	}

	n, err := st.sqlite.Prune(keep)
	if err != nil {
		exitErr("history prune", err)
	}
	fmt.Printf("pruned %s revisions\n", humanize.Comma(n))
}
