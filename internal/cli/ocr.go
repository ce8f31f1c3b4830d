package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EgorLis/autoreply/internal/keywords"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Manage OCR triggers (text on images that maps to a reply)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List OCR triggers",
		Args:  cobra.NoArgs,
		Run:   runOCRList,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "add <key> <text...>",
		Short: "Reply with key when an image contains text",
		Args:  cobra.MinimumNArgs(2),
		Run:   runOCRAdd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "remove <text...>",
		Short: "Remove an OCR trigger",
		Args:  cobra.MinimumNArgs(1),
		Run:   runOCRRemove,
	})
	RootCmd.AddCommand(cmd)
}

func runOCRList(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	for _, t := range st.OCRTriggers() {
		fmt.Printf("%s\t%s\n", t.Trigger, t.Target)
	}
}

func runOCRAdd(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	text := keywords.NormalizeTrigger(strings.Join(args[1:], " "))
	canon, err := st.AddOCR(text, args[0])
	if err != nil {
		exitErr("ocr add", err)
	}
	fmt.Printf("ocr: %q -> %s\n", text, canon)
}

func runOCRRemove(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	text := keywords.NormalizeTrigger(strings.Join(args, " "))
	if err := st.RemoveOCR(text); err != nil {
		exitErr("ocr remove", err)
	}
	fmt.Printf("ocr removed: %q\n", text)
}
