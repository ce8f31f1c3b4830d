package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show keyword store counts",
		Args:  cobra.NoArgs,
		Run:   runStats,
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig()
	st := mustOpenStorage(cfg)
	defer st.Close()

	s := st.Stats()
	if asJSON {
		b, _ := json.MarshalIndent(s, "", "  ")
		fmt.Println(string(b))
		return
	}

	saved := "never"
	if !s.SavedAt.IsZero() {
		saved = humanize.Time(s.SavedAt)
	}
	fmt.Printf("keywords:     %s\n", humanize.Comma(int64(s.Keywords)))
	fmt.Printf("aliases:      %s\n", humanize.Comma(int64(s.Aliases)))
	fmt.Printf("memes:        %s\n", humanize.Comma(int64(s.Memes)))
	fmt.Printf("ocr triggers: %s\n", humanize.Comma(int64(s.OCRTriggers)))
	fmt.Printf("last saved:   %s\n", saved)
}
