package cli

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EgorLis/autoreply/internal/keywords"
)

func init() {
	cmd := &cobra.Command{
		Use:     "keywords",
		Aliases: []string{"kw"},
		Short:   "Edit auto-replies without the bot running",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List keywords grouped with their aliases",
		Args:  cobra.NoArgs,
		Run:   runKeywordsList,
	}
	list.Flags().String("filter", "all", "all, meme or non-meme")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Show the reply for a keyword or alias",
		Args:  cobra.ExactArgs(1),
		Run:   runKeywordsGet,
	})

	for _, name := range []string{"add", "edit"} {
		c := &cobra.Command{
			Use:   name + " <key> [response...]",
			Short: strings.ToUpper(name[:1]) + name[1:] + " an auto-reply",
			Args:  cobra.MinimumNArgs(1),
			Run:   runKeywordsWrite,
		}
		c.Flags().Bool("meme", false, "Mark the reply as a meme")
		c.Flags().StringSlice("file", nil, "Attachment URL (repeatable)")
		cmd.AddCommand(c)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <key>",
		Short: "Remove a keyword; a canonical reply takes its aliases with it",
		Args:  cobra.ExactArgs(1),
		Run:   runKeywordsRemove,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "alias <newAlias> <existingKey>",
		Short: "Point a new key at an existing reply",
		Args:  cobra.ExactArgs(2),
		Run:   runKeywordsAlias,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <currentKey> <newKey>",
		Short: "Rename a key, aliases and OCR triggers follow",
		Args:  cobra.ExactArgs(2),
		Run:   runKeywordsRename,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "meme <key> on|off",
		Short: "Set or clear the meme flag",
		Args:  cobra.ExactArgs(2),
		Run:   runKeywordsMeme,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prefix [newPrefix]",
		Short: "Show or change the command prefix",
		Args:  cobra.MaximumNArgs(1),
		Run:   runKeywordsPrefix,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "role [roleID]",
		Short: "Show or change the role allowed to edit replies",
		Args:  cobra.MaximumNArgs(1),
		Run:   runKeywordsRole,
	})

	RootCmd.AddCommand(cmd)
}

func runKeywordsList(cmd *cobra.Command, args []string) {
	raw, _ := cmd.Flags().GetString("filter")
	filter, ok := keywords.ParseFilter(raw)
	if !ok {
		exitErr("list", fmt.Errorf("unknown filter %q", raw))
	}

	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if out := st.List(filter); out != "" {
		fmt.Println(out)
	}
}

func runKeywordsGet(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	canon, e, ok := st.Resolve(args[0], true)
	if !ok {
		exitErr("get", fmt.Errorf("%q: %w", args[0], keywords.ErrNotFound))
	}
	out := struct {
		Key     string                `json:"key"`
		Content string                `json:"content,omitempty"`
		Files   []keywords.Attachment `json:"files,omitempty"`
		IsMeme  bool                  `json:"isMeme"`
	}{canon, e.Content, e.Files, e.IsMeme}
	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}

func runKeywordsWrite(cmd *cobra.Command, args []string) {
	meme, _ := cmd.Flags().GetBool("meme")
	urls, _ := cmd.Flags().GetStringSlice("file")

	key, content := args[0], strings.Join(args[1:], " ")
	var files []keywords.Attachment
	for _, u := range urls {
		files = append(files, keywords.Attachment{URL: u, Name: path.Base(u)})
	}

	st := mustOpenStorage(loadConfig())
	defer st.Close()

	var err error
	if cmd.Name() == "add" {
		err = st.Add(key, content, files, meme)
	} else {
		if _, cur, ok := st.Resolve(key, true); ok && !cmd.Flags().Changed("meme") {
			meme = cur.IsMeme
		}
		err = st.Edit(key, content, files, meme)
	}
	if err != nil {
		exitErr(cmd.Name(), err)
	}
	fmt.Printf("%s: %s\n", cmd.Name(), key)
}

func runKeywordsRemove(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if err := st.Remove(args[0]); err != nil {
		exitErr("remove", err)
	}
	fmt.Printf("removed: %s\n", args[0])
}

func runKeywordsAlias(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if err := st.Alias(args[0], args[1]); err != nil {
		exitErr("alias", err)
	}
	canon, _, _ := st.Resolve(args[0], true)
	fmt.Printf("alias: %s -> %s\n", args[0], canon)
}

func runKeywordsRename(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if err := st.Rename(args[0], args[1]); err != nil {
		exitErr("rename", err)
	}
	fmt.Printf("renamed: %s -> %s\n", args[0], args[1])
}

func runKeywordsMeme(cmd *cobra.Command, args []string) {
	var on bool
	switch strings.ToLower(args[1]) {
	case "on", "yes", "true":
		on = true
	case "off", "no", "false":
	default:
		exitErr("meme", fmt.Errorf("expected on or off, got %q", args[1]))
	}

	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if err := st.SetMeme(args[0], on); err != nil {
		exitErr("meme", err)
	}
	fmt.Printf("meme %s: %t\n", args[0], on)
}

func runKeywordsPrefix(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if len(args) == 0 {
		fmt.Println(st.Prefix())
		return
	}
	if err := st.SetPrefix(args[0]); err != nil {
		exitErr("prefix", err)
	}
	fmt.Printf("prefix: %s\n", args[0])
}

func runKeywordsRole(cmd *cobra.Command, args []string) {
	st := mustOpenStorage(loadConfig())
	defer st.Close()

	if len(args) == 0 {
		fmt.Println(st.RoleID())
		return
	}
	if err := st.SetRoleID(args[0]); err != nil {
		exitErr("role", err)
	}
	fmt.Printf("role: %s\n", args[0])
}
