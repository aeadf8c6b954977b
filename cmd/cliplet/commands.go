package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/sakif/cliplet/internal/client"
	"github.com/sakif/cliplet/internal/model"
)

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			user, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
}

// Sort orders the server does not know about are applied locally.
var localSorts = map[string]func(a, b client.Clip) int{
	"type": func(a, b client.Clip) int { return cmp.Compare(a.Type, b.Type) },
	"name": func(a, b client.Clip) int {
		return cmp.Compare(strings.ToLower(displayName(a)), strings.ToLower(displayName(b)))
	},
}

func newListCmd(a *app) *cobra.Command {
	var (
		filter string
		sort   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List clips",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := model.ParseFilter(filter); err != nil {
				return fmt.Errorf("--filter must be all or one of %v", model.ClipTypes)
			}
			local, isLocal := localSorts[sort]
			serverSort := sort
			switch {
			case isLocal:
				serverSort = string(model.SortNewest)
			case sort != string(model.SortNewest) && sort != string(model.SortOldest):
				return fmt.Errorf("--sort must be newest, oldest, type or name")
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			clips, err := c.ListClips(cmd.Context(), filter, serverSort)
			if err != nil {
				return err
			}
			if isLocal {
				slices.SortStableFunc(clips, local)
			}

			if asJSON {
				return printJSON(a.stdout, clips)
			}
			printClips(a.stdout, clips)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "all", "all, text, image, video, audio, document or file")
	cmd.Flags().StringVar(&sort, "sort", "newest", "newest, oldest, type or name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one clip with its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			detail, err := c.GetClip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(a.stdout, detail)
		},
	}
}

func newPasteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "paste [text...]",
		Short: "Save text as a clip; reads stdin when no text is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				b, err := io.ReadAll(a.stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("nothing to paste")
			}

			c, err := a.client()
			if err != nil {
				return err
			}
			clip, err := c.CreateText(cmd.Context(), text)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, clip.ID)
			return nil
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload files as clips",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			for _, path := range args {
				clip, err := c.Upload(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", clip.ID, clip.Type, path)
			}
			return nil
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"delete"},
		Short:   "Delete clips",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			for _, id := range args {
				if err := c.Delete(cmd.Context(), id); err != nil {
					return fmt.Errorf("%s: %w", id, err)
				}
				fmt.Fprintf(a.stdout, "deleted %s\n", id)
			}
			return nil
		},
	}
}

func newDownloadCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a clip's file",
		Long:  "Download a clip's file. -o names a file or directory; - writes to stdout.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			if out == "-" {
				_, err := c.Download(cmd.Context(), args[0], a.stdout)
				return err
			}

			dir, target := out, ""
			if st, err := os.Stat(out); err != nil || !st.IsDir() {
				dir, target = filepath.Dir(out), out
			}

			// The real name is only known once the response arrives.
			tmp, err := os.CreateTemp(dir, ".cliplet-*")
			if err != nil {
				return err
			}
			defer os.Remove(tmp.Name())

			name, err := c.Download(cmd.Context(), args[0], tmp)
			if closeErr := tmp.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			if target == "" {
				target = filepath.Join(dir, localName(name, args[0]))
			}
			if err := os.Rename(tmp.Name(), target); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, target)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", ".", "file, directory or - for stdout")
	return cmd
}

// localName reduces a server-supplied file name to a single path element,
// falling back to the clip id when nothing usable is left.
func localName(name, id string) string {
	base := filepath.Base(name)
	switch base {
	case ".", "..", string(filepath.Separator):
		return id
	}
	return base
}

func displayName(c client.Clip) string {
	if c.Type == model.ClipText {
		return c.Content
	}
	return c.FileName
}

func printClips(w io.Writer, clips []client.Clip) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tCONTENT")
	for _, c := range clips {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.Type, c.CreatedAt.Local().Format(time.DateTime), preview(displayName(c), 60))
	}
	tw.Flush()
}

// preview flattens s to one line of at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
