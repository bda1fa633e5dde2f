package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/xhad/inkwell/internal/models"
	"github.com/xhad/inkwell/internal/types"
	cfgPkg "github.com/xhad/inkwell/pkg/config"
	"github.com/xhad/inkwell/pkg/editor"
	"github.com/xhad/inkwell/pkg/persister"
	"github.com/xhad/inkwell/pkg/processor"
	"github.com/xhad/inkwell/pkg/scanner"
	"github.com/xhad/inkwell/pkg/tags"
	"github.com/xhad/inkwell/server"
)

func saveCmd() *cobra.Command {
	var (
		file     string
		markdown bool
		title    string
		userID   string
		entryID  string
		rawTags  string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Relocate a document's images and save it as an entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}

			content, err := loadDocument(file, markdown)
			if err != nil {
				return err
			}
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
			}

			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			up, err := a.uploader()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			proc := processor.NewWithConfig(processor.ProcessorConfig{TagDelimiter: a.config.Editor.TagDelimiter})
			var bar *progressbar.ProgressBar
			p := persister.NewWithConfig(st, persister.PersisterConfig{
				TagDelimiter: proc.TagDelimiter(),
				Logger:       a.logger,
				Notifier: types.NotifierFunc(func(n models.Notification) {
					printNotification(out, n)
				}),
				OnImage: func(done, total int) {
					if bar == nil {
						bar = getProgressBar(total, "Saving images")
					}
					bar.Set(done)
				},
			})

			session := editor.NewSession(models.EditorProps{
				UserID:     userID,
				EntryID:    entryID,
				EntryTitle: title,
				Tags:       rawTags,
			}, editor.Deps{
				Uploader:  up,
				Persister: p,
				Processor: proc,
				Logger:    a.logger,
			}, nil)

			spinner := getSpinner("Uploading images...")
			_, err = session.Update(ctx, content)
			spinner.Finish()
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			result, err := session.Save(ctx)
			if bar != nil {
				bar.Finish()
				fmt.Fprintln(out)
			}
			if err != nil {
				return err
			}

			color.New(color.FgCyan).Fprintf(out, "Entry %s: %d image(s), %d tag(s)\n",
				result.EntryID, len(result.ImageIDs), len(result.TagIDs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "HTML document to save (- for stdin)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "treat the document as markdown")
	cmd.Flags().StringVar(&title, "title", "", "entry title (defaults to the file name)")
	cmd.Flags().StringVar(&userID, "user", "", "user id stored on the entry")
	cmd.Flags().StringVar(&entryID, "entry", "", "document id stored on the entry")
	cmd.Flags().StringVar(&rawTags, "tags", "", "delimited tag names")
	cmd.MarkFlagRequired("file")
	return cmd
}

func scanCmd() *cobra.Command {
	var (
		file     string
		markdown bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List the images referenced by a document",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := loadDocument(file, markdown)
			if err != nil {
				return err
			}

			refs, err := scanner.Scan(content)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(refs) == 0 {
				fmt.Fprintln(out, "No images found")
				return nil
			}
			for _, ref := range refs {
				kind := color.GreenString("%-8s", ref.Kind)
				if ref.Kind == models.ImageEmbedded {
					kind = color.YellowString("%-8s", ref.Kind)
				}
				fmt.Fprintf(out, "%3d  %s  %s\n", ref.Index+1, kind, truncate(ref.Src, 80))
			}

			embedded := len(scanner.Embedded(refs))
			fmt.Fprintf(out, "\n%d image(s), %d embedded\n", len(refs), embedded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "HTML document to scan (- for stdin)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "treat the document as markdown")
	cmd.MarkFlagRequired("file")
	return cmd
}

func tagCmd() *cobra.Command {
	var (
		entryID string
		rawTags string
	)

	cmd := &cobra.Command{
		Use:   "tag",
		Short: "Add tags to an existing entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(false)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.store(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			r := tags.NewWithConfig(st, tags.ReconcilerConfig{
				Delimiter: a.config.Editor.TagDelimiter,
				Logger:    a.logger,
			})

			result, err := r.ReconcileRecord(ctx, rawTags, entryID)
			out := cmd.OutOrStdout()
			if result != nil {
				for _, skipped := range result.Skipped {
					color.New(color.FgYellow).Fprintf(out, "! %v\n", skipped)
				}
			}
			if err != nil {
				return err
			}

			color.New(color.FgGreen).Fprintf(out, "✓ Entry %s has %d tag(s)\n", entryID, len(result.TagIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&entryID, "entry", "", "entry record id")
	cmd.Flags().StringVar(&rawTags, "tags", "", "delimited tag names")
	cmd.MarkFlagRequired("entry")
	cmd.MarkFlagRequired("tags")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the editor host bridge over websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(true)
			if err != nil {
				return err
			}
			config := serverConfig(a.config, addr)

			st, err := a.store(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			up, err := a.uploader()
			if err != nil {
				return err
			}

			srv, err := server.NewWSServer(config, server.Deps{
				Uploader: up,
				Store:    st,
				Logger:   a.logger,
			})
			if err != nil {
				return err
			}

			color.Cyan("Editor bridge listening on %s", config.Addr)
			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "server address (defaults to server.addr)")
	return cmd
}

func serverConfig(cfg *cfgPkg.Config, addr string) server.Config {
	if addr == "" {
		addr = cfg.Server.Addr
	}
	return server.Config{
		Addr:           addr,
		TagDelimiter:   cfg.Editor.TagDelimiter,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
}

// loadDocument reads an HTML document, converting it first when it is markdown.
func loadDocument(path string, markdown bool) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	if !markdown {
		return string(data), nil
	}
	p := processor.NewWithConfig(processor.ProcessorConfig{})
	return p.FromMarkdown(string(data))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
