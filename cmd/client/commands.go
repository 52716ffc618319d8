package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/PaulBabatuyi/WeShare/internal/client"
	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:3001"

// WriteCounter prints transfer progress as bytes pass through it.
type WriteCounter struct {
	Label string
	Total uint64
	Out   io.Writer
}

func (wc *WriteCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.Total += uint64(n)
	fmt.Fprintf(wc.Out, "\r%s", strings.Repeat(" ", 50))
	fmt.Fprintf(wc.Out, "\r%s... %s", wc.Label, humanize.Bytes(wc.Total))
	return n, nil
}

// NewRootCommand returns the weshare CLI with all subcommands attached.
func NewRootCommand(ctx context.Context, out io.Writer) *cobra.Command {
	var serverURL string

	rootCmd := &cobra.Command{
		Use:           "weshare",
		Short:         "Share files through a WeShare server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	def := defaultServer
	if v := os.Getenv("WESHARE_SERVER"); v != "" {
		def = v
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", def, "WeShare API base URL (env WESHARE_SERVER)")

	newClient := func() *client.Client { return client.New(serverURL, nil) }

	rootCmd.AddCommand(
		newUploadCommand(ctx, out, newClient),
		newListCommand(ctx, out, newClient),
		newDownloadCommand(ctx, out, newClient),
		newSendEmailCommand(ctx, out, newClient),
	)
	return rootCmd
}

func newUploadCommand(ctx context.Context, out io.Writer, newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:     "upload [file...]",
		Example: "$ weshare upload report.pdf photo.png",
		Short:   "Upload files and print the share link",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := make([]client.File, 0, len(args))
			for _, p := range args {
				f, err := os.Open(p)
				if err != nil {
					return err
				}
				defer f.Close()
				files = append(files, client.File{Name: filepath.Base(p), Content: f})
			}

			res, err := newClient().Upload(ctx, files, &WriteCounter{Label: "Uploading", Out: out})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Upload ID: %s\nLink: %s\n", res.ID, res.Link)
			return nil
		},
	}
}

func newListCommand(ctx context.Context, out io.Writer, newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list [upload-id]",
		Short: "List the files of an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := newClient().List(ctx, args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME\tSIZE\tTYPE")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.ID, f.Name, humanize.Bytes(uint64(f.Size)), f.ContentType)
			}
			return tw.Flush()
		},
	}
}

func newDownloadCommand(ctx context.Context, out io.Writer, newClient func() *client.Client) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "download [upload-id] [index]",
		Short: "Download one file of an upload",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[1])
			}

			p, err := newClient().Download(ctx, afero.NewOsFs(), args[0], index, dir,
				&WriteCounter{Label: "Downloading", Out: out})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Saved %s\n", p)
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "output", "o", ".", "directory to save into")
	return cmd
}

func newSendEmailCommand(ctx context.Context, out io.Writer, newClient func() *client.Client) *cobra.Command {
	return &cobra.Command{
		Use:     "send-email [email] [link]",
		Example: "$ weshare send-email friend@example.com http://localhost:3000/download/<id>",
		Short:   "Email a share link",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newClient().SendEmail(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintln(out, "Email sent")
			return nil
		},
	}
}
