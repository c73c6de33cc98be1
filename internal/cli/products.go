package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/birbparty/shelf/sdk"
)

func queryFlags(cmd *cobra.Command, q *sdk.ProductQuery) {
	cmd.Flags().IntVar(&q.Page, "page", 0, "zero-based page")
	cmd.Flags().IntVar(&q.PageSize, "page-size", 0, "products per page (backend default when 0)")
	cmd.Flags().StringVarP(&q.Keyword, "keyword", "k", "", "filter by keyword")
}

func newListCmd(app *App) *cobra.Command {
	var q sdk.ProductQuery
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List one page of the catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Client.ListProducts(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printProducts(cmd.OutOrStdout(), result)
		},
	}
	queryFlags(cmd, &q)
	return cmd
}

func newSearchCmd(app *App) *cobra.Command {
	var q sdk.ProductQuery
	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search the public catalogue",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				q.Keyword = args[0]
			}
			result, err := app.Client.SearchProducts(cmd.Context(), q)
			if err != nil {
				return err
			}
			return printProducts(cmd.OutOrStdout(), result)
		},
	}
	queryFlags(cmd, &q)
	return cmd
}

func newCreateCmd(app *App) *cobra.Command {
	var p sdk.Product
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := app.Client.CreateProduct(cmd.Context(), p)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), created)
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "product name")
	cmd.Flags().StringVar(&p.Category, "category", "", "category")
	cmd.Flags().Float64Var(&p.Price, "price", 0, "unit price")
	cmd.Flags().IntVar(&p.Stock, "stock", 0, "units in stock")
	cmd.Flags().StringVar(&p.Description, "description", "", "description")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID [ID...]",
		Short: "Remove one or more products",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]sdk.ProductID, len(args))
			for i, arg := range args {
				ids[i] = sdk.ProductID(arg)
			}

			var err error
			if len(ids) == 1 {
				err = app.Client.DeleteProduct(cmd.Context(), ids[0])
			} else {
				err = app.Client.BatchDeleteProducts(cmd.Context(), ids)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d product(s)\n", len(ids))
			return nil
		},
	}
}

func newExportCmd(app *App) *cobra.Command {
	var output string
	var archive bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the catalogue export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := app.Client.ExportProducts(cmd.Context())
			if err != nil {
				return err
			}

			path := file.Filename
			if output != "" {
				path = output
				if info, statErr := os.Stat(output); statErr == nil && info.IsDir() {
					path = filepath.Join(output, file.Filename)
				}
			}
			if err := os.WriteFile(path, file.Data, 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%d bytes)\n", path, len(file.Data))

			if !archive {
				return nil
			}
			archiver, err := openArchive()
			if err != nil {
				return err
			}
			key, err := archiver.Upload(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Archived as %s\n", key)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file or directory to write (default: server file name)")
	cmd.Flags().BoolVar(&archive, "archive", false, "also upload the export to the archive bucket")
	return cmd
}

func newImportCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Upload a catalogue file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			result, err := app.Client.ImportProducts(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func printProducts(w io.Writer, result sdk.ListResult[sdk.Product]) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range result.Items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.Name, p.Category, strconv.FormatFloat(p.Price, 'f', 2, 64), p.Stock)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d product(s)\n", len(result.Items), result.Total)
	return err
}

func printJSON(w io.Writer, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(raw))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}
