package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/internal/render"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

const (
	defaultJSONIndent = 2
	summaryLength     = 60
	notAvailable      = "N/A"
	masked            = "***"
)

// outputFormat returns the configured format. Without one, a terminal gets
// a table and anything else gets JSON.
func outputFormat(cmd *cobra.Command) (string, error) {
	format := viper.GetString(keyOutput)

	if format == "" {
		format = constants.FormatJSON

		if file, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = constants.FormatTable
		}
	}

	switch format {
	case constants.FormatJSON, constants.FormatYAML, constants.FormatTable:
		return format, nil
	default:
		return "", fmt.Errorf("%w: %s", constants.ErrUnsupportedFormat, format)
	}
}

// writeOutput encodes value as JSON or YAML, or calls table for the table format.
func writeOutput(cmd *cobra.Command, value interface{}, table func(io.Writer) error) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	switch format {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")

		return encoder.Encode(value)
	case constants.FormatYAML:
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(defaultJSONIndent)

		defer func() { _ = encoder.Close() }()

		return encoder.Encode(value)
	default:
		return table(out)
	}
}

func renderTable(table *tablewriter.Table) error {
	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

func postsTable(posts []blog.Post) func(io.Writer) error {
	return func(w io.Writer) error {
		if len(posts) == 0 {
			_, _ = fmt.Fprintln(w, constants.ErrNothingToShow.Error())

			return nil
		}

		table := tablewriter.NewWriter(w)
		table.Header("ID", "Title", "Slug", "Published", "Publish Date", "Description")

		for _, post := range posts {
			publishDate := notAvailable
			if parsed, err := render.PublishDate(post); err == nil {
				publishDate = parsed.Format("2006-01-02 15:04")
			}

			_ = table.Append([]string{
				post.ID,
				post.Title,
				render.Slug(post),
				strconv.FormatBool(post.Published),
				publishDate,
				render.Summary(post.Description, summaryLength),
			})
		}

		return renderTable(table)
	}
}

func viewTable(view render.View) func(io.Writer) error {
	return func(w io.Writer) error {
		publishDate := notAvailable
		if !view.PublishDate.IsZero() {
			publishDate = view.PublishDate.Format("2006-01-02 15:04")
		}

		table := tablewriter.NewWriter(w)
		table.Header("Property", "Value")
		_ = table.Append([]string{"ID", view.ID})
		_ = table.Append([]string{"Title", view.Title})
		_ = table.Append([]string{"Slug", view.Slug})
		_ = table.Append([]string{"Published", strconv.FormatBool(view.Published)})
		_ = table.Append([]string{"Publish Date", publishDate})
		_ = table.Append([]string{"Featured Image", valueOrNA(view.FeaturedImage)})

		err := renderTable(table)
		if err != nil {
			return err
		}

		if view.DescriptionHTML != "" {
			_, _ = fmt.Fprintf(w, "\n%s", view.DescriptionHTML)
		}

		return nil
	}
}

func valueOrNA(value string) string {
	if value == "" {
		return notAvailable
	}

	return value
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}

	return masked
}
