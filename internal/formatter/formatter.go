// package formatter renders client and contract records as reports and exports clients to CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/clientbook/internal/models"
	"github.com/desertthunder/clientbook/internal/shared"
)

// View selects how clients appear in a report.
type View string

const (
	ViewShort View = "short"
	ViewFull  View = "full"
)

// ParseView maps "full" to [ViewFull] and everything else to [ViewShort].
func ParseView(s string) View {
	if strings.EqualFold(strings.TrimSpace(s), string(ViewFull)) {
		return ViewFull
	}
	return ViewShort
}

// ReportOpts configures [RenderReport].
type ReportOpts struct {
	View   View
	Styled bool // colorize with the lipgloss palette
}

// RenderReport summarizes a tolerant load: a header with both counts, the loaded clients, then the failures.
func RenderReport(ok []*models.Client, errs []models.RecordError, opts ReportOpts) string {
	p := painter{styled: opts.Styled}
	lines := []string{p.Title(fmt.Sprintf("Loaded clients: %d; errors: %d", len(ok), len(errs)))}
	if len(ok) == 0 && len(errs) == 0 {
		lines = append(lines, p.Help("(no records)"))
	}

	if len(ok) > 0 {
		lines = append(lines, p.OK("Loaded:"))
		for _, c := range ok {
			if opts.View == ViewFull {
				lines = append(lines, fmt.Sprintf("- id=%s:\n%s", displayID(c), c.FullString()))
			} else {
				lines = append(lines, fmt.Sprintf("- id=%s: %s", displayID(c), c))
			}
		}
	}

	if len(errs) > 0 {
		lines = append(lines, p.Err("Errors:"))
		for _, e := range errs {
			lines = append(lines, fmt.Sprintf("- %s: %s: %s", p.Warn(e.Hint()), e.ErrorType, e.Message))
		}
	}

	return strings.Join(lines, "\n")
}

// RenderNotes formats lookup notes, one per line.
func RenderNotes(notes models.Notes, styled bool) string {
	p := painter{styled: styled}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("%s: %s", p.Warn(n.ErrorType), n.Message))
	}
	return strings.Join(lines, "\n")
}

func displayID(c *models.Client) string {
	if !c.HasID() {
		return "-"
	}
	return strconv.FormatInt(c.ID(), 10)
}

// ExportToCSV converts clients to CSV with a header row of the persisted field names.
func ExportToCSV(clients []*models.Client) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := append([]string{models.FieldID}, models.Fields...)
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range clients {
		id := ""
		if c.HasID() {
			id = strconv.FormatInt(c.ID(), 10)
		}
		record := []string{
			id,
			c.LastName(),
			c.FirstName(),
			c.MiddleName(),
			c.PassportSeries(),
			c.PassportNumber(),
			c.BirthDate(),
			c.Phone(),
			c.Email(),
			c.Address(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders clients as a Markdown table under title.
func ExportToMarkdown(clients []*models.Client, title string) ([]byte, error) {
	var buf bytes.Buffer

	if title != "" {
		buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	}
	buf.WriteString(fmt.Sprintf("**Clients**: %d\n\n", len(clients)))

	buf.WriteString("| id | Name | Birth date | Passport | Phone | Email |\n")
	buf.WriteString("|---:|------|------------|----------|-------|-------|\n")
	for _, c := range clients {
		name := strings.TrimSpace(c.LastName() + " " + c.Initials())
		buf.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %s |\n",
			displayID(c), mdEscape(name), c.BirthDate(), c.Passport(), c.Phone(), mdEscape(c.Email())))
	}

	return buf.Bytes(), nil
}

func mdEscape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// ExportToText writes one delimited line per client, id first.
func ExportToText(clients []*models.Client, sep string) ([]byte, error) {
	var buf bytes.Buffer
	for _, c := range clients {
		buf.WriteString(c.Delimited(sep))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ExportShortToText writes a numbered list of short views.
func ExportShortToText(shorts []*models.ClientShort) ([]byte, error) {
	var buf bytes.Buffer
	for i, s := range shorts {
		id := "-"
		if s.HasID() {
			id = strconv.FormatInt(s.ID(), 10)
		}
		buf.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, id, s))
	}
	return buf.Bytes(), nil
}

// ExportContractsToText writes a numbered list of contracts.
func ExportContractsToText(contracts []*models.Contract) []byte {
	var buf bytes.Buffer
	for i, c := range contracts {
		fmt.Fprintf(&buf, "%d. [%d] %s\n", i+1, c.ID(), c)
	}
	return buf.Bytes()
}

// Export formats.
const (
	FormatCSV      = "csv"
	FormatMarkdown = "md"
	FormatText     = "txt"
)

// WriteExport writes clients to path in format (csv, md, txt) and returns the path written.
//
// Defaults to clients.{format} as the filename.
func WriteExport(clients []*models.Client, format, path, sep string) (string, error) {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(format) {
	case FormatCSV:
		data, err = ExportToCSV(clients)
	case FormatMarkdown, "markdown":
		format = FormatMarkdown
		data, err = ExportToMarkdown(clients, "Clients")
	case FormatText, "text":
		format = FormatText
		data, err = ExportToText(clients, sep)
	default:
		return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if path == "" {
		path = "clients." + strings.ToLower(format)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}
