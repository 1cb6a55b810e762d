// Package importer bulk-loads cards into a deck from a spreadsheet.
//
// Column A is the front and column B the back. An optional first row
// reading "front","back" is treated as a header, and rows with both cells
// blank are skipped. Cards are appended after the deck's existing cards.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/store"
	"github.com/xuri/excelize/v2"
)

// Format is the file format of an import.
type Format string

// Supported formats.
const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	// ErrUnsupportedFormat is returned for a file that is neither xlsx nor csv.
	ErrUnsupportedFormat = errors.New("unsupported import format")

	// ErrEmptyWorkbook is returned for a workbook without sheets.
	ErrEmptyWorkbook = errors.New("workbook has no sheets")
)

// FormatFromFilename picks the format from a file extension.
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// Result summarizes an import.
type Result struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// Importer creates cards from spreadsheet rows.
type Importer struct {
	cards  store.CardRepository
	logger *slog.Logger
}

// New creates an Importer.
func New(cards store.CardRepository, logger *slog.Logger) *Importer {
	if cards == nil {
		panic("cards cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		cards:  cards,
		logger: logger.With(slog.String("component", "importer")),
	}
}

// Import reads r in the given format and appends a card to deckID for each
// row. A row that cannot be stored is reported in Result.Errors and the
// import goes on; a missing deck aborts it.
func (im *Importer) Import(ctx context.Context, deckID uuid.UUID, r io.Reader, format Format) (*Result, error) {
	log := logger.FromContextOrDefault(ctx, im.logger)

	var (
		rows [][]string
		err  error
	)
	switch format {
	case FormatXLSX:
		rows, err = readWorkbook(r)
	case FormatCSV:
		rows, err = readCSV(r)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{Errors: []string{}}
	for i, row := range rows {
		front, back := cell(row, 0), cell(row, 1)
		if i == 0 && isHeader(front, back) {
			continue
		}
		result.Processed++

		if domain.IsBlank(front) && domain.IsBlank(back) {
			result.Skipped++
			continue
		}

		_, err := im.cards.CreateCard(ctx, domain.Draft{DeckID: deckID, Front: front, Back: back})
		switch {
		case err == nil:
			result.Created++
		case errors.Is(err, store.ErrDeckNotFound):
			return result, err
		default:
			result.Skipped++
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %v", i+1, err))
		}
	}

	log.Info("import finished",
		slog.String("deck_id", deckID.String()),
		slog.Int("created", result.Created),
		slog.Int("skipped", result.Skipped))
	return result, nil
}

func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return rows, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func isHeader(front, back string) bool {
	return strings.EqualFold(front, "front") && strings.EqualFold(back, "back")
}
