package service

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/substitution"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/export"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

type committedReader interface {
	LoadCommitted(ctx context.Context, date string) (*models.CommittedSet, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportResult is a rendered substitution sheet.
type ExportResult struct {
	Filename     string
	ContentType  string
	RelativePath string
	Data         []byte
}

// ExportService renders committed assignments of a date for printing.
type ExportService struct {
	store   committedReader
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	logger  *zap.Logger
}

// NewExportService constructs an ExportService. storage may be nil, in which
// case rendered files are only returned.
func NewExportService(store committedReader, storage fileStorage, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{store: store, storage: storage, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the assignments of date in format (csv by default).
func (s *ExportService) Export(ctx context.Context, date, format string) (*ExportResult, error) {
	day, err := substitution.DayOf(date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}

	set, err := s.store.LoadCommitted(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	dataset := BuildDataset(date, day, set)

	result := &ExportResult{Filename: fmt.Sprintf("substitutes-%s.%s", date, format)}
	switch format {
	case FormatCSV:
		result.ContentType = "text/csv"
		result.Data, err = s.csv.Render(dataset)
	case FormatPDF:
		result.ContentType = "application/pdf"
		result.Data, err = s.pdf.Render(dataset)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %s", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	if s.storage != nil {
		rel, err := s.storage.Save(path.Join("exports", result.Filename), result.Data)
		if err != nil {
			s.logger.Warn("failed to store export", zap.String("date", date), zap.Error(err))
		} else {
			result.RelativePath = rel
		}
	}
	return result, nil
}

// BuildDataset lays out assignments ordered by period and class, with the
// committed warnings as notes.
func BuildDataset(date, day string, set *models.CommittedSet) export.Dataset {
	data := export.Dataset{
		Title:   fmt.Sprintf("Substitute assignments %s (%s)", date, day),
		Headers: []string{"Period", "Class", "Absent teacher", "Substitute", "Phone", "Fallback"},
	}
	if set == nil {
		return data
	}
	assignments := append([]models.Assignment(nil), set.Assignments...)
	sort.SliceStable(assignments, func(i, j int) bool {
		if assignments[i].Period == assignments[j].Period {
			return assignments[i].ClassName < assignments[j].ClassName
		}
		return assignments[i].Period < assignments[j].Period
	})
	for _, a := range assignments {
		fallback := ""
		if a.Fallback {
			fallback = "yes"
		}
		data.Append(strconv.Itoa(a.Period), a.ClassName, a.OriginalTeacher, a.Substitute, a.SubstitutePhone, fallback)
	}
	data.Notes = append(data.Notes, set.Warnings...)
	return data
}
