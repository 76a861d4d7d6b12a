package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fieldmed/medrep-api/internal/models"
	appErrors "github.com/fieldmed/medrep-api/pkg/errors"
	"github.com/fieldmed/medrep-api/pkg/export"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type exportVisitSource interface {
	List(ctx context.Context, filter models.VisitFilter) ([]models.VisitReport, int, error)
}

// ExportFormat names a supported rendering format.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResult carries a rendered document ready for download.
type ExportResult struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders filtered visit listings into downloadable
// documents. Exports are generated inline per request; nothing is
// persisted server-side.
type ExportService struct {
	visits  exportVisitSource
	csv     csvRenderer
	pdf     pdfRenderer
	maxRows int
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(visits exportVisitSource, csv csvRenderer, pdf pdfRenderer, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if maxRows <= 0 {
		maxRows = 10000
	}
	return &ExportService{visits: visits, csv: csv, pdf: pdf, maxRows: maxRows, logger: logger}
}

// Visits renders the filtered visit list in the requested format.
func (s *ExportService) Visits(ctx context.Context, filter models.VisitFilter, format ExportFormat, actor *models.JWTClaims) (*ExportResult, error) {
	if actor != nil && actor.Role == models.RoleMR {
		filter.MRID = actor.UserID
	}
	filter.Page = 1
	filter.PageSize = s.maxRows

	visits, _, err := s.visits.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visits for export")
	}

	dataset := buildVisitDataset(visits)
	timestamp := time.Now().UTC().Format("20060102_150405")

	switch format {
	case ExportFormatCSV:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("visits_%s.csv", timestamp),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case ExportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Visit Reports")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("visits_%s.pdf", timestamp),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func buildVisitDataset(visits []models.VisitReport) export.Dataset {
	rows := make([]map[string]string, 0, len(visits))
	for _, visit := range visits {
		var orderTotal float64
		for _, order := range visit.Orders {
			orderTotal += order.TotalAmount
		}
		products := make([]string, 0, len(visit.ProductsDiscussed))
		for _, p := range visit.ProductsDiscussed {
			products = append(products, p.Name)
		}
		rows = append(rows, map[string]string{
			"Visit ID":    visit.ID,
			"MR":          visit.MRName,
			"Doctor":      visit.DoctorName,
			"Date":        visit.VisitDate.UTC().Format("2006-01-02"),
			"Status":      string(visit.Status),
			"Products":    strings.Join(products, "; "),
			"Orders":      fmt.Sprintf("%d", len(visit.Orders)),
			"Order Value": fmt.Sprintf("%.2f", orderTotal),
			"Notes":       visit.Notes,
		})
	}
	return export.Dataset{
		Headers: []string{"Visit ID", "MR", "Doctor", "Date", "Status", "Products", "Orders", "Order Value", "Notes"},
		Rows:    rows,
	}
}
