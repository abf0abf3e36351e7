package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/clinic-dashboard/internal/models"
	appErrors "github.com/noah-isme/clinic-dashboard/pkg/errors"
	"github.com/noah-isme/clinic-dashboard/pkg/export"
)

// ExportFormat is a supported download format.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// ParseExportFormat accepts csv or pdf, defaulting to csv.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ExportCSV):
		return ExportCSV, nil
	case string(ExportPDF):
		return ExportPDF, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", raw))
	}
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	if f == ExportPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

type tableRenderer interface {
	Render(t export.Table) ([]byte, error)
}

// ExportService renders fetched list pages as CSV or PDF downloads.
type ExportService struct {
	csv tableRenderer
	pdf tableRenderer
	now func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers use the defaults.
func NewExportService(csv, pdf tableRenderer) *ExportService {
	if csv == nil {
		csv = export.CSV{BOM: true}
	}
	if pdf == nil {
		pdf = export.PDF{Footer: "Clinic dashboard export"}
	}
	return &ExportService{csv: csv, pdf: pdf, now: time.Now}
}

var userExportColumns = []export.Column{
	{Label: "ID", Weight: 0.5},
	{Label: "Username", Weight: 1.5},
	{Label: "Email", Weight: 2.5},
	{Label: "Phone", Weight: 1.5},
	{Label: "Role", Weight: 1.2},
	{Label: "Status"},
	{Label: "Created"},
}

// Users renders a page of users.
func (s *ExportService) Users(users []models.User, format ExportFormat) (*ExportFile, error) {
	table := export.Table{Title: "Clinic users", Columns: userExportColumns}
	for _, u := range users {
		status := "Active"
		if u.Blocked {
			status = "Blocked"
		}
		table.AddRow(strconv.Itoa(u.ID), u.Username, u.Email, u.Phone, string(u.RoleClinic), status, formatDate(u.CreatedAt))
	}
	return s.render(table, "users", format)
}

var analysisExportColumns = []export.Column{
	{Label: "ID", Weight: 0.5},
	{Label: "Patient", Weight: 1.5},
	{Label: "Email", Weight: 2.5},
	{Label: "Type"},
	{Label: "State"},
	{Label: "Created"},
}

// Analyses renders a page of analyses.
func (s *ExportService) Analyses(analyses []models.Analysis, format ExportFormat) (*ExportFile, error) {
	table := export.Table{Title: "Analyses", Columns: analysisExportColumns}
	for _, a := range analyses {
		var patient, email string
		if a.Patient != nil {
			patient, email = a.Patient.Username, a.Patient.Email
		}
		table.AddRow(strconv.Itoa(a.ID), patient, email, a.Type, a.State.Label(), formatDate(a.CreatedAt))
	}
	return s.render(table, "analyses", format)
}

func (s *ExportService) render(table export.Table, name string, format ExportFormat) (*ExportFile, error) {
	now := s.now().UTC()
	table.GeneratedAt = now
	var renderer tableRenderer
	switch format {
	case ExportCSV:
		renderer = s.csv
	case ExportPDF:
		renderer = s.pdf
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	content, err := renderer.Render(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", name, now.Format("20060102_150405"), format),
		ContentType: format.ContentType(),
		Content:     content,
	}, nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}
