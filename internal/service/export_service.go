package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/defense-jury-api/internal/dto"
	"github.com/noah-isme/defense-jury-api/pkg/export"
	appErrors "github.com/noah-isme/defense-jury-api/pkg/errors"
)

// Supported schedule export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

var scheduleHeaders = []string{"Date", "Start", "End", "Room", "Candidates", "Program", "President", "Rapporteur", "Examiner", "Observers", "Verdict"}

type scheduleSource interface {
	ListBySession(ctx context.Context, sessionID string) ([]dto.SittingDetail, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders a session's defense schedule.
type ExportService struct {
	sessions archiveSessionReader
	source   scheduleSource
	csv      csvRenderer
	pdf      pdfRenderer
	location *time.Location
	logger   *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(sessions archiveSessionReader, source scheduleSource, location *time.Location, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{sessions: sessions, source: source, csv: csv, pdf: pdf, location: location, logger: logger}
}

// Schedule renders every sitting of the session in the requested format.
func (s *ExportService) Schedule(ctx context.Context, sessionID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %s", format))
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, sessionLookupError(err)
	}
	details, err := s.source.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	dataset := s.buildDataset(details)

	var payload []byte
	contentType := "text/csv"
	switch format {
	case ExportFormatPDF:
		contentType = "application/pdf"
		subtitle := fmt.Sprintf("%s %s (%d sittings)", session.Level, session.AcademicYear, len(details))
		payload, err = s.pdf.Render(dataset, "Defense schedule "+session.Label, subtitle)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, wrapInternal(err, "failed to render schedule")
	}
	s.logger.Debug("schedule exported", zap.String("session_id", sessionID), zap.String("format", format), zap.Int("sittings", len(details)))
	return &ExportFile{
		Filename:    fmt.Sprintf("defenses_%s_%s.%s", sanitizeFilename(session.Label), sanitizeFilename(session.AcademicYear), format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func (s *ExportService) buildDataset(details []dto.SittingDetail) export.Dataset {
	rows := make([]map[string]string, 0, len(details))
	for _, d := range details {
		names := make(map[string]string, len(d.Evaluators))
		for _, e := range d.Evaluators {
			names[e.ID] = e.Name
		}
		roles := make(map[string][]string)
		for _, m := range d.Members {
			name := names[m.EvaluatorID]
			if name == "" {
				name = m.EvaluatorID
			}
			roles[string(m.Role)] = append(roles[string(m.Role)], name)
		}
		candidates := make([]string, 0, len(d.Candidates))
		program := ""
		for _, c := range d.Candidates {
			candidates = append(candidates, c.Name)
			program = c.Program
		}
		verdict := ""
		if d.Verdict != nil {
			verdict = string(d.Verdict.Status)
			if d.Verdict.Mention != "" {
				verdict += " " + d.Verdict.Mention
			}
		}
		start := d.StartsAt.In(s.location)
		rows = append(rows, map[string]string{
			"Date":       start.Format("2006-01-02"),
			"Start":      start.Format("15:04"),
			"End":        d.EndsAt.In(s.location).Format("15:04"),
			"Room":       d.RoomName,
			"Candidates": strings.Join(candidates, "; "),
			"Program":    program,
			"President":  strings.Join(roles["PRESIDENT"], "; "),
			"Rapporteur": strings.Join(roles["RAPPORTEUR"], "; "),
			"Examiner":   strings.Join(roles["EXAMINER"], "; "),
			"Observers":  strings.Join(roles["SUPERVISOR_OBSERVER"], "; "),
			"Verdict":    verdict,
		})
	}
	return export.Dataset{Headers: scheduleHeaders, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
