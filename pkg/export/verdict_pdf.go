package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// VerdictDocument is the printable content of a defense record (procès-verbal).
type VerdictDocument struct {
	VerdictID     string
	SessionLabel  string
	AcademicYear  string
	RoomName      string
	Date          time.Time
	StartTime     string
	EndTime       string
	Candidates    []VerdictCandidate
	Members       []VerdictMember
	FinalScore    float64
	Mention       string
	Observations  string
	Appreciations string
	RevisionText  string
	Seal          string
	FinalizedAt   time.Time
}

// VerdictCandidate is a candidate line of the record.
type VerdictCandidate struct {
	Name    string
	Program string
	Thesis  string
}

// VerdictMember is a committee line of the record with its sign-off time, if any.
type VerdictMember struct {
	Name       string
	Role       string
	ApprovedAt *time.Time
}

// VerdictRenderer lays out finalized verdicts as a single-page PDF record.
type VerdictRenderer struct {
	institution string
}

// NewVerdictRenderer returns a renderer printing institution in the header.
func NewVerdictRenderer(institution string) *VerdictRenderer {
	return &VerdictRenderer{institution: institution}
}

// Render produces the PDF bytes for doc.
func (r *VerdictRenderer) Render(doc VerdictDocument) ([]byte, error) {
	if doc.VerdictID == "" {
		return nil, fmt.Errorf("verdict id is required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle("Defense record "+doc.VerdictID, true)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if r.institution != "" {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(r.institution), "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "B", 15)
	pdf.CellFormat(0, 10, "THESIS DEFENSE RECORD", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Session %s - %s", doc.SessionLabel, doc.AcademicYear)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	keyValue := func(label, value string) {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 7, label, "", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 7, tr(value), "", "", false)
	}
	keyValue("Date", doc.Date.Format("2006-01-02"))
	keyValue("Time", doc.StartTime+" - "+doc.EndTime)
	keyValue("Room", doc.RoomName)
	pdf.Ln(2)

	section := func(title string) {
		pdf.SetFont("Arial", "B", 11)
		pdf.SetFillColor(235, 235, 235)
		pdf.CellFormat(0, 8, title, "", 1, "", true, 0, "")
	}

	section("Candidates")
	pdf.SetFont("Arial", "", 10)
	for _, c := range doc.Candidates {
		line := c.Name + " (" + c.Program + ")"
		if c.Thesis != "" {
			line += ": " + c.Thesis
		}
		pdf.MultiCell(0, 6, tr(line), "", "", false)
	}
	pdf.Ln(2)

	section("Committee")
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(80, 7, "Member", "1", 0, "", false, 0, "")
	pdf.CellFormat(50, 7, "Role", "1", 0, "", false, 0, "")
	pdf.CellFormat(50, 7, "Approved at", "1", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, m := range doc.Members {
		approved := "-"
		if m.ApprovedAt != nil {
			approved = m.ApprovedAt.UTC().Format("2006-01-02 15:04 MST")
		}
		pdf.CellFormat(80, 7, tr(m.Name), "1", 0, "", false, 0, "")
		pdf.CellFormat(50, 7, m.Role, "1", 0, "", false, 0, "")
		pdf.CellFormat(50, 7, approved, "1", 1, "", false, 0, "")
	}
	pdf.Ln(2)

	section("Decision")
	keyValue("Final score", fmt.Sprintf("%.2f / 20", doc.FinalScore))
	keyValue("Mention", doc.Mention)
	keyValue("Observations", doc.Observations)
	keyValue("Appreciations", doc.Appreciations)
	if doc.RevisionText != "" {
		keyValue("Corrections", doc.RevisionText)
	}
	pdf.Ln(4)

	pdf.SetFont("Courier", "", 7)
	if !doc.FinalizedAt.IsZero() {
		pdf.CellFormat(0, 5, "Finalized "+doc.FinalizedAt.UTC().Format(time.RFC3339), "", 1, "", false, 0, "")
	}
	if doc.Seal != "" {
		pdf.CellFormat(0, 5, "Seal blake2b-256 "+doc.Seal, "", 1, "", false, 0, "")
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render verdict pdf: %w", err)
	}
	return buf.Bytes(), nil
}
