package pdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// PDFGenerator renders adherence reports
type PDFGenerator struct {
	logger *zap.Logger
}

// NewPDFGenerator creates a new PDFGenerator
func NewPDFGenerator(logger *zap.Logger) *PDFGenerator {
	return &PDFGenerator{
		logger: logger,
	}
}

// ReportData contains everything shown on an adherence report
type ReportData struct {
	UserName    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Window      model.AdherenceWindow
	Streak      int
	Medications []model.Medication
	Doses       []model.DoseInstance
	GeneratedAt time.Time
}

// Generate creates a PDF report from the provided data
func (g *PDFGenerator) Generate(data *ReportData) ([]byte, error) {
	g.logger.Info("generating adherence report PDF",
		zap.String("user_name", data.UserName),
		zap.Time("period_start", data.PeriodStart),
	)

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	g.addTitle(pdf, data)
	g.addSummary(pdf, data)
	g.addMedicationBreakdown(pdf, data.Medications, data.Doses)
	g.addMissedDoses(pdf, data.Doses)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		g.logger.Error("failed to generate PDF", zap.Error(err))
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	g.logger.Info("adherence report PDF generated",
		zap.Int("size_bytes", buf.Len()),
	)

	return buf.Bytes(), nil
}

func (g *PDFGenerator) addTitle(pdf *gofpdf.Fpdf, data *ReportData) {
	generated := data.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}

	pdf.SetFont("Arial", "B", 20)
	pdf.CellFormat(0, 10, "Medication Adherence Report", "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "", 12)
	pdf.CellFormat(0, 8, fmt.Sprintf("Patient: %s", data.UserName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Period: %s to %s",
		data.PeriodStart.Format("2006-01-02"),
		data.PeriodEnd.AddDate(0, 0, -1).Format("2006-01-02")), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 8, fmt.Sprintf("Generated: %s", generated.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(10)
}

func (g *PDFGenerator) addSectionHeader(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(0, 10, title, "", 1, "L", true, 0, "")
	pdf.Ln(3)
	pdf.SetFont("Arial", "", 10)
}

func (g *PDFGenerator) addSummary(pdf *gofpdf.Fpdf, data *ReportData) {
	g.addSectionHeader(pdf, "Summary")

	w := data.Window
	pdf.CellFormat(0, 6, fmt.Sprintf("Adherence: %.1f%%", w.Percentage), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Scheduled doses: %d", w.Scheduled), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Taken: %d", w.Taken), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Missed: %d", w.Missed), "", 1, "L", false, 0, "")
	if w.Pending > 0 {
		pdf.CellFormat(0, 6, fmt.Sprintf("Not yet resolved: %d", w.Pending), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(0, 6, fmt.Sprintf("Current streak: %d days", data.Streak), "", 1, "L", false, 0, "")
	pdf.Ln(5)
}

func (g *PDFGenerator) addMedicationBreakdown(pdf *gofpdf.Fpdf, medications []model.Medication, doses []model.DoseInstance) {
	g.addSectionHeader(pdf, "By Medication")

	if len(medications) == 0 {
		pdf.CellFormat(0, 8, "No medications recorded.", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	type tally struct{ taken, total int }
	counts := make(map[string]*tally)
	for _, d := range doses {
		t, ok := counts[d.MedicationID]
		if !ok {
			t = &tally{}
			counts[d.MedicationID] = t
		}
		t.total++
		if d.Status == model.DoseStatusTaken {
			t.taken++
		}
	}

	for _, med := range medications {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, fmt.Sprintf("%s %s", med.Name, med.Dosage), "", 1, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 5, fmt.Sprintf("  Times: %v", med.Times), "", 1, "L", false, 0, "")
		if t, ok := counts[med.ID]; ok {
			pdf.CellFormat(0, 5, fmt.Sprintf("  Taken %d of %d", t.taken, t.total), "", 1, "L", false, 0, "")
		} else {
			pdf.CellFormat(0, 5, "  No doses due in this period", "", 1, "L", false, 0, "")
		}
		pdf.Ln(2)
	}
	pdf.Ln(5)
}

func (g *PDFGenerator) addMissedDoses(pdf *gofpdf.Fpdf, doses []model.DoseInstance) {
	g.addSectionHeader(pdf, "Missed Doses")

	found := false
	for _, d := range doses {
		if d.Status != model.DoseStatusMissed && d.Status != model.DoseStatusArchived {
			continue
		}
		found = true
		pdf.CellFormat(0, 5, fmt.Sprintf("%s  %s %s",
			d.ScheduledTime.Format("Mon 2006-01-02 15:04"), d.MedicationName, d.Dosage), "", 1, "L", false, 0, "")
	}

	if !found {
		pdf.CellFormat(0, 8, "No missed doses in this period.", "", 1, "L", false, 0, "")
	}
	pdf.Ln(5)
}
