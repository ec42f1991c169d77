package services

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// MaxReportRows caps the number of projects written to one export.
const MaxReportRows = 10000

const reportSheet = "Projects"

var projectReportHeaders = []string{
	"Project Code", "Project Name", "District", "Village", "Status",
	"Total (INR)", "Allocated (INR)", "Utilized (INR)", "Created",
}

// ReportService builds downloadable reports.
type ReportService interface {
	// ProjectsWorkbook exports the projects matching filter, ignoring its
	// Limit and Offset, and returns the workbook with a suggested filename.
	ProjectsWorkbook(ctx context.Context, filter models.ProjectFilter) (*excelize.File, string, error)
}

type reportService struct {
	projects repositories.ProjectRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService creates a new ReportService.
func NewReportService(projects repositories.ProjectRepository, logger *zap.Logger) ReportService {
	return &reportService{
		projects: projects,
		logger:   logger.Named("reports"),
		now:      time.Now,
	}
}

var _ ReportService = (*reportService)(nil)

func (s *reportService) collect(ctx context.Context, filter models.ProjectFilter) ([]*models.Project, error) {
	filter.Limit = models.MaxPageLimit
	filter.Offset = 0

	var all []*models.Project
	for {
		page, total, err := s.projects.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < filter.Limit || len(all) >= total || len(all) >= MaxReportRows {
			break
		}
		filter.Offset += len(page)
	}
	if len(all) > MaxReportRows {
		all = all[:MaxReportRows]
	}
	return all, nil
}

func (s *reportService) ProjectsWorkbook(ctx context.Context, filter models.ProjectFilter) (*excelize.File, string, error) {
	if filter.Status != nil && !models.IsValidStatus(string(*filter.Status)) {
		return nil, "", fmt.Errorf("%w: unknown status %q", apperrors.ErrValidation, *filter.Status)
	}

	projects, err := s.collect(ctx, filter)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, "", fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("header style: %w", err)
	}
	moneyFmt := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFmt})
	if err != nil {
		return nil, "", fmt.Errorf("money style: %w", err)
	}

	if err := f.SetSheetRow(reportSheet, "A1", &projectReportHeaders); err != nil {
		return nil, "", fmt.Errorf("write header: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(projectReportHeaders))
	_ = f.SetCellStyle(reportSheet, "A1", lastCol+"1", headerStyle)

	var total, allocated, utilized int64
	for i, p := range projects {
		row := []any{
			p.Code,
			p.Name,
			p.DistrictName,
			p.VillageName,
			string(p.Status),
			rupees(p.Budget.Total),
			rupees(p.Budget.Allocated),
			rupees(p.Budget.Utilized),
			p.CreatedAt.Format("2006-01-02"),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(reportSheet, cell, &row); err != nil {
			return nil, "", fmt.Errorf("write row %d: %w", i+2, err)
		}
		total += p.Budget.Total
		allocated += p.Budget.Allocated
		utilized += p.Budget.Utilized
	}

	summaryRow := len(projects) + 2
	summary := []any{"Total", fmt.Sprintf("%d projects", len(projects)), "", "", "",
		rupees(total), rupees(allocated), rupees(utilized)}
	if err := f.SetSheetRow(reportSheet, fmt.Sprintf("A%d", summaryRow), &summary); err != nil {
		return nil, "", fmt.Errorf("write summary: %w", err)
	}
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	_ = f.SetCellStyle(reportSheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("%s%d", lastCol, summaryRow), boldStyle)
	_ = f.SetCellStyle(reportSheet, "F2", fmt.Sprintf("H%d", summaryRow-1), moneyStyle)

	widths := []float64{14, 36, 18, 18, 12, 16, 16, 16, 12}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(reportSheet, col, col, w)
	}

	s.logger.Debug("Built project report", zap.Int("rows", len(projects)))

	filename := fmt.Sprintf("projects_%s.xlsx", s.now().UTC().Format("20060102"))
	return f, filename, nil
}

// rupees converts paise to rupees for display.
func rupees(paise int64) float64 {
	return float64(paise) / 100
}
