package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

func TestReportService_ProjectsWorkbook(t *testing.T) {
	store := newMemStore()
	for i := 0; i < models.MaxPageLimit+5; i++ {
		store.seed(models.StageSarpanch, models.StatusPending)
	}
	approved := store.seed(models.StageAdmin, models.StatusApproved)
	approved.Budget.Utilized = 150050

	svc := NewReportService(memProjectRepo{store}, zap.NewNop()).(*reportService)
	svc.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	f, name, err := svc.ProjectsWorkbook(context.Background(), models.ProjectFilter{})
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, "projects_20261019.xlsx", name)

	rows, err := f.GetRows(reportSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	// header + every project across pages + summary
	require.Len(t, rows, 1+models.MaxPageLimit+6+1)
	assert.Equal(t, projectReportHeaders, rows[0])

	summary := rows[len(rows)-1]
	assert.Equal(t, "Total", summary[0])
	assert.Equal(t, "206 projects", summary[1])

	status := models.StatusApproved
	f2, _, err := svc.ProjectsWorkbook(context.Background(), models.ProjectFilter{Status: &status})
	require.NoError(t, err)
	defer f2.Close()
	rows, err = f2.GetRows(reportSheet, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "approved", rows[1][4])
	assert.Equal(t, "1500.5", rows[1][7])
}

func TestReportService_InvalidStatus(t *testing.T) {
	svc := NewReportService(memProjectRepo{newMemStore()}, zap.NewNop())
	bogus := models.WorkflowStatus("archived")
	_, _, err := svc.ProjectsWorkbook(context.Background(), models.ProjectFilter{Status: &bogus})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
