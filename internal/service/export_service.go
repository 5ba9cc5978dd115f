package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scholarbridge-api/internal/models"
	appErrors "github.com/noah-isme/scholarbridge-api/pkg/errors"
	"github.com/noah-isme/scholarbridge-api/pkg/export"
)

type activityLister interface {
	List(ctx context.Context, q models.Query) ([]models.Activity, error)
}

// ExportFile is a rendered export ready to be sent to the client.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// ExportService renders a student's activity records as CSV or PDF.
type ExportService struct {
	activities activityLister
	maxRows    int
	logger     *zap.Logger
	now        func() time.Time
}

func NewExportService(activities activityLister, maxRows int, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRows <= 0 {
		maxRows = 5000
	}
	return &ExportService{activities: activities, maxRows: maxRows, logger: logger, now: time.Now}
}

// ExportActivities renders the owner's activities, newest date first.
func (s *ExportService) ExportActivities(ctx context.Context, ownerID, rawFormat string) (*ExportFile, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	q := models.Query{Collection: models.CollectionActivities, Limit: s.maxRows}.
		Where("userId", models.OpEq, ownerID).
		OrderBy("date", true)
	items, err := s.activities.List(ctx, q)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activities")
	}

	now := s.now().UTC()
	table := activityTable(items)
	var buf bytes.Buffer
	switch format {
	case export.FormatPDF:
		err = export.WritePDF(&buf, table, now)
	default:
		err = export.WriteCSV(&buf, table)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("activities exported",
		zap.String("user_id", ownerID),
		zap.String("format", string(format)),
		zap.Int("rows", len(items)))
	return &ExportFile{
		Name:        fmt.Sprintf("activity-records-%s%s", now.Format("20060102"), format.Extension()),
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	}, nil
}

func activityTable(items []models.Activity) export.Table {
	table := export.Table{
		Title: "Activity records",
		Columns: []export.Column{
			{Name: "Date", Width: 28},
			{Name: "Type", Width: 32},
			{Name: "Title", Width: 70},
			{Name: "Description"},
		},
		Rows: make([][]string, 0, len(items)),
	}
	for _, a := range items {
		description := ""
		if a.Description != nil {
			description = *a.Description
		}
		table.Rows = append(table.Rows, []string{a.Date.String(), string(a.Type), a.Title, description})
	}
	return table
}
