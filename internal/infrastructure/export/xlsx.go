// Package export renders the review queue as a spreadsheet for offline
// auditing.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/fax-review-queue/internal/core/domain"
)

const sheetName = "Queue"

var queueHeader = []any{
	"ID", "Filename", "Status", "AI Category", "AI Confidence", "Final Category",
	"Urgent", "Priority", "Auto Approved", "Overridden", "Pages",
	"Received At", "Reviewed At", "Reviewed By", "Override Reason",
}

// WriteQueueXLSX writes one row per fax. Times are rendered in UTC.
func WriteQueueXLSX(w io.Writer, records []domain.FaxRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &queueHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(queueHeader))
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}

	for i := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := queueRow(&records[i])
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func queueRow(rec *domain.FaxRecord) []any {
	var confidence any = ""
	if rec.AIConfidence != nil {
		confidence = *rec.AIConfidence
	}
	return []any{
		rec.ID,
		rec.Filename,
		string(rec.Status),
		string(rec.AICategory),
		confidence,
		string(rec.FinalCategory),
		yesNo(rec.IsUrgent),
		rec.PriorityScore,
		yesNo(rec.AutoApproved),
		yesNo(rec.WasOverridden),
		rec.PageCount,
		formatTime(&rec.ReceivedAt),
		formatTime(rec.ReviewedAt),
		rec.ReviewedBy,
		rec.OverrideReason,
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
