package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

const auditSheet = "Audit Trail"

// AuditExporter renders an expense's combined audit history to a workbook
type AuditExporter struct {
	logger *zap.Logger
}

// NewAuditExporter creates an audit exporter
func NewAuditExporter(logger *zap.Logger) *AuditExporter {
	return &AuditExporter{logger: logger}
}

// row is one merged trail entry; the two log tables interleave by time
type row struct {
	at     time.Time
	kind   string // "status" or "field"
	detail string
	actor  string
	reason string
}

// Export writes the merged, time-ordered trail of one expense as an XLSX
// workbook and returns the serialized bytes
func (x *AuditExporter) Export(expenseID string, statusEntries []*expense.StatusLogEntry, fieldEntries []*expense.FieldChangeEntry) ([]byte, error) {
	rows := make([]row, 0, len(statusEntries)+len(fieldEntries))
	for _, e := range statusEntries {
		rows = append(rows, row{
			at:     e.ChangedAt,
			kind:   "status",
			detail: fmt.Sprintf("%s -> %s", e.OldStatus, e.NewStatus),
			actor:  e.ChangedBy,
			reason: e.Reason,
		})
	}
	for _, e := range fieldEntries {
		rows = append(rows, row{
			at:     e.ChangedAt,
			kind:   "field",
			detail: fmt.Sprintf("%s: %q -> %q (while %s)", e.FieldName, e.OldValue, e.NewValue, e.StatusAtTime),
			actor:  e.ChangedBy,
			reason: e.Reason,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].at.Before(rows[j].at) })

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(auditSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		x.logger.Warn("Failed to drop default sheet", zap.Error(err))
	}

	x.setCell(f, "A1", "Expense")
	x.setCell(f, "B1", expenseID)

	headers := []string{"Changed At", "Kind", "Detail", "Actor", "Reason"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		x.setCell(f, cell, h)
	}

	for i, r := range rows {
		line := i + 4
		x.setCell(f, fmt.Sprintf("A%d", line), r.at.Format(time.RFC3339))
		x.setCell(f, fmt.Sprintf("B%d", line), r.kind)
		x.setCell(f, fmt.Sprintf("C%d", line), r.detail)
		x.setCell(f, fmt.Sprintf("D%d", line), r.actor)
		x.setCell(f, fmt.Sprintf("E%d", line), r.reason)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	x.logger.Info("Audit trail exported",
		zap.String("expense_id", expenseID),
		zap.Int("rows", len(rows)))
	return buf.Bytes(), nil
}

func (x *AuditExporter) setCell(f *excelize.File, cell string, value string) {
	if err := f.SetCellValue(auditSheet, cell, value); err != nil {
		x.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
