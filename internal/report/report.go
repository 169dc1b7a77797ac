// Package report builds XLSX exports.
package report

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/erazemk/jaego/internal/model"
)

// ContentType is the MIME type of generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const timeLayout = "2006-01-02 15:04"

type table struct {
	sheet   string
	headers []string
	widths  []float64
	rows    [][]any
	summary []any
}

func (t *table) build() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetRow(t.sheet, "A1", &t.headers); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	last, _ := excelize.ColumnNumberToName(len(t.headers))
	f.SetCellStyle(t.sheet, "A1", last+"1", headerStyle)

	for i, row := range t.rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(t.sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}

	if t.summary != nil {
		n := len(t.rows) + 2
		cell, _ := excelize.CoordinatesToCellName(1, n)
		f.SetSheetRow(t.sheet, cell, &t.summary)
		bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		f.SetCellStyle(t.sheet, cell, fmt.Sprintf("%s%d", last, n), bold)
	}

	for i, w := range t.widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(t.sheet, col, col, w)
	}
	f.SetPanes(t.sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	return f, nil
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// Write encodes f to w and closes it.
func Write(w io.Writer, f *excelize.File) error {
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Stock lists items with their quantity and value.
func Stock(items []model.Item) (*excelize.File, error) {
	t := &table{
		sheet:   "재고현황",
		headers: []string{"품목명", "규격", "제조사", "분류", "위치", "상태", "현재수량", "최소재고", "단가", "재고금액"},
		widths:  []float64{24, 24, 14, 10, 12, 10, 10, 10, 14, 16},
	}
	total := decimal.Zero
	qty := 0
	for _, it := range items {
		value := it.TotalValue()
		total = total.Add(value)
		qty += it.CurrentQuantity
		t.rows = append(t.rows, []any{
			it.Name, it.Specification, it.Maker, it.Category, it.Location, it.StockStatus,
			it.CurrentQuantity, it.MinStock, money(it.UnitPrice), money(value),
		})
	}
	t.summary = []any{"합계", fmt.Sprintf("%d개 품목", len(items)), nil, nil, nil, nil, qty, nil, nil, money(total)}
	return t.build()
}

// History lists stock movements.
func History(rows []model.StockHistory) (*excelize.File, error) {
	t := &table{
		sheet:   "재고이력",
		headers: []string{"일시", "품목명", "구분", "변동", "변동후수량", "단가", "처리자", "사유"},
		widths:  []float64{18, 24, 10, 8, 12, 14, 14, 30},
	}
	for _, h := range rows {
		t.rows = append(t.rows, []any{
			h.CreatedAt.Format(timeLayout), h.ItemName, h.Kind, h.Delta, h.QuantityAfter,
			money(h.UnitPrice), h.Actor, h.Reason,
		})
	}
	return t.build()
}

// Closing lists the item snapshot of a closing run.
func Closing(run *model.ClosingRun, items []model.ClosingItem) (*excelize.File, error) {
	t := &table{
		sheet:   "마감 " + run.PeriodLabel(),
		headers: []string{"품목명", "규격", "수량", "단가", "금액"},
		widths:  []float64{24, 24, 10, 14, 16},
	}
	for _, it := range items {
		t.rows = append(t.rows, []any{it.ItemName, it.Specification, it.Quantity, money(it.UnitPrice), money(it.TotalValue)})
	}
	t.summary = []any{"합계", fmt.Sprintf("%d개 품목", run.TotalItems), nil, nil, money(run.TotalValue)}
	return t.build()
}

// WorkDiary lists diary entries.
func WorkDiary(entries []model.WorkDiary) (*excelize.File, error) {
	t := &table{
		sheet:   "업무일지",
		headers: []string{"작업일", "작성자", "프로젝트번호", "프로젝트명", "작업유형", "세부유형", "작업내용"},
		widths:  []float64{12, 12, 14, 24, 10, 10, 60},
	}
	for _, d := range entries {
		project := d.ProjectName
		if project == "" {
			project = d.CustomProjectName
		}
		t.rows = append(t.rows, []any{d.WorkDate, d.UserName, d.ProjectID, project, d.WorkType, d.WorkSubType, d.WorkContent})
	}
	return t.build()
}
