// Package csvimport reads item spreadsheets exported as CSV and receives
// each row into stock.
package csvimport

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"

	"github.com/erazemk/jaego/internal/model"
	"github.com/erazemk/jaego/internal/store"
)

// MaxSize is the largest accepted upload.
const MaxSize = 10 << 20

// DefaultReason is recorded on stock-in rows created by an import.
const DefaultReason = "CSV 업로드"

var errTooLarge = model.InvalidArgument("file must be at most 10 MB")

// Row is one parsed data line. Err is set when the line could not be
// turned into a stock-in.
type Row struct {
	Line  int
	Input model.StockInInput
	Err   string
}

// RowResult is the outcome of importing one row.
type RowResult struct {
	Line        int    `json:"line"`
	ItemName    string `json:"item_name"`
	Success     bool   `json:"success"`
	ItemID      string `json:"item_id,omitempty"`
	ItemCreated bool   `json:"item_created,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Result summarizes an import.
type Result struct {
	SuccessCount int         `json:"success_count"`
	FailureCount int         `json:"failure_count"`
	Results      []RowResult `json:"results"`
}

// columns maps accepted header spellings to a canonical field.
var columns = map[string]string{
	"item_name":      "name",
	"name":           "name",
	"품목명":            "name",
	"품명":             "name",
	"specification":  "spec",
	"spec":           "spec",
	"규격":             "spec",
	"maker":          "maker",
	"제조사":            "maker",
	"quantity":       "quantity",
	"item_number":    "quantity",
	"수량":             "quantity",
	"unit_price":     "price",
	"단가":             "price",
	"category":       "category",
	"분류":             "category",
	"note":           "notes",
	"notes":          "notes",
	"비고":             "notes",
	"rack_location":  "location",
	"location":       "location",
	"위치":             "location",
	"barcode":        "barcode",
	"바코드":            "barcode",
	"condition_type": "condition",
}

// Decode reads at most MaxSize bytes, strips a UTF-8 byte order mark and
// converts EUC-KR/CP949 input to UTF-8.
func Decode(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if len(data) > MaxSize {
		return nil, errTooLarge
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data, nil
	}

	decoded, _, err := transform.Bytes(korean.EUCKR.NewDecoder(), data)
	if err != nil {
		return nil, model.InvalidArgument("file is neither UTF-8 nor EUC-KR")
	}
	return decoded, nil
}

// Parse reads CSV rows. The header must contain an item name column; other
// columns are optional.
func Parse(data []byte) ([]Row, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.InvalidArgument("CSV file is empty")
	}
	if err != nil {
		return nil, model.InvalidArgument("reading CSV header: %v", err)
	}

	index := map[string]int{}
	for i, h := range header {
		if field, ok := columns[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := index[field]; !dup {
				index[field] = i
			}
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, &model.Error{
			Code:    model.CodeInvalidArgument,
			Message: "CSV header must include an item name column",
			Details: map[string]any{"accepted": []string{"item_name", "name", "품목명"}},
		}
	}

	var rows []Row
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			rows = append(rows, Row{Line: line, Err: err.Error()})
			continue
		}

		get := func(field string) string {
			if i, ok := index[field]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		if isBlank(rec) {
			continue
		}
		rows = append(rows, parseRow(line, get))
	}
	return rows, nil
}

func parseRow(line int, get func(string) string) Row {
	row := Row{Line: line}
	in := model.StockInInput{
		ItemName:      get("name"),
		Specification: get("spec"),
		Maker:         get("maker"),
		Category:      get("category"),
		Location:      get("location"),
		Notes:         get("notes"),
		ConditionType: get("condition"),
		Reason:        DefaultReason,
		Quantity:      1,
	}
	if in.Category == "" {
		in.Category = "기타"
	}
	if bc := get("barcode"); bc != "" {
		in.Notes = strings.TrimSpace(in.Notes + " barcode:" + bc)
	}

	if q := get("quantity"); q != "" {
		n, err := strconv.Atoi(strings.ReplaceAll(q, ",", ""))
		if err != nil {
			row.Err = fmt.Sprintf("invalid quantity %q", q)
			row.Input = in
			return row
		}
		in.Quantity = n
	}
	if p := get("price"); p != "" {
		d, err := decimal.NewFromString(strings.ReplaceAll(p, ",", ""))
		if err != nil {
			row.Err = fmt.Sprintf("invalid unit price %q", p)
			row.Input = in
			return row
		}
		in.UnitPrice = d
	}

	row.Input = in
	return row
}

func isBlank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Import receives every valid row into stock, each in its own transaction.
func Import(ctx context.Context, database *sqlx.DB, rows []Row, actor string) Result {
	res := Result{Results: make([]RowResult, 0, len(rows))}

	for _, row := range rows {
		rr := RowResult{Line: row.Line, ItemName: row.Input.ItemName}

		err := rowError(row)
		if err == nil {
			in := row.Input
			in.OrderedBy = actor
			var out *model.StockInResult
			out, err = store.StockIn(ctx, database, in, actor)
			if err == nil {
				rr.Success = true
				rr.ItemID = out.Item.ID
				rr.ItemCreated = out.ItemCreated
			}
		}

		if err != nil {
			rr.Error = err.Error()
			res.FailureCount++
		} else {
			res.SuccessCount++
		}
		res.Results = append(res.Results, rr)
	}
	return res
}

func rowError(row Row) error {
	if row.Err != "" {
		return errors.New(row.Err)
	}
	return model.Validate(row.Input)
}
