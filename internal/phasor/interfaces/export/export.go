package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	phasorapp "pmu-monitor/internal/phasor/application"
	phasor "pmu-monitor/internal/phasor/domain"
)

// Format is a raw-series download format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts csv, xlsx or pdf; empty means csv.
func ParseFormat(value string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(value))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format %q", phasor.ErrInvalidInput, value)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename names the download for a PMU.
func (f Format) Filename(pmuID string, at time.Time) string {
	return fmt.Sprintf("pmu_%s_%s.%s", sanitize(pmuID), at.UTC().Format("20060102T150405Z"), f)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

// Column maps an export header to a phasor field.
type Column struct {
	Header string
	Field  string
}

// Columns lists raw-series columns after time, in output order.
var Columns = buildColumns()

func buildColumns() []Column {
	var cols []Column
	for _, c := range []phasor.Component{phasor.Magnitude, phasor.Angle} {
		for _, q := range []phasor.Quantity{phasor.Voltage, phasor.Current} {
			for _, p := range phasor.Phases {
				field := phasor.FieldName(q, p, c)
				header := field
				if c == phasor.Magnitude {
					header = string(q) + "_" + string(p)
				}
				cols = append(cols, Column{Header: header, Field: field})
			}
		}
	}
	return cols
}

func headers() []string {
	out := []string{"time"}
	for _, col := range Columns {
		out = append(out, col.Header)
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the raw series; absent values are empty cells.
func WriteCSV(w io.Writer, samples []phasor.Sample) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers()); err != nil {
		return err
	}
	for _, sample := range samples {
		record := []string{formatTime(sample.Time)}
		for _, col := range Columns {
			if v, ok := sample.Value(col.Field); ok {
				record = append(record, formatFloat(v))
			} else {
				record = append(record, "")
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// BuildXLSX renders the raw series plus a per-channel summary sheet.
func BuildXLSX(pmuID string, samples []phasor.Sample) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	samplesSheet := "samples"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(samplesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "PMU Raw Series")
	_ = f.SetCellValue(summarySheet, "A3", "PMU")
	_ = f.SetCellValue(summarySheet, "B3", pmuID)
	_ = f.SetCellValue(summarySheet, "A4", "Samples")
	_ = f.SetCellValue(summarySheet, "B4", len(samples))
	_ = f.SetCellValue(summarySheet, "A6", "Field")
	_ = f.SetCellValue(summarySheet, "B6", "Count")
	_ = f.SetCellValue(summarySheet, "C6", "Min")
	_ = f.SetCellValue(summarySheet, "D6", "Mean")
	_ = f.SetCellValue(summarySheet, "E6", "Max")
	for i, s := range phasorapp.Summarize(samples) {
		row := i + 7
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), s.Field)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), s.Count)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), s.Min)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), s.Mean)
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), s.Max)
	}

	if err := f.SetSheetRow(samplesSheet, "A1", toAnySlice(headers())); err != nil {
		return nil, err
	}
	for i, sample := range samples {
		values := []interface{}{formatTime(sample.Time)}
		for _, col := range Columns {
			if v, ok := sample.Value(col.Field); ok {
				values = append(values, v)
			} else {
				values = append(values, nil)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(samplesSheet, cell, &values); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toAnySlice(in []string) *[]interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return &out
}

// BuildPDF renders a one-page channel summary of the raw series.
func BuildPDF(pmuID string, tr phasor.TimeRange, samples []phasor.Sample, generated time.Time) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "PMU Raw Series Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("PMU: %s", pmuID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Start: %s", describeBound(tr.Start)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Stop: %s", describeBound(tr.Stop)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Samples: %d", len(samples)))
	pdf.Ln(5)
	if len(samples) > 0 {
		pdf.Cell(0, 6, fmt.Sprintf("First: %s", formatTime(samples[0].Time)))
		pdf.Ln(5)
		pdf.Cell(0, 6, fmt.Sprintf("Last: %s", formatTime(samples[len(samples)-1].Time)))
		pdf.Ln(5)
	}
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.UTC().Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(35, 6, "Field", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Count", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Min", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Mean", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Max", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, s := range phasorapp.Summarize(samples) {
		pdf.CellFormat(35, 6, s.Field, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, strconv.Itoa(s.Count), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", s.Min), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", s.Mean), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.3f", s.Max), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func describeBound(b phasor.Bound) string {
	switch {
	case b.Relative != "":
		return b.Relative
	case !b.Absolute.IsZero():
		return b.Absolute.Format(time.RFC3339Nano)
	default:
		return "now"
	}
}
