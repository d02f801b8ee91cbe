// Package export renders an analytics report for download.
package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"alarm-tracker-backend/internal/aggregate"
)

// Format names accepted by Render.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ErrUnsupportedFormat is returned by Render for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported export format")

var header = []string{"Alarm ID", "Total Active (hh:mm:ss)", "Activations"}

// Render dispatches to the renderer for format and returns the body, its
// content type and a download file name.
func Render(format string, rep aggregate.Report) ([]byte, string, string, error) {
	switch format {
	case FormatCSV, "":
		body, err := BuildCSV(rep)
		return body, "text/csv", "alarm-analytics.csv", err
	case FormatXLSX:
		body, err := BuildXLSX(rep)
		return body, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "alarm-analytics.xlsx", err
	case FormatPDF:
		body, err := BuildPDF(rep)
		return body, "application/pdf", "alarm-analytics.pdf", err
	default:
		return nil, "", "", fmt.Errorf("%w %q", ErrUnsupportedFormat, format)
	}
}

// BuildCSV renders one line per alarm followed by a totals line.
func BuildCSV(rep aggregate.Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rep.Rows {
		if err := w.Write([]string{row.ID, aggregate.FormatDuration(row.Total), strconv.Itoa(row.Activations)}); err != nil {
			return nil, err
		}
	}
	if err := w.Write([]string{"Total", aggregate.FormatDuration(rep.Total), strconv.Itoa(rep.Activations)}); err != nil {
		return nil, err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildXLSX renders a workbook with a summary sheet and a per-alarm sheet.
func BuildXLSX(rep aggregate.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	alarmsSheet := "alarms"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(alarmsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Alarm Analytics")
	_ = f.SetCellValue(summarySheet, "A3", "Range start")
	_ = f.SetCellValue(summarySheet, "B3", rep.Range.Start.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Range end")
	_ = f.SetCellValue(summarySheet, "B4", rep.Range.End.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Evaluated at")
	_ = f.SetCellValue(summarySheet, "B5", rep.EvaluatedAt.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Total active")
	_ = f.SetCellValue(summarySheet, "B6", aggregate.FormatDuration(rep.Total))
	_ = f.SetCellValue(summarySheet, "A7", "Activations")
	_ = f.SetCellValue(summarySheet, "B7", rep.Activations)

	for i, h := range append(header, "Total Active (ms)") {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(alarmsSheet, cell, h)
	}
	for i, row := range rep.Rows {
		r := i + 2
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("A%d", r), row.ID)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("B%d", r), aggregate.FormatDuration(row.Total))
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("C%d", r), row.Activations)
		_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("D%d", r), row.Total.Milliseconds())
	}
	last := len(rep.Rows) + 2
	_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("A%d", last), "Total")
	_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("B%d", last), aggregate.FormatDuration(rep.Total))
	_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("C%d", last), rep.Activations)
	_ = f.SetCellValue(alarmsSheet, fmt.Sprintf("D%d", last), rep.Total.Milliseconds())

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders a single-page table of the report.
func BuildPDF(rep aggregate.Report) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alarm Analytics")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("From: %s", rep.Range.Start.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("To: %s", rep.Range.End.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", rep.EvaluatedAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, header[0], "1", 0, "C", false, 0, "")
	pdf.CellFormat(60, 6, header[1], "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, header[2], "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, row := range rep.Rows {
		pdf.CellFormat(50, 6, row.ID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, aggregate.FormatDuration(row.Total), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, strconv.Itoa(row.Activations), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(50, 6, "Total", "1", 0, "L", false, 0, "")
	pdf.CellFormat(60, 6, aggregate.FormatDuration(rep.Total), "1", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, strconv.Itoa(rep.Activations), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
