package main

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"marinehub/pkg/domain"
)

const exportSheet = "Repairs"

var exportColumns = []string{"ID", "Booking", "Service", "Boat", "Year", "Status", "Scheduled", "Photos", "Payment"}

// writeWorkbook saves reqs as a single-sheet spreadsheet at path.
func writeWorkbook(path string, reqs []domain.RepairRequest, generated time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E79"}, Pattern: 1},
	})
	if err != nil {
		return err
	}
	for i, label := range exportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(exportSheet, cell, label); err != nil {
			return err
		}
		_ = f.SetCellStyle(exportSheet, cell, cell, headerStyle)
	}
	_ = f.SetColWidth(exportSheet, "A", "I", 18)

	for row, r := range reqs {
		scheduled, payment := "", ""
		if r.ScheduledDateTime != nil {
			scheduled = r.ScheduledDateTime.UTC().Format("2006-01-02 15:04")
		}
		if r.Payment != nil {
			payment = r.Payment.Amount.StringFixed(2) + " " + r.Payment.Currency
		}
		values := []any{
			r.ID,
			r.BookingID,
			string(r.ServiceType),
			r.BoatDetails.Make + " " + r.BoatDetails.Model,
			r.BoatDetails.Year,
			string(r.Status),
			scheduled,
			len(r.Photos),
			payment,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			if err := f.SetCellValue(exportSheet, cell, v); err != nil {
				return err
			}
		}
	}
	footer, _ := excelize.CoordinatesToCellName(1, len(reqs)+3)
	_ = f.SetCellValue(exportSheet, footer, fmt.Sprintf("Generated %s", generated.UTC().Format(time.RFC3339)))

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
