package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"parkspot/internal/models"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
	timeLayout    = "2006-01-02 15:04"
)

var bookingHeaders = []interface{}{
	"ID", "Location", "User", "Email", "Vehicle type", "Vehicle number",
	"Start", "End", "Hours", "Total", "Discount", "Final",
	"Payment", "Status", "Order ID",
}

// WriteBookings renders bookings as an XLSX workbook: one row per booking and
// a per-category summary. Times are written in loc.
func WriteBookings(w io.Writer, bookings []*models.BookingDetails, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	if err := writeRow(f, bookingsSheet, 1, bookingHeaders); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.SetCellStyle(bookingsSheet, "A1", lastCol+"1", headerStyle)
	_ = f.SetColWidth(bookingsSheet, "A", lastCol, 16)

	for i, b := range bookings {
		if err := writeRow(f, bookingsSheet, i+2, bookingRow(b, loc)); err != nil {
			return err
		}
	}

	if err := writeSummary(f, bookings, headerStyle); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func bookingRow(b *models.BookingDetails, loc *time.Location) []interface{} {
	var locationName, userName, email string
	if b.Location != nil {
		locationName = b.Location.Name
	}
	if b.User != nil {
		userName = b.User.Username
		email = b.User.Email
	}
	return []interface{}{
		b.ID,
		locationName,
		userName,
		email,
		b.VehicleType.Label(),
		b.VehicleNumber,
		b.StartTime.In(loc).Format(timeLayout),
		b.EndTime.In(loc).Format(timeLayout),
		b.Hours,
		b.TotalAmount,
		b.DiscountApplied,
		b.FinalAmount,
		b.PaymentStatus,
		b.BookingStatus,
		b.OrderID.String,
	}
}

// writeSummary adds booking counts and paid revenue per vehicle category.
func writeSummary(f *excelize.File, bookings []*models.BookingDetails, headerStyle int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	counts := make(map[models.VehicleType]int, len(models.VehicleTypes))
	revenue := make(map[models.VehicleType]float64, len(models.VehicleTypes))
	for _, b := range bookings {
		counts[b.VehicleType]++
		if b.PaymentStatus == models.PaymentCompleted {
			revenue[b.VehicleType] += b.FinalAmount
		}
	}

	if err := writeRow(f, summarySheet, 1, []interface{}{"Vehicle type", "Bookings", "Paid revenue"}); err != nil {
		return err
	}
	_ = f.SetCellStyle(summarySheet, "A1", "C1", headerStyle)
	_ = f.SetColWidth(summarySheet, "A", "C", 18)

	for i, vt := range models.VehicleTypes {
		if err := writeRow(f, summarySheet, i+2, []interface{}{vt.Label(), counts[vt], revenue[vt]}); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("error writing row %d: %w", row, err)
	}
	return nil
}
