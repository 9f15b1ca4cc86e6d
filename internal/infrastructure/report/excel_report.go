package report

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"github.com/yourusername/carpool-bot/internal/domain/entity"
	"github.com/yourusername/carpool-bot/internal/domain/repository"
)

const sheetName = "Rides"

var header = []string{
	"Ride ID", "Ride time", "Driver", "Passenger", "Start latitude", "Start longitude",
	"Driver reminded", "Passenger reminded",
}

type excelRideReport struct {
	loc *time.Location
	now func() time.Time
}

// NewExcelRideReport rides as an .xlsx sheet; times shown in loc
func NewExcelRideReport(loc *time.Location) repository.RideReport {
	if loc == nil {
		loc = time.UTC
	}
	return &excelRideReport{loc: loc, now: time.Now}
}

// Render one row per ride under a header row
func (e *excelRideReport) Render(ctx context.Context, rides []entity.Ride) (string, []byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", nil, fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := setRow(f, 1, toCells(header)); err != nil {
		return "", nil, err
	}

	for i, ride := range rides {
		row := []any{
			ride.ID,
			ride.RideDateTime.In(e.loc).Format("2006-01-02 15:04"),
			ride.DriverTelegramID,
			ride.PassengerTelegramID,
			ride.StartingPosition.Latitude,
			ride.StartingPosition.Longitude,
			yesNo(ride.DriverReminded),
			yesNo(ride.PassengerReminded),
		}
		if err := setRow(f, i+2, row); err != nil {
			return "", nil, err
		}
	}

	if err := f.SetColWidth(sheetName, "A", "A", 38); err != nil {
		return "", nil, fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheetName, "B", "H", 18); err != nil {
		return "", nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("failed to write excel: %w", err)
	}

	name := fmt.Sprintf("rides_%s.xlsx", e.now().In(e.loc).Format("20060102_1504"))
	return name, buf.Bytes(), nil
}

func setRow(f *excelize.File, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func toCells(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
