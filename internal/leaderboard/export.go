package leaderboard

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/sakif/rankboard/internal/model"
)

const sheetName = "Leaderboard"

// WriteXLSX writes entries as a one-sheet workbook. Columns are rank,
// username, submitted, total, then one column per admin who scored anyone,
// in the order admins first appear.
func WriteXLSX(w io.Writer, title string, entries []model.LeaderboardEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("leaderboard: naming sheet: %w", err)
	}

	type admin struct {
		id   int64
		name string
	}
	var admins []admin
	col := make(map[int64]int)
	for _, e := range entries {
		for _, s := range e.Scores {
			if _, ok := col[s.AdminID]; !ok {
				col[s.AdminID] = len(admins)
				admins = append(admins, admin{s.AdminID, s.AdminUsername})
			}
		}
	}

	if err := f.SetCellValue(sheetName, "A1", title); err != nil {
		return fmt.Errorf("leaderboard: writing title: %w", err)
	}

	header := []any{"Rank", "Username", "Submitted", "Total"}
	for _, a := range admins {
		header = append(header, a.name)
	}
	if err := f.SetSheetRow(sheetName, "A3", &header); err != nil {
		return fmt.Errorf("leaderboard: writing header: %w", err)
	}

	for i, e := range entries {
		submitted := "no"
		if e.SubmissionID != nil {
			submitted = "yes"
		}
		row := make([]any, 4+len(admins))
		row[0], row[1], row[2], row[3] = e.Rank, e.Username, submitted, e.TotalScore
		for _, s := range e.Scores {
			row[4+col[s.AdminID]] = s.Score
		}
		cell, err := excelize.CoordinatesToCellName(1, 4+i)
		if err != nil {
			return fmt.Errorf("leaderboard: addressing row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("leaderboard: writing row %d: %w", i, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("leaderboard: writing workbook: %w", err)
	}
	return nil
}
