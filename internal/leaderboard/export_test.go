package leaderboard

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sakif/rankboard/internal/model"
)

func sampleEntries() []model.LeaderboardEntry {
	return Build([]model.LeaderboardRow{
		scored(1, "alice", 10, 100, 7, "judge1", 8),
		scored(1, "alice", 10, 101, 8, "judge2", 6),
		scored(2, "bob", 11, 102, 8, "judge2", 9),
		{UserID: 3, Username: "carol"},
	})
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Graphs", sampleEntries()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 6) // title, blank, header, 3 entries

	assert.Equal(t, "Graphs", rows[0][0])
	assert.Equal(t, []string{"Rank", "Username", "Submitted", "Total", "judge1", "judge2"}, rows[2])
	assert.Equal(t, []string{"1", "alice", "yes", "14", "8", "6"}, rows[3])
	assert.Equal(t, []string{"2", "bob", "yes", "9", "", "9"}, rows[4])
	require.GreaterOrEqual(t, len(rows[5]), 4)
	assert.Equal(t, []string{"3", "carol", "no", "0"}, rows[5][:4])
}

func TestRenderPNG(t *testing.T) {
	pngMagic := []byte("\x89PNG\r\n\x1a\n")

	t.Run("with entries", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderPNG(&buf, "Graphs", sampleEntries()))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
	})

	t.Run("empty leaderboard", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, RenderPNG(&buf, "Empty", nil))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
	})

	t.Run("all zero totals", func(t *testing.T) {
		var buf bytes.Buffer
		entries := Build([]model.LeaderboardRow{{UserID: 1, Username: "a"}, {UserID: 2, Username: "b"}})
		require.NoError(t, RenderPNG(&buf, "Zeros", entries))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
	})
}
