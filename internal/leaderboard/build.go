// Package leaderboard folds the raw per-score rows of a challenge into ranked
// entries and renders them for export.
package leaderboard

import (
	"sort"

	"github.com/sakif/rankboard/internal/model"
)

// Build groups rows by user, sums each user's scores and ranks them.
//
// Rows must arrive grouped per user in the order ties should break (the
// repository orders by username). Within a user, a given admin is counted
// once even if the join produced it twice. Ranks are 1..N with no shared
// ranks: equal totals keep their incoming order.
func Build(rows []model.LeaderboardRow) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0)
	index := make(map[int64]int)
	seen := make(map[int64]map[int64]struct{})

	for _, r := range rows {
		i, ok := index[r.UserID]
		if !ok {
			i = len(entries)
			index[r.UserID] = i
			entries = append(entries, model.LeaderboardEntry{
				UserID:         r.UserID,
				Username:       r.Username,
				AvatarFilename: r.AvatarFilename,
				Scores:         []model.AdminScore{},
			})
			seen[r.UserID] = make(map[int64]struct{})
		}
		e := &entries[i]

		if r.SubmissionID != nil && e.SubmissionID == nil {
			id := *r.SubmissionID
			e.SubmissionID = &id
		}

		if r.ScoreID == nil || r.AdminID == nil || r.Score == nil {
			continue
		}
		if _, dup := seen[r.UserID][*r.AdminID]; dup {
			continue
		}
		seen[r.UserID][*r.AdminID] = struct{}{}

		var adminName string
		if r.AdminUsername != nil {
			adminName = *r.AdminUsername
		}
		e.Scores = append(e.Scores, model.AdminScore{
			AdminID:       *r.AdminID,
			AdminUsername: adminName,
			Score:         *r.Score,
			Feedback:      r.Feedback,
		})
		e.TotalScore += *r.Score
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].TotalScore > entries[b].TotalScore
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// Find returns the entry for userID, or nil.
func Find(entries []model.LeaderboardEntry, userID int64) *model.LeaderboardEntry {
	for i := range entries {
		if entries[i].UserID == userID {
			return &entries[i]
		}
	}
	return nil
}
