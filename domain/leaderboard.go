package domain

import (
	"sort"

	"github.com/samber/lo"
)

type LeaderboardEntry struct {
	Rank        int      `json:"rank"`
	PlayerID    PlayerID `json:"playerId"`
	DisplayName string   `json:"displayName"`
	Score       int      `json:"score"`
}

// Leaderboard ranks players by score, highest first. Equal scores keep the
// order in which players joined. The host is not ranked.
func (r *Room) Leaderboard() []LeaderboardEntry {
	players := lo.Filter(lo.Values(r.players), func(p *Player, _ int) bool { return !p.IsHost })
	// lo.Values has no order; join order is restored before the stable sort.
	sort.Slice(players, func(i, j int) bool { return players[i].joinSeq < players[j].joinSeq })
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })

	return lo.Map(players, func(p *Player, i int) LeaderboardEntry {
		return LeaderboardEntry{Rank: i + 1, PlayerID: p.ID, DisplayName: p.DisplayName, Score: p.Score}
	})
}

// ScoreFor computes the points of a correct answer. Speed scoring scales the
// base points by the share of time left, never below half.
func ScoreFor(mode ScoringMode, basePoints, remaining, total int) int {
	if basePoints <= 0 {
		return 0
	}
	if mode != ScoringSpeed || total <= 0 {
		return basePoints
	}
	half := basePoints / 2
	return half + (basePoints-half)*min(remaining, total)/total
}
