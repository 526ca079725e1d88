package domain

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// Snapshot is a detached copy of a room, safe to hand to other goroutines.
type Snapshot struct {
	Code                   RoomCode                `json:"code"`
	ExternalGameID         string                  `json:"externalGameId"`
	QuestionSetID          string                  `json:"questionSetId"`
	Status                 Status                  `json:"status"`
	Phase                  Phase                   `json:"phase"`
	HostID                 PlayerID                `json:"hostId"`
	Settings               Settings                `json:"settings"`
	CurrentQuestionIndex   int                     `json:"currentQuestionIndex"`
	TotalQuestions         int                     `json:"totalQuestions"`
	SkippedQuestionIndices []int                   `json:"skippedQuestionIndices"`
	Timer                  QuestionTimer           `json:"timer"`
	Players                []Player                `json:"players"`
	MutedPlayers           map[PlayerID]MuteRecord `json:"mutedPlayers"`
	KickedPlayers          map[PlayerID]KickRecord `json:"kickedPlayers"`
	PausedAt               time.Time               `json:"pausedAt"`
	PausedDurationMs       int64                   `json:"pausedDurationMs"`
	CreatedAt              time.Time               `json:"createdAt"`
	LastActivityAt         time.Time               `json:"lastActivityAt"`
	StateChangedAt         time.Time               `json:"stateChangedAt"`
	HostTransferHistory    []HostTransfer          `json:"hostTransferHistory"`
	Generation             uint64                  `json:"generation"`
	IdleMs                 int64                   `json:"idleMs"`
}

// Snapshot copies the room. Players are listed in join order and IsMuted is
// derived from the unexpired mute records at now.
func (r *Room) Snapshot(now time.Time) Snapshot {
	players := lo.Values(r.players)
	sort.Slice(players, func(i, j int) bool { return players[i].joinSeq < players[j].joinSeq })

	return Snapshot{
		Code:                   r.Code,
		ExternalGameID:         r.ExternalGameID,
		QuestionSetID:          r.QuestionSetID,
		Status:                 r.Status,
		Phase:                  r.Phase,
		HostID:                 r.HostID,
		Settings:               r.Settings,
		CurrentQuestionIndex:   r.CurrentQuestionIndex,
		TotalQuestions:         r.TotalQuestions,
		SkippedQuestionIndices: append([]int(nil), r.SkippedQuestionIndices...),
		Timer:                  r.Timer.clone(),
		Players: lo.Map(players, func(p *Player, _ int) Player {
			c := *p
			_, c.IsMuted = r.Mute(p.ID, now)
			return c
		}),
		MutedPlayers:        lo.Assign(r.muted),
		KickedPlayers:       lo.Assign(r.kicked),
		PausedAt:            r.PausedAt,
		PausedDurationMs:    r.PausedDuration.Milliseconds(),
		CreatedAt:           r.CreatedAt,
		LastActivityAt:      r.LastActivityAt,
		StateChangedAt:      r.StateChangedAt,
		HostTransferHistory: append([]HostTransfer(nil), r.HostTransferHistory...),
		Generation:          r.generation,
		IdleMs:              r.IdleFor(now).Milliseconds(),
	}
}
