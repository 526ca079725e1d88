// Package event names every notification a room emits to its observers.
// Names are shared with existing clients and must not change.
package event

const (
	PlayerJoined      = "player:joined"
	PlayerKicked      = "player:kicked"
	PlayerRemoved     = "player:removed"
	PlayerStatus      = "player:status:updated"
	GameStarted       = "game:started"
	GamePaused        = "game:paused"
	GameResumeCount   = "game:resuming:countdown"
	GameResumed       = "game:resumed"
	GameCompleted     = "game:completed"
	GameEmergencyStop = "game:emergency:stopped"
	GameAbandoned     = "game:abandoned"
	QuestionStarted   = "question:started"
	QuestionEnded     = "question:ended"
	QuestionSkipped   = "question:skipped"
	TimerTick         = "timer:tick"
	TimerAdjusted     = "timer:adjusted"
	TimerReset        = "timer:reset"
	TimerStarted      = "timer:started"
	HostChanged       = "host:changed"
	HostDisconnected  = "host:disconnected"
	HostReconnected   = "host:reconnected"
	SettingsUpdated   = "settings:updated"
	AnswerReceived    = "answer:received"
	ChatMessage       = "chat:message"
	CleanupWarning    = "cleanupWarning"
	RoomClosed        = "room:closed"
)
