package domain

// Question is the part of a question the session core needs to score an
// answer. Content and formatting live with the question bank.
type Question struct {
	Index         int `json:"index"`
	CorrectOption int `json:"correctOption"`
	Points        int `json:"points"`
}

// Identity is a caller resolved by the authentication layer.
type Identity struct {
	ID     PlayerID `json:"id"`
	Name   string   `json:"name"`
	IsHost bool     `json:"isHost"`
}
