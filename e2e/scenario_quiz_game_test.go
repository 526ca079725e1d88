package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"quiz-lab/domain"
	"quiz-lab/domain/event"
	"quiz-lab/infrastructure/ws"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testQuizGameSuite struct {
	BaseSuite
}

func TestQuizGameSuite(t *testing.T) {
	suite.Run(t, &testQuizGameSuite{})
}

func (s *testQuizGameSuite) TestFullGameFlow() {
	setID := "e2e-" + uuid.NewString()
	host := s.Token("Host", true)
	alice := s.Token("Alice", false)
	var room domain.Snapshot

	s.WithHealth("Server reports serving", func(ctx context.Context, client healthpb.HealthClient) {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		s.Require().NoError(err)
		s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.Status)
	})

	s.Run("Step 1: Upload a question set and create a room", func() {
		s.Step(s.T(), "Create room")
		questions := []domain.Question{
			{Index: 0, CorrectOption: 1, Points: 100},
			{Index: 1, CorrectOption: 0, Points: 100},
			{Index: 2, CorrectOption: 2, Points: 100},
		}
		s.Call(http.MethodPut, "/api/question-sets/"+setID, host.Token, map[string]any{"questions": questions}, http.StatusOK, nil)

		settings := domain.DefaultSettings()
		settings.TimingMode = domain.TimingManual
		s.Call(http.MethodPost, "/api/rooms", host.Token, map[string]any{
			"questionSetId": setID, "settings": settings,
		}, http.StatusCreated, &room)
		s.Require().Equal(domain.StatusWaiting, room.Status)
		s.Require().Equal(3, room.TotalQuestions)
	})

	hostConn := s.Dial(room.Code, host.Token)
	defer hostConn.Close()
	s.Await(hostConn, ws.EventRoomState, 5*time.Second)
	aliceConn := s.Dial(room.Code, alice.Token)
	defer aliceConn.Close()
	s.Await(aliceConn, ws.EventRoomState, 5*time.Second)

	s.Run("Step 2: A player cannot start the game", func() {
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/startGame", alice.Token, nil, http.StatusForbidden, nil)
	})

	s.Run("Step 3: Start, answer and close the first question", func() {
		s.Step(s.T(), "Play question 0")
		s.Send(hostConn, ws.EventHostAction, map[string]any{"action": "startGame"})
		s.Await(aliceConn, event.QuestionStarted, 5*time.Second)

		s.Send(aliceConn, ws.EventAnswerSubmit, map[string]any{"questionIndex": 0, "option": 1})
		ended := s.Await(hostConn, event.QuestionEnded, 5*time.Second)
		var payload domain.QuestionEndedPayload
		s.Require().NoError(json.Unmarshal(ended.Payload, &payload))
		s.Require().Equal(1, payload.AnswerCount)
	})

	s.Run("Step 4: Pause and resume with a countdown", func() {
		s.Step(s.T(), "Pause and resume")
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/nextQuestion", host.Token, nil, http.StatusOK, nil)
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/pause", host.Token,
			map[string]any{"reason": "break"}, http.StatusOK, nil)
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/resume", host.Token,
			map[string]any{"seconds": 1}, http.StatusOK, nil)
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/resume", host.Token,
			map[string]any{"seconds": 1}, http.StatusConflict, nil)
		s.Await(aliceConn, event.GameResumed, 5*time.Second)
	})

	s.Run("Step 5: Skip to the end", func() {
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/skipQuestion", host.Token, nil, http.StatusOK, nil)
		s.Call(http.MethodPost, "/api/rooms/"+string(room.Code)+"/actions/skipQuestion", host.Token, nil, http.StatusOK, nil)
		s.Await(aliceConn, event.GameCompleted, 5*time.Second)

		var final domain.Snapshot
		s.Call(http.MethodGet, "/api/rooms/"+string(room.Code), host.Token, nil, http.StatusOK, &final)
		s.Require().Equal(domain.StatusCompleted, final.Status)
		s.Require().Equal([]int{1, 2}, final.SkippedQuestionIndices)
	})
}
