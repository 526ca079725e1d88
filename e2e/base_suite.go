// Package e2e drives a running server through its public surfaces. The
// suites skip themselves unless E2E_HTTP_ADDR is set.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"quiz-lab/domain"
	"quiz-lab/infrastructure/ws"
	"strings"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseSuite struct {
	suite.Suite
	Config Config
	http   *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.HTTPAddr == "" {
		s.T().Skip("E2E_HTTP_ADDR not set")
	}
	s.http = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a scenario step
func (s *BaseSuite) Step(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// WithHealth provides a gRPC health client when E2E_GRPC_ADDR is set
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.GrpcAddr == "" {
		s.T().Log("E2E_GRPC_ADDR not set, health check skipped")
		return
	}
	s.Step(s.T(), name)
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GrpcAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}

type Identity struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"identity"`
}

// Token asks the development endpoint for a fresh identity
func (s *BaseSuite) Token(name string, host bool) Identity {
	var id Identity
	s.Call(http.MethodPost, "/api/tokens", "", map[string]any{"name": name, "isHost": host}, http.StatusCreated, &id)
	return id
}

// Call sends a JSON request and decodes the response into out when not nil
func (s *BaseSuite) Call(method, path, token string, body any, want int, out any) {
	var payload bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&payload).Encode(body))
	}
	req, err := http.NewRequest(method, strings.TrimRight(s.Config.HTTPAddr, "/")+path, &payload)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.http.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Require().Equal(want, resp.StatusCode, "%s %s", method, path)
	if out != nil {
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(out))
	}
}

// Dial opens the websocket of a room for the owner of token
func (s *BaseSuite) Dial(code domain.RoomCode, token string) *websocket.Conn {
	u, err := url.Parse(s.Config.HTTPAddr)
	s.Require().NoError(err)
	u.Scheme = strings.Replace(u.Scheme, "http", "ws", 1)
	u.Path = "/ws/rooms/" + string(code)
	u.RawQuery = url.Values{"token": {token}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	s.Require().NoError(err)
	return conn
}

// Await reads frames until one carries event, failing after timeout
func (s *BaseSuite) Await(conn *websocket.Conn, event string, timeout time.Duration) ws.Envelope {
	deadline := time.Now().Add(timeout)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var env ws.Envelope
		s.Require().NoError(conn.ReadJSON(&env), "waiting for %s", event)
		if s.Config.DebugJSON {
			s.T().Logf("<- %s %s", env.Event, env.Payload)
		}
		if env.Event == event {
			return env
		}
	}
}

func (s *BaseSuite) Send(conn *websocket.Conn, event string, payload any) {
	raw, err := json.Marshal(payload)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(ws.Envelope{Event: event, Payload: raw}))
}
