package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("E2E_SERVER_ADDR not set, skipping end-to-end suite")
	}
}

// Banner prints a colorized header for a test step in logs
func (s *BaseHTTPSuite) Banner(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Call performs an HTTP request against the server, with timing logs and
// optional JSON body dumping, and decodes the response into out when the
// expected status matches.
func (s *BaseHTTPSuite) Call(method, path, token string, body any, expectStatus int, out any) {
	var reader io.Reader
	var requestJSON []byte
	if body != nil {
		var err error
		requestJSON, err = json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(requestJSON)
	}

	url := fmt.Sprintf("http://%s%s", s.Config.ServerAddr, path)
	req, err := http.NewRequest(method, url, reader)
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err, "Failed to reach server at "+s.Config.ServerAddr)
	defer resp.Body.Close()

	responseJSON, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", method, path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nREQUEST:")
		fmt.Fprintln(&logBuilder, string(requestJSON))
		fmt.Fprintln(&logBuilder, "RESPONSE:")
		fmt.Fprintln(&logBuilder, string(responseJSON))
	}
	s.T().Log(logBuilder.String())

	s.Require().Equal(expectStatus, resp.StatusCode, "unexpected status, body: "+string(responseJSON))
	if out != nil {
		s.Require().NoError(json.Unmarshal(responseJSON, out))
	}
}

// RegisterUser creates a fresh account and returns its auth token.
func (s *BaseHTTPSuite) RegisterUser(username, email, password string) string {
	var resp struct {
		Token string `json:"token"`
	}
	s.Call(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":    username,
		"displayName": username,
		"email":       email,
		"password":    password,
	}, http.StatusCreated, &resp)
	s.Require().NotEmpty(resp.Token)
	return resp.Token
}

// Dial opens an authenticated websocket to the push endpoint.
func (s *BaseHTTPSuite) Dial(token string) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.ServerAddr, token)
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to open websocket")
	return ws
}

// NextEvent reads one push envelope of the given type, skipping unrelated
// events, failing the test after the deadline.
func (s *BaseHTTPSuite) NextEvent(ws *websocket.Conn, eventType string, timeout time.Duration) map[string]any {
	deadline := time.Now().Add(timeout)
	for {
		s.Require().NoError(ws.SetReadDeadline(deadline))
		var envelope struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		err := ws.ReadJSON(&envelope)
		s.Require().NoError(err, "no %q event before deadline", eventType)
		if envelope.Type == eventType {
			return envelope.Payload
		}
	}
}
