package e2e

import (
	"chat-live/auth"
	"chat-live/infrastructure/api"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
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
	tokens *auth.TokenManager
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ChatAddr == "" {
		s.T().Skip("CHAT_ADDR not set, no running chat-live to test against")
	}
	s.Require().NotEmpty(s.Config.JwtSecret, "JWT_SECRET is required to sign test tokens")
	s.tokens = auth.NewTokenManager(s.Config.JwtSecret, time.Hour)
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// Socket is a websocket connection authenticated as one user.
type Socket struct {
	s    *BaseSuite
	user string
	conn *websocket.Conn
}

// Dial opens a websocket authenticated as userID
func (s *BaseSuite) Dial(name, userID string) *Socket {
	s.header(s.T(), name)

	token, err := s.tokens.GenerateToken(userID, []string{"user"})
	s.Require().NoError(err)

	u := url.URL{Scheme: "ws", Host: s.Config.ChatAddr, Path: "/ws"}
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), header)
	s.Require().NoError(err, "Failed to open websocket at "+u.String())
	s.T().Cleanup(func() { _ = conn.Close() })
	return &Socket{s: s, user: userID, conn: conn}
}

func (c *Socket) Send(frame api.InboundFrame) {
	c.dump("SEND", frame)
	c.s.Require().NoError(c.conn.WriteJSON(frame))
}

// Next waits for the next frame of the given type, skipping the others
func (c *Socket) Next(frameType string) api.OutboundFrame {
	deadline := time.Now().Add(c.s.Config.FrameTimeout)
	for {
		c.s.Require().NoError(c.conn.SetReadDeadline(deadline))
		var frame api.OutboundFrame
		c.s.Require().NoError(c.conn.ReadJSON(&frame), "no %s frame for %s", frameType, c.user)
		c.dump("RECV", frame)
		if frame.Type == frameType {
			return frame
		}
	}
}

// Silent asserts nothing of the given type arrives within d
func (c *Socket) Silent(frameType string, d time.Duration) {
	deadline := time.Now().Add(d)
	for {
		c.s.Require().NoError(c.conn.SetReadDeadline(deadline))
		var frame api.OutboundFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			return
		}
		c.dump("RECV", frame)
		c.s.Require().NotEqual(frameType, frame.Type, "unexpected frame for %s", c.user)
	}
}

func (c *Socket) dump(direction string, frame any) {
	if !c.s.Config.DebugJSON {
		return
	}
	b, _ := json.MarshalIndent(frame, "", "  ")
	c.s.T().Logf("%s %s\n%s", direction, c.user, b)
}

// WithHealth provides a grpc health client within a contextual test step
func (s *BaseSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	s.header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GrpcAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fn(ctx, healthpb.NewHealthClient(conn))
}
