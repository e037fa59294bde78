package e2e

import (
	"chat-live/infrastructure/api"
	"chat-live/infrastructure/grpc/server"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type testRoomSuite struct {
	BaseSuite
}

func TestRoomSuite(t *testing.T) {
	suite.Run(t, &testRoomSuite{})
}

func (s *testRoomSuite) TestFullRoomFlow() {
	room := "e2e-" + uuid.NewString()
	other := "e2e-" + uuid.NewString()
	alice := s.Dial("Alice connects", "alice-"+uuid.NewString()[:8])
	bob := s.Dial("Bob connects", "bob-"+uuid.NewString()[:8])

	s.Run("Step 0: Health reports serving", func() {
		s.WithHealth("Check chat-live health", func(ctx context.Context, client healthpb.HealthClient) {
			resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
			s.Require().NoError(err)
			s.Require().Equal(healthpb.HealthCheckResponse_SERVING, resp.Status)
		})
	})

	s.Run("Step 1: Posting before joining is refused to the sender only", func() {
		alice.Send(api.InboundFrame{Type: api.FrameMessage, Text: "too early"})
		frame := alice.Next(api.FrameError)
		s.Require().Equal("not_joined", frame.Code)
	})

	s.Run("Step 2: Both join and both receive, sender included", func() {
		alice.Send(api.InboundFrame{Type: api.FrameJoin, RoomID: room})
		alice.Next(api.FrameJoined)
		bob.Send(api.InboundFrame{Type: api.FrameJoin, RoomID: room})
		bob.Next(api.FrameJoined)

		token := uuid.NewString()
		alice.Send(api.InboundFrame{Type: api.FrameMessage, Text: "hello", ClientToken: token})

		mine := alice.Next(api.FrameMessage)
		theirs := bob.Next(api.FrameMessage)
		s.Require().Equal("hello", mine.Message.Text)
		s.Require().Equal(mine.Message.ID, theirs.Message.ID)
		s.Require().Equal(token, theirs.Message.ClientToken)
	})

	s.Run("Step 3: Order is the same for everyone", func() {
		texts := []string{"one", "two", "three"}
		for _, text := range texts {
			bob.Send(api.InboundFrame{Type: api.FrameMessage, Text: text})
		}
		for _, text := range texts {
			s.Require().Equal(text, alice.Next(api.FrameMessage).Message.Text)
			s.Require().Equal(text, bob.Next(api.FrameMessage).Message.Text)
		}
	})

	s.Run("Step 4: Rejoining moves the connection", func() {
		bob.Send(api.InboundFrame{Type: api.FrameJoin, RoomID: other})
		bob.Next(api.FrameJoined)

		alice.Send(api.InboundFrame{Type: api.FrameMessage, Text: "are you there?"})
		alice.Next(api.FrameMessage)
		bob.Silent(api.FrameMessage, 500*time.Millisecond)
	})
}
