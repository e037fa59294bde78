package main

import (
	"bufio"
	"chat-live/infrastructure/api"
	"context"
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	RoomID        string `env:"CHAT_ROOM_ID,default=general"`
	Token         string `env:"CHAT_TOKEN,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

var authorColours = []color.Color{color.FgCyan, color.FgGreen, color.FgMagenta, color.FgYellow, color.FgBlue}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run joins the configured room, prints every frame received
// and posts each line typed on stdin. "/join <room>" moves to another room, "/leave" leaves it.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	u := url.URL{Scheme: "ws", Host: config.ServerAddress, Path: "/ws"}
	header := map[string][]string{"Authorization": {"Bearer " + config.Token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	if err := conn.WriteJSON(api.InboundFrame{Type: api.FrameJoin, RoomID: config.RoomID}); err != nil {
		return exitRuntime, fmt.Errorf("join failed: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		for {
			var frame api.OutboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				errChan <- err
				return
			}
			printFrame(frame)
		}
	}()

	go readInput(ctx, conn)

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return exitOK, nil
	case err := <-errChan:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("connection error: %w", err)
	}
}

func readInput(ctx context.Context, conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() && ctx.Err() == nil {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		frame := api.InboundFrame{Type: api.FrameMessage, Text: line, ClientToken: uuid.NewString()}
		switch {
		case strings.HasPrefix(line, "/join "):
			frame = api.InboundFrame{Type: api.FrameJoin, RoomID: strings.TrimSpace(strings.TrimPrefix(line, "/join "))}
		case line == "/leave":
			frame = api.InboundFrame{Type: api.FrameLeave}
		}
		if err := conn.WriteJSON(frame); err != nil {
			color.Red.Printf("send failed: %v\n", err)
			return
		}
	}
}

func printFrame(frame api.OutboundFrame) {
	switch frame.Type {
	case api.FrameMessage:
		m := frame.Message
		body := m.Text
		if m.Image != nil {
			body = strings.TrimSpace(fmt.Sprintf("%s [image %s]", body, m.Image.Name))
		}
		fmt.Printf("%s %s: %s\n",
			color.Gray.Sprint(m.CreatedAt.Local().Format(time.TimeOnly)),
			authorColour(m.AuthorID).Render(m.AuthorID),
			body)
	case api.FrameJoined:
		color.Green.Printf(">>> Joined room %s\n", frame.RoomID)
	case api.FrameLeft:
		color.Yellow.Printf("<<< Left room %s\n", frame.RoomID)
	case api.FrameError:
		color.Red.Printf("!!! %s: %s\n", frame.Code, frame.Error)
	}
}

func authorColour(author string) color.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(author))
	return authorColours[h.Sum32()%uint32(len(authorColours))]
}
