package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jmlee/bandmate-chat/internal/api"
	"github.com/jmlee/bandmate-chat/internal/chat"
	"github.com/jmlee/bandmate-chat/internal/config"
	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/models"
	"github.com/jmlee/bandmate-chat/internal/transport"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	var (
		roomID       = flag.Int64("room", 0, "room id to open")
		listRooms    = flag.Bool("rooms", false, "list my chat rooms and exit")
		createName   = flag.String("create", "", "create a room with this name and exit")
		participants = flag.String("participants", "", "comma-separated user ids for -create")
	)
	flag.Parse()

	cfg := config.Load()
	if cfg.AccessToken == "" {
		slog.Error("ACCESS_TOKEN is required")
		os.Exit(1)
	}

	id, err := resolveIdentity(cfg)
	if err != nil {
		slog.Error("failed to resolve identity", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.BackendBaseURL)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch {
	case *listRooms:
		printRooms(ctx, client, id)
	case *createName != "":
		createRoom(ctx, client, id, *createName, *participants)
	case *roomID != 0:
		runRoom(ctx, cfg, client, id, *roomID)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func resolveIdentity(cfg *config.Config) (identity.Identity, error) {
	if cfg.UserID != "" {
		userID, err := strconv.ParseInt(cfg.UserID, 10, 64)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("invalid USER_ID %q: %w", cfg.UserID, err)
		}
		return identity.Identity{UserID: userID, Token: cfg.AccessToken}, nil
	}
	return identity.FromToken(cfg.AccessToken)
}

func printRooms(ctx context.Context, client *api.Client, id identity.Identity) {
	rooms, err := client.ListRooms(ctx, id)
	if err != nil {
		slog.Error("failed to list rooms", "error", err)
		os.Exit(1)
	}
	if len(rooms) == 0 {
		fmt.Println("no chat rooms yet")
		return
	}
	for _, room := range rooms {
		line := fmt.Sprintf("%d\t%s", room.RoomID, room.RoomName)
		if room.LastMessage != "" {
			line += "\t" + room.LastMessage
		}
		fmt.Println(line)
	}
}

func createRoom(ctx context.Context, client *api.Client, id identity.Identity, name, participants string) {
	var participantIDs []int64
	for _, part := range strings.Split(participants, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		userID, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			slog.Error("invalid participant id", "value", part)
			os.Exit(1)
		}
		participantIDs = append(participantIDs, userID)
	}
	if len(participantIDs) == 0 {
		slog.Error("-create requires -participants")
		os.Exit(1)
	}

	room, err := client.CreateRoom(ctx, id, name, participantIDs)
	if err != nil {
		slog.Error("failed to create room", "error", err)
		os.Exit(1)
	}
	fmt.Printf("created room %d (%s)\n", room.RoomID, room.RoomName)
}

func runRoom(ctx context.Context, cfg *config.Config, client *api.Client, id identity.Identity, roomID int64) {
	roomName := fmt.Sprintf("room %d", roomID)
	if meta, err := client.Room(ctx, id, roomID); err == nil && meta.RoomName != "" {
		roomName = meta.RoomName
	}
	fmt.Printf("== %s ==\n", roomName)

	session := transport.NewSession(transport.Options{
		Endpoint: cfg.WSEndpoint,
		OnStateChange: func(st transport.State) {
			slog.Info("connection state", "state", st)
		},
	})

	room := chat.NewRoom(chat.RoomConfig{
		RoomID:   roomID,
		Identity: id,
		History:  client,
		Session:  session,
		OnChange: func(appended []models.ChatMessage, total int) {
			for _, msg := range appended {
				printMessage(id.UserID, msg)
			}
		},
		OnState: func(connected bool) {
			if connected {
				fmt.Println("-- connected --")
			} else {
				fmt.Println("-- disconnected --")
			}
		},
	})

	if err := room.Open(ctx); err != nil {
		slog.Error("failed to open room", "room_id", roomID, "error", err)
		os.Exit(1)
	}
	defer room.Close()

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			switch err := room.Send(scanner.Text()); {
			case err == nil:
			case errors.Is(err, chat.ErrEmptyMessage):
			case errors.Is(err, chat.ErrNotConnected):
				slog.Warn("not connected, message dropped")
			default:
				slog.Error("send failed, message lost", "error", err)
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-inputDone:
	}
}

func printMessage(selfID int64, msg models.ChatMessage) {
	ts := "--:--"
	if !msg.CreatedAt.IsZero() {
		ts = msg.CreatedAt.Local().Format("15:04")
	}
	who := fmt.Sprintf("user %d", msg.SenderID)
	if msg.SenderID == selfID {
		who = "me"
	}
	fmt.Printf("[%s] %s: %s\n", ts, who, msg.Content)
}
