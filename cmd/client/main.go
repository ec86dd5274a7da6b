package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/cbodonnell/noughts/client/network"
	"github.com/cbodonnell/noughts/client/ui"
	"github.com/cbodonnell/noughts/pkg/game"
	"github.com/cbodonnell/noughts/pkg/log"
	"github.com/cbodonnell/noughts/pkg/version"
)

func main() {
	apiURL := flag.String("api", "http://localhost:9090", "game server URL")
	authURL := flag.String("auth", "http://localhost:8080", "auth server URL")
	name := flag.String("name", "", "display name")
	code := flag.String("code", "", "code of the room to join; a new room is created when empty")
	color := flag.Bool("color", true, "highlight the winning line")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	log.SetDefaultLogger(log.New(os.Stderr, "", log.DefaultLoggerFlag, parsedLogLevel))
	log.Info("Starting client version %s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, *apiURL, *authURL, *name, *code, *color); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, apiURL string, authURL string, name string, code string, color bool) error {
	client := network.NewAPIClient(network.NewAPIClientOptions{
		APIURL:  apiURL,
		AuthURL: authURL,
	})
	if err := client.Login(ctx, name); err != nil {
		return err
	}

	var roomID string
	if code == "" {
		room, err := client.CreateRoom(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Created room %s. Share the code with your opponent.\n", room.Code)
		roomID = room.ID
	} else {
		room, err := client.JoinRoom(ctx, code)
		if err != nil {
			return err
		}
		roomID = room.ID
	}

	ws := network.NewWSClient(client.WatchURL(roomID), client.Token())
	if err := ws.Connect(ctx); err != nil {
		return err
	}
	views := make(chan *game.View)
	watchErr := make(chan error, 1)
	go func() {
		watchErr <- ws.HandleMessages(ctx, views)
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

	fmt.Println("Type a cell number (0-8) to move, r to play again, q to quit.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case view := <-views:
			fmt.Print("\n" + ui.RenderBoard(view, color))
			fmt.Println(ui.Status(view))
		case line, ok := <-lines:
			if !ok || line == "q" {
				return nil
			}
			if err := handleInput(ctx, client, roomID, line); err != nil {
				fmt.Println(err)
			}
		}
	}
}

// handleInput runs one command typed by the player. The new state arrives
// through the watch stream.
func handleInput(ctx context.Context, client *network.APIClient, roomID string, line string) error {
	if line == "r" {
		_, err := client.ResetGame(ctx, roomID)
		return err
	}
	cell, err := strconv.Atoi(line)
	if err != nil {
		return fmt.Errorf("unknown command %q", line)
	}
	_, err = client.SubmitMove(ctx, roomID, cell)
	return err
}
