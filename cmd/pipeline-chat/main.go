// Command pipeline-chat runs the pipeline as an interactive console chat.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/agent-pipeline/internal/config"
	"github.com/tjfontaine/agent-pipeline/pkg/pipeline"
)

const (
	sessionID = "default_session"
	userID    = "default_user"
)

func main() {
	_ = godotenv.Load()

	// Keep structured logs off the conversation; errors still surface.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	orc, err := pipeline.FromConfig(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}
	defer orc.Shutdown(context.Background())

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("You: ")
		if !scanner.Scan() {
			break
		}
		input := scanner.Text()

		switch strings.ToLower(strings.TrimSpace(input)) {
		case "exit", "quit":
			fmt.Println("Ending conversation. Goodbye!")
			return
		case "":
			continue
		}

		ans, err := orc.Invoke(context.Background(), input, sessionID, userID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("Architect: %s\n", ans)
	}
}
