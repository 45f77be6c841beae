package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/example/conference-hub/internal/application"
	"github.com/example/conference-hub/internal/config"
	"github.com/example/conference-hub/internal/persistence/sqlite"
	"github.com/example/conference-hub/internal/store"
)

func main() {
	// Optional .env for local development; the environment always wins.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		os.Exit(1)
	}

	snapshot, err := storage.Load(ctx)
	if err != nil {
		logger.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}

	entities := store.New()
	entities.Restore(snapshot)

	idGenerator := uuid.NewString
	now := time.Now

	conferenceService := application.NewConferenceServiceWithLogger(entities, idGenerator, now, logger)
	eventService := application.NewEventServiceWithLogger(entities, idGenerator, now, logger)
	roomService := application.NewRoomServiceWithLogger(entities, idGenerator, now, logger)
	conversationService := application.NewConversationServiceWithLogger(entities, idGenerator, now, logger)
	userService := application.NewUserServiceWithLogger(entities, idGenerator, logger)

	if cfg.BootstrapCSV != "" {
		records, err := readBootstrapCSV(cfg.BootstrapCSV)
		if err != nil {
			logger.Error("failed to read bootstrap file", "path", cfg.BootstrapCSV, "error", err)
			os.Exit(1)
		}
		added, err := userService.ImportUsers(ctx, records)
		if err != nil {
			logger.Error("failed to import bootstrap users", "error", err)
			os.Exit(1)
		}
		logger.Info("bootstrap users imported", "added", added, "records", len(records))
	}

	console := &console{
		in:            os.Stdin,
		out:           os.Stdout,
		conferences:   conferenceService,
		events:        eventService,
		rooms:         roomService,
		conversations: conversationService,
		users:         userService,
	}
	console.run(ctx)

	// Persist once at shutdown; the collaborator owns the storage format.
	saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := storage.Save(saveCtx, entities.Snapshot()); err != nil {
		logger.Error("failed to save snapshot", "error", err)
		os.Exit(1)
	}
	logger.Info("snapshot saved")
}

// readBootstrapCSV parses provisioning records from a CSV file with
// id,full_name,password,is_god columns. The id column may be blank, in which
// case one is allocated at import.
func readBootstrapCSV(path string) ([]application.BootstrapRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = 4

	var records []application.BootstrapRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, application.BootstrapRecord{
			ID:       strings.TrimSpace(row[0]),
			FullName: strings.TrimSpace(row[1]),
			Password: row[2],
			IsGod:    strings.EqualFold(strings.TrimSpace(row[3]), "true"),
		})
	}
	return records, nil
}
