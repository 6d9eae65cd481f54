package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jask/jasktasks/internal/config"
	"github.com/jask/jasktasks/internal/database"
	"github.com/jask/jasktasks/internal/database/repository"
	"github.com/jask/jasktasks/internal/prefs"
	"github.com/jask/jasktasks/internal/service"
	"github.com/jask/jasktasks/internal/tui"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if cmd != "" && cmd != "export" {
		fmt.Fprintf(os.Stderr, "usage: jasktasks [export]\n")
		os.Exit(2)
	}

	rec, closeStore, err := openRecord(cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer closeStore()

	if cmd == "export" {
		out, err := exportTasks(ctx, rec)
		if err != nil {
			log.Fatalf("export: %v", err)
		}
		fmt.Println(out)
		return
	}
	runTUI(ctx, cfg, rec)
}

func exportTasks(ctx context.Context, rec service.Persistence) (string, error) {
	store := service.NewTaskStore(rec, log.New(os.Stderr, "", 0))
	store.Restore(ctx)
	return store.Export()
}

func runTUI(ctx context.Context, cfg config.Config, rec service.Persistence) {
	if err := os.MkdirAll(filepath.Dir(cfg.Log.Path), 0o755); err != nil {
		log.Fatalf("mkdir log dir: %v", err)
	}
	logFile, err := tea.LogToFile(cfg.Log.Path, "jasktasks")
	if err != nil {
		log.Fatalf("log file: %v", err)
	}
	defer logFile.Close()

	store := service.NewTaskStore(rec, log.Default())
	p := tea.NewProgram(tui.New(ctx, cfg, store), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// openRecord returns the configured task record and a func that releases it.
func openRecord(cfg config.Config) (service.Persistence, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendFile:
		rec, err := prefs.NewFileRecord(cfg.Storage.FilePath, cfg.Storage.Key)
		if err != nil {
			return nil, nil, err
		}
		return rec, func() {}, nil
	default:
		if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("mkdir db dir: %w", err)
		}
		db, err := database.OpenMigrated(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		closeDB := func() { closeQuietly(db) }
		return repository.NewRecordRepo(db).Record(cfg.Storage.Key), closeDB, nil
	}
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Printf("warn: close db: %v", err)
	}
}
