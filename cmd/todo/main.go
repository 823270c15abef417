package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ldi/todo/internal/config"
	"github.com/ldi/todo/internal/controller"
	"github.com/ldi/todo/internal/db"
	"github.com/ldi/todo/internal/logging"
	"github.com/ldi/todo/internal/mcp"
	"github.com/ldi/todo/internal/repository"
	"github.com/ldi/todo/internal/server"
	"github.com/ldi/todo/internal/ui"
	"github.com/ldi/todo/pkg/models"
)

const usage = `Usage: todo [flags] <command> [arguments]

Commands:
  tui                 Open the interactive list (default)
  add <title...>      Add a todo
  list                List todos (--filter all|active|completed, --query text)
  toggle <id>         Flip a todo between active and completed
  rm <id>             Delete a todo
  status              Show counts
  web                 Serve the HTTP API and web page (--addr host:port)
  mcp                 Serve MCP tools on stdio
  export [path]       Write a JSONL snapshot
  import [path]       Load a JSONL snapshot
  init [dir]          Create the data directory and database

Flags:
`

// runTUI draws the list screen; tests replace it.
var runTUI = func(ctx context.Context, ctrl *controller.Controller) error {
	return ui.Run(ctx, ctrl)
}

type app struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
	logger *log.Logger
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usage)
		fs.PrintDefaults()
	}

	cfg, err := config.Load(fs, args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	command := "tui"
	rest := fs.Args()
	if len(rest) > 0 {
		command, rest = rest[0], rest[1:]
	}

	a := &app{cfg: cfg, stdout: stdout, stderr: stderr}
	if command != "tui" {
		// Both formats were validated by config.Load.
		a.logger, _ = logging.New(stderr, cfg.LogLevel, cfg.LogFormat)
	}

	switch command {
	case "tui":
		err = a.runTUI(rest)
	case "add":
		err = a.runAdd(rest)
	case "list", "ls":
		err = a.runList(rest)
	case "toggle":
		err = a.runToggle(rest)
	case "rm", "delete":
		err = a.runDelete(rest)
	case "status":
		err = a.runStatus(rest)
	case "web":
		err = a.runWeb(rest)
	case "mcp":
		err = a.runMCP(rest)
	case "export":
		err = a.runExport(rest)
	case "import":
		err = a.runImport(rest)
	case "init":
		err = a.runInit(rest)
	case "help":
		fs.Usage()
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", command)
		fs.Usage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// openDB opens and initializes the configured database, with auto snapshots
// when enabled.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	database.SetLogger(a.logger)
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if a.cfg.AutoSnapshot {
		database.EnableAutoSnapshot(a.cfg.SnapshotPath, a.logger)
	}
	a.logger.Debug("database opened", "path", a.cfg.DBPath, "auto_snapshot", a.cfg.AutoSnapshot)
	return database, nil
}

func (a *app) runTUI(args []string) error {
	logger, closer, err := logging.NewFile(a.cfg.LogFile, a.cfg.LogLevel, a.cfg.LogFormat)
	if err != nil {
		return err
	}
	defer closer.Close()
	a.logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	ctrl := controller.New(repository.New(database), logger)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runErr := make(chan error, 1)
	go func() {
		runErr <- ctrl.Run(runCtx)
	}()

	err = runTUI(runCtx, ctrl)
	cancel()
	if rerr := <-runErr; rerr != nil && !errors.Is(rerr, context.Canceled) {
		logger.Error("controller stopped", "err", rerr)
		if err == nil {
			err = rerr
		}
	}
	return err
}

func (a *app) runAdd(args []string) error {
	title := strings.Join(args, " ")

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	t, err := repository.New(database).Add(ctx, title)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "✓ Added #%d %s\n", t.ID, t.Title)
	return nil
}

func (a *app) runList(args []string) error {
	listFlags := flag.NewFlagSet("list", flag.ContinueOnError)
	listFlags.SetOutput(a.stderr)
	filterName := listFlags.String("filter", "all", "Filter (all, active, completed)")
	query := listFlags.String("query", "", "Case-insensitive title search")
	if err := listFlags.Parse(args); err != nil {
		return err
	}
	filter, err := models.ParseFilter(*filterName)
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	todos, err := repository.New(database).Snapshot(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tTITLE\tCREATED")
	for _, t := range controller.Derive(todos, filter, *query) {
		done := " "
		if t.Done {
			done = "x"
		}
		fmt.Fprintf(tw, "%d\t[%s]\t%s\t%s\n", t.ID, done, t.Title, t.Created().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func (a *app) runToggle(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	repo := repository.New(database)
	t, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("%w: %d", db.ErrNotFound, id)
	}
	toggled := t.Toggled()
	if err := repo.Update(ctx, &toggled); err != nil {
		return err
	}

	state := "active"
	if toggled.Done {
		state = "completed"
	}
	fmt.Fprintf(a.stdout, "✓ #%d %s is now %s\n", toggled.ID, toggled.Title, state)
	return nil
}

func (a *app) runDelete(args []string) error {
	id, err := parseID(args)
	if err != nil {
		return err
	}

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := repository.New(database).Delete(ctx, &models.Todo{ID: id}); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "✓ Deleted #%d\n", id)
	return nil
}

func (a *app) runStatus(args []string) error {
	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	counts, err := database.CountTodos(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, "Todo Status")
	fmt.Fprintln(a.stdout, "===========")
	fmt.Fprintf(a.stdout, "Database:  %s\n", a.cfg.DBPath)
	fmt.Fprintf(a.stdout, "Total:     %d\n", counts.Total)
	fmt.Fprintf(a.stdout, "Active:    %d\n", counts.Active)
	fmt.Fprintf(a.stdout, "Completed: %d\n", counts.Completed)
	return nil
}

func (a *app) runWeb(args []string) error {
	webFlags := flag.NewFlagSet("web", flag.ContinueOnError)
	webFlags.SetOutput(a.stderr)
	addr := webFlags.String("addr", a.cfg.WebAddr, "Address to listen on")
	if err := webFlags.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := server.NewServer(repository.New(database), a.logger)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(a.stdout, "Serving on http://%s\n", *addr)
	if err := srv.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *app) runMCP(args []string) error {
	database, err := a.openDB(context.Background())
	if err != nil {
		return err
	}
	defer database.Close()

	return mcp.Serve(mcp.NewServer(repository.New(database), a.logger))
}

func (a *app) runExport(args []string) error {
	path := a.cfg.SnapshotPath
	if len(args) > 0 {
		path = args[0]
	}

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.ExportSnapshot(ctx, path); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "✓ Exported snapshot to %s\n", path)
	return nil
}

func (a *app) runImport(args []string) error {
	path := a.cfg.SnapshotPath
	if len(args) > 0 {
		path = args[0]
	}

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	n, err := database.ImportSnapshot(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to import snapshot: %w", err)
	}
	fmt.Fprintf(a.stdout, "✓ Imported %d todos from %s\n", n, path)
	return nil
}

func (a *app) runInit(args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	dataDir := filepath.Join(targetDir, config.DefaultDir)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.DefaultDir, err)
	}
	fmt.Fprintf(a.stdout, "✓ Created %s/ directory\n", config.DefaultDir)

	gitignorePath := filepath.Join(dataDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("todo.db*\ntodo.log\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(a.stdout, "✓ Created %s/.gitignore\n", config.DefaultDir)

	// Default paths are relative to the target directory.
	if a.cfg.DBPath == config.DefaultDBPath {
		a.cfg.DBPath = filepath.Join(targetDir, config.DefaultDBPath)
	}
	if a.cfg.SnapshotPath == config.DefaultSnapshotPath {
		a.cfg.SnapshotPath = filepath.Join(targetDir, config.DefaultSnapshotPath)
	}

	// Importing must not rewrite the snapshot it reads from.
	a.cfg.AutoSnapshot = false

	ctx := context.Background()
	database, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()
	fmt.Fprintf(a.stdout, "✓ Initialized database at %s\n", a.cfg.DBPath)

	if _, err := os.Stat(a.cfg.SnapshotPath); err == nil {
		n, err := database.ImportSnapshot(ctx, a.cfg.SnapshotPath)
		if err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Fprintf(a.stdout, "✓ Imported %d todos from %s\n", n, a.cfg.SnapshotPath)
	}

	fmt.Fprintln(a.stdout, "✓ Todo initialized successfully")
	return nil
}

func parseID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one todo id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid todo id %q", args[0])
	}
	return id, nil
}
