package dbadmin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperalpha/arena/internal/config"
)

// Tool exports and imports the arena databases with the postgres
// client binaries. Each step fails the run immediately.
type Tool struct {
	cfg    config.DatabaseConfig
	keyF   string
	logger *slog.Logger

	// run is swappable in tests.
	run func(ctx context.Context, env []string, name string, args ...string) ([]byte, error)
}

// NewTool creates a database admin tool. keyFile may be empty when no
// encryption key copy is wanted.
func NewTool(cfg config.DatabaseConfig, keyFile string, logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{
		cfg:    cfg,
		keyF:   keyFile,
		logger: logger,
		run:    runCommand,
	}
}

func runCommand(ctx context.Context, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

func pgEnv(db config.DBConfig) []string {
	// The password travels via env, never argv.
	return []string{"PGPASSWORD=" + db.Password}
}

func connArgs(db config.DBConfig, dbname string) []string {
	return []string{
		"-h", db.Host,
		"-p", strconv.Itoa(db.Port),
		"-U", db.User,
		"-d", dbname,
	}
}

// Export dumps both databases into dir and writes the key copy and
// manifest alongside them.
func (t *Tool) Export(ctx context.Context, dir string) (ExportSet, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ExportSet{}, fmt.Errorf("create export dir: %w", err)
	}
	set := NewExportSet(time.Now())

	if err := t.dump(ctx, t.cfg.Arena, filepath.Join(dir, set.MainDump)); err != nil {
		return set, fmt.Errorf("dump %s: %w", t.cfg.Arena.Name, err)
	}
	t.logger.Info("database exported", "db", t.cfg.Arena.Name, "file", set.MainDump)

	if err := t.dump(ctx, t.cfg.Snapshots, filepath.Join(dir, set.SnapshotsDump)); err != nil {
		return set, fmt.Errorf("dump %s: %w", t.cfg.Snapshots.Name, err)
	}
	t.logger.Info("database exported", "db", t.cfg.Snapshots.Name, "file", set.SnapshotsDump)

	if t.keyF != "" {
		if err := copyFile(t.keyF, filepath.Join(dir, set.KeyCopy)); err != nil {
			return set, fmt.Errorf("copy encryption key: %w", err)
		}
		t.logger.Info("encryption key copied", "file", set.KeyCopy)
	}

	if err := os.WriteFile(filepath.Join(dir, set.Manifest), []byte(t.manifest(set)), 0o644); err != nil {
		return set, fmt.Errorf("write manifest: %w", err)
	}
	return set, nil
}

func (t *Tool) dump(ctx context.Context, db config.DBConfig, outFile string) error {
	args := append(connArgs(db, db.Name),
		"--clean", "--if-exists", "--no-owner", "--no-acl",
		"-f", outFile,
	)
	_, err := t.run(ctx, pgEnv(db), "pg_dump", args...)
	return err
}

func (t *Tool) manifest(set ExportSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "export_timestamp: %s\n", set.Timestamp)
	fmt.Fprintf(&b, "main_db: %s -> %s\n", t.cfg.Arena.Name, set.MainDump)
	fmt.Fprintf(&b, "snapshots_db: %s -> %s\n", t.cfg.Snapshots.Name, set.SnapshotsDump)
	if t.keyF != "" {
		fmt.Fprintf(&b, "encryption_key: %s\n", set.KeyCopy)
	}
	return b.String()
}

// Import restores both databases from the newest export set in dir.
func (t *Tool) Import(ctx context.Context, dir string) error {
	mainDump, err := FindNewest(dir, PrefixMainDump, ".sql")
	if err != nil {
		return err
	}
	snapsDump, err := FindNewest(dir, PrefixSnapshotsDump, ".sql")
	if err != nil {
		return err
	}
	t.logger.Info("restoring from export set",
		"main", filepath.Base(mainDump), "snapshots", filepath.Base(snapsDump))

	if err := t.restore(ctx, t.cfg.Arena, mainDump); err != nil {
		return fmt.Errorf("restore %s: %w", t.cfg.Arena.Name, err)
	}
	if err := t.restore(ctx, t.cfg.Snapshots, snapsDump); err != nil {
		return fmt.Errorf("restore %s: %w", t.cfg.Snapshots.Name, err)
	}
	return nil
}

func (t *Tool) restore(ctx context.Context, db config.DBConfig, dumpFile string) error {
	if err := t.terminateConnections(ctx, db); err != nil {
		return fmt.Errorf("terminate connections: %w", err)
	}
	if err := t.recreate(ctx, db); err != nil {
		return fmt.Errorf("recreate database: %w", err)
	}

	args := append(connArgs(db, db.Name), "-v", "ON_ERROR_STOP=1", "-f", dumpFile)
	if _, err := t.run(ctx, pgEnv(db), "psql", args...); err != nil {
		return fmt.Errorf("psql restore: %w", err)
	}

	count, err := t.tableCount(ctx, db)
	if err != nil {
		return fmt.Errorf("verify restore: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("restore of %s produced no tables", db.Name)
	}
	t.logger.Info("database restored", "db", db.Name, "tables", count)
	return nil
}

// terminateConnections kicks every session off the target database so
// it can be dropped.
func (t *Tool) terminateConnections(ctx context.Context, db config.DBConfig) error {
	query := fmt.Sprintf(
		`SELECT pg_terminate_backend(pid) FROM pg_stat_activity
		 WHERE datname = '%s' AND pid <> pg_backend_pid();`, db.Name)
	args := append(connArgs(db, "postgres"), "-c", query)
	_, err := t.run(ctx, pgEnv(db), "psql", args...)
	return err
}

func (t *Tool) recreate(ctx context.Context, db config.DBConfig) error {
	drop := fmt.Sprintf(`DROP DATABASE IF EXISTS "%s";`, db.Name)
	create := fmt.Sprintf(`CREATE DATABASE "%s" OWNER "%s";`, db.Name, db.User)

	for _, stmt := range []string{drop, create} {
		args := append(connArgs(db, "postgres"), "-c", stmt)
		if _, err := t.run(ctx, pgEnv(db), "psql", args...); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tool) tableCount(ctx context.Context, db config.DBConfig) (int, error) {
	args := append(connArgs(db, db.Name), "-t", "-A", "-c",
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public';`)
	out, err := t.run(ctx, pgEnv(db), "psql", args...)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(out)))
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
