package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/psychx/careercoach/internal/assessment"
	"github.com/psychx/careercoach/internal/coaching"
	"github.com/psychx/careercoach/internal/handler"
	appI18n "github.com/psychx/careercoach/internal/i18n"
	"github.com/psychx/careercoach/internal/llm"
	"github.com/psychx/careercoach/internal/lock"
	"github.com/psychx/careercoach/internal/model"
	"github.com/psychx/careercoach/internal/scheduling"
	"github.com/psychx/careercoach/internal/seed"
	"github.com/psychx/careercoach/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "careercoach",
		Short: "Career guidance server: consultant booking and adaptive weekly coaching",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), seedCmd(), userAddCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `careercoach --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "careercoach.db", "SQLite database path")
	f.String("llm-backend", llm.BackendOpenAI, "Generation backend (openai, ollama)")
	f.String("llm-url", "http://localhost:11434/v1", "Backend base URL (OpenAI-compatible /v1 root, or Ollama host)")
	f.String("llm-key", "ollama", "API key for the OpenAI-compatible backend")
	f.String("llm-model", "llama3.2", "Model name")
	f.Duration("llm-timeout", 60*time.Second, "Per-request generation timeout")
	f.Bool("llm-ping", true, "Check the generation backend at startup")
	f.StringP("lang", "l", "en", "Default message language (en, hi)")
	f.String("jwt-secret", "", "HMAC secret for access tokens (or set CAREERCOACH_JWT_SECRET)")
	f.Duration("token-ttl", model.DefaultTokenTTL, "Access token lifetime")
	f.String("redis-addr", "", "Redis address for shared locks; empty uses in-process locks")
	f.String("redis-password", "", "Redis password")
	f.Int("redis-db", 0, "Redis database number")
	f.String("assignment-policy", string(scheduling.PolicyFirst), "Consultant assignment policy (first, least-booked)")
	f.String("admin-email", seed.DefaultAdminEmail, "Login of the admin created on an empty database")
	f.String("admin-password", "", "Initial admin password (or set CAREERCOACH_ADMIN_PASSWORD)")
	f.String("seed", "", "Seed YAML file with users and availability to import at startup")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export sessions, tracker progress and consultant load as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "careercoach.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import users and consultant availability from a YAML file",
		RunE:  runSeed,
	}
	f := cmd.Flags()
	f.String("db", "careercoach.db", "SQLite database path")
	f.StringP("file", "f", "", "Seed YAML file (required)")
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func userAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "useradd",
		Short: "Create a user account",
		RunE:  runUserAdd,
	}
	f := cmd.Flags()
	f.String("db", "careercoach.db", "SQLite database path")
	f.String("email", "", "Login email (required)")
	f.String("password", "", "Password (required)")
	f.String("first-name", "", "First name")
	f.String("last-name", "", "Last name")
	f.String("role", string(model.UserRoleLearner), "Role (learner, consultant, admin)")
	f.String("tier", string(model.TierFree), "Learner tier (free, standard, premium)")
	f.String("class", "", "Learner's current class")
	addLogFlags(cmd)
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CAREERCOACH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("careercoach")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/careercoach")
	v.AddConfigPath("/etc/careercoach")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// guardTTL returns how long the per-learner tracker guard is held. It must
// outlive a generation call that runs to its timeout.
func guardTTL(llmTimeout time.Duration) (time.Duration, error) {
	if llmTimeout <= 0 {
		return 0, fmt.Errorf("--llm-timeout must be positive, got %s", llmTimeout)
	}
	return 2*llmTimeout + 30*time.Second, nil
}

// newLocker returns a redis-backed locker when addr is set, so that several
// server instances share booking and tracker locks.
func newLocker(ctx context.Context, addr, password string, db int) (lock.Locker, func(), error) {
	if addr == "" {
		slog.Info("using in-process locks")
		return lock.NewLocal(), func() {}, nil
	}
	r, err := lock.NewRedis(ctx, addr, password, db)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using redis locks", "addr", addr, "db", db)
	return r, func() { _ = r.Close() }, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtSecret := v.GetString("jwt-secret")
	if jwtSecret == "" {
		return errors.New("jwt secret is required: set --jwt-secret flag or CAREERCOACH_JWT_SECRET env var")
	}
	policy, err := scheduling.ParsePolicy(v.GetString("assignment-policy"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := seed.Admin(ctx, db, v.GetString("admin-email"), v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if path := v.GetString("seed"); path != "" {
		if err := importSeedFile(ctx, db, path); err != nil {
			return err
		}
	}
	if err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up expired auth sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	llmTimeout := v.GetDuration("llm-timeout")
	genGuardTTL, err := guardTTL(llmTimeout)
	if err != nil {
		return err
	}
	llmClient, err := llm.New(llm.Config{
		Backend: v.GetString("llm-backend"),
		BaseURL: v.GetString("llm-url"),
		APIKey:  v.GetString("llm-key"),
		Model:   v.GetString("llm-model"),
		Timeout: llmTimeout,
	})
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	if v.GetBool("llm-ping") {
		if err := llmClient.Ping(ctx); err != nil {
			return err
		}
		slog.Info("LLM endpoint OK", "backend", v.GetString("llm-backend"), "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	locker, closeLocker, err := newLocker(ctx, v.GetString("redis-addr"), v.GetString("redis-password"), v.GetInt("redis-db"))
	if err != nil {
		return fmt.Errorf("connect lock backend: %w", err)
	}
	defer closeLocker()

	cfg := model.ServerConfig{
		Lang:             lang,
		JWTSecret:        jwtSecret,
		TokenTTL:         v.GetDuration("token-ttl"),
		AssignmentPolicy: string(policy),
		GenerateTimeout:  llmTimeout,
	}

	engine := scheduling.NewEngine(db, locker, scheduling.WithPolicy(policy))
	coach := coaching.NewService(db, llmClient, locker, genGuardTTL)
	assess := assessment.NewService(db, llmClient, locker, genGuardTTL)

	h, err := handler.New(db, engine, coach, assess, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"llm_backend", v.GetString("llm-backend"),
			"model", v.GetString("llm-model"),
			"lang", lang,
			"assignment_policy", policy,
			"redis", v.GetString("redis-addr") != "",
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func importSeedFile(ctx context.Context, db *store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := seed.Import(ctx, db, path, data); err != nil {
		return fmt.Errorf("import seed: %w", err)
	}
	return nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return importSeedFile(cmd.Context(), db, v.GetString("file"))
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	role := model.UserRole(v.GetString("role"))
	switch role {
	case model.UserRoleLearner, model.UserRoleConsultant, model.UserRoleAdmin:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	tier := model.Tier(strings.ToLower(v.GetString("tier")))
	switch tier {
	case model.TierFree, model.TierStandard, model.TierPremium:
	default:
		return fmt.Errorf("unknown tier %q", tier)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(v.GetString("password")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{
		FirstName:    v.GetString("first-name"),
		LastName:     v.GetString("last-name"),
		Email:        strings.TrimSpace(v.GetString("email")),
		PasswordHash: string(hash),
		Role:         role,
		Tier:         tier,
		CurrentClass: v.GetString("class"),
		Active:       true,
	}
	if err := db.CreateUser(cmd.Context(), u); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (%s)\n", u.Role, u.Email, u.ID)
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.Export(cmd.Context())
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
