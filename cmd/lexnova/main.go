package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lexnova/lexnova/internal/api"
	"github.com/lexnova/lexnova/internal/app"
	"github.com/lexnova/lexnova/internal/call"
	"github.com/lexnova/lexnova/internal/config"
	"github.com/lexnova/lexnova/internal/db"
	"github.com/lexnova/lexnova/internal/devserver"
	"github.com/lexnova/lexnova/internal/joincode"
	"github.com/lexnova/lexnova/internal/mcpserver"
	"github.com/lexnova/lexnova/internal/report"
	"github.com/lexnova/lexnova/internal/state"
	"github.com/lexnova/lexnova/internal/transport/livekit"
	"github.com/lexnova/lexnova/internal/transport/relay"
)

func main() {
	exitFn(run(os.Args, os.Stdout, os.Stderr))
}

var exitFn = os.Exit

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	cmd := "tui"
	var rest []string
	if len(args) > 1 {
		cmd, rest = args[1], args[2:]
	}

	switch cmd {
	case "tui":
		return handleTUI(rest, stderr)
	case "login":
		return handleLogin(rest, stdout, stderr)
	case "logout":
		return handleLogout(rest, stdout, stderr)
	case "sessions":
		return handleSessions(rest, stdout, stderr)
	case "join":
		return handleJoin(rest, stdout, stderr)
	case "report":
		return handleReport(rest, stdout, stderr)
	case "mcp":
		return handleMCP(rest, stderr)
	case "devserver":
		return handleDevServer(rest, stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: lexnova <command> [flags]

commands:
  tui        interactive client (default)
  login      sign in and remember the token
  logout     forget the stored token
  sessions   list your sessions
  join       join a session by code and print the room token
  report     show a session report
  mcp        serve session tools over MCP stdio
  devserver  run the in-memory development backend`)
}

// env is the wiring shared by every client command.
type env struct {
	cfg      *config.Config
	store    *db.Store
	client   *api.Client
	auth     *state.AuthStore
	sessions *state.SessionStore
}

func openEnv(cfg *config.Config) (*env, error) {
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	var auth *state.AuthStore
	client := api.NewClient(cfg.APIURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithTokenSource(func() string { return auth.Token() }),
	)
	auth = state.NewAuthStore(client, store)
	if err := auth.Load(); err != nil {
		log.Printf("WARN: restore login: %v", err)
	}

	return &env{
		cfg:      cfg,
		store:    store,
		client:   client,
		auth:     auth,
		sessions: state.NewSessionStore(client),
	}, nil
}

func (e *env) Close() {
	e.store.Close()
}

func (e *env) newTransport() call.Transport {
	if e.cfg.Transport == config.TransportRelay {
		return relay.New()
	}
	return livekit.New()
}

// apiFlags registers the overrides shared by client commands.
func apiFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "backend API base URL")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "local state database")
}

func handleTUI(args []string, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	fs.StringVar(&cfg.RTCURL, "rtc", cfg.RTCURL, "media server URL")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "livekit or relay")
	path := fs.String("path", "/", "screen to open")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o700); err != nil {
		fmt.Fprintln(stderr, "create log dir:", err)
		return 1
	}
	f, err := tea.LogToFile(cfg.LogFile, "lexnova")
	if err != nil {
		fmt.Fprintln(stderr, "open log file:", err)
		return 1
	}
	defer f.Close()

	e, err := openEnv(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer e.Close()

	gate, err := report.NewGate(context.Background(), report.DefaultPolicy)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	deps := app.Deps{
		Auth:         e.auth,
		Sessions:     e.sessions,
		Client:       e.client,
		NewTransport: e.newTransport,
		RTCURL:       cfg.RTCURL,
		Gate:         gate,
		Certifier:    e.client,
		CertifyDelay: cfg.CertifyDelay,
	}
	p := tea.NewProgram(app.New(deps, *path), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func handleLogin(args []string, stdout io.Writer, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	email := fs.String("email", "", "account email (required)")
	password := fs.String("password", os.Getenv("LEXNOVA_PASSWORD"), "account password")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *email == "" || *password == "" {
		fmt.Fprintln(stderr, "login requires --email and --password")
		return 2
	}

	e, err := openEnv(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if err := e.auth.Login(ctx, *email, *password); err != nil {
		fmt.Fprintln(stderr, "login failed:", describe(err))
		return 1
	}
	fmt.Fprintf(stdout, "logged in as %s\n", e.auth.State().User.Name)
	return 0
}

func handleLogout(args []string, stdout io.Writer, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := openEnv(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer e.Close()

	e.auth.Logout()
	fmt.Fprintln(stdout, "logged out")
	return 0
}

func handleSessions(args []string, stdout io.Writer, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("sessions", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	jsonOut := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	e, err := openEnv(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer e.Close()
	if !e.auth.IsAuthenticated() {
		fmt.Fprintln(stderr, "not logged in; run lexnova login")
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	if err := e.sessions.FetchSessions(ctx); err != nil {
		fmt.Fprintln(stderr, "list sessions:", describe(err))
		return 1
	}
	sessions := e.sessions.Filter(strings.Join(fs.Args(), " "))

	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(sessions)
		return 0
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCOUPLE\tDATE\tSTATUS\tCODE")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s & %s\t%s\t%s\t%s\n",
			s.ID, s.GroomName, s.BrideName, s.Date, s.Status, joincode.Format(s.SessionCode))
	}
	tw.Flush()
	return 0
}

func handleJoin(args []string, stdout io.Writer, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	name := fs.String("name", "", "your full name (required)")
	role := fs.String("role", api.ParticipantGroom, "groom or bride")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || *name == "" {
		fmt.Fprintln(stderr, "join requires --name and <session_code>")
		return 2
	}
	if *role != api.ParticipantGroom && *role != api.ParticipantBride {
		fmt.Fprintln(stderr, "--role must be groom or bride")
		return 2
	}

	client := api.NewClient(cfg.APIURL, api.WithTimeout(cfg.HTTPTimeout))
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	res, err := client.Join(ctx, api.JoinRequest{
		SessionCode:     joincode.Normalize(fs.Arg(0)),
		ParticipantName: strings.TrimSpace(*name),
		ParticipantType: *role,
	})
	if err != nil {
		fmt.Fprintln(stderr, "join failed:", describe(err))
		return 1
	}
	fmt.Fprintf(stdout, "room=%s session=%s\n%s\n", res.RoomName, res.SessionID, res.Token)
	return 0
}

func handleReport(args []string, stdout io.Writer, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "report requires <session_id>")
		return 2
	}

	e, err := openEnv(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancel()
	rep, err := e.sessions.FetchReport(ctx, fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "fetch report:", describe(err))
		return 1
	}

	fa := rep.FraudAnalysis
	fmt.Fprintf(stdout, "session   %s\nduration  %s\nrisk      %d/100 (%s)\nvoice     %d%%\ncoercion  %t\n",
		rep.SessionID, rep.Duration, fa.RiskScore, report.BandFor(fa.RiskScore), fa.VoiceMatchConfidence, fa.CoercionDetected)
	for _, note := range fa.Notes {
		fmt.Fprintf(stdout, "  - %s\n", note)
	}
	if rep.Certified {
		fmt.Fprintf(stdout, "certified %s\n", rep.CertificationDate)
	} else {
		fmt.Fprintln(stdout, "not certified")
	}
	return 0
}

func handleMCP(args []string, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)
	apiFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// stdout carries the protocol.
	log.SetOutput(stderr)
	e, err := openEnv(cfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer e.Close()

	if err := mcpserver.Serve(e.sessions); err != nil {
		fmt.Fprintln(stderr, "mcp:", err)
		return 1
	}
	return 0
}

const (
	demoEmail    = "demo@lexnova.law"
	demoPassword = "demo1234"
)

func handleDevServer(args []string, stdout io.Writer, stderr io.Writer) int {
	cfg := config.Load()
	fs := flag.NewFlagSet("devserver", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", cfg.DevAddr, "listen address")
	secret := fs.String("secret", cfg.DevSecret, "token signing secret")
	step := fs.Duration("step", devserver.DefaultStepDelay, "agent delay per script step")
	demo := fs.Bool("demo", false, "create the "+demoEmail+" account")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	srv := devserver.New(devserver.Options{Secret: *secret, StepDelay: *step})
	if *demo {
		if _, err := srv.Store.Register(demoEmail, demoPassword, "Demo Counsel"); err != nil {
			fmt.Fprintln(stderr, "seed demo account:", err)
			return 1
		}
		fmt.Fprintf(stdout, "demo account: %s / %s\n", demoEmail, demoPassword)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(stdout, "devserver listening on %s (api under /api, relay at /rtc)\n", *addr)
		errCh <- srv.Start(*addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(stderr, "devserver:", err)
			return 1
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintln(stderr, "shutdown:", err)
		return 1
	}
	return 0
}

// describe prefers the backend's detail over the wrapped error chain.
func describe(err error) string {
	if errors.Is(err, state.ErrValidation) {
		return state.ValidationMessage(err)
	}
	if d := api.DetailOf(err); d != "" {
		return d
	}
	return err.Error()
}
