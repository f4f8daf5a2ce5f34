// Command memorygame starts the Memory Game server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing REST API, WebSocket, and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, preset and session directories, debug logging, version output,
// optional NATS event publication and optional ngrok tunneling for external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/peymanfazeli/Memory-game/api"
	"github.com/peymanfazeli/Memory-game/game/config"
	"github.com/peymanfazeli/Memory-game/game/service"
	"github.com/peymanfazeli/Memory-game/game/session"
	"github.com/peymanfazeli/Memory-game/transport/mcp"
	natspub "github.com/peymanfazeli/Memory-game/transport/nats"
	"github.com/peymanfazeli/Memory-game/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Memory Game Server"
)

const (
	sessionMaxAge        = 24 * time.Hour
	sessionCleanupPeriod = 1 * time.Hour
	filesystemSyncPeriod = 5 * time.Second
)

// Configuration flags control how the server starts and which services are enabled.
var (
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", envOrDefault("CONFIG_DIR", "configs"), "Directory containing game presets")
	sessionsDir  = flag.String("sessions-dir", envOrDefault("SESSIONS_DIR", "sessions"), "Directory for persisted sessions")
	natsURL      = flag.String("nats-url", "", "NATS server URL for event publication (or use NATS_URL env var)")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

// envOrDefault returns the environment variable key, or def when it is unset
func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                              # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090                   # Run HTTP server on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -nats-url nats://localhost   # Also publish game events to NATS\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp                    # Run MCP stdio server\n", os.Args[0])
	}
}

// services holds everything the server modes share
type services struct {
	configs     *config.Manager
	sessions    *session.Manager
	persistence *session.FilePersistence
	game        service.GameService
	hub         *websocket.Hub
	closers     []func()
}

// Close releases external connections
func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// main parses flags, initializes services, and starts the selected mode.
func main() {
	// Load .env file if it exists (ignore error if not found)
	envErr := godotenv.Load()

	flag.Parse()

	// Show version if requested
	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	setupLogging(os.Stderr, *debug, os.Getenv("LOG_LEVEL"))
	if envErr == nil {
		log.Info().Msg("loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		log.Warn().Err(envErr).Msg("failed to load .env file")
	}

	// Determine mode from command
	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}

	log.Info().Str("version", Version).Str("mode", mode).Msgf("starting %s", AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := initializeServices(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize services")
	}
	defer svc.Close()

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		runStdioMCPWithInternalServer(ctx, svc)

	case "server", "http":
		runHTTPServer(ctx, svc)

	default:
		log.Fatal().Str("mode", mode).Msg("unknown mode, use 'server' (default) or 'stdio-mcp'")
	}

	if err := svc.sessions.SaveAllSessions(); err != nil {
		log.Error().Err(err).Msg("failed to save sessions on shutdown")
	}
}

// setupLogging configures the global zerolog logger.
// debug selects a human-readable console writer at debug level.
func setupLogging(w io.Writer, debug bool, level string) {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err == nil {
			lvl = parsed
		}
	}

	if debug {
		lvl = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// initializeServices wires config and session managers, event sinks and the game service.
// It also starts the background routines that prune stale sessions; they stop with ctx.
func initializeServices(ctx context.Context) (*services, error) {
	// Create config manager first (needed for persistence)
	configManager, err := config.NewManager(*configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(*sessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	svc := &services{
		configs:     configManager,
		persistence: persistence,
		hub:         websocket.NewHub(),
	}

	sinks := service.MultiSink{svc.hub}
	url := *natsURL
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url != "" {
		conn, err := natspub.Connect(url)
		if err != nil {
			// events still reach websocket clients without NATS
			log.Warn().Err(err).Str("url", url).Msg("nats unavailable, events will not be published")
		} else {
			log.Info().Str("url", conn.ConnectedUrl()).Msg("publishing game events to nats")
			sinks = append(sinks, natspub.NewPublisher(conn))
			svc.closers = append(svc.closers, func() {
				if err := conn.Drain(); err != nil {
					log.Warn().Err(err).Msg("failed to drain nats connection")
				}
			})
		}
	}

	svc.sessions = session.NewManagerWithPersistence(persistence, session.WithEventSink(sinks))

	// Load persisted sessions on startup
	if err := svc.sessions.LoadPersistedSessions(); err != nil {
		log.Warn().Err(err).Msg("failed to load persisted sessions")
	}

	svc.game = service.NewGameService(svc.sessions, configManager)
	svc.hub.SetCommandHandler(svc.game)
	go svc.hub.Run(ctx)

	go sessionCleanupRoutine(ctx, svc.sessions, sessionCleanupPeriod, sessionMaxAge)
	go filesystemSyncRoutine(ctx, svc.sessions, persistence, filesystemSyncPeriod)

	return svc, nil
}

// newRouter mounts the API server and the /mcp endpoint
func newRouter(apiServer http.Handler, mcpServer *server.MCPServer) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", mcpHandler(mcpServer))
	return mainRouter
}

// mcpHandler serves single JSON-RPC MCP messages over HTTP POST
func mcpHandler(mcpServer *server.MCPServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpServer.HandleMessage(r.Context(), body)
		if response == nil {
			// notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	}
}

// runHTTPServer starts the HTTP server with REST API, WebSocket hub, and an /mcp proxy endpoint.
// If ngrok is enabled (via flag or environment), it also provisions a public tunnel.
// It returns once ctx is cancelled and the servers have shut down.
func runHTTPServer(ctx context.Context, svc *services) {
	addr := fmt.Sprintf("%s:%d", *host, *port)

	apiServer := api.NewServer(svc.game, svc.hub)
	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newRouter(apiServer, mcpClient.GetMCPServer())

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mainRouter,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info().
			Str("addr", addr).
			Str("api", fmt.Sprintf("http://%s/api", addr)).
			Str("websocket", fmt.Sprintf("ws://%s/ws?session=<session_id>", addr)).
			Str("mcp", fmt.Sprintf("http://%s/mcp", addr)).
			Msg("HTTP server listening")

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	if ngrokRequested() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(ctx, mainRouter)
		}()
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info().Msg("server stopped")
}

// ngrokRequested reports whether the tunnel is enabled by flag or NGROK_ENABLED
func ngrokRequested() bool {
	if *ngrokEnabled {
		return true
	}
	env := os.Getenv("NGROK_ENABLED")
	return env == "true" || env == "1"
}

// runNgrokTunnel serves handler through an ngrok tunnel until ctx is cancelled
func runNgrokTunnel(ctx context.Context, handler http.Handler) {
	// Get auth token from flag or environment (support both naming conventions)
	authToken := *ngrokAuth
	if authToken == "" {
		authToken = envOrDefault("NGROK_AUTHTOKEN", os.Getenv("NGROK_AUTH_TOKEN"))
	}
	if authToken == "" {
		log.Warn().Msg("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	domain := *ngrokDomain
	if domain == "" {
		domain = os.Getenv("NGROK_DOMAIN")
	}

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info().Str("domain", domain).Msg("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	log.Info().Msg("starting ngrok tunnel")
	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	ngrokServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ngrokServer.Shutdown(shutdownCtx)
	}()

	ngrokURL := tun.URL()
	log.Info().
		Str("url", ngrokURL).
		Str("api", ngrokURL+"/api").
		Str("websocket", ngrokURL+"/ws?session=<session_id>").
		Str("mcp", ngrokURL+"/mcp").
		Msg("🚀 ngrok tunnel established")

	if err := ngrokServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("ngrok server error")
	}
	log.Info().Msg("ngrok tunnel closed")
}

// sessionCleanupRoutine periodically removes sessions that have not been accessed
// within maxAge.
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, every, maxAge time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(maxAge); removed > 0 {
				log.Info().Int("removed", removed).Msg("cleaned up expired sessions")
			}
		}
	}
}

// filesystemSyncRoutine periodically drops in-memory sessions whose files were deleted
func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, every time.Duration) {
	if persistence == nil {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := syncWithFilesystem(manager, persistence); pruned > 0 {
				log.Info().Int("pruned", pruned).Msg("filesystem sync pruned orphaned sessions")
			}
		}
	}
}

// syncWithFilesystem removes sessions from memory when their files are gone.
// It returns the number of sessions pruned.
func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence) int {
	pruned := 0
	for _, sess := range manager.List() {
		if persistence.Exists(sess.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(sess.ID); err == nil {
			pruned++
			log.Debug().Str("session", sess.ID).Msg("pruned session from memory (file deleted)")
		}
	}
	return pruned
}

// externalAPIAvailable reports whether a game server already answers at baseURL
func externalAPIAvailable(baseURL string) bool {
	testClient := &http.Client{Timeout: 2 * time.Second}
	resp, err := testClient.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startInternalServer serves the API on a random loopback port and returns its base URL
func startInternalServer(ctx context.Context, svc *services) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("failed to get available port: %w", err)
	}

	httpServer := &http.Server{Handler: api.NewServer(svc.game, svc.hub)}
	go func() {
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("internal HTTP server error")
		}
	}()
	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	return fmt.Sprintf("http://%s", listener.Addr().String()), nil
}

// runStdioMCPWithInternalServer runs an MCP stdio server.
// It reuses an external API at the configured host and port if one answers; otherwise it
// starts an internal HTTP API bound to a random loopback port and targets that.
// Logs go to stderr so they never mix with the protocol on stdout.
func runStdioMCPWithInternalServer(ctx context.Context, svc *services) {
	externalURL := fmt.Sprintf("http://%s:%d", *host, *port)
	log.Info().Str("url", externalURL).Msg("checking for external API server")

	baseURL := externalURL
	if externalAPIAvailable(externalURL) {
		log.Info().Str("url", externalURL).Msg("external API server found, using it for MCP")
	} else {
		url, err := startInternalServer(ctx, svc)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to start internal HTTP server")
		}
		baseURL = url
		log.Info().Str("url", baseURL).Msg("started internal HTTP server for MCP stdio")
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info().Msg("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		log.Error().Err(err).Msg("MCP stdio server error")
	}
}
