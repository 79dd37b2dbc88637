package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/y0ug/ipamon/internal/state"
)

// Config holds the ops endpoint configuration. An empty Listen disables the
// server entirely.
type Config struct {
	Listen             string   `toml:"listen"`
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// WebServer exposes liveness and per-channel bookkeeping for operators. It
// serves no artifact data; the daemon remains a background poller.
type WebServer struct {
	store    state.Store
	channels []string
	config   Config
	logger   *logrus.Logger
}

// NewWebServer initializes a WebServer.
func NewWebServer(store state.Store, channels []string, config Config, logger *logrus.Logger) *WebServer {
	return &WebServer{
		store:    store,
		channels: channels,
		config:   config,
		logger:   logger,
	}
}

// StartWebServer starts the HTTP server in the background and returns it for
// graceful shutdown.
func StartWebServer(ctx context.Context, ws *WebServer) (*http.Server, error) {
	router := ws.InitRouter()

	corsOptions := cors.Options{
		AllowedOrigins: ws.config.CorsAllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}
	handler := cors.New(corsOptions).Handler(router)

	server := &http.Server{
		Addr:              ws.config.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		ws.logger.Infof("Ops server starting on %s", ws.config.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Errorf("ListenAndServe(): %v", err)
		}
	}()

	return server, nil
}

// InitRouter initializes the HTTP routes.
func (ws *WebServer) InitRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", ws.handleHealthz).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/channels", ws.handleGetChannels).Methods(http.MethodGet)

	return r
}

func (ws *WebServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// channelStatus is the per-channel view exposed to operators: the current
// fingerprint and which targets were already notified per fingerprint.
// Target identifiers are repository slugs, never credentials.
type channelStatus struct {
	Channel     string              `json:"channel"`
	Fingerprint string              `json:"fingerprint"`
	Dispatches  map[string][]string `json:"dispatches"`
}

// handleGetChannels handles the GET /api/channels endpoint.
func (ws *WebServer) handleGetChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	statuses := make([]channelStatus, 0, len(ws.channels))
	for _, channel := range ws.channels {
		channelState, err := ws.store.ChannelState(ctx, channel)
		if err != nil {
			ws.logger.WithError(err).WithField("channel", channel).Error("Failed to load channel state")
			http.Error(w, "failed to load channel state", http.StatusInternalServerError)
			return
		}
		statuses = append(statuses, channelStatus{
			Channel:     channel,
			Fingerprint: channelState.LastFingerprint,
			Dispatches:  channelState.Dispatches,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(statuses); err != nil {
		ws.logger.WithError(err).Error("Failed to encode channel statuses")
	}
}
