// SPDX-FileCopyrightText: © 2025 DSLab - Fondazione Bruno Kessler
//
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// HandlerConfig configures the HTTP surface of the relay.
type HandlerConfig struct {
	// Path is the route the proxy endpoint is mounted on (default "/proxy").
	Path string
	// RateLimitRPS is the sustained per-client request rate (default 50).
	RateLimitRPS float64
	// RateLimitBurst is the per-client burst capacity (default 100).
	RateLimitBurst int
	Logger         *slog.Logger
}

// errorBody is the JSON error shape the handler writes on failures.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

const errTimeout = "TIMEOUT"

// NewRouter mounts the proxy endpoint on a chi router with CORS, panic
// recovery, request ids and per-client rate limiting. Preflight OPTIONS
// requests are always answered by the relay itself, independent of the
// wrapped call: the caller's origin is echoed and credentials allowed.
func NewRouter(ex *Executor, cfg HandlerConfig) chi.Router {
	if cfg.Path == "" {
		cfg.Path = "/proxy"
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(r *http.Request, origin string) bool { return true },
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Accept", "Origin", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(clientRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Post(cfg.Path, proxyHandler(ex, log))

	return r
}

func proxyHandler(ex *Executor, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqID := chimw.GetReqID(r.Context())
		if reqID == "" {
			reqID = uuid.NewString()
		}

		var req ProxyRequest
		body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid proxy request: "+err.Error())
			return
		}
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "url is required")
			return
		}

		log.Info("relay call", "id", reqID, "method", req.Method, "url", req.URL)

		env, err := ex.Execute(r.Context(), req)
		if err != nil {
			var terr *TransportError
			switch {
			case errors.Is(err, ErrRelayTimeout):
				log.Warn("relay call timed out", "id", reqID, "url", req.URL)
				writeError(w, http.StatusGatewayTimeout, errTimeout, err.Error())
			case errors.As(err, &terr):
				log.Warn("relay transport failure", "id", reqID, "url", req.URL, "err", terr.Err)
				writeError(w, http.StatusBadGateway, "TRANSPORT", terr.Error())
			default:
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(env); err != nil {
			log.Error("encode envelope failed", "id", reqID, "err", err)
		}
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: code, Message: msg})
}
