package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"stockproxy/internal/indicator"
	"stockproxy/internal/logger"
	"stockproxy/internal/provider"
)

// indicators is the part of indicator.Service the routes need.
type indicators interface {
	OHLC(ctx context.Context, symbol string) ([]indicator.OHLC, error)
	RSI(ctx context.Context, symbol string, timePeriod int) ([]indicator.RSI, error)
	MACD(ctx context.Context, symbol string) ([]indicator.MACD, error)
	DoubleSMA(ctx context.Context, symbol string) ([]indicator.DoubleSMA, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// routes registers the stock and health endpoints on a new mux.
func routes(svc indicators, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, healthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	})
	mux.HandleFunc("GET /stock/{symbol}/ohlc", func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.OHLC(r.Context(), r.PathValue("symbol"))
		respond(w, r, log, v, err)
	})
	mux.HandleFunc("GET /stock/{symbol}/rsi", func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.RSI(r.Context(), r.PathValue("symbol"), timePeriod(r.URL.Query().Get("time_period")))
		respond(w, r, log, v, err)
	})
	mux.HandleFunc("GET /stock/{symbol}/macd", func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.MACD(r.Context(), r.PathValue("symbol"))
		respond(w, r, log, v, err)
	})
	mux.HandleFunc("GET /stock/{symbol}/mult2", func(w http.ResponseWriter, r *http.Request) {
		v, err := svc.DoubleSMA(r.Context(), r.PathValue("symbol"))
		respond(w, r, log, v, err)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	})
	return mux
}

// timePeriod reads the rsi time_period query value the lenient way: a
// leading integer is used, anything else (or zero) means the default.
func timePeriod(raw string) int {
	n, ok := indicator.ParseInt(raw)
	if !ok || n == 0 || n != int64(int(n)) {
		return indicator.DefaultRSIPeriod
	}
	return int(n)
}

func respond(w http.ResponseWriter, r *http.Request, log *slog.Logger, v any, err error) {
	if err != nil {
		status := provider.StatusOf(err)
		l := logger.FromContext(r.Context(), log).With(
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
		if status >= http.StatusInternalServerError {
			l.Error("request failed")
		} else {
			l.Warn("request failed")
		}
		writeJSON(w, status, errorResponse{Error: provider.MessageOf(err)})
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
