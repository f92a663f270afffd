package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"workroom/auth"
	"workroom/observability"
	"workroom/services"
)

// StartDebugServer exposes monitoring counters and a few development
// helpers on a localhost port. Only wired when the log level is DEBUG;
// not part of the public surface.
func StartDebugServer(core services.Core, tokens *auth.TokenManager,
	monitoring *observability.Monitoring, port int, log *slog.Logger) {

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, monitoring.Snapshot())
	})
	// Mints a token for manual testing against the route layer.
	mux.HandleFunc("POST /dev/token", func(w http.ResponseWriter, r *http.Request) {
		userID := r.URL.Query().Get("user")
		if userID == "" {
			http.Error(w, "missing user", http.StatusBadRequest)
			return
		}
		token, err := tokens.GenerateToken(userID, []string{"member"})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"token": token})
	})
	mux.HandleFunc("GET /dev/unread", func(w http.ResponseWriter, r *http.Request) {
		roomID, err := uuid.Parse(r.URL.Query().Get("room"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		userID := r.URL.Query().Get("user")
		count, err := core.Messages.UnreadCount(roomID, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]uint64{"unread": count})
	})

	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("localhost:%d", port), mux); err != nil {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
