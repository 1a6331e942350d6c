package controller

import (
	"net/http"

	"github.com/canopy-network/questview/app/questview/types"
	"github.com/canopy-network/questview/pkg/utils"
	"github.com/gorilla/mux"
)

type Controller struct {
	App          *types.App
	AdminToken   string
	OperatorUser string
	OperatorHash []byte
	JWTSecret    []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	phash, _ := utils.HashOrRead(app.Config.OperatorPassword)

	return &Controller{
		App:          app,
		AdminToken:   app.Config.AdminToken,
		OperatorUser: app.Config.OperatorUser,
		OperatorHash: phash,
		JWTSecret:    []byte(app.Config.SessionSecret),
	}
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		// Echo back the origin to allow credentials with any origin
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/api/health", http.HandlerFunc(c.HandleHealth)).Methods(http.MethodGet)

	r.HandleFunc("/api/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", c.HandleLogout).Methods(http.MethodPost)

	// Reads
	r.Handle("/api/snapshot", http.HandlerFunc(c.HandleSnapshot)).Methods(http.MethodGet)
	r.Handle("/api/receipts", c.RequireAuth(http.HandlerFunc(c.HandleReceipts))).Methods(http.MethodGet)
	r.HandleFunc("/ws", c.HandleWebSocket).Methods(http.MethodGet)

	// Commands
	r.Handle("/api/wallet/connect", c.RequireAuth(http.HandlerFunc(c.HandleConnectWallet))).Methods(http.MethodPost)
	r.Handle("/api/quests/{id}/join", c.RequireAuth(http.HandlerFunc(c.HandleJoin))).Methods(http.MethodPost)
	r.Handle("/api/quests/{id}/submit", c.RequireAuth(http.HandlerFunc(c.HandleSubmit))).Methods(http.MethodPost)
	r.Handle("/api/sync", c.RequireAuth(http.HandlerFunc(c.HandleSync))).Methods(http.MethodPost)

	return r, nil
}
