package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/matteoser/PiemonteDB/pkg/config"
	"github.com/matteoser/PiemonteDB/pkg/core"
	"github.com/matteoser/PiemonteDB/pkg/storage"
)

// adminServer exposes operational introspection over HTTP beside the text
// protocol.
type adminServer struct {
	db     *core.Database
	cfg    *config.PiemonteConfig
	router *mux.Router
	server *http.Server
}

func newAdminServer(db *core.Database, cfg *config.PiemonteConfig) *adminServer {
	a := &adminServer{db: db, cfg: cfg, router: mux.NewRouter()}
	a.setupRoutes()
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.AdminPort),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	return a
}

func (a *adminServer) setupRoutes() {
	a.router.HandleFunc("/health", a.handleHealth).Methods("GET")
	a.router.HandleFunc("/stats", a.handleStats).Methods("GET")
	a.router.HandleFunc("/tables", a.handleTables).Methods("GET")
	a.router.HandleFunc("/tables/{name}", a.handleTable).Methods("GET")
}

func (a *adminServer) run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.server.Shutdown(shutdownCtx)
	}()
	log.Printf("admin endpoint on %s", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (a *adminServer) stop(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *adminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, map[string]interface{}{
		"status": "healthy",
		"tables": len(a.db.TableNames()),
	})
}

func (a *adminServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]storage.PoolStats)
	for _, name := range a.db.TableNames() {
		if table, ok := a.db.FindTable(name); ok {
			stats[name] = table.Pool().Stats()
		}
	}
	a.writeJSON(w, map[string]interface{}{
		"tables":   stats,
		"lob_size": a.db.LobHandler().Size(),
	})
}

func (a *adminServer) handleTables(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, map[string]interface{}{"tables": a.db.TableNames()})
}

func (a *adminServer) handleTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	table, ok := a.db.FindTable(name)
	if !ok {
		http.Error(w, "table not found", http.StatusNotFound)
		return
	}
	a.writeJSON(w, table.Meta())
}

func (a *adminServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
