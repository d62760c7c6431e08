package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadsync/internal/lead"
	"github.com/sells-group/leadsync/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook intake server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		mux := newServeMux(lead.NewResolver(st))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// webhookLeadRequest is the intake payload; field names match the lead's
// JSON shape.
type webhookLeadRequest struct {
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Organization string `json:"organization"`
	Title        string `json:"title"`
	Phone        string `json:"phone"`
	Website      string `json:"website"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	LeadType     string `json:"lead_type"`
}

// newServeMux builds the intake server routes around the given resolver.
func newServeMux(resolver *lead.Resolver) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /webhook/lead", func(w http.ResponseWriter, r *http.Request) {
		var req webhookLeadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}

		l, err := lead.Normalize(lead.RawRow{
			Email:        req.Email,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Organization: req.Organization,
			Title:        req.Title,
			Phone:        req.Phone,
			Website:      req.Website,
			City:         req.City,
			State:        req.State,
			Country:      req.Country,
			LeadType:     req.LeadType,
		}, model.SourceWebhook)
		if err != nil {
			http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
			return
		}

		stored, created, err := resolver.Upsert(r.Context(), l)
		if err != nil {
			zap.L().Error("webhook upsert failed", zap.Error(err))
			http.Error(w, `{"error":"storage failure"}`, http.StatusInternalServerError)
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"lead_id": stored.ID,
			"created": created,
		})
	})

	return mux
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
