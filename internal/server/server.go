package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/The127/ioc"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/the127/stevedore/internal/config"
	"github.com/the127/stevedore/internal/handlers/adminhandlers"
	"github.com/the127/stevedore/internal/handlers/uploadhandlers"
	"github.com/the127/stevedore/internal/logging"
	"github.com/the127/stevedore/internal/middlewares"

	gh "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func Serve(root *ioc.DependencyProvider, serverConfig config.ServerConfig) {
	r := mux.NewRouter()

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.Logger.Infof("Not found API Request: %s %s", r.Method, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]string{
				{"code": "NOT_FOUND", "message": "route not found"},
			},
		})
	})

	r.Use(middlewares.RecoverMiddleware())
	r.Use(middlewares.LoggingMiddleware())
	r.Use(middlewares.ScopeMiddleware(root))

	r.Use(gh.CORS(
		gh.AllowedOrigins(serverConfig.AllowedOrigins),
		gh.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "PATCH"}),
		gh.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		gh.AllowCredentials(),
		gh.MaxAge(3600),
	))

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	mapUploadApi(r)
	mapAdminApi(r)

	addr := fmt.Sprintf("%s:%d", serverConfig.Host, serverConfig.Port)
	logging.Logger.Infof("Starting server on %s", addr)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go serve(srv)
}

func serve(srv *http.Server) {
	err := srv.ListenAndServe()
	if err != nil {
		panic(fmt.Errorf("error while running server: %w", err))
	}
}

func mapUploadApi(r *mux.Router) {
	apiRouter := r.PathPrefix("/api/v1/uploads").Subrouter()
	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	apiRouter.HandleFunc("", uploadhandlers.CreateUpload).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/{session}/chunks/{index}", uploadhandlers.UploadChunk).Methods(http.MethodPut, http.MethodOptions)
	apiRouter.HandleFunc("/{session}/resume", uploadhandlers.ResumeUpload).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/{session}/complete", uploadhandlers.CompleteUpload).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/{session}", uploadhandlers.GetProgress).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/{session}", uploadhandlers.CancelUpload).Methods(http.MethodDelete, http.MethodOptions)
}

func mapAdminApi(r *mux.Router) {
	apiRouter := r.PathPrefix("/admin/api/v1").Subrouter()
	apiRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	apiRouter.HandleFunc("/limits", adminhandlers.GetLimits).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/limits", adminhandlers.UpdateLimits).Methods(http.MethodPut, http.MethodOptions)
	apiRouter.HandleFunc("/limits", adminhandlers.PatchLimits).Methods(http.MethodPatch, http.MethodOptions)

	apiRouter.HandleFunc("/transfer-settings", adminhandlers.GetTransferSettings).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/transfer-settings", adminhandlers.UpdateTransferSettings).Methods(http.MethodPut, http.MethodOptions)

	apiRouter.HandleFunc("/memory", adminhandlers.GetMemoryStats).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/uploads", adminhandlers.ListActiveUploads).Methods(http.MethodGet, http.MethodOptions)
}
