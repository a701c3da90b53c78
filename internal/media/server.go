package media

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"goconverse/internal/common"
	"goconverse/internal/logger"
)

// HTTPServer serves promoted attachment objects over HTTP. Paths mirror the
// keys in the object store, so the URLs produced by ObjectStorage.URL
// resolve against this server.
type HTTPServer struct {
	storage common.ObjectStorage
}

func NewHTTPServer(storage common.ObjectStorage) *HTTPServer {
	return &HTTPServer{storage: storage}
}

func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	router := mux.NewRouter()
	router.HandleFunc("/media/{path:.*}", s.serveObject).Methods("GET")
	router.HandleFunc("/health", s.health).Methods("GET")
	router.ServeHTTP(w, r)
}

func (s *HTTPServer) serveObject(w http.ResponseWriter, r *http.Request) {
	objectPath := mux.Vars(r)["path"]

	data, err := s.storage.Get(r.Context(), objectPath)
	if err != nil {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	contentType, err := s.storage.MimeType(r.Context(), objectPath)
	if err != nil || contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.Header().Set("Cache-Control", "private, max-age=86400")

	if _, err := w.Write(data); err != nil {
		logger.Warn("media response write failed",
			zap.String("path", objectPath),
			zap.Error(err))
	}
}

func (s *HTTPServer) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
