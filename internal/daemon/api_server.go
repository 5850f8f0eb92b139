package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"tryon/internal/catalog"
	"tryon/internal/config"
	"tryon/internal/crops"
	"tryon/internal/fileutil"
	"tryon/internal/janitor"
	"tryon/internal/logging"
	"tryon/internal/queue"
	"tryon/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/products", srv.handleProducts)
	mux.HandleFunc("/api/products/", srv.handleProduct)
	mux.HandleFunc("/api/queue", srv.handleQueue)
	mux.HandleFunc("/api/queue/", srv.handleQueueItem)
	mux.HandleFunc("/api/process/", srv.handleProcess)
	mux.HandleFunc("/api/approve/", srv.handleApprove)
	mux.HandleFunc("/api/crops/", srv.handleCropUpload)
	mux.HandleFunc("/api/images/", srv.handleImage)
	mux.HandleFunc("/api/processed/", srv.handleProcessedImage)
	mux.HandleFunc("/api/gc", srv.handleGC)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the API mux, used by tests via httptest.
func (s *apiServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status())
}

type productsResponse struct {
	Products []catalog.Product `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func (s *apiServer) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	query := r.URL.Query()
	force := queryBool(query.Get("refresh"))
	products, err := s.daemon.catalog.Refresh(force)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	if queryBool(query.Get("pending_only")) {
		filtered := products[:0:0]
		for _, product := range products {
			if !product.HasVtonImage() {
				filtered = append(filtered, product)
			}
		}
		products = filtered
	}

	page := queryInt(query.Get("page"), 1)
	pageSize := queryInt(query.Get("page_size"), 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	total := len(products)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	s.writeJSON(w, http.StatusOK, productsResponse{
		Products: products[start:end],
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *apiServer) handleProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/products/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	product, err := s.daemon.catalog.Lookup(id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, product)
}

type queueListResponse struct {
	Items   []queue.Item  `json:"items"`
	Summary queue.Summary `json:"summary"`
}

type enqueueRequest struct {
	ProductID     string `json:"product_id"`
	ImageFilename string `json:"image_filename"`
	IsCropped     bool   `json:"is_cropped"`
}

type enqueueResponse struct {
	Item  queue.Item `json:"item"`
	Added bool       `json:"added"`
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, queueListResponse{
			Items:   s.daemon.store.Items(),
			Summary: s.daemon.store.Summarize(),
		})
	case http.MethodPost:
		var req enqueueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.ProductID = strings.TrimSpace(req.ProductID)
		req.ImageFilename = strings.TrimSpace(req.ImageFilename)
		if req.ProductID == "" || req.ImageFilename == "" {
			s.writeError(w, http.StatusBadRequest, "product_id and image_filename are required")
			return
		}
		if !req.IsCropped {
			if _, err := s.daemon.catalog.Lookup(req.ProductID); err != nil {
				s.writeServiceError(w, err)
				return
			}
		}
		item, added, err := s.daemon.store.Add(req.ProductID, req.ImageFilename, req.IsCropped)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		status := http.StatusOK
		if added {
			status = http.StatusCreated
			s.daemon.workflow.RunJanitor()
		}
		s.writeJSON(w, status, enqueueResponse{Item: item, Added: added})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type clearApprovedResponse struct {
	Removed   int            `json:"removed"`
	Reclaimed janitor.Counts `json:"reclaimed"`
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	if rest == "approved" {
		removed, err := s.daemon.store.ClearApproved()
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		counts := s.daemon.workflow.RunJanitor()
		s.writeJSON(w, http.StatusOK, clearApprovedResponse{Removed: removed, Reclaimed: counts})
		return
	}

	productID, filename, ok := splitItemPath(rest)
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if err := s.daemon.store.Remove(productID, filename); err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.daemon.workflow.RunJanitor()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *apiServer) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	productID, filename, ok := splitItemPath(strings.TrimPrefix(r.URL.Path, "/api/process/"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if err := s.daemon.ProcessNow(r.Context(), productID, filename); err != nil {
		if services.IsNotFound(err) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if strings.Contains(err.Error(), "already processing") || strings.Contains(err.Error(), "only pending") {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	item, _ := s.daemon.store.Find(productID, filename)
	s.writeJSON(w, http.StatusOK, item)
}

func (s *apiServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	productID, filename, ok := splitItemPath(strings.TrimPrefix(r.URL.Path, "/api/approve/"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	processedName := strings.TrimSpace(r.URL.Query().Get("processed"))
	if processedName == "" {
		processedName = queue.ProcessedFilename(productID, filename)
	}
	result, err := s.daemon.approval.Approve(r.Context(), productID, filename, processedName)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type cropUploadResponse struct {
	Filename string `json:"filename"`
}

func (s *apiServer) handleCropUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	productID := strings.TrimPrefix(r.URL.Path, "/api/crops/")
	if productID == "" || strings.Contains(productID, "/") {
		s.writeError(w, http.StatusNotFound, "product not found")
		return
	}
	if _, err := s.daemon.catalog.Lookup(productID); err != nil {
		s.writeServiceError(w, err)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "multipart field image is required")
		return
	}
	defer file.Close()

	name, err := s.daemon.crops.Save(header.Filename, file)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, cropUploadResponse{Filename: name})
}

func (s *apiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	productID, filename, ok := splitItemPath(strings.TrimPrefix(r.URL.Path, "/api/images/"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "image not found")
		return
	}
	path, err := s.imagePath(productID, filename)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if queryBool(r.URL.Query().Get("thumb")) {
		path = s.daemon.thumbs.Resolve(productID, path)
	}
	if !fileutil.Exists(path) {
		s.writeError(w, http.StatusNotFound, "image not found")
		return
	}
	http.ServeFile(w, r, path)
}

// imagePath resolves a requested image filename to a path on disk. Uploaded
// crops live in the temp-crop area rather than the product's garment
// directory, so crop-named files resolve there first.
func (s *apiServer) imagePath(productID, filename string) (string, error) {
	if crops.IsCropName(filename) {
		if path, err := s.daemon.crops.Path(filename); err == nil && fileutil.Exists(path) {
			return path, nil
		}
	}
	product, err := s.daemon.catalog.Lookup(productID)
	if err != nil {
		return "", err
	}
	return product.ImagePath(filename), nil
}

func (s *apiServer) handleProcessedImage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/processed/")
	if name == "" || name != filepath.Base(name) {
		s.writeError(w, http.StatusNotFound, "processed image not found")
		return
	}
	path := filepath.Join(s.daemon.cfg.Paths.ProcessedDir, name)
	if !fileutil.Exists(path) {
		s.writeError(w, http.StatusNotFound, "processed image not found")
		return
	}
	http.ServeFile(w, r, path)
}

func (s *apiServer) handleGC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.workflow.RunJanitor())
}

// splitItemPath parses "<product_id>/<filename>" path suffixes.
func splitItemPath(rest string) (string, string, bool) {
	productID, filename, found := strings.Cut(rest, "/")
	if !found || productID == "" || filename == "" || strings.Contains(filename, "/") {
		return "", "", false
	}
	return productID, filename, true
}

func queryBool(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsNotFound(err):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrExternalService):
		s.writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
