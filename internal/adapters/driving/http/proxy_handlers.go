package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/custodia-labs/ghl-bridge/internal/core/domain"
	"github.com/custodia-labs/ghl-bridge/internal/core/ports/driving"
)

// Selector query parameters, never forwarded upstream.
var selectorParams = []string{"installation_id", "installationId", "location_id", "locationId"}

// target resolves which installation a proxied call runs as.
// A session is pinned to its own installation; the admin key selects one
// through installation_id or location_id.
func target(r *http.Request) (driving.Target, error) {
	authCtx := GetAuthContext(r.Context())
	if authCtx == nil {
		return driving.Target{}, domain.ErrNotAuthenticated
	}
	if !authCtx.IsAdmin() {
		return driving.Target{InstallationID: authCtx.InstallationID, LocationID: authCtx.LocationID}, nil
	}

	q := r.URL.Query()
	t := driving.Target{
		InstallationID: firstNonEmpty(q.Get("installation_id"), q.Get("installationId")),
		LocationID:     firstNonEmpty(q.Get("location_id"), q.Get("locationId")),
	}
	if t.InstallationID == "" && t.LocationID == "" {
		return t, domain.ErrInvalidInput
	}
	return t, nil
}

// forwardQuery copies the caller's query minus installation selectors.
func forwardQuery(r *http.Request) url.Values {
	q := r.URL.Query()
	for _, k := range selectorParams {
		q.Del(k)
	}
	return q
}

func readJSONBody(r *http.Request) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return nil, domain.ErrInvalidInput
	}
	if len(body) == 0 {
		return nil, nil
	}
	if !json.Valid(body) {
		return nil, domain.ErrInvalidInput
	}
	return body, nil
}

// writeUpstream passes a GHL response through unchanged.
func writeUpstream(w http.ResponseWriter, resp *domain.UpstreamResponse) {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func (s *Server) proxy(w http.ResponseWriter, r *http.Request, call func(driving.Target) (*domain.UpstreamResponse, error)) {
	t, err := target(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	resp, err := call(t)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeUpstream(w, resp)
}

// Product endpoints

// handleListProducts godoc
// @Summary      List products
// @Description  Lists the location's products. Query parameters are forwarded to GHL.
// @Tags         Products
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        location_id  query  string  false  "Location (admin key only)"
// @Success      200  {object}  object  "GHL response"
// @Failure      401  {object}  ErrorResponse  "Installation must be re-authorized"
// @Router       /products [get]
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.ListProducts(r.Context(), t, forwardQuery(r))
	})
}

// handleGetProduct godoc
// @Summary      Get product
// @Tags         Products
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  object  "GHL response"
// @Router       /products/{id} [get]
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.GetProduct(r.Context(), t, r.PathValue("id"))
	})
}

// handleCreateProduct godoc
// @Summary      Create product
// @Description  Creates a product; locationId is set from the installation.
// @Tags         Products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        request  body      object  true  "GHL product payload"
// @Success      201      {object}  object  "GHL response"
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Router       /products [post]
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.CreateProduct(r.Context(), t, body)
	})
}

// handleUpdateProduct godoc
// @Summary      Update product
// @Tags         Products
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        id       path      string  true  "Product ID"
// @Param        request  body      object  true  "GHL product payload"
// @Success      200      {object}  object  "GHL response"
// @Router       /products/{id} [put]
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	body, err := readJSONBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.UpdateProduct(r.Context(), t, r.PathValue("id"), body)
	})
}

// handleDeleteProduct godoc
// @Summary      Delete product
// @Tags         Products
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  object  "GHL response"
// @Router       /products/{id} [delete]
func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.DeleteProduct(r.Context(), t, r.PathValue("id"))
	})
}

// Media endpoints

// handleListMedia godoc
// @Summary      List media files
// @Tags         Media
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Success      200  {object}  object  "GHL response"
// @Router       /media [get]
func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.ListMedia(r.Context(), t, forwardQuery(r))
	})
}

// handleUploadMedia godoc
// @Summary      Upload media file
// @Description  Forwards a multipart "file" part to the GHL media library
// @Tags         Media
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        file      formData  file    true   "File to upload"
// @Param        name      formData  string  false  "Display name"
// @Param        parentId  formData  string  false  "Folder ID"
// @Success      200       {object}  object  "GHL response"
// @Failure      400       {object}  ErrorResponse  "Missing or oversized file"
// @Router       /media [post]
func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable file")
		return
	}

	upload := &domain.MediaUpload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     content,
		Name:        r.FormValue("name"),
		ParentID:    r.FormValue("parentId"),
	}
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.UploadMedia(r.Context(), t, upload)
	})
}

// handleDeleteMedia godoc
// @Summary      Delete media file
// @Tags         Media
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Param        id   path      string  true  "Media ID"
// @Success      200  {object}  object  "GHL response"
// @Router       /media/{id} [delete]
func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.DeleteMedia(r.Context(), t, r.PathValue("id"))
	})
}

// Location endpoint

// handleGetLocation godoc
// @Summary      Get location
// @Description  Returns the GHL location of the installation
// @Tags         Location
// @Produce      json
// @Security     BearerAuth
// @Security     AdminKey
// @Success      200  {object}  object  "GHL response"
// @Router       /location [get]
func (s *Server) handleGetLocation(w http.ResponseWriter, r *http.Request) {
	s.proxy(w, r, func(t driving.Target) (*domain.UpstreamResponse, error) {
		return s.proxyService.GetLocation(r.Context(), t)
	})
}
