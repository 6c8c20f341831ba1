// Package router exposes the sync protocol over HTTP/JSON: registration,
// login and push/pull/delete of tabs. Handlers only translate payloads and
// map service errors onto statuses.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/scratchpad/internal/gzippedhttp"
	"github.com/patric-chuzhbe/scratchpad/internal/logger"
	"github.com/patric-chuzhbe/scratchpad/internal/models"
	"github.com/patric-chuzhbe/scratchpad/internal/user"
)

type tabService interface {
	Register(ctx context.Context, username, pin string) (*user.User, error)
	Authenticate(ctx context.Context, username, pin string) (*user.User, error)
	ListTabs(ctx context.Context, userID string) (models.Tabs, error)
	UpsertTab(ctx context.Context, userID, tabID, name, content string) error
	DeleteTab(ctx context.Context, userID, tabID string) error
	DeleteAllTabs(ctx context.Context, userID string) error
	Ping(ctx context.Context) error
	GetInternalStats(ctx context.Context) (models.InternalStatsResponse, error)
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
	IssueToken(response http.ResponseWriter, userID string) error
	CheckOwner(ctx context.Context, ownerID string) error
}

type ipChecker interface {
	IsTrusted(request *http.Request) (bool, error)
}

const (
	msgInvalidBody          = "Invalid request body"
	msgBodyTooLarge         = "Request body too large"
	msgUsernameExists       = "Username already exists"
	msgInvalidCredentials   = "Invalid username or PIN"
	msgRegistrationFailed   = "Registration failed"
	msgLoginFailed          = "Login failed"
	msgFetchTabsFailed      = "Failed to fetch tabs"
	msgSaveTabFailed        = "Failed to save tab"
	msgDeleteTabFailed      = "Failed to delete tab"
	msgClearTabsFailed      = "Failed to clear tabs"
	msgStatsFailed          = "Failed to collect stats"
	msgAuthRequired         = "Authentication required"
	msgForbidden            = "Forbidden"
	healthPingTimeout       = 2 * time.Second
	defaultMaxBodyBytes     = 10 << 20
	userIDURLParam          = "userId"
	tabIDURLParam           = "tabId"
	healthStatusOK          = "ok"
	contentTypeHeader       = "Content-Type"
	contentTypeJSON         = "application/json"
	authorizationHeaderName = "Authorization"
)

// Router holds the dependencies of the HTTP handlers.
type Router struct {
	svc       tabService
	auth      authenticator
	ipChecker ipChecker
}

type initOptions struct {
	staticDir          string
	corsAllowedOrigins []string
	maxBodyBytes       int64
}

type InitOption func(*initOptions)

// WithStaticDir serves the files of dir at "/".
func WithStaticDir(dir string) InitOption {
	return func(options *initOptions) {
		options.staticDir = dir
	}
}

// WithCORSAllowedOrigins sets the origins allowed to call the API from a browser.
func WithCORSAllowedOrigins(origins []string) InitOption {
	return func(options *initOptions) {
		options.corsAllowedOrigins = origins
	}
}

// WithMaxBodyBytes caps the size of a (decompressed) request body.
func WithMaxBodyBytes(maxBodyBytes int64) InitOption {
	return func(options *initOptions) {
		options.maxBodyBytes = maxBodyBytes
	}
}

// New builds the chi router with logging, CORS, gzip and body-size middlewares.
func New(
	svc tabService,
	auth authenticator,
	ipChecker ipChecker,
	optionsProto ...InitOption,
) *chi.Mux {
	options := &initOptions{
		corsAllowedOrigins: []string{"*"},
		maxBodyBytes:       defaultMaxBodyBytes,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	myRouter := Router{
		svc:       svc,
		auth:      auth,
		ipChecker: ipChecker,
	}

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: options.corsAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{authorizationHeaderName},
	})

	router := chi.NewRouter()
	router.Use(
		logger.WithLoggingHTTPMiddleware,
		corsHandler.Handler,
		gzippedhttp.GzipResponse,
		gzippedhttp.UngzipRequest,
		limitRequestBody(options.maxBodyBytes),
	)

	router.Route("/api", func(r chi.Router) {
		r.Post(`/register`, myRouter.PostApiregister)
		r.Post(`/login`, myRouter.PostApilogin)
		r.Get(`/health`, myRouter.GetApihealth)
		r.Get(`/internal/stats`, myRouter.GetApiinternalstats)

		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateUser)
			r.Get(`/tabs/{userId}`, myRouter.GetApitabs)
			r.Post(`/tabs`, myRouter.PostApitabs)
			r.Delete(`/tabs/{userId}/{tabId}`, myRouter.DeleteApitab)
			r.Delete(`/tabs/{userId}`, myRouter.DeleteApitabs)
		})
	})

	if options.staticDir != "" {
		router.Handle(`/*`, http.FileServer(http.Dir(options.staticDir)))
	}

	return router
}

// PostApiregister creates an account and returns it with a session token.
func (router *Router) PostApiregister(response http.ResponseWriter, request *http.Request) {
	var credentials models.CredentialsRequest
	if !decodeBody(response, request, &credentials) {
		return
	}

	usr, err := router.svc.Register(request.Context(), credentials.Username, credentials.Pin)
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(response, http.StatusBadRequest, validationErr.Message)
		return
	case errors.Is(err, models.ErrConflict):
		writeError(response, http.StatusConflict, msgUsernameExists)
		return
	case err != nil:
		logger.Log.Errorln("Registration error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgRegistrationFailed)
		return
	}

	router.respondWithUser(response, usr)
}

// PostApilogin checks credentials and returns the account with a session token.
func (router *Router) PostApilogin(response http.ResponseWriter, request *http.Request) {
	var credentials models.CredentialsRequest
	if !decodeBody(response, request, &credentials) {
		return
	}

	usr, err := router.svc.Authenticate(request.Context(), credentials.Username, credentials.Pin)
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(response, http.StatusBadRequest, validationErr.Message)
		return
	case errors.Is(err, models.ErrAuth):
		writeError(response, http.StatusUnauthorized, msgInvalidCredentials)
		return
	case err != nil:
		logger.Log.Errorln("Login error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgLoginFailed)
		return
	}

	router.respondWithUser(response, usr)
}

// GetApitabs returns every tab of the user ordered by tab ID.
func (router *Router) GetApitabs(response http.ResponseWriter, request *http.Request) {
	userID := urlParam(request, userIDURLParam)
	if !router.checkOwner(response, request, userID) {
		return
	}

	tabs, err := router.svc.ListTabs(request.Context(), userID)
	if err != nil {
		logger.Log.Errorln("Get tabs error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgFetchTabsFailed)
		return
	}

	writeJSON(response, http.StatusOK, models.TabsResponse{Success: true, Tabs: tabs})
}

// PostApitabs upserts one tab.
func (router *Router) PostApitabs(response http.ResponseWriter, request *http.Request) {
	var saveRequest models.SaveTabRequest
	if !decodeBody(response, request, &saveRequest) {
		return
	}

	if saveRequest.UserID != "" && !router.checkOwner(response, request, saveRequest.UserID) {
		return
	}

	err := router.svc.UpsertTab(
		request.Context(),
		saveRequest.UserID,
		saveRequest.TabID,
		saveRequest.TabName,
		saveRequest.Content,
	)
	var validationErr *models.ValidationError
	switch {
	case errors.As(err, &validationErr):
		writeError(response, http.StatusBadRequest, validationErr.Message)
		return
	case err != nil:
		logger.Log.Errorln("Save tab error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgSaveTabFailed)
		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

// DeleteApitab removes one tab; deleting a missing tab succeeds.
func (router *Router) DeleteApitab(response http.ResponseWriter, request *http.Request) {
	userID := urlParam(request, userIDURLParam)
	if !router.checkOwner(response, request, userID) {
		return
	}

	if err := router.svc.DeleteTab(request.Context(), userID, urlParam(request, tabIDURLParam)); err != nil {
		logger.Log.Errorln("Delete tab error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgDeleteTabFailed)
		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

// DeleteApitabs removes every tab of the user.
func (router *Router) DeleteApitabs(response http.ResponseWriter, request *http.Request) {
	userID := urlParam(request, userIDURLParam)
	if !router.checkOwner(response, request, userID) {
		return
	}

	if err := router.svc.DeleteAllTabs(request.Context(), userID); err != nil {
		logger.Log.Errorln("Clear tabs error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgClearTabsFailed)
		return
	}

	writeJSON(response, http.StatusOK, models.SuccessResponse{Success: true})
}

// GetApihealth always reports "ok"; a failing storage ping is only logged.
func (router *Router) GetApihealth(response http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), healthPingTimeout)
	defer cancel()
	if err := router.svc.Ping(ctx); err != nil {
		logger.Log.Warnln("Storage ping failed:", zap.Error(err))
	}

	writeJSON(response, http.StatusOK, models.HealthResponse{
		Status:    healthStatusOK,
		Timestamp: time.Now().UTC(),
	})
}

// GetApiinternalstats returns account and tab counts to the trusted subnet only.
func (router *Router) GetApiinternalstats(response http.ResponseWriter, request *http.Request) {
	trusted, err := router.ipChecker.IsTrusted(request)
	if err != nil {
		logger.Log.Debugln("Error calling the `router.ipChecker.IsTrusted()`:", zap.Error(err))
	}
	if !trusted {
		writeError(response, http.StatusForbidden, msgForbidden)
		return
	}

	stats, err := router.svc.GetInternalStats(request.Context())
	if err != nil {
		logger.Log.Errorln("Internal stats error:", zap.Error(err))
		writeError(response, http.StatusInternalServerError, msgStatsFailed)
		return
	}

	writeJSON(response, http.StatusOK, stats)
}

func (router *Router) respondWithUser(response http.ResponseWriter, usr *user.User) {
	if err := router.auth.IssueToken(response, usr.ID); err != nil {
		logger.Log.Warnln("Error calling the `router.auth.IssueToken()`:", zap.Error(err))
	}

	writeJSON(response, http.StatusOK, models.AuthResponse{
		Success: true,
		User: models.UserInfo{
			ID:       usr.ID,
			Username: usr.Username,
		},
	})
}

func (router *Router) checkOwner(response http.ResponseWriter, request *http.Request, ownerID string) bool {
	err := router.auth.CheckOwner(request.Context(), ownerID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, models.ErrForbidden):
		writeError(response, http.StatusForbidden, msgForbidden)
	default:
		writeError(response, http.StatusUnauthorized, msgAuthRequired)
	}

	return false
}

// decodeBody reads a JSON request body into payload and answers 413 or 400
// when it cannot.
func decodeBody(response http.ResponseWriter, request *http.Request, payload interface{}) bool {
	err := json.NewDecoder(request.Body).Decode(payload)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(response, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return false
	}
	writeError(response, http.StatusBadRequest, msgInvalidBody)

	return false
}

func limitRequestBody(maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(response http.ResponseWriter, request *http.Request) {
			if request.Body != nil {
				request.Body = http.MaxBytesReader(response, request.Body, maxBodyBytes)
			}
			h.ServeHTTP(response, request)
		})
	}
}

// urlParam returns the decoded value of a path parameter. chi matches on
// URL.RawPath when it is set, and the value is still escaped then; otherwise
// it is already decoded and must not be unescaped again.
func urlParam(request *http.Request, name string) string {
	value := chi.URLParam(request, name)
	if request.URL.RawPath == "" {
		return value
	}

	unescaped, err := url.PathUnescape(value)
	if err != nil {
		return value
	}

	return unescaped
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set(contentTypeHeader, contentTypeJSON)
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`:", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{Error: message})
}
