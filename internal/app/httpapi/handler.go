package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	app "github.com/R3E-Network/user_board/internal/app"
	"github.com/R3E-Network/user_board/internal/app/domain/user"
	"github.com/R3E-Network/user_board/internal/app/metrics"
	svcerrors "github.com/R3E-Network/user_board/internal/errors"
	"github.com/R3E-Network/user_board/internal/httputil"
	"github.com/R3E-Network/user_board/internal/logging"
	"github.com/R3E-Network/user_board/internal/middleware"
)

// Options configures the HTTP surface.
type Options struct {
	Logger         *logging.Logger
	AllowedOrigins []string
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
	// Health is called by /healthz; nil reports healthy.
	Health func(ctx context.Context) error
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app    *app.Application
	log    *logging.Logger
	health func(ctx context.Context) error
}

// NewHandler returns the router exposing the user board REST API wrapped in
// the middleware chain.
func NewHandler(application *app.Application, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	h := &handler{app: application, log: opts.Logger, health: opts.Health}
	authMW := middleware.NewAuthMiddleware(application.Tokens, opts.Logger)
	protect := func(fn http.HandlerFunc) http.Handler { return authMW.Handler(fn) }

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware(), middleware.LoggingMiddleware(opts.Logger))

	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/users").Subrouter()
	if opts.RateLimiter != nil {
		api.Use(opts.RateLimiter.Handler)
	}
	api.HandleFunc("", h.register).Methods(http.MethodPost)
	api.HandleFunc("", h.listUsers).Methods(http.MethodGet)
	api.Handle("", protect(h.deleteUsers)).Methods(http.MethodDelete)
	api.Handle("/rows", protect(h.saveRows)).Methods(http.MethodPost)
	api.HandleFunc("/login", h.login).Methods(http.MethodPost)
	api.HandleFunc("/login-check-by-accessToken", h.checkAccessToken).Methods(http.MethodPost)
	api.HandleFunc("/login-check-by-refreshToken", h.checkRefreshToken).Methods(http.MethodPost)
	api.HandleFunc("/logout", h.logout).Methods(http.MethodPost)
	api.HandleFunc("/{id:[0-9]+}", h.getUser).Methods(http.MethodGet)
	api.Handle("/{id:[0-9]+}", protect(h.updateUser)).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErrorResponse(w, req, http.StatusNotFound, string(svcerrors.CodeNotFound), "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteErrorResponse(w, req, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	cors := middleware.NewCORSMiddleware(opts.AllowedOrigins)
	return middleware.Tracing(cors.Handler(r))
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.log.WithContext(r.Context()).WithError(err).Warn("health check failed")
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var payload user.RegisterInput
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	created, err := h.app.Users.Register(r.Context(), payload)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	page, err := h.app.Users.List(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	u, err := h.app.Users.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	var patch user.Patch
	if err := httputil.DecodeJSON(r.Body, &patch); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	updated, err := h.app.Users.Update(r.Context(), id, patch)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteUsers(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		CheckedIDs []int64 `json:"checkedIds"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	n, err := h.app.Users.Delete(r.Context(), payload.CheckedIDs)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *handler) saveRows(w http.ResponseWriter, r *http.Request) {
	var cs user.Changeset
	if err := httputil.DecodeJSON(r.Body, &cs); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.app.Users.SaveRows(r.Context(), cs)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := httputil.DecodeJSON(r.Body, &payload); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	res, err := h.app.Users.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) checkAccessToken(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.Unauthorized(err.Error()))
		return
	}
	u, err := h.app.Users.CheckAccessToken(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *handler) checkRefreshToken(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.Unauthorized(err.Error()))
		return
	}
	res, err := h.app.Users.CheckRefreshToken(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteError(w, r, svcerrors.Unauthorized(err.Error()))
		return
	}
	if err := h.app.Users.Logout(r.Context(), token); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseQuery(r *http.Request) (user.Query, error) {
	values := r.URL.Query()
	var q user.Query
	var err error
	if q.PageNum, err = intParam(values.Get("pageNum")); err != nil {
		return q, svcerrors.Validation("pageNum must be an integer")
	}
	if q.PerPage, err = intParam(values.Get("perPage")); err != nil {
		return q, svcerrors.Validation("perPage must be an integer")
	}
	if q.Sort, err = user.ParseSort(values.Get("sort")); err != nil {
		return q, svcerrors.Validation(err.Error())
	}
	return q, nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, svcerrors.Validation("id must be a positive integer")
	}
	return id, nil
}
