// Package httprouter exposes batch submission and result retrieval over HTTP.
package httprouter

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"time"

	"vidbatch/internal/config"
	"vidbatch/internal/consts"
	"vidbatch/internal/entity"
	"vidbatch/internal/errs"
	"vidbatch/internal/infrastructure/delivery/http/middleware"
	"vidbatch/internal/infrastructure/delivery/http/request"
	"vidbatch/internal/infrastructure/delivery/http/response"
	"vidbatch/internal/observability"
	"vidbatch/internal/service"
	"vidbatch/internal/session"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

type Router struct {
	*http.ServeMux
	log         *slog.Logger
	cfg         *config.Config
	globalChain []func(http.Handler) http.Handler
	routeChain  []func(http.Handler) http.Handler
	isSubRouter bool
	svc         *service.Batch
	sessions    *session.Registry
	metrics     *observability.Metrics
	gatherer    prometheus.Gatherer
}

func New(
	log *slog.Logger,
	cfg *config.Config,
	svc *service.Batch,
	sessions *session.Registry,
	metrics *observability.Metrics,
	gatherer prometheus.Gatherer,
) *Router {
	r := &Router{
		ServeMux: http.NewServeMux(),
		log:      log.With(slog.String("package", "httprouter")),
		cfg:      cfg,
		svc:      svc,
		sessions: sessions,
		metrics:  metrics,
		gatherer: gatherer,
	}

	r.SetGlobalMiddlewares()
	r.SetRoutes()

	return r
}

func (r *Router) Use(middleware ...func(http.Handler) http.Handler) {
	if r.isSubRouter {
		r.routeChain = append(r.routeChain, middleware...)
	} else {
		r.globalChain = append(r.globalChain, middleware...)
	}
}

func (r *Router) Group(fn func(r *Router)) {
	subRouter := &Router{
		isSubRouter: true,
		routeChain:  slices.Clone(r.routeChain),
		ServeMux:    r.ServeMux,
	}

	fn(subRouter)
}

func (r *Router) HandleFunc(pattern string, h http.HandlerFunc) {
	r.Handle(pattern, h)
}

func (r *Router) Handle(pattern string, h http.Handler) {
	for _, middleware := range slices.Backward(r.routeChain) {
		h = middleware(h)
	}

	r.ServeMux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var h http.Handler = r.ServeMux

	for _, middleware := range slices.Backward(r.globalChain) {
		h = middleware(h)
	}

	h.ServeHTTP(w, req)
}

func (r *Router) SetGlobalMiddlewares() {
	r.Use(
		middleware.Recoverer,
		middleware.RequestID,
		middleware.Logger,
	)
}

func (ro *Router) SetRoutes() {
	ro.Group(func(r *Router) {
		r.Use(middleware.Metrics(ro.metrics))

		r.HandleFunc("GET /v1/readyz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		r.HandleFunc("GET /v1/capabilities", ro.Capabilities)
		r.Handle("POST /v1/batches", middleware.RateLimit(ro.submitLimiter())(http.HandlerFunc(ro.SubmitBatch)))
		r.HandleFunc("GET /v1/results", ro.ListResults)
		r.HandleFunc("GET /v1/results/{id}", ro.DownloadResult)
	})

	ro.Handle("GET /metrics", observability.Handler(ro.gatherer))
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get(consts.HeaderSessionID); id != "" {
		return id
	}

	if cookie, err := r.Cookie(consts.CookieSessionID); err == nil {
		return cookie.Value
	}

	return ""
}

// lookup returns the caller's session without creating one.
func (ro *Router) lookup(r *http.Request) (*session.Session, bool) {
	return ro.sessions.Get(sessionID(r))
}

// session resolves the caller's session, creating it when unknown, and
// echoes its ID back on the header and the cookie.
func (ro *Router) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess, _ := ro.sessions.Resolve(r.Context(), sessionID(r))

	w.Header().Set(consts.HeaderSessionID, sess.ID)
	http.SetCookie(w, &http.Cookie{
		Name:     consts.CookieSessionID,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return sess
}

func (ro *Router) submitLimiter() *rate.Limiter {
	if ro.cfg.HTTP.SubmitRate <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(ro.cfg.HTTP.SubmitRate), max(ro.cfg.HTTP.SubmitBurst, 1))
}

func (ro *Router) handlerTimeout() time.Duration {
	if ro.cfg.HTTP.HandlerTimeout > 0 {
		return ro.cfg.HTTP.HandlerTimeout
	}

	return consts.DefaultHandlerTimeout
}

func (ro *Router) Capabilities(w http.ResponseWriter, _ *http.Request) {
	checks := ro.svc.Capabilities()

	response.OK(w, consts.RespCapabilities, response.Capabilities{
		Ready: len(checks) > 0 && !slices.ContainsFunc(checks, func(c entity.CapabilityCheck) bool { return !c.Present }),
		Tools: checks,
	}, nil)
}

// SubmitBatch runs a batch synchronously and answers once every URL has an outcome.
func (ro *Router) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "SubmitBatch"))
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, consts.DefaultMaxBodyBytes)

	var in request.Batch
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			log.WarnContext(ctx, consts.RespBodyTooLarge, slog.Int64("limit", maxErr.Limit))
			response.RequestEntityTooLarge(w, consts.RespBodyTooLarge, err)

			return
		}

		log.ErrorContext(ctx, consts.RespInvalidRequestBody, slog.Any("error", err))
		response.BadRequest(w, consts.RespInvalidRequestBody, errs.ErrInvalidRequestBody)

		return
	}

	sess := ro.session(w, r)
	log = log.With(slog.String("session_id", sess.ID))

	if !sess.TryBegin() {
		ro.metrics.RecordBatch("busy")
		log.WarnContext(ctx, consts.RespBatchInProgress)
		response.Conflict(w, consts.RespBatchInProgress, errs.ErrBatchInProgress)

		return
	}
	defer sess.End()

	outcomes, err := ro.svc.Run(ctx, sess.Store, in.URLs)

	var precondErr *errs.PreconditionError

	switch {
	case errors.Is(err, errs.ErrNoInput):
		log.DebugContext(ctx, consts.RespNoInput)
		response.UnprocessableEntity(w, consts.RespNoInput, err)

		return
	case errors.As(err, &precondErr):
		response.PreconditionFailed(w, consts.RespToolMissing, response.Missing{Missing: precondErr.Missing}, err)

		return
	case err != nil:
		log.ErrorContext(ctx, consts.RespBatchFailed, slog.Any("error", err))
		response.InternalServerError(w, consts.RespBatchFailed, nil, err)

		return
	}

	res := response.Batch{
		Outcomes: outcomes,
		Results:  sess.Store.List(ctx),
	}

	for _, outcome := range outcomes {
		if outcome.Succeeded() {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}

	message := consts.RespBatchFinished
	if res.Succeeded == 0 {
		message = consts.RespNoSuccess
	}

	response.OK(w, message, res, nil)
}

// ListResults lists the caller's successes. An unknown session has none.
func (ro *Router) ListResults(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ro.handlerTimeout())
	defer cancel()

	sess, ok := ro.lookup(r)
	if !ok {
		response.OK(w, consts.RespResultsRetrieved, []entity.Entry{}, nil)

		return
	}

	response.OK(w, consts.RespResultsRetrieved, sess.Store.List(ctx), nil)
}

// DownloadResult streams a stored file as an attachment.
func (ro *Router) DownloadResult(w http.ResponseWriter, r *http.Request) {
	log := ro.log.With(slog.String("handler", "DownloadResult"))

	ctx, cancel := context.WithTimeout(r.Context(), ro.handlerTimeout())
	defer cancel()

	id := r.PathValue("id")
	if id == "" {
		log.ErrorContext(ctx, consts.RespQueryParamMissing)
		response.BadRequest(w, consts.RespQueryParamMissing, nil)

		return
	}

	sess, ok := ro.lookup(r)
	if !ok {
		log.DebugContext(ctx, consts.RespFileNotFound, slog.String("id", id))
		response.NotFound(w, consts.RespFileNotFound, errs.ErrEntryNotFound)

		return
	}

	file, entry, err := sess.Store.Open(ctx, id)
	if errors.Is(err, errs.ErrEntryNotFound) || errors.Is(err, fs.ErrNotExist) {
		log.DebugContext(ctx, consts.RespFileNotFound, slog.String("id", id), slog.Any("error", err))
		response.NotFound(w, consts.RespFileNotFound, err)

		return
	}

	if err != nil {
		log.ErrorContext(ctx, consts.RespFileOpenFail, slog.String("id", id), slog.Any("error", err))
		response.InternalServerError(w, consts.RespFileOpenFail, nil, err)

		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		log.ErrorContext(ctx, consts.RespFileOpenFail, slog.String("id", id), slog.Any("error", err))
		response.InternalServerError(w, consts.RespFileOpenFail, nil, err)

		return
	}

	w.Header().Set("Content-Type", sess.Store.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": entry.DisplayName}))

	http.ServeContent(w, r, entry.DisplayName, stat.ModTime(), file)
}
