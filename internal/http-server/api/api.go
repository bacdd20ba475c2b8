package api

import (
	"fmt"
	"invisifeed/internal/config"
	"invisifeed/internal/http-server/handlers/account"
	"invisifeed/internal/http-server/handlers/errors"
	"invisifeed/internal/http-server/handlers/feedback"
	"invisifeed/internal/http-server/handlers/invoice"
	"invisifeed/internal/http-server/handlers/upload"
	"invisifeed/internal/http-server/middleware/authenticate"
	"invisifeed/internal/http-server/middleware/requestlog"
	"invisifeed/internal/http-server/middleware/timeout"
	"invisifeed/internal/metrics"
	"invisifeed/lib/sl"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	authenticate.Authenticate
	account.Core
	upload.Core
	invoice.Core
	feedback.Core
}

// NewRouter builds the route table; stored files are served from filesDir under /files
func NewRouter(conf *config.Config, log *slog.Logger, handler Handler, filesDir string) http.Handler {
	router := chi.NewRouter()
	router.Use(timeout.Timeout(10 * time.Second))
	router.Use(middleware.RequestID)
	router.Use(requestlog.New(log))
	router.Use(middleware.Recoverer)
	router.Use(metrics.Middleware)

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(v1 chi.Router) {
		v1.Use(render.SetContentType(render.ContentTypeJSON))

		v1.Route("/auth", func(auth chi.Router) {
			auth.Post("/sign-up", account.SignUp(log, handler))
			auth.Post("/sign-in", account.SignIn(log, handler))
			auth.Post("/verify-code", account.Verify(log, handler))
		})
		v1.Post("/feedback", feedback.Submit(log, handler))

		v1.Route("/owner", func(owner chi.Router) {
			owner.Use(authenticate.New(log, handler))
			owner.Get("/upload-count", upload.Count(log, handler))
			owner.Post("/upload-count", upload.Count(log, handler))
			owner.Post("/invoice", upload.Invoice(log, handler, conf.Upload.MaxFileSize))
			owner.Post("/invoice/email", invoice.Email(log, handler))
			owner.Post("/coupon/redeem", invoice.RedeemCoupon(log, handler))
			owner.Post("/feedbacks", feedback.List(log, handler))
			owner.Get("/me", account.Me(log, handler))
			owner.Put("/profile", account.Profile(log, handler))
			owner.Post("/reset-data", account.Reset(log, handler))
			owner.Delete("/reset-data", account.Reset(log, handler))
		})
	})

	if filesDir != "" {
		router.Get("/files/*", http.StripPrefix("/files", http.FileServer(http.Dir(filesDir))).ServeHTTP)
	}
	router.Get("/metrics", metrics.Handler().ServeHTTP)

	return router
}

func New(conf *config.Config, log *slog.Logger, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      NewRouter(conf, log, handler, conf.Upload.StorageDir),
		ErrorLog:     httpLog,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
