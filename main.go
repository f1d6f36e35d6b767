package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	socketio "github.com/zishang520/socket.io/v2/socket"

	"storecanvas/ai"
	"storecanvas/export"
	"storecanvas/handlers/api/designs"
	"storecanvas/handlers/api/presets"
	"storecanvas/handlers/api/projects"
	"storecanvas/handlers/api/uploads"
	"storecanvas/handlers/websocket"
	"storecanvas/middleware"
	catalog "storecanvas/presets"
	canvas "storecanvas/render"
	"storecanvas/service"
	"storecanvas/storage"
	"storecanvas/stores"
)

func setupRouter(svc *service.Service, presetCatalog *catalog.Catalog, auth *middleware.Authenticator, limiter *middleware.RateLimiter, files storage.Config) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)

	corsOptions := cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "" {
				return false
			}
			parsed, err := url.Parse(origin)
			if err != nil {
				return false
			}
			switch parsed.Scheme {
			case "http", "https":
				switch parsed.Hostname() {
				case "localhost", "127.0.0.1", "[::1]":
					return true
				}
			}
			return false
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length"},
		ExposedHeaders:   []string{"X-Layer-Errors"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	r.Use(cors.Handler(corsOptions))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Get("/size-presets", presets.HandleList(presetCatalog))

	r.Group(func(r chi.Router) {
		r.Use(auth.AuthJWT)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", projects.HandleList(svc))
			r.Post("/", projects.HandleCreate(svc))
			r.Route("/{projectId}", func(r chi.Router) {
				r.Get("/", projects.HandleGet(svc))
				r.Put("/", projects.HandleUpdate(svc))
				r.Delete("/", projects.HandleDelete(svc))
				r.Get("/designs", designs.HandleList(svc))
				r.Post("/designs", designs.HandleCreate(svc))
			})
		})

		r.Route("/designs/{id}", func(r chi.Router) {
			r.Get("/", designs.HandleGet(svc))
			r.Put("/", designs.HandleUpdate(svc))
			r.Delete("/", designs.HandleDelete(svc))
			r.Get("/exports", designs.HandleListExports(svc))
			r.Get("/preview", designs.HandlePreview(svc))

			// AI calls and export batches are expensive
			r.Group(func(r chi.Router) {
				r.Use(limiter.Limit)
				r.Post("/generate-background", designs.HandleGenerateBackground(svc))
				r.Post("/apply-img2img", designs.HandleApplyImg2Img(svc))
				r.Post("/suggest-copy", designs.HandleSuggestCopy(svc))
				r.Post("/export", designs.HandleExport(svc))
			})
		})

		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", uploads.HandleList(svc))
			r.Post("/", uploads.HandleCreate(svc))
			r.Patch("/{id}", uploads.HandleRename(svc))
			r.Delete("/{id}", uploads.HandleDelete(svc))
		})

		r.Route("/editing", func(r chi.Router) {
			r.Use(limiter.Limit)
			r.Post("/transform", uploads.HandleTransform(svc))
			r.Post("/filter", uploads.HandleFilter(svc))
			r.Post("/convert", uploads.HandleConvert(svc))
		})
	})

	if files.LocalPath != "" {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(files.LocalPath))))
		logrus.WithField("path", files.LocalPath).Info("Serving stored files under /files/")
	}

	return r
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid integer, using default")
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid rate, using default")
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "value": v}).Warn("Invalid duration, using default")
		return def
	}
	return d
}

func waitForShutdown(ioo *socketio.Server, closers ...any) {
	exit := make(chan struct{})
	SignalC := make(chan os.Signal, 1)

	signal.Notify(SignalC, os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		for s := range SignalC {
			switch s {
			case os.Interrupt, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT:
				close(exit)
				return
			}
		}
	}()

	<-exit
	logrus.Info("Shutting down...")
	ioo.Close(nil)
	for _, c := range closers {
		if closer, ok := c.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				logrus.WithError(err).Warn("Failed to close resource")
			}
		}
	}
	os.Exit(0)
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	listenAddress := flag.String("listen", ":4000", "The address to listen on.")
	logLevel := flag.String("loglevel", "info", "The log level (debug, info, warn, error).")
	issueToken := flag.String("issue-token", "", "Print a 24h access token for the given user id and exit.")
	flag.Parse()

	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		logrus.Warn("JWT_SECRET environment variable not set. Using an insecure development secret.")
		secret = "storecanvas-dev-secret"
	}
	auth := middleware.NewAuthenticator(secret)
	if *issueToken != "" {
		token, err := auth.CreateJWT(*issueToken, 24*time.Hour)
		if err != nil {
			logrus.Fatalf("Failed to create token: %v", err)
		}
		fmt.Println(token)
		return
	}

	store := stores.GetStore()
	objects, objectsConfig := storage.GetObjectStore(context.Background())

	fonts, err := canvas.NewFontSet()
	if err != nil {
		logrus.Fatalf("Failed to load fonts: %v", err)
	}
	if dir := os.Getenv("FONT_DIR"); dir != "" {
		if err := fonts.LoadDir(dir); err != nil {
			logrus.WithField("dir", dir).WithError(err).Warn("Failed to load font directory")
		}
	}
	cache := canvas.NewSourceCache(envInt("SOURCE_CACHE_SIZE", 64), 10*time.Minute)
	fetcher := canvas.NewHTTPFetcher(envDuration("FETCH_TIMEOUT", 10*time.Second), cache)
	compositor := canvas.NewCompositor(fetcher, fonts)

	ioo, notifier := websocket.SetupSocketIO()

	presetCatalog := catalog.NewCatalog()
	pipeline := export.NewPipeline(presetCatalog, compositor, objects, store, notifier, envInt("EXPORT_CONCURRENCY", export.DefaultConcurrency))

	var assistant ai.Assistant
	if cfg := ai.ConfigFromEnv(); cfg.APIKey != "" {
		assistant = ai.WithFallback(ai.NewClient(cfg))
	} else {
		assistant = ai.WithFallback(nil)
	}

	svc := service.New(store, objects, compositor, pipeline, assistant, fetcher)

	limiter := middleware.NewRateLimiter(envFloat("RATE_LIMIT_RPS", 1), envInt("RATE_LIMIT_BURST", 5))
	r := setupRouter(svc, presetCatalog, auth, limiter, objectsConfig)
	r.Handle("/socket.io/", ioo.ServeHandler(nil))

	logrus.WithField("addr", *listenAddress).Info("starting server")
	go func() {
		if err := http.ListenAndServe(*listenAddress, r); err != nil {
			logrus.WithField("event", "start server").Fatal(err)
		}
	}()

	logrus.Debug("Server is running in the background")
	waitForShutdown(ioo, store)
}
