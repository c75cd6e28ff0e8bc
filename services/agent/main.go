package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ritmofit/internal/api"
	"github.com/ritmofit/internal/cache"
	"github.com/ritmofit/internal/config"
	"github.com/ritmofit/internal/connectivity"
	"github.com/ritmofit/internal/handler"
	"github.com/ritmofit/internal/kv"
	"github.com/ritmofit/internal/logger"
	"github.com/ritmofit/internal/middleware"
	"github.com/ritmofit/internal/notify"
	"github.com/ritmofit/internal/route"
	"github.com/ritmofit/internal/scheduler"
	"github.com/ritmofit/internal/session"
	"github.com/ritmofit/internal/ws"
)

// notifyTaskName — фоновая задача опроса уведомлений. Регистрация явная,
// здесь, в bootstrap: нигде больше задачи не регистрируются.
const notifyTaskName = "notifications-poll"

func main() {
	logger.SetPrefix("agent")
	logger.Info("starting terminal agent")
	cfg := config.Load()

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	store, err := kv.Open(rootCtx, cfg.StoreURL, cfg.DataDir)
	if err != nil {
		logger.Errorf("open kv store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	sess := session.NewManager(store)
	tracker := connectivity.NewTracker(nil)
	apiClient := api.NewClient(cfg.BackendURL, cfg.RequestTimeout, cfg.ProbeTimeout, sess, tracker)
	tracker.SetProber(apiClient)

	db, err := cache.Open(cfg.DataDir)
	if err != nil {
		logger.Errorf("open offline cache: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	// Web Push: ключи из конфига или самосгенерированные в каталоге данных.
	pubKey, privKey := cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey
	if pubKey == "" || privKey == "" {
		keys, err := notify.EnsureVAPIDKeys(cfg.DataDir)
		if err != nil {
			logger.Errorf("vapid keys: %v (web push disabled)", err)
		} else {
			pubKey, privKey = keys.PublicKey, keys.PrivateKey
		}
	}
	webPush := notify.NewWebPush(store, pubKey, privKey, cfg.Push.Subscriber)

	hub := ws.NewHub(16)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	var hubWg sync.WaitGroup
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		hub.Run(hubCtx)
	}()

	// Смена состояния связи транслируется оболочке тем же потоком, что и
	// уведомления.
	connCh := tracker.Subscribe()
	hubWg.Add(1)
	go func() {
		defer hubWg.Done()
		for snap := range connCh {
			hub.Broadcast(ws.Event{Kind: ws.EventConnectivity, Payload: map[string]any{
				"device_online":  snap.DeviceOnline,
				"backend_online": snap.BackendOnline,
				"offline":        snap.Offline,
				"checking":       snap.Checking,
				"state":          snap.State(),
			}})
		}
	}()

	dispatcher := notify.NewDispatcher(sess, apiClient, notify.Multi{hub, webPush})
	taps := route.NewTapHandler(hub)

	notifyTask := scheduler.Task{
		Name:     notifyTaskName,
		Interval: cfg.PollInterval,
		Run: func(ctx context.Context) error {
			dispatcher.FetchAndDispatch(ctx)
			return nil
		},
	}
	sched := scheduler.New(store)
	if err := sched.Register(rootCtx, notifyTask); err != nil {
		logger.Errorf("register %s: %v", notifyTaskName, err)
		os.Exit(1)
	}

	authH := handler.NewAuthHandler(apiClient, sess, cfg.DeviceName)
	profileH := handler.NewProfileHandler(apiClient, sess)
	classH := handler.NewClassHandler(apiClient)
	resH := handler.NewReservationHandler(apiClient, db)
	checkinH := handler.NewCheckInHandler(apiClient)
	historyH := handler.NewHistoryHandler(apiClient, db)
	notifH := handler.NewNotificationHandler(dispatcher)
	tapH := handler.NewTapHandler(taps)
	connH := handler.NewConnectivityHandler(tracker)
	bgH := handler.NewBackgroundHandler(sched, notifyTask)
	pushH := handler.NewPushHandler(webPush)
	wsH := handler.NewWSHandler(hub, cfg.CORSAllowedOrigins)

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			chimw.Compress(5)(next).ServeHTTP(w, req)
		})
	})
	r.Use(middleware.RequestLog)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })

	r.Post("/api/auth/login", authH.Login)
	r.Post("/api/auth/otp/request", authH.RequestOTP)
	r.Post("/api/auth/otp/verify", authH.VerifyOTP)
	r.Post("/api/auth/logout", authH.Logout)
	r.Get("/api/auth/session", authH.Session)

	r.Get("/api/me", profileH.Me)
	r.Put("/api/me", profileH.UpdateMe)

	r.Get("/api/classes", classH.List)
	r.Get("/api/classes/{id}", classH.ByID)

	r.Get("/api/reservations", resH.List)
	r.Post("/api/reservations", resH.Create)
	r.Delete("/api/reservations/{id}", resH.Cancel)

	r.Post("/api/checkin", checkinH.CheckIn)
	r.Post("/api/ratings", checkinH.Rate)
	r.Get("/api/history", historyH.List)

	r.Post("/api/notifications/refresh", notifH.Refresh)
	r.Post("/api/tap", tapH.Tap)

	r.Get("/api/connectivity", connH.State)
	r.Post("/api/connectivity/retry", connH.Retry)
	r.Post("/api/connectivity/device", connH.Device)

	r.Get("/api/background/{name}", bgH.Status)
	r.Post("/api/background/{name}/run", bgH.RunNow)
	r.Post("/api/background/{name}/register", bgH.Register)
	r.Post("/api/background/{name}/unregister", bgH.Unregister)

	r.Get("/api/push/key", pushH.VAPIDKey)
	r.Post("/api/push/subscribe", pushH.Subscribe)
	r.Delete("/api/push/subscribe", pushH.Unsubscribe)

	r.Get("/ws", wsH.ServeWS)

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("agent listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Errorf("server error: %v", err)
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	logger.Info("server stopped accepting connections")
	sched.Close()
	tracker.Unsubscribe(connCh)
	hubCancel()
	hubWg.Wait()
	logger.Info("hub stopped")
	srvWg.Wait()
	logger.Info("server goroutine exited")
}
