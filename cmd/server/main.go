package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/peachgram/chat-backend/internal/auth"
	"github.com/peachgram/chat-backend/internal/chat"
	"github.com/peachgram/chat-backend/internal/config"
	"github.com/peachgram/chat-backend/internal/db"
	"github.com/peachgram/chat-backend/internal/httpapi"
	"github.com/peachgram/chat-backend/internal/store/rabbitmq"
	"github.com/peachgram/chat-backend/internal/store/redisstore"
	"github.com/peachgram/chat-backend/internal/ws"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	rds := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer rds.Close()
	if err := rds.Ping(context.Background()); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	pusher, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	if err != nil {
		log.Fatalf("rabbit connect: %v", err)
	}
	defer pusher.Close()

	repo := chat.NewRepo(gdb)
	seq := chat.NewSequencer(rds, repo, cfg.SequenceTTL)
	members := chat.NewMemberships(rds, repo, cfg.MembershipTTL)
	throttle := chat.NewThrottle(rds, repo, cfg.RoomTouchTTL)

	hub := ws.NewHub(rds)
	chatSvc := chat.NewService(repo, seq, members, throttle, hub, pusher)
	roomSvc := chat.NewRoomService(repo, members, chatSvc)

	verifier := auth.NewVerifier(cfg.JWTSecret)
	gateway := ws.NewGateway(hub, verifier, chatSvc)

	router := httpapi.NewRouter(verifier, chatSvc, roomSvc, gateway)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
