package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"hirechat/internal/broker"
	"hirechat/internal/db"
	"hirechat/internal/middleware"
	"hirechat/internal/stomp"
	"hirechat/internal/user"
)

func main() {
	addr := flag.String("addr", ":8080", "http service address")
	seed := flag.Bool("seed", false, "create demo accounts and exit")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN is not set")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	database, err := db.NewDatabase(dsn)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	log.Println("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	log.Println("connected to Redis")

	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, jwtSecret)

	if *seed {
		seedUsers(userService)
		return
	}

	brokerRepo := broker.NewRepository(database.Conn)
	presenceStore := broker.NewPresenceStore(redisClient)
	hub := broker.NewHub(redisClient, brokerRepo, presenceStore, userRepo)

	ctx := context.Background()
	go hub.Run(ctx)
	go hub.SubscribeToRedis(ctx)

	handler := broker.NewHandler(hub, brokerRepo, userRepo, presenceStore)
	authMiddleware := middleware.NewAuthMiddleware(userService)

	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Post("/login", handler.Login(userService))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/ws", handler.ServeWs)
		r.Get("/api/users/connected", handler.GetConnectedUsers)
		r.Get("/api/messages", handler.GetChatHistory)
	})

	log.Printf("broker listening on %s", *addr)
	if err := http.ListenAndServe(*addr, r); err != nil {
		log.Fatal(err)
	}
}

func seedUsers(svc *user.Service) {
	demo := []struct {
		u        user.User
		password string
	}{
		{user.User{Email: "ana@hire.chat", Name: "Ana Ortiz", Company: &stomp.Company{ID: 1, Name: "Northstar Labs"}}, "password123"},
		{user.User{Email: "bo@hire.chat", Name: "Bo Lindqvist", Company: &stomp.Company{ID: 2, Name: "Fjord Systems"}}, "password123"},
		{user.User{Email: "cy@hire.chat", Name: "Cy Adeyemi"}, "password123"},
	}
	for _, d := range demo {
		u := d.u
		if _, err := svc.Seed(context.Background(), &u, d.password); err != nil {
			log.Printf("seed %s: %v", d.u.Email, err)
			continue
		}
		log.Printf("seeded %s (id %d)", u.Email, u.ID)
	}
}
