package main

import (
	"strings"

	"seva/internal/auth"
	"seva/internal/events"
	"seva/internal/health"
	listinghandler "seva/internal/listings/handler"
	listingsrepo "seva/internal/listings/repository"
	listingservice "seva/internal/listings/service"
	listingvalidator "seva/internal/listings/validator"
	messagehandler "seva/internal/messages/handler"
	messagesrepo "seva/internal/messages/repository"
	messageservice "seva/internal/messages/service"
	messagevalidator "seva/internal/messages/validator"
	"seva/internal/realtime/gateway"
	"seva/internal/realtime/presence"
	"seva/internal/realtime/registry"
	"seva/internal/realtime/rooms"
	"seva/internal/storage/memory"
	usersrepo "seva/internal/users/repository"
	"seva/pkg/app"
	"seva/pkg/config"
	"seva/pkg/contracts"
	"seva/pkg/geo"
	"seva/pkg/kafka"
	"seva/pkg/middleware"
	"seva/pkg/model"
)

const ServiceName = "realtime"

type repositories struct {
	listings listingsrepo.ListingRepository
	messages messagesrepo.MessageRepository
	users    usersrepo.UserRepository
}

func main() {
	cfg := config.Load(ServiceName)
	repos := initRepositories(cfg)
	publisher, eventMetrics := initEvents(cfg)

	hub := presence.NewHub(
		registry.New(cfg.RegistryShards, cfg.Log),
		rooms.NewRouter(cfg.Log),
		geo.NewGrid(cfg.GeoCellPrecision, cfg.GeoNeighborFanout),
		cfg.Log,
	)
	verifier := auth.NewVerifier(cfg.JWTSecret, repos.users, cfg.Log)
	limiter := middleware.NewUserRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.Log)

	listings := listingservice.NewListingService(
		repos.listings,
		repos.users,
		hub,
		publisher,
		listingvalidator.NewListingValidator(cfg.Log),
		cfg,
	)
	relay := messageservice.NewMessageRelay(
		repos.messages,
		repos.users,
		hub,
		publisher,
		messagevalidator.NewMessageValidator(cfg.Log),
		cfg,
	)
	cfg.Log.Info("Services initialized")

	dispatcher := gateway.NewDispatcher(listings, relay, hub, repos.users, limiter, cfg.RequestTimeout, cfg.Log)

	application := app.NewApplication()
	application.SetApp(cfg, app.Components{
		Live:          gateway.NewGateway(cfg, verifier, hub, repos.users, dispatcher),
		Health:        health.NewHealthHandler(cfg.Client, hub, eventMetrics, cfg.Log),
		Authenticator: verifier,
		RateLimiter:   limiter,
		Events:        publisher,
		Handlers: []contracts.Handler{
			listinghandler.NewListingHandler(listings, cfg.Log),
			messagehandler.NewMessageHandler(relay, cfg.Log),
		},
	})
	application.Run()
}

func initRepositories(cfg *config.Config) repositories {
	if cfg.UsesMemoryStorage() {
		stores := memory.NewStores()
		seedUsers(cfg, stores.Users)
		cfg.Log.Warn("Using in-memory storage; data is lost on restart")
		return repositories{listings: stores.Listings, messages: stores.Messages, users: stores.Users}
	}

	cfg.SetMongo()
	return repositories{
		listings: listingsrepo.NewMongoListingRepository(cfg),
		messages: messagesrepo.NewMongoMessageRepository(cfg),
		users:    usersrepo.NewMongoUserRepository(cfg),
	}
}

// seedUsers loads "id:name" pairs. A bare id doubles as the name.
func seedUsers(cfg *config.Config, users *memory.UserStore) {
	for _, entry := range cfg.SeedUsers {
		id, name, found := strings.Cut(entry, ":")
		if !found {
			name = id
		}
		users.Put(&model.User{ID: id, Name: name})
	}
	if len(cfg.SeedUsers) > 0 {
		cfg.Log.Info("Seeded in-memory users", "count", len(cfg.SeedUsers))
	}
}

func initEvents(cfg *config.Config) (events.Publisher, health.EventMetrics) {
	if !cfg.EventsEnabled {
		return events.Noop(), nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka, cfg.EventsTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	publisher := events.NewKafkaPublisher(producer, cfg.Kafka.EnableMiddleware, cfg.Log)
	cfg.Log.Info("Domain events enabled", "topic", cfg.EventsTopic)
	return publisher, publisher
}
