package routes

import (
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jitenkr2030/tutorapp-backend/internal/config"
	"github.com/jitenkr2030/tutorapp-backend/internal/handlers"
	"github.com/jitenkr2030/tutorapp-backend/internal/middleware"
	"github.com/jitenkr2030/tutorapp-backend/internal/payments"
	"github.com/jitenkr2030/tutorapp-backend/internal/repository"
	"github.com/jitenkr2030/tutorapp-backend/internal/services"
	chatws "github.com/jitenkr2030/tutorapp-backend/internal/websocket"
)

func RegisterRoutes(app *fiber.App, cfg *config.Config, db *pgxpool.Pool) {
	userRepo := repository.NewUserRepository(db)
	studentProfileRepo := repository.NewStudentProfileRepository(db)
	tutorProfileRepo := repository.NewTutorProfileRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	paymentMethodRepo := repository.NewPaymentMethodRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	materialRepo := repository.NewMaterialRepository(db)

	var storageService services.StorageService
	if cfg.SupabaseURL != "" && cfg.SupabaseBucket != "" && cfg.SupabaseServiceKey != "" {
		storageService = services.NewSupabaseStorageService(cfg.SupabaseURL, cfg.SupabaseBucket, cfg.SupabaseServiceKey)
	}
	gateway := payments.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	notificationService := services.NewNotificationService(notificationRepo)
	bookingService := services.NewBookingService(db, userRepo, tutorProfileRepo)
	sessionService := services.NewSessionService(
		sessionRepo,
		bookingRepo,
		paymentRepo,
		reviewRepo,
		notificationService,
	)
	paymentService := services.NewPaymentService(
		gateway,
		paymentRepo,
		bookingRepo,
		sessionRepo,
		webhookEventRepo,
		paymentMethodRepo,
		tutorProfileRepo,
		notificationService,
	)
	profileService := services.NewProfileService(studentProfileRepo, tutorProfileRepo)
	recommendationService := services.NewRecommendationService(tutorProfileRepo)
	chatService := services.NewChatService(db, conversationRepo, messageRepo, userRepo)
	materialService := services.NewMaterialService(materialRepo, sessionRepo, userRepo, storageService)

	authHandler := handlers.NewAuthHandler(db, userRepo, studentProfileRepo, tutorProfileRepo, cfg.JWTSecret)
	onboardingHandler := handlers.NewOnboardingHandler(studentProfileRepo, tutorProfileRepo)
	profileHandler := handlers.NewProfileHandler(profileService, studentProfileRepo, tutorProfileRepo, storageService)
	tutorDiscoveryHandler := handlers.NewTutorDiscoveryHandler(
		tutorProfileRepo,
		studentProfileRepo,
		reviewRepo,
		recommendationService,
	)
	sessionHandler := handlers.NewSessionHandler(bookingService, sessionService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	materialHandler := handlers.NewMaterialHandler(materialService)

	chatHub := chatws.NewHub()
	go chatHub.Run()
	chatHandler := handlers.NewChatHandler(chatService, chatHub, cfg.JWTSecret)

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	// The webhook authenticates via the processor signature, not a bearer
	// token, so it lives outside the protected group.
	api.Post("/payments/webhook", paymentHandler.Webhook)

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))

	students := authProtected.Group("/students")
	students.Post("/onboarding", onboardingHandler.StudentOnboarding)
	students.Get("/profile", profileHandler.GetStudentProfile)
	students.Put("/profile", profileHandler.UpdateStudentProfile)
	students.Post("/profile/avatar", profileHandler.UploadStudentAvatar)

	tutors := authProtected.Group("/tutors")
	tutors.Get("", tutorDiscoveryHandler.ListTutors)
	tutors.Post("/onboarding", onboardingHandler.TutorOnboarding)
	tutors.Get("/profile", profileHandler.GetTutorProfile)
	tutors.Put("/profile", profileHandler.UpdateTutorProfile)
	tutors.Post("/profile/avatar", profileHandler.UploadTutorAvatar)
	tutors.Get("/recommended", tutorDiscoveryHandler.GetRecommendedTutors)
	tutors.Get("/:id", tutorDiscoveryHandler.GetTutorDetail)

	sessions := authProtected.Group("/sessions")
	sessions.Post("/book", sessionHandler.BookSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Get("/availability", sessionHandler.CheckAvailability)
	sessions.Get("/:id", sessionHandler.GetSession)
	sessions.Post("/:id/start", sessionHandler.StartSession)
	sessions.Post("/:id/join", sessionHandler.JoinSession)
	sessions.Post("/:id/leave", sessionHandler.LeaveSession)
	sessions.Post("/:id/end", sessionHandler.EndSession)

	paymentsGroup := authProtected.Group("/payments")
	paymentsGroup.Post("/create-payment-intent", paymentHandler.CreatePaymentIntent)
	paymentsGroup.Post("/refund", paymentHandler.Refund)
	paymentsGroup.Get("/history", paymentHandler.History)
	paymentsGroup.Get("/methods", paymentHandler.ListMethods)
	paymentsGroup.Post("/methods", paymentHandler.SaveMethod)

	notifications := authProtected.Group("/notifications")
	notifications.Get("", notificationHandler.List)
	notifications.Put("/:id/read", notificationHandler.MarkRead)
	notifications.Put("/read-all", notificationHandler.MarkAllRead)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)

	materials := authProtected.Group("/materials")
	materials.Post("", materialHandler.CreateMaterial)
	materials.Get("", materialHandler.ListMaterials)
	materials.Get("/:id", materialHandler.GetMaterial)
	materials.Get("/:id/download", materialHandler.DownloadMaterial)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))
}
