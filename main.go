package main

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"twils-assistant/config"
	"twils-assistant/models"
	"twils-assistant/providers"
	"twils-assistant/providers/gemini"
	"twils-assistant/providers/tokenauth"
	"twils-assistant/services"
	"twils-assistant/session"
	"twils-assistant/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

// userMiddleware resolves an optional Bearer token into the request context.
// Requests without a token pass through anonymously; handlers that need an
// authenticated user check for it themselves.
func userMiddleware(auth providers.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) > 7 && header[:7] == "Bearer " {
			if user, err := auth.CurrentUser(c.Request.Context(), header[7:]); err == nil && user != nil {
				c.Set("user", user)
			}
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *providers.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	user, _ := v.(*providers.User)
	return user
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.SearchEvent{}, &models.UploadedPaper{})

	// Setup Providers
	textProvider := gemini.NewClient(cfg, logging)
	authProvider := tokenauth.NewProvider(logging)

	// Setup Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	sessions := session.NewManager(logging)
	normalizer := services.NewPaperNormalizer(logging)
	fallback := services.NewFallbackSynthesizer(logging)
	searchService := services.NewSearchService(db, textProvider, normalizer, fallback, logging)
	translationService := services.NewTranslationService(textProvider, logging)
	chatService := services.NewChatService(textProvider, logging)
	uploadService := services.NewUploadService(cfg, db, s3Client, logging)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.Use(userMiddleware(authProvider))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": sessions.Count()})
	})

	// Setup Routes
	setupAuthRoutes(router, authProvider, logging)
	setupSessionRoutes(router, sessions, logging)
	setupSearchRoutes(router, sessions, searchService)
	setupPaperRoutes(router, sessions, translationService, logging)
	setupChatRoutes(router, sessions, chatService, logging)
	setupUploadRoutes(router, uploadService, logging)
	setupEventRoutes(router, db, logging)

	// Setup Cron
	cronScheduler := cron.New()
	maxIdle := time.Duration(cfg.SessionMaxIdleMinutes) * time.Minute
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		dropped := sessions.Sweep(maxIdle)
		logging.Info("Session sweep completed", zap.Int("dropped", dropped), zap.Int("remaining", sessions.Count()))
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// No WriteTimeout: chat responses stream over SSE for longer than
		// any fixed deadline.
		IdleTimeout: 120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupAuthRoutes(router *gin.Engine, auth providers.AuthProvider, log *zap.Logger) {
	rg := router.Group("/auth")

	rg.POST("/login", func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		token, err := auth.Login(c.Request.Context(), req.Email)
		if err != nil {
			log.Error("Login failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	})

	rg.POST("/logout", func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) > 7 && header[:7] == "Bearer " {
			auth.Logout(c.Request.Context(), header[7:])
		}
		c.JSON(http.StatusOK, gin.H{"status": "logged out"})
	})
}

func setupSessionRoutes(router *gin.Engine, sessions *session.Manager, log *zap.Logger) {
	rg := router.Group("/sessions")

	rg.POST("/", func(c *gin.Context) {
		userID := ""
		if user := currentUser(c); user != nil {
			userID = user.ID
		}
		s := sessions.Create(userID)
		c.JSON(http.StatusCreated, gin.H{"session_id": s.ID})
	})

	rg.GET("/:id", func(c *gin.Context) {
		s, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.Touch()
		c.JSON(http.StatusOK, gin.H{
			"session_id": s.ID,
			"query":      s.Query(),
			"results":    s.Results(),
			"favorites":  s.Favorites(),
			"messages":   s.Messages(),
			"streaming":  s.Streaming(),
		})
	})
}

func setupSearchRoutes(router *gin.Engine, sessions *session.Manager, searchService *services.SearchService) {
	router.POST("/sessions/:id/search", func(c *gin.Context) {
		s, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		papers := searchService.Search(c.Request.Context(), s, req.Query)
		c.JSON(http.StatusOK, gin.H{"query": s.Query(), "results": papers})
	})
}

func setupPaperRoutes(router *gin.Engine, sessions *session.Manager, translationService *services.TranslationService, log *zap.Logger) {
	rg := router.Group("/sessions/:id/papers")

	rg.POST("/:paperId/translate", func(c *gin.Context) {
		s, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		var req struct {
			Language string `json:"language" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		paperID := c.Param("paperId")
		translated, err := translationService.Translate(c.Request.Context(), s, paperID, req.Language)
		if err != nil {
			log.Error("Translation failed", zap.String("paper_id", paperID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "translation failed"})
			return
		}
		if !translated {
			// A translation for this record is already running.
			c.JSON(http.StatusAccepted, gin.H{"status": "translation in progress"})
			return
		}
		paper, _ := s.Paper(paperID)
		c.JSON(http.StatusOK, paper)
	})

	rg.POST("/:paperId/favorite", func(c *gin.Context) {
		s, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		paperID := c.Param("paperId")
		if _, found := s.Paper(paperID); !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "paper not found"})
			return
		}
		favorited := s.ToggleFavorite(paperID)
		c.JSON(http.StatusOK, gin.H{"paper_id": paperID, "favorited": favorited})
	})
}

func setupChatRoutes(router *gin.Engine, sessions *session.Manager, chatService *services.ChatService, log *zap.Logger) {
	router.POST("/sessions/:id/chat", func(c *gin.Context) {
		s, ok := sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "chat requires authentication"})
			return
		}
		var req struct {
			Message string `json:"message" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")

		flusher, canFlush := c.Writer.(http.Flusher)
		err := chatService.Submit(c.Request.Context(), s, user, req.Message, func(chunk string) {
			c.SSEvent("message", chunk)
			if canFlush {
				flusher.Flush()
			}
		})
		if err != nil {
			log.Warn("Chat stream ended with error", zap.String("session_id", s.ID), zap.Error(err))
			c.SSEvent("error", "stream interrupted")
		}
		c.SSEvent("done", "")
		if canFlush {
			flusher.Flush()
		}
	})
}

func setupUploadRoutes(router *gin.Engine, uploadService *services.UploadService, log *zap.Logger) {
	rg := router.Group("/uploads")

	rg.POST("/", func(c *gin.Context) {
		user := currentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "upload requires authentication"})
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
			return
		}

		paper, err := uploadService.Store(c.Request.Context(), services.UploadInput{
			UploaderID:  user.ID,
			Title:       c.PostForm("title"),
			Authors:     c.PostForm("authors"),
			Institution: c.PostForm("institution"),
			Language:    c.PostForm("language"),
			Category:    c.PostForm("category"),
			Abstract:    c.PostForm("abstract"),
			Filename:    fileHeader.Filename,
			Data:        data,
		})
		if err != nil {
			log.Error("Upload failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}
		c.JSON(http.StatusCreated, paper)
	})

	rg.GET("/", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		papers, err := uploadService.List(c.Request.Context(), c.Query("uploader_id"), limit)
		if err != nil {
			log.Error("Listing uploads failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, papers)
	})
}

func setupEventRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	// Body-driven query endpoint for analytics rows.
	router.POST("/events/query", func(c *gin.Context) {
		type EventQuery struct {
			UserID string `json:"user_id"`
			Type   string `json:"type"`
			Since  string `json:"since"`
			Limit  int    `json:"limit"`
		}

		var req EventQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.SearchEvent{})
		if req.UserID != "" {
			query = query.Where("user_id = ?", req.UserID)
		}
		if req.Type != "" {
			query = query.Where("type = ?", req.Type)
		}
		if req.Since != "" {
			since, err := time.Parse(time.RFC3339, req.Since)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
				return
			}
			query = query.Where("created_at >= ?", since)
		}
		if req.Limit <= 0 || req.Limit > 500 {
			req.Limit = 100
		}

		var events []models.SearchEvent
		if err := query.Order("created_at DESC").Limit(req.Limit).Find(&events).Error; err != nil {
			log.Error("Database query for search events failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, events)
	})
}
