package server

import (
	"context"
	"net/http"
	"subtitle-fusion/app/auth"
	"subtitle-fusion/app/config"
	"subtitle-fusion/app/database"
	"subtitle-fusion/app/filewatcher"
	"subtitle-fusion/app/handler"
	"subtitle-fusion/app/logger"
	"subtitle-fusion/app/middleware"
	"subtitle-fusion/app/model"
	"subtitle-fusion/app/service"
	"subtitle-fusion/app/taskqueue"
	"subtitle-fusion/app/utils/pathhelper"
	"time"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器及其挂载的后台组件
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server

	scheduler *taskqueue.Scheduler
	extractor *service.ExtractorService
	proxies   *service.ProxyService
	playlist  *service.PlaylistService
	history   *service.HistoryService
	watcher   *filewatcher.Watcher
	cleanup   *service.CleanupService
}

// New 创建一个新的 Server 实例并组装全部业务组件
func New(cfg *config.Config, log *logger.Logger) *Server {
	router := gin.Default()

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config: cfg,
		Logger: log,
	}

	s.setupServices()
	s.setupRoutes()

	return s
}

// setupServices 组装业务服务和任务调度器
func (s *Server) setupServices() {
	cfg := s.Config
	log := s.Logger

	s.proxies = service.NewProxyService(log, cfg.Download.Proxies)
	s.extractor = service.NewExtractorService(log, &service.ExtractorConfig{
		Binary:     cfg.Download.YtdlpBinary,
		MaxRetries: cfg.Download.MaxRetries,
		RetryDelay: time.Duration(cfg.Download.RetryDelaySeconds) * time.Second,
	}, s.proxies)
	transcriber := service.NewTranscriberService(log, &service.TranscriberConfig{
		Enabled:  cfg.Whisper.Enabled,
		Binary:   cfg.Whisper.Binary,
		Model:    cfg.Whisper.Model,
		Language: cfg.Whisper.Language,
	})
	thumbnails := service.NewThumbnailService(log, cfg.Download.ThumbnailWidth)
	s.playlist = service.NewPlaylistService(log)
	s.history = service.NewHistoryService(log, database.GetDB())

	store := taskqueue.NewStore()
	s.scheduler = taskqueue.NewScheduler(log, store, &taskqueue.SchedulerConfig{
		MaxConcurrent: cfg.Download.MaxConcurrentTasks,
		MaxPending:    cfg.Download.MaxPendingTasks,
		CancelGrace:   time.Duration(cfg.Download.CancelGraceSeconds) * time.Second,
	})

	downloader := service.NewDownloaderService(log, s.extractor, transcriber, thumbnails,
		cfg.Download.Dir, cfg.Download.Languages, cfg.Download.Formats)
	downloader.Register(s.scheduler)

	// 任务进入终态后写入历史记录
	s.scheduler.SetTerminalCallback(func(task *model.Task) {
		if err := s.history.Record(task); err != nil {
			log.Errorf("记录任务历史失败: %s: %v", task.TaskID, err)
		}
	})

	// 目录监听是可选组件，创建失败只告警不阻止启动
	watcher, err := filewatcher.NewWatcher(&cfg.Watch, log, s.scheduler)
	if err != nil {
		log.Errorf("创建目录监听失败，已跳过: %v", err)
	} else {
		s.watcher = watcher
	}

	s.cleanup = service.NewCleanupService(log, &service.CleanupConfig{
		Cron:             cfg.Cleanup.Cron,
		TaskRetention:    time.Duration(cfg.Download.TaskRetentionHours) * time.Hour,
		TempMaxAge:       time.Duration(cfg.Cleanup.TempMaxAgeHours) * time.Hour,
		HistoryRetention: time.Duration(cfg.Cleanup.HistoryRetentionDays) * 24 * time.Hour,
		DownloadDir:      cfg.Download.Dir,
	}, store, s.history)
}

// Start 启动后台组件和HTTP服务
func (s *Server) Start() error {
	if err := pathhelper.EnsureDir(s.Config.Download.Dir); err != nil {
		return err
	}

	s.scheduler.Start()
	if err := s.watcher.Start(); err != nil {
		s.Logger.Errorf("启动目录监听失败: %v", err)
	}
	if err := s.cleanup.Start(); err != nil {
		return err
	}

	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)
	return s.http.ListenAndServe()
}

// Shutdown 按依赖顺序停止各组件：先停任务来源，再收调度器，最后关HTTP和数据库
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.watcher.Stop(); err != nil {
		s.Logger.Errorf("停止目录监听失败: %v", err)
	}

	s.scheduler.Stop(ctx)
	s.cleanup.Stop()

	err := s.http.Shutdown(ctx)

	if dbErr := database.Close(); dbErr != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", dbErr)
	}
	return err
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	jwtService := auth.NewJWTService(s.Config)
	authHandler := handler.NewAuthHandler(jwtService)
	taskHandler := handler.NewTaskHandler(s.Logger, s.scheduler, s.playlist, s.history, s.Config.Download.Dir)
	videoHandler := handler.NewVideoHandler(s.Logger, s.extractor)
	proxyHandler := handler.NewProxyHandler(s.Logger, s.proxies)
	fileHandler := handler.NewFileHandler(s.Logger, s.Config.Download.Dir)
	historyHandler := handler.NewHistoryHandler(s.Logger, s.history)

	s.gin.Use(middleware.CORS(s.Config.Server.CORSOrigins))

	// 健康检查
	s.gin.GET("/", s.health)

	// API路由组
	api := s.gin.Group("/api")

	// 配置了管理员账户时启用鉴权
	if s.authEnabled() {
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
		}

		protected := api.Group("/")
		protected.Use(middleware.JWTAuth(jwtService))
		protected.GET("/me", authHandler.Me)
		s.registerAPIRoutes(protected, taskHandler, videoHandler, proxyHandler, fileHandler, historyHandler)
		return
	}

	s.registerAPIRoutes(api, taskHandler, videoHandler, proxyHandler, fileHandler, historyHandler)
}

// registerAPIRoutes 注册业务接口
func (s *Server) registerAPIRoutes(group *gin.RouterGroup,
	taskHandler *handler.TaskHandler,
	videoHandler *handler.VideoHandler,
	proxyHandler *handler.ProxyHandler,
	fileHandler *handler.FileHandler,
	historyHandler *handler.HistoryHandler,
) {
	// 视频信息
	group.POST("/video/info", videoHandler.GetVideoInfo)
	group.GET("/sites", videoHandler.GetSupportedSites)

	// 任务提交与管理
	download := group.Group("/download")
	{
		download.POST("/start", taskHandler.StartDownload)
		download.POST("/playlist", taskHandler.StartPlaylist)
		download.GET("/file/:filename", fileHandler.DownloadFile)
	}
	group.POST("/transcribe/start", taskHandler.StartTranscribe)
	group.GET("/task/:id", taskHandler.GetTask)
	group.DELETE("/task/:id", taskHandler.CancelTask)
	group.GET("/tasks", taskHandler.ListTasks)
	group.GET("/stats", taskHandler.GetStats)
	group.GET("/files", fileHandler.ListFiles)

	// 代理池
	proxy := group.Group("/proxy")
	{
		proxy.POST("/add", proxyHandler.AddProxy)
		proxy.POST("/test", proxyHandler.TestProxy)
		proxy.GET("/list", proxyHandler.ListProxies)
	}

	// 下载历史
	group.GET("/history", historyHandler.ListHistory)
	group.DELETE("/history", historyHandler.CleanupHistory)
}

// authEnabled 是否启用接口鉴权
func (s *Server) authEnabled() bool {
	return s.Config.Server.Username != "" && s.Config.Server.Password != ""
}

// health 健康检查接口
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":      "subtitle-fusion",
		"status":    "running",
		"timestamp": time.Now().Format(time.RFC3339),
		"features": gin.H{
			"ai_subtitles": s.Config.Whisper.Enabled,
			"playlist":     true,
			"proxy_pool":   true,
			"watch_folder": s.Config.Watch.Enabled,
			"auth":         s.authEnabled(),
		},
	})
}
