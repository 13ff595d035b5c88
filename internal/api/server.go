package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artcityconsulting/propwatch/internal/api/middleware"
	"github.com/artcityconsulting/propwatch/internal/bulk"
	"github.com/artcityconsulting/propwatch/internal/config"
	"github.com/artcityconsulting/propwatch/internal/crm"
	"github.com/artcityconsulting/propwatch/internal/fetch"
	"github.com/artcityconsulting/propwatch/internal/model"
	"github.com/artcityconsulting/propwatch/internal/pipeline"
	"github.com/artcityconsulting/propwatch/internal/pkg/dedup"
	"github.com/artcityconsulting/propwatch/internal/pkg/metrics"
	"github.com/artcityconsulting/propwatch/internal/pkg/notify"
	"github.com/artcityconsulting/propwatch/internal/pkg/ratelimit"
	"github.com/artcityconsulting/propwatch/internal/scheduler"
	"github.com/artcityconsulting/propwatch/internal/status"
	"github.com/artcityconsulting/propwatch/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// Server 封装了 API 服务所需的依赖和路由处理。
//
// 它持有 sqlite 存储、可选的 Redis 客户端、刷新管线以及 Gin
// 路由引擎。
type Server struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	rdb      *redis.Client
	router   *gin.Engine
	sched    *scheduler.Scheduler
	listings ListingStore
	tracker  Tracker
	crm      CRMSyncer
	deduper  Deduper
}

// ListingStore 是 HTTP 层需要的存储能力。
type ListingStore interface {
	GetListing(ctx context.Context, id uint) (*model.Listing, error)
	ListListings(ctx context.Context) ([]model.Listing, error)
	SaveListing(ctx context.Context, l *model.Listing) error
	DeleteListing(ctx context.Context, id uint) error
	DeleteListings(ctx context.Context, ids []uint) error
	DeleteAllListings(ctx context.Context) error
	CountListings(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context, statusValue string) (int64, error)
	HasInput(ctx context.Context, inputText string) (bool, error)
	ListStatusChanges(ctx context.Context, listingID uint) ([]model.StatusChange, error)
	GetSetting(ctx context.Context, key, def string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	LastRefresh(ctx context.Context) time.Time
}

// Tracker 是 HTTP 层需要的刷新管线能力。
type Tracker interface {
	Add(ctx context.Context, inputText string) (*model.Listing, error)
	Refresh(ctx context.Context, id uint) (pipeline.Outcome, error)
	RefreshAll(ctx context.Context, progress pipeline.ProgressFunc) (pipeline.BatchResult, error)
}

// CRMSyncer 推送单条房源到外部 CRM。
type CRMSyncer interface {
	Enabled() bool
	Sync(ctx context.Context, l *model.Listing) (string, error)
}

// Deduper 抑制重复导入。
type Deduper interface {
	IsDuplicate(ctx context.Context, input string) (bool, error)
	Delete(ctx context.Context, input string) error
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 打开 sqlite 数据库并执行自动迁移
// 2. 连接 Redis（配置了地址时）
// 3. 组装抓取器、刷新管线与自动刷新调度器
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	// Redis 服务于导入去重和抓取限流，地址为空时整体禁用。
	var rdb *redis.Client
	var deduper Deduper
	var limiter *ratelimit.Limiter
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		deduper = dedup.NewDeduplicator(rdb, time.Duration(cfg.App.DedupWindow)*time.Second)
		limiter = ratelimit.New(rdb, logger, "", cfg.App.FetchRate, cfg.App.FetchBurst)
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.Email.SMTPHost != "" {
		notifier = notify.NewEmailNotifier(&cfg.Email, logger)
	}

	fetcher := fetch.New(cfg.App.UserAgent, cfg.App.FetchTimeout)
	trackerOpts := []pipeline.Option{
		pipeline.WithNotifier(notifier, cfg.App.NotifyEmail),
		pipeline.WithBatchDelay(cfg.App.BatchDelay),
	}
	if limiter != nil {
		trackerOpts = append(trackerOpts, pipeline.WithRateLimiter(limiter))
	}
	tracker := pipeline.NewTracker(st, fetcher, logger, trackerOpts...)
	sched := scheduler.New(st, tracker, logger, cfg.App.AutoRefreshCheckIvl)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		rdb:      rdb,
		router:   r,
		sched:    sched,
		listings: st,
		tracker:  tracker,
		crm:      crm.NewClient(&cfg.CRM, logger),
		deduper:  deduper,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// StartScheduler 启动自动刷新调度器。
func (s *Server) StartScheduler(ctx context.Context) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("PANIC in auto refresh scheduler", slog.Any("panic", r))
			}
		}()
		s.sched.Run(ctx)
	}()
}

// Close 关闭数据库与缓存连接。
func (s *Server) Close() error {
	var firstErr error
	if s.rdb != nil {
		if err := s.rdb.Close(); err != nil {
			firstErr = err
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	s.router.StaticFile("/", "./web/index.html")
	s.router.Static("/assets", "./web/assets")

	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/stats", s.handleStats)

	s.router.POST("/listings", s.handleCreateListing)
	s.router.GET("/listings", s.handleListListings)
	s.router.GET("/listings/:id", s.handleGetListing)
	s.router.DELETE("/listings/:id", s.handleDeleteListing)
	s.router.POST("/listings/delete", s.handleBulkDelete)
	s.router.POST("/listings/clear", s.handleClearListings)
	s.router.POST("/listings/:id/refresh", s.handleRefreshListing)
	s.router.GET("/listings/:id/history", s.handleListingHistory)
	s.router.POST("/listings/:id/sync", s.handleSyncListing)

	s.router.POST("/refresh", s.handleRefreshAll)
	s.router.POST("/import", s.handleImport)
	s.router.GET("/export.csv", s.handleExportCSV)

	s.router.GET("/settings", s.handleGetSettings)
	s.router.PUT("/settings", s.handleUpdateSettings)

	s.router.GET("/crm/fields", s.handleCRMFields)
}

func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if s.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}

	var one int
	if err := s.store.DB().WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
		return
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// listingResponse 房源在 API 中的展示形态。
type listingResponse struct {
	ID             uint   `json:"id"`
	InputText      string `json:"input_text"`
	Source         string `json:"source"`
	ResolvedURL    string `json:"resolved_url"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status"`
	LastCheckedAt  string `json:"last_checked_at"`
	LastChangedAt  string `json:"last_changed_at"`
	Price          string `json:"price"`
	Beds           string `json:"beds"`
	Baths          string `json:"baths"`
	Sqft           string `json:"sqft"`
	Address        string `json:"address"`
	MLS            string `json:"mls"`
	DaysOnMarket   string `json:"days_on_market"`
	YearBuilt      string `json:"year_built"`
	PropertyType   string `json:"property_type"`
	AgentName      string `json:"agent_name"`
	AgentPhoto     string `json:"agent_photo"`
	AgentPhone     string `json:"agent_phone"`
	AgentEmail     string `json:"agent_email"`
	Brokerage      string `json:"brokerage"`
	Features       string `json:"features"`
	Notes          string `json:"notes"`
	ExternalSyncID string `json:"external_sync_id"`
	CreatedAt      string `json:"created_at"`
}

func toListingResponse(l *model.Listing) listingResponse {
	fmtTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	return listingResponse{
		ID:             l.ID,
		InputText:      l.InputText,
		Source:         l.Source,
		ResolvedURL:    l.ResolvedURL,
		Status:         l.Status,
		PreviousStatus: l.PreviousStatus,
		LastCheckedAt:  fmtTime(l.LastCheckedAt),
		LastChangedAt:  fmtTime(l.LastChangedAt),
		Price:          l.Price,
		Beds:           l.Beds,
		Baths:          l.Baths,
		Sqft:           l.Sqft,
		Address:        l.Address,
		MLS:            l.MLS,
		DaysOnMarket:   l.DaysOnMarket,
		YearBuilt:      l.YearBuilt,
		PropertyType:   l.PropertyType,
		AgentName:      l.AgentName,
		AgentPhoto:     l.AgentPhoto,
		AgentPhone:     l.AgentPhone,
		AgentEmail:     l.AgentEmail,
		Brokerage:      l.Brokerage,
		Features:       l.Features,
		Notes:          l.Notes,
		ExternalSyncID: l.ExternalSyncID,
		CreatedAt:      l.CreatedAt.Format(time.RFC3339),
	}
}

// createListingRequest 添加房源的请求参数。
type createListingRequest struct {
	Input string `json:"input" binding:"required"`
}

// handleCreateListing 处理添加单条房源的请求。
//
// POST /listings
func (s *Server) handleCreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty input"})
		return
	}

	ctx := c.Request.Context()
	if exists, err := s.listings.HasInput(ctx, input); err == nil && exists {
		c.JSON(http.StatusConflict, gin.H{"error": "input already tracked"})
		return
	}
	if s.deduper != nil {
		dup, err := s.deduper.IsDuplicate(ctx, input)
		if err != nil {
			s.logger.Warn("dedup check failed", slog.String("error", err.Error()))
		} else if dup {
			metrics.ImportSkippedTotal.Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "input submitted recently"})
			return
		}
	}

	l, err := s.tracker.Add(ctx, input)
	if err != nil {
		// 失败时释放去重标记，允许用户修正后重试。
		if s.deduper != nil {
			if delErr := s.deduper.Delete(ctx, input); delErr != nil {
				s.logger.Warn("dedup delete failed", slog.String("error", delErr.Error()))
			}
		}
		c.JSON(statusForPipelineError(err), gin.H{"error": err.Error()})
		return
	}

	s.updateTrackedGauge(ctx)
	c.JSON(http.StatusCreated, toListingResponse(l))
}

// statusForPipelineError 把管线错误类别映射为 HTTP 状态码。
func statusForPipelineError(err error) int {
	switch pipeline.ErrKind(err) {
	case pipeline.KindInput:
		return http.StatusBadRequest
	case pipeline.KindTransport:
		return http.StatusBadGateway
	case pipeline.KindExtraction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleListListings 返回房源列表，按添加时间倒序。
func (s *Server) handleListListings(c *gin.Context) {
	listings, err := s.listings.ListListings(c.Request.Context())
	if err != nil {
		s.logger.Error("list listings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list listings failed"})
		return
	}
	resp := make([]listingResponse, 0, len(listings))
	for i := range listings {
		resp = append(resp, toListingResponse(&listings[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) listingID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) handleGetListing(c *gin.Context) {
	id, ok := s.listingID(c)
	if !ok {
		return
	}
	l, err := s.listings.GetListing(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		s.logger.Error("get listing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get listing failed"})
		return
	}
	c.JSON(http.StatusOK, toListingResponse(l))
}

// handleDeleteListing 删除单条房源及其状态历史。
func (s *Server) handleDeleteListing(c *gin.Context) {
	id, ok := s.listingID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// 删除前取回原始输入，用于清理去重标记。
	var inputText string
	if l, err := s.listings.GetListing(ctx, id); err == nil {
		inputText = l.InputText
	}

	if err := s.listings.DeleteListing(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		s.logger.Error("delete listing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete listing failed"})
		return
	}
	if s.deduper != nil && inputText != "" {
		if err := s.deduper.Delete(ctx, inputText); err != nil {
			s.logger.Warn("dedup delete failed", slog.String("error", err.Error()), slog.String("input", inputText))
		}
	}

	s.updateTrackedGauge(ctx)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// bulkDeleteRequest 批量删除的请求参数。
type bulkDeleteRequest struct {
	IDs []uint `json:"ids" binding:"required"`
}

func (s *Server) handleBulkDelete(c *gin.Context) {
	var req bulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no ids"})
		return
	}

	ctx := c.Request.Context()
	if err := s.listings.DeleteListings(ctx, req.IDs); err != nil {
		s.logger.Error("bulk delete failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk delete failed"})
		return
	}

	s.updateTrackedGauge(ctx)
	c.JSON(http.StatusOK, gin.H{"deleted": len(req.IDs)})
}

func (s *Server) handleClearListings(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.listings.DeleteAllListings(ctx); err != nil {
		s.logger.Error("clear listings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear listings failed"})
		return
	}
	s.updateTrackedGauge(ctx)
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// handleRefreshListing 刷新单条房源。
//
// POST /listings/:id/refresh
func (s *Server) handleRefreshListing(c *gin.Context) {
	id, ok := s.listingID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	outcome, err := s.tracker.Refresh(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		c.JSON(statusForPipelineError(err), gin.H{"error": err.Error()})
		return
	}

	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		s.logger.Error("reload listing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload listing failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"changed": outcome.Changed,
		"from":    outcome.From,
		"to":      outcome.To,
		"listing": toListingResponse(l),
	})
}

// batchErrorResponse 整批刷新中单条失败的描述。
type batchErrorResponse struct {
	ListingID uint   `json:"listing_id"`
	Input     string `json:"input"`
	Error     string `json:"error"`
}

// handleRefreshAll 顺序刷新全部房源。
//
// POST /refresh
func (s *Server) handleRefreshAll(c *gin.Context) {
	metrics.BatchRunsTotal.WithLabelValues("manual").Inc()

	result, err := s.tracker.RefreshAll(c.Request.Context(), nil)
	if err != nil {
		if errors.Is(err, pipeline.ErrBatchRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	errs := make([]batchErrorResponse, 0, len(result.Errors))
	for _, ie := range result.Errors {
		errs = append(errs, batchErrorResponse{
			ListingID: ie.ListingID,
			Input:     ie.InputText,
			Error:     ie.Err.Error(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   result.Total,
		"changed": result.Changed,
		"errors":  errs,
	})
}

// statusChangeResponse 状态时间线中的一条记录。
type statusChangeResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	At   string `json:"at"`
}

// handleListingHistory 返回单条房源的状态变更时间线。
func (s *Server) handleListingHistory(c *gin.Context) {
	id, ok := s.listingID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := s.listings.GetListing(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		s.logger.Error("get listing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get listing failed"})
		return
	}

	changes, err := s.listings.ListStatusChanges(ctx, id)
	if err != nil {
		s.logger.Error("list status changes failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list status changes failed"})
		return
	}
	resp := make([]statusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		resp = append(resp, statusChangeResponse{
			From: ch.FromStatus,
			To:   ch.ToStatus,
			At:   ch.CreatedAt.Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}

// handleSyncListing 把单条房源推送到外部 CRM。
//
// POST /listings/:id/sync
func (s *Server) handleSyncListing(c *gin.Context) {
	if !s.crm.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "crm sync not configured"})
		return
	}
	id, ok := s.listingID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	l, err := s.listings.GetListing(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
			return
		}
		s.logger.Error("get listing failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get listing failed"})
		return
	}

	externalID, err := s.crm.Sync(ctx, l)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if externalID != "" && externalID != l.ExternalSyncID {
		l.ExternalSyncID = externalID
		if err := s.listings.SaveListing(ctx, l); err != nil {
			s.logger.Warn("save external sync id failed", slog.String("error", err.Error()))
		}
	}

	c.JSON(http.StatusOK, gin.H{"external_id": externalID})
}

// importRequest 批量导入的 JSON 请求体（纯文本粘贴模式）。
type importRequest struct {
	Text string `json:"text"`
}

// importFailure 导入中单条失败的描述。
type importFailure struct {
	Input string `json:"input"`
	Error string `json:"error"`
}

// handleImport 批量导入房源。
//
// 支持两种形态：multipart 的 file 字段上传 CSV，或 JSON 请求体
// 中的 text 字段逐行粘贴。每条输入独立成功或失败。
//
// POST /import
func (s *Server) handleImport(c *gin.Context) {
	var inputs []string

	if file, err := c.FormFile("file"); err == nil && file != nil {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "open upload failed"})
			return
		}
		defer f.Close()
		inputs, err = bulk.ParseCSV(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	} else {
		var req importRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		inputs = bulk.ParseLines(req.Text)
	}

	if len(inputs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no inputs"})
		return
	}

	ctx := c.Request.Context()
	added := 0
	skipped := 0
	failures := []importFailure{}

	for _, input := range inputs {
		if exists, err := s.listings.HasInput(ctx, input); err == nil && exists {
			skipped++
			metrics.ImportSkippedTotal.Inc()
			continue
		}
		if s.deduper != nil {
			dup, err := s.deduper.IsDuplicate(ctx, input)
			if err != nil {
				s.logger.Warn("dedup check failed", slog.String("error", err.Error()))
			} else if dup {
				skipped++
				metrics.ImportSkippedTotal.Inc()
				continue
			}
		}

		if _, err := s.tracker.Add(ctx, input); err != nil {
			failures = append(failures, importFailure{Input: input, Error: err.Error()})
			if s.deduper != nil {
				if delErr := s.deduper.Delete(ctx, input); delErr != nil {
					s.logger.Warn("dedup delete failed", slog.String("error", delErr.Error()))
				}
			}
			continue
		}
		added++
	}

	s.updateTrackedGauge(ctx)
	s.logger.Info("bulk import finished",
		slog.Int("added", added),
		slog.Int("skipped", skipped),
		slog.Int("failed", len(failures)),
	)
	c.JSON(http.StatusOK, gin.H{
		"added":   added,
		"skipped": skipped,
		"failed":  failures,
	})
}

// handleExportCSV 导出全部房源为 CSV 文件。
func (s *Server) handleExportCSV(c *gin.Context) {
	listings, err := s.listings.ListListings(c.Request.Context())
	if err != nil {
		s.logger.Error("list listings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list listings failed"})
		return
	}

	filename := "listings_" + time.Now().Format("20060102_150405") + ".csv"
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Status(http.StatusOK)
	if err := bulk.WriteCSV(c.Writer, listings); err != nil {
		s.logger.Error("write csv failed", slog.String("error", err.Error()))
	}
}

// settingsResponse 应用设置的展示形态。
type settingsResponse struct {
	AutoRefreshEnabled  bool   `json:"auto_refresh_enabled"`
	RefreshIntervalDays int    `json:"refresh_interval_days"`
	LastRefresh         string `json:"last_refresh"`
	ViewMode            string `json:"view_mode"`
}

func (s *Server) handleGetSettings(c *gin.Context) {
	ctx := c.Request.Context()

	enabled, _ := s.listings.GetSetting(ctx, store.SettingAutoRefreshEnabled, "true")
	days, _ := s.listings.GetSetting(ctx, store.SettingRefreshIntervalDays, "1")
	viewMode, _ := s.listings.GetSetting(ctx, store.SettingViewMode, "cards")

	daysInt, err := strconv.Atoi(days)
	if err != nil || daysInt < 1 {
		daysInt = 1
	}
	lastRefresh := ""
	if t := s.listings.LastRefresh(ctx); !t.IsZero() {
		lastRefresh = t.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, settingsResponse{
		AutoRefreshEnabled:  enabled == "true",
		RefreshIntervalDays: daysInt,
		LastRefresh:         lastRefresh,
		ViewMode:            viewMode,
	})
}

// updateSettingsRequest 更新设置的请求参数，未提供的字段不变。
type updateSettingsRequest struct {
	AutoRefreshEnabled  *bool   `json:"auto_refresh_enabled"`
	RefreshIntervalDays *int    `json:"refresh_interval_days"`
	ViewMode            *string `json:"view_mode"`
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	updated := false

	if req.AutoRefreshEnabled != nil {
		v := "false"
		if *req.AutoRefreshEnabled {
			v = "true"
		}
		if err := s.listings.SetSetting(ctx, store.SettingAutoRefreshEnabled, v); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
		updated = true
	}
	if req.RefreshIntervalDays != nil {
		if *req.RefreshIntervalDays < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid refresh_interval_days"})
			return
		}
		if err := s.listings.SetSetting(ctx, store.SettingRefreshIntervalDays, strconv.Itoa(*req.RefreshIntervalDays)); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
		updated = true
	}
	if req.ViewMode != nil {
		mode := strings.TrimSpace(*req.ViewMode)
		if mode != "cards" && mode != "table" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid view_mode"})
			return
		}
		if err := s.listings.SetSetting(ctx, store.SettingViewMode, mode); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save setting failed"})
			return
		}
		updated = true
	}

	if !updated {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// handleStats 返回面板用的状态分布统计。
func (s *Server) handleStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.listings.CountListings(ctx)
	if err != nil {
		s.logger.Error("count listings failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "count listings failed"})
		return
	}

	byStatus := map[string]int64{}
	for _, st := range []string{
		status.ForSale, status.Pending, status.Contingent,
		status.Sold, status.OffMarket, status.ComingSoon, status.ForRent,
	} {
		n, err := s.listings.CountByStatus(ctx, st)
		if err != nil {
			continue
		}
		if n > 0 {
			byStatus[st] = n
		}
	}

	lastRefresh := ""
	if t := s.listings.LastRefresh(ctx); !t.IsZero() {
		lastRefresh = t.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"total":        total,
		"by_status":    byStatus,
		"last_refresh": lastRefresh,
	})
}

// handleCRMFields 返回可同步的字段名及当前映射，供配置参考。
func (s *Server) handleCRMFields(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"fields":  crm.FieldNames(),
		"mapping": s.cfg.CRM.FieldMap,
	})
}

func (s *Server) updateTrackedGauge(ctx context.Context) {
	if n, err := s.listings.CountListings(ctx); err == nil {
		metrics.TrackedListings.Set(float64(n))
	}
}
