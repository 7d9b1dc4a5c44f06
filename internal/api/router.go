package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/pcpos/internal/middleware"
	"github.com/wfunc/pcpos/internal/repository"
	"github.com/wfunc/pcpos/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine      *gin.Engine
	db          *gorm.DB
	transaction *TransactionHandler
	payment     *PaymentHandler
	log         *zap.Logger
}

// NewRouter 创建路由器，db 为空时交易查询接口返回 503
func NewRouter(db *gorm.DB, payments *service.PaymentService, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.AccessLog())

	var repo repository.TransactionRepository
	if db != nil {
		repo = repository.NewTransactionRepository(db)
	}

	router := &Router{
		engine:      engine,
		db:          db,
		transaction: NewTransactionHandler(repo),
		payment:     NewPaymentHandler(payments),
		log:         log,
	}
	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		r.transaction.RegisterRoutes(v1)
		if r.payment.service != nil {
			r.payment.RegisterRoutes(v1)
		}
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	if r.db == nil {
		c.JSON(200, gin.H{
			"status":   "healthy",
			"database": "disabled",
		})
		return
	}

	sqlDB, err := r.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		r.log.Warn("健康检查数据库不可用", zap.Error(err))
		c.JSON(503, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":   "healthy",
		"database": "connected",
	})
}

// GetEngine 获取Gin引擎，由调用方挂到 http.Server 上
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
