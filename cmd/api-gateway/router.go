// Package main 是应用程序入口
package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/dumeirei/affiliate-backend/docs"
	"github.com/dumeirei/affiliate-backend/internal/common/config"
	"github.com/dumeirei/affiliate-backend/internal/common/crypto"
	"github.com/dumeirei/affiliate-backend/internal/common/jwt"
	"github.com/dumeirei/affiliate-backend/internal/common/metrics"
	commonMiddleware "github.com/dumeirei/affiliate-backend/internal/common/middleware"
	adminHandler "github.com/dumeirei/affiliate-backend/internal/handler/admin"
	affiliateHandler "github.com/dumeirei/affiliate-backend/internal/handler/affiliate"
	"github.com/dumeirei/affiliate-backend/internal/middleware"
	"github.com/dumeirei/affiliate-backend/internal/repository"
	"github.com/dumeirei/affiliate-backend/internal/scheduler"
	affiliateService "github.com/dumeirei/affiliate-backend/internal/service/affiliate"
	authService "github.com/dumeirei/affiliate-backend/internal/service/auth"
	"github.com/dumeirei/affiliate-backend/internal/service/notify"
	"github.com/dumeirei/affiliate-backend/pkg/sms"
)

// setupRouter 设置路由并完成依赖装配，返回后台任务处理器
func setupRouter(
	r *gin.Engine,
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	redisClient *redis.Client,
) *scheduler.TaskHandler {
	// 创建 JWT 管理器
	jwtManager := jwt.NewManager(&jwt.Config{
		Secret:            cfg.JWT.Secret,
		AccessExpireTime:  cfg.JWT.AccessTokenDuration(),
		RefreshExpireTime: cfg.JWT.RefreshTokenDuration(),
		Issuer:            cfg.JWT.Issuer,
	})

	// 敏感字段加密器
	aes, err := crypto.NewAES(cfg.Crypto.AESKey)
	if err != nil {
		logger.Fatal("Failed to init AES cipher", zap.Error(err))
	}

	// 初始化仓储
	userRepo := repository.NewUserRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	referralRepo := repository.NewReferralRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	adminRepo := repository.NewAdminRepository(db)
	logRepo := repository.NewOperationLogRepository(db)

	// 初始化短信客户端
	var smsClient sms.Sender
	if cfg.SMS.Provider == "aliyun" {
		client, err := sms.NewClient(&sms.Config{
			AccessKeyID:     cfg.SMS.AccessKeyID,
			AccessKeySecret: cfg.SMS.AccessKeySecret,
			SignName:        cfg.SMS.SignName,
		})
		if err != nil {
			logger.Fatal("Failed to init SMS client", zap.Error(err))
		}
		smsClient = client
	} else {
		smsClient = sms.NewMockClient()
	}
	notifier := notify.NewSMSNotifier(smsClient, affiliateRepo, userRepo)

	// 提现状态变更通知可按配置关闭
	var withdrawNotifier affiliateService.Notifier = notifier
	if !cfg.Affiliate.NotifyWithdrawChange {
		withdrawNotifier = affiliateService.NopNotifier{}
	}

	// 角色授权器
	authz := authService.NewRoleAuthorizer(adminRepo, affiliateRepo)

	// 初始化服务
	statsSvc := affiliateService.NewStatsService(affiliateRepo, referralRepo, visitRepo, withdrawalRepo, db)
	affiliateSvc := affiliateService.NewAffiliateService(affiliateRepo, userRepo, aes, cfg.Affiliate.DefaultRate)
	attributionSvc := affiliateService.NewAttributionService(affiliateRepo, visitRepo, referralRepo, statsSvc, db)
	referralSvc := affiliateService.NewReferralService(referralRepo, affiliateRepo, statsSvc, authz, notifier, db)
	withdrawSvc := affiliateService.NewWithdrawService(withdrawalRepo, affiliateRepo, statsSvc, authz, withdrawNotifier, aes, db)
	withdrawSvc.SetConfig(cfg.Affiliate.MinWithdrawAmount, cfg.Affiliate.MaxPendingWithdraw)

	leaderboardSvc := affiliateService.NewLeaderboardService(affiliateRepo, referralRepo, redisClient)
	leaderboardSvc.SetTTL(time.Duration(cfg.Affiliate.LeaderboardTTL) * time.Second)

	inviteSvc := affiliateService.NewInviteService(affiliateRepo, cfg.Affiliate.InviteBaseURL)
	authSvc := authService.NewAdminAuthService(adminRepo, jwtManager)

	// 初始化处理器
	trackH := affiliateHandler.NewTrackHandler(attributionSvc, leaderboardSvc, cfg.Affiliate.InviteBaseURL)
	affiliateH := affiliateHandler.NewHandler(affiliateSvc, statsSvc, referralSvc, inviteSvc)
	withdrawH := affiliateHandler.NewWithdrawHandler(affiliateSvc, withdrawSvc)

	adminAuthH := adminHandler.NewAuthHandler(authSvc)
	adminAffiliateH := adminHandler.NewAffiliateHandler(affiliateSvc, statsSvc, leaderboardSvc)
	adminReferralH := adminHandler.NewReferralHandler(referralSvc)
	adminWithdrawH := adminHandler.NewWithdrawHandler(withdrawSvc)
	adminLogH := adminHandler.NewLogHandler(logRepo)

	opLogger := commonMiddleware.NewOperationLogger(logRepo)

	// 全局中间件
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RealIP())
	r.Use(middleware.CORS(nil))
	r.Use(middleware.AccessLog(logger))
	if cfg.Metrics.Enabled {
		m := metrics.Init("affiliate")
		r.Use(m.Middleware())
		r.GET(cfg.Metrics.Path, metrics.Handler())
	}
	if cfg.Tracing.Enabled {
		r.Use(commonMiddleware.Tracing(&commonMiddleware.TracingConfig{
			ServiceName: cfg.Tracing.ServiceName,
		}))
	}
	if cfg.RateLimit.Enabled {
		r.Use(middleware.IPRateLimit(redisClient, cfg.RateLimit.RequestsPerSecond, time.Second))
	}

	// 健康检查（不需要认证）
	r.GET("/health", healthHandler)
	r.GET("/ping", pingHandler)
	r.GET("/ready", readyHandler(db, redisClient))

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 推广短链（落地页跳转 + 访问记录）
	r.GET("/t/:code", trackH.Track)

	// API v1 路由组
	v1 := r.Group("/api/v1")
	{
		// 公开接口（无需认证）
		public := v1.Group("")
		{
			public.POST("/track/visit", trackH.RecordVisit)
			public.GET("/leaderboard", trackH.Leaderboard)
			public.GET("/affiliate/withdrawals/config", withdrawH.GetConfig)
		}

		// 用户端接口（需要用户认证）
		user := v1.Group("")
		user.Use(middleware.UserAuth(jwtManager))
		{
			user.POST("/affiliate/apply", affiliateH.Apply)
			user.GET("/affiliate/info", affiliateH.GetInfo)
			user.GET("/affiliate/dashboard", affiliateH.GetDashboard)
			user.GET("/affiliate/visits/daily", affiliateH.GetDailyVisits)
			user.GET("/affiliate/referrals", affiliateH.ListReferrals)
			user.GET("/affiliate/invite", affiliateH.GetInvite)
			user.PUT("/affiliate/payout", affiliateH.UpdatePayout)

			user.POST("/affiliate/withdrawals", withdrawH.Apply)
			user.GET("/affiliate/withdrawals", withdrawH.List)
		}

		// 管理后台接口
		admin := v1.Group("/admin")
		{
			// 管理员登录（公开）
			admin.POST("/login", adminAuthH.Login)
			admin.POST("/refresh", adminAuthH.RefreshToken)

			// 需要管理员认证
			adminAuth := admin.Group("")
			adminAuth.Use(middleware.AdminAuth(jwtManager))
			adminAuth.Use(opLogger.Log())
			{
				adminAuth.PUT("/password", adminAuthH.ChangePassword)
				adminAuth.POST("/admins", middleware.RequireSuperAdmin(), adminAuthH.CreateAdmin)

				// 订单归因回调（订单系统以服务令牌上报）
				adminAuth.POST("/track/conversion", trackH.Attribute)

				// 推广员管理
				adminAuth.GET("/affiliates", adminAffiliateH.List)
				adminAuth.GET("/affiliates/:id", adminAffiliateH.Get)
				adminAuth.POST("/affiliates/:id/approve", adminAffiliateH.Approve)
				adminAuth.POST("/affiliates/:id/reject", adminAffiliateH.Reject)
				adminAuth.POST("/affiliates/:id/suspend", adminAffiliateH.Suspend)
				adminAuth.POST("/affiliates/:id/resume", adminAffiliateH.Resume)
				adminAuth.PUT("/affiliates/:id/rate", adminAffiliateH.UpdateRate)

				// 排行榜与统计
				adminAuth.GET("/leaderboard", adminAffiliateH.Leaderboard)
				adminAuth.POST("/stats/audit", adminAffiliateH.AuditStats)

				// 归因记录审核
				adminAuth.GET("/referrals", adminReferralH.List)
				adminAuth.GET("/referrals/pending", adminReferralH.ListPending)
				adminAuth.GET("/referrals/:id", adminReferralH.Get)
				adminAuth.POST("/referrals/:id/review", adminReferralH.Review)

				// 提现处理
				adminAuth.GET("/withdrawals", adminWithdrawH.List)
				adminAuth.GET("/withdrawals/pending", adminWithdrawH.ListPending)
				adminAuth.GET("/withdrawals/:id", adminWithdrawH.Get)
				adminAuth.POST("/withdrawals/:id/process", adminWithdrawH.Process)

				// 操作日志
				adminAuth.GET("/logs", adminLogH.List)
				adminAuth.GET("/logs/:target_type/:target_id", adminLogH.ListByTarget)
			}
		}
	}

	// 404 处理
	r.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    404,
			"message": "接口不存在",
		})
	})

	return scheduler.NewTaskHandler(statsSvc, leaderboardSvc, logRepo)
}
