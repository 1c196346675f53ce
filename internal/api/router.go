package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/service"
)

type RouterConfig struct {
	JWTSecret     string
	CleanupAPIKey string
	CronSecret    string
	RateLimit     float64
	RateBurst     int
	// RequestLog turns on echo's access log.
	RequestLog bool
}

// PIN guessing gets a much smaller budget than the rest of the API.
const (
	pinRateLimit = 0.2
	pinRateBurst = 5
)

func NewRouter(cfg RouterConfig, svc service.Services) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	if cfg.RequestLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	e.Use(rateLimiter(cfg.RateLimit, cfg.RateBurst))

	tables := NewTableHandler(svc.Tables)
	sessions := NewSessionHandler(svc.Sessions)
	orders := NewOrderHandler(svc.Orders)
	notifications := NewNotificationHandler(svc.Notifications)
	staff := NewStaffHandler(svc.Staff)
	menu := NewMenuHandler(svc.Menu)
	ops := NewOpsHandler(svc.Cleanup)

	e.GET("/health", ops.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	jwtAuth := staffAuth(cfg.JWTSecret)
	managers := requireRole(entity.RoleManager)
	admins := requireRole(entity.RoleAdmin)

	g := e.Group("/api")
	g.GET("/menu", menu.List)
	g.GET("/menu/:id", menu.Get)

	g.POST("/tables/verify-pin", tables.VerifyPIN, rateLimiter(pinRateLimit, pinRateBurst))
	g.POST("/tables/transfer", tables.Transfer, jwtAuth)
	g.GET("/tables/:id", tables.GetTable)

	g.POST("/sessions", sessions.Start)
	g.GET("/sessions/:id", sessions.Get)
	g.POST("/sessions/:id/join", sessions.Join)
	g.GET("/sessions/:id/total", sessions.Total)
	g.GET("/sessions/:id/cart", orders.LoadCart)
	g.POST("/sessions/:id/cart", orders.AddToCart)
	g.GET("/sessions/:id/orders", orders.ListOrders)
	g.POST("/sessions/:id/orders", orders.PlaceOrders)
	g.POST("/sessions/:id/help", notifications.RequestHelp)
	g.POST("/sessions/:id/request-payment", sessions.RequestPayment)

	g.PATCH("/orders/:id", orders.UpdateCartItem)
	g.DELETE("/orders/:id", orders.RemoveCartItem)
	g.POST("/orders/:id/split", orders.SplitItem)
	g.POST("/split-bills/:id/resolve", orders.ResolveSplit)

	g.POST("/cart/cleanup", ops.CleanupCarts, apiKeyAuth(cfg.CleanupAPIKey))
	g.POST("/admin/stale-sweep", ops.SweepStaleSessions, cronAuth(cfg.CronSecret))

	g.POST("/staff/login", staff.Login)

	sg := g.Group("/staff", jwtAuth)
	sg.GET("/me", staff.Me)
	sg.GET("/tables", tables.StaffTables)
	sg.POST("/tables", tables.CreateTable, managers)
	sg.GET("/all-tables", tables.ListTables, managers)
	sg.POST("/tables/transfer", tables.Transfer)
	sg.POST("/tables/:id/pin", tables.AssignPIN)
	sg.GET("/notifications", notifications.List)
	sg.POST("/notifications/:id/acknowledge", notifications.Acknowledge)
	sg.POST("/notifications/:id/resolve", notifications.Resolve)
	sg.GET("/payment-notifications", notifications.PaymentNotifications)
	sg.POST("/sessions/:id/assign", sessions.AssignStaff)
	sg.POST("/sessions/:id/close", sessions.Close)
	sg.POST("/sessions/:id/payment", sessions.CompletePayment)
	sg.PATCH("/orders/:id/status", orders.UpdateStatus)
	sg.POST("/menu", menu.Create, managers)
	sg.GET("/members", staff.List, admins)
	sg.POST("/members", staff.Create, admins)

	return e
}
