package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Foghrye4/CubicChunks/internal/logging"
	"github.com/Foghrye4/CubicChunks/internal/world"
)

// WorldStatsProvider отдаёт снимок состояния планировщика мира
type WorldStatsProvider interface {
	Stats() world.Stats
	ViewDistances() (horizontal, vertical int)
}

// CacheStatsProvider отдаёт счётчики кеша содержимого
type CacheStatsProvider interface {
	LoadedCubes() int
	LoadedColumns() int
}

// Config содержит конфигурацию REST сервера
type Config struct {
	Port  string // Адрес вида ":8088"
	World WorldStatsProvider
	Cache CacheStatsProvider
}

// RestServer — диагностический HTTP-сервер: здоровье, метрики Prometheus
// и отладочные снимки планировщика
type RestServer struct {
	router  *gin.Engine
	cfg     Config
	metrics *ServerMetrics
	logger  *logging.Logger
	srv     *http.Server
}

// NewRestServer создаёт сервер и настраивает маршруты
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	rs := &RestServer{
		router:  router,
		cfg:     cfg,
		metrics: NewServerMetrics(),
		logger:  logging.GetComponentLogger("api"),
	}
	rs.setupRoutes()
	return rs
}

func (rs *RestServer) setupRoutes() {
	rs.router.GET("/health", rs.handleHealth)
	rs.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debug := rs.router.Group("/debug")
	{
		debug.GET("/cubemap", rs.handleCubeMapStats)
		debug.GET("/system", rs.handleSystemStats)
	}
}

// Start запускает сервер в отдельной горутине
func (rs *RestServer) Start() {
	rs.srv = &http.Server{
		Addr:    rs.cfg.Port,
		Handler: rs.router,
	}
	go func() {
		rs.logger.Info("REST API слушает %s", rs.cfg.Port)
		if err := rs.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			rs.logger.Error("Ошибка REST сервера: %v", err)
		}
	}()
}

// Stop останавливает сервер с таймаутом
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.srv == nil {
		return nil
	}
	return rs.srv.Shutdown(ctx)
}

// Router возвращает gin-роутер (для тестов)
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": rs.metrics.GetUptime(),
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (rs *RestServer) handleCubeMapStats(c *gin.Context) {
	if rs.cfg.World == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "мир не подключён"})
		return
	}

	stats := rs.cfg.World.Stats()
	horizontal, vertical := rs.cfg.World.ViewDistances()

	response := gin.H{
		"scheduler": stats,
		"view_distance": gin.H{
			"horizontal": horizontal,
			"vertical":   vertical,
		},
	}
	if rs.cfg.Cache != nil {
		response["cache"] = gin.H{
			"loaded_cubes":   rs.cfg.Cache.LoadedCubes(),
			"loaded_columns": rs.cfg.Cache.LoadedColumns(),
		}
	}
	c.JSON(http.StatusOK, response)
}

func (rs *RestServer) handleSystemStats(c *gin.Context) {
	cpuUsage, err := rs.metrics.GetCPUUsage()
	if err != nil {
		rs.logger.Debug("Метрика CPU недоступна: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime":     rs.metrics.GetUptime(),
		"memory_mb":  rs.metrics.GetMemoryUsage(),
		"cpu_pct":    cpuUsage,
		"goroutines": runtime.NumGoroutine(),
	})
}
