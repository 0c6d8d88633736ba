package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"taskmaster/internal/handler"
)

// NewRouter wires all HTTP routes. Task and push token routes sit behind
// bearer auth; the reminder trigger carries its own shared secret and the
// health and metrics endpoints are open.
func NewRouter(
	tasks *handler.TaskHandler,
	pushTokens *handler.PushTokenHandler,
	reminders *handler.ReminderHandler,
	jwtSecret string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(MetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/internal/reminders/run", reminders.Run)

	authed := router.Group("/")
	authed.Use(AuthMiddleware(jwtSecret, logger))
	{
		authed.POST("/tasks", tasks.CreateTask)
		authed.GET("/tasks", tasks.ListTasks)
		authed.GET("/tasks/stream", tasks.StreamTasks)
		authed.PUT("/tasks/:id", tasks.UpdateTask)
		authed.DELETE("/tasks/:id", tasks.DeleteTask)

		authed.POST("/push-tokens", pushTokens.Register)
		authed.DELETE("/push-tokens/:token", pushTokens.Unregister)
	}

	return router
}
