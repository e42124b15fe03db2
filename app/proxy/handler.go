package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"postkeeper/app/models"
)

// Handler serves the posts API by forwarding each call to the posts service.
type Handler struct {
	client *Client
	logger *slog.Logger
}

func NewHandler(client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{client: client, logger: logger}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.handleHealth)

	api := e.Group("/api")
	api.GET("/posts", h.handleListPosts)
	api.POST("/posts", h.handleCreatePost)
	api.GET("/posts/:id", h.handleGetPost)
	api.PUT("/posts/:id", h.handleUpdatePost)
	api.DELETE("/posts/:id", h.handleDeletePost)
	api.GET("/posts/:id/audit", h.handleAuditPost)
	api.GET("/posts/:id/comments", h.handleListComments)
	api.POST("/posts/:id/comments", h.handleCreateComment)
	api.GET("/posts/:id/comments/:commentId", h.handleGetComment)
	api.PATCH("/posts/:id/comments/:commentId", h.handleUpdateComment)
	api.DELETE("/posts/:id/comments/:commentId", h.handleDeleteComment)
	api.POST("/sync", h.handleSync)
}

// New builds the proxy echo server.
func New(client *Client, logger *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	NewHandler(client, logger).RegisterRoutes(e)
	return e
}

func (h *Handler) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

func (h *Handler) handleListPosts(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	perPage, _ := strconv.Atoi(c.QueryParam("per_page"))
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.ListPosts(ctx, page, perPage)
	})
}

func (h *Handler) handleCreatePost(c echo.Context) error {
	var in models.PostInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.CreatePost(ctx, in)
	})
}

func (h *Handler) handleGetPost(c echo.Context) error {
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.GetPost(ctx, c.Param("id"))
	})
}

func (h *Handler) handleUpdatePost(c echo.Context) error {
	var in models.PostInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.UpdatePost(ctx, c.Param("id"), in)
	})
}

func (h *Handler) handleDeletePost(c echo.Context) error {
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.DeletePost(ctx, c.Param("id"))
	})
}

func (h *Handler) handleAuditPost(c echo.Context) error {
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.AuditPost(ctx, c.Param("id"))
	})
}

func (h *Handler) handleListComments(c echo.Context) error {
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.ListComments(ctx, c.Param("id"))
	})
}

func (h *Handler) handleCreateComment(c echo.Context) error {
	var in models.CommentInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.CreateComment(ctx, c.Param("id"), in)
	})
}

func (h *Handler) handleGetComment(c echo.Context) error {
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.GetComment(ctx, c.Param("id"), c.Param("commentId"))
	})
}

func (h *Handler) handleUpdateComment(c echo.Context) error {
	var patch models.CommentPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.UpdateComment(ctx, c.Param("id"), c.Param("commentId"), patch)
	})
}

func (h *Handler) handleDeleteComment(c echo.Context) error {
	return h.relay(c, func(ctx context.Context) (*Response, error) {
		return h.client.DeleteComment(ctx, c.Param("id"), c.Param("commentId"))
	})
}

func (h *Handler) handleSync(c echo.Context) error {
	return h.relay(c, h.client.Sync)
}

// relay forwards the upstream status and body. Transport failures become 502.
func (h *Handler) relay(c echo.Context, call func(ctx context.Context) (*Response, error)) error {
	ctx := c.Request().Context()
	resp, err := call(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "upstream request failed",
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": err.Error()})
	}

	if resp.Status == http.StatusNoContent || len(resp.Body) == 0 {
		return c.NoContent(resp.Status)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = echo.MIMEApplicationJSON
	}
	return c.Blob(resp.Status, contentType, resp.Body)
}
