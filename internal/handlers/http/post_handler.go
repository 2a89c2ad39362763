package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fancast/internal/core/domain"
	"fancast/internal/core/ports"
	"fancast/internal/core/services"
	"fancast/internal/infrastructure/middleware"
	"fancast/pkg/errors"
	"fancast/pkg/utils"
)

type PostHandlerDeps struct {
	Posts         ports.PostRepository
	Subscriptions ports.SubscriptionRepository
	Purchases     ports.PurchaseRepository
	Identities    ports.IdentityRepository
	Access        ports.AccessEvaluator
	Payments      ports.PaymentProcessor
	Fanout        ports.NotificationFanout
	AuthService   services.AuthService
	Logger        *zap.SugaredLogger
}

type PostHandler struct {
	deps PostHandlerDeps
}

func NewPostHandler(deps PostHandlerDeps) *PostHandler {
	return &PostHandler{deps: deps}
}

func (h *PostHandler) SetupRoutes(router *gin.Engine) {
	optional := middleware.OptionalAuthMiddleware(h.deps.AuthService)
	required := middleware.AuthMiddleware(h.deps.AuthService)

	api := router.Group("/api/v1")
	{
		api.GET("/posts", optional, h.ListPosts)
		api.GET("/posts/:id", optional, h.GetPost)

		api.POST("/posts", required, middleware.RequireRole(domain.RoleCreator), h.CreatePost)
		api.POST("/posts/:id/purchase", required, h.Purchase)
	}
}

// postView redacts the gated fields when the viewer has no access. The
// title and price always travel so the client can render the paywall.
type postView struct {
	ID         domain.ContentID  `json:"id"`
	AuthorID   domain.UserID     `json:"author_id"`
	Title      string            `json:"title"`
	Body       string            `json:"body,omitempty"`
	MediaURL   string            `json:"media_url,omitempty"`
	AccessType domain.AccessType `json:"access_type"`
	PriceCents int64             `json:"price_cents,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	Locked     bool              `json:"locked"`
}

func (h *PostHandler) view(c *gin.Context, post *domain.Post, viewer *domain.Identity) postView {
	locked := !h.deps.Access.Evaluate(c.Request.Context(), post.Policy, viewer, post.ID)
	v := postView{
		ID:         post.ID,
		AuthorID:   post.AuthorID,
		Title:      post.Title,
		AccessType: post.Policy.Type,
		PriceCents: post.Policy.PriceCents,
		CreatedAt:  post.CreatedAt,
		Locked:     locked,
	}
	if !locked {
		v.Body = post.Body
		v.MediaURL = post.MediaURL
	}
	return v
}

func (h *PostHandler) resolveViewer(c *gin.Context) *domain.Identity {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return nil
	}
	identity, err := h.deps.Identities.GetByID(c.Request.Context(), userID)
	if err != nil {
		return nil
	}
	return identity
}

func (h *PostHandler) ListPosts(c *gin.Context) {
	authorID := domain.UserID(c.Query("author"))
	if authorID == "" {
		c.Error(errors.NewInvalidInputError("author query parameter is required"))
		return
	}

	posts, err := h.deps.Posts.ListByAuthor(c.Request.Context(), authorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list posts"})
		return
	}

	viewer := h.resolveViewer(c)
	views := make([]postView, 0, len(posts))
	for _, post := range posts {
		views = append(views, h.view(c, post, viewer))
	}

	c.JSON(http.StatusOK, gin.H{"posts": views})
}

func (h *PostHandler) GetPost(c *gin.Context) {
	postID := domain.ContentID(c.Param("id"))

	post, err := h.deps.Posts.GetByID(c.Request.Context(), postID)
	if err != nil {
		if err == domain.ErrPostNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"post": h.view(c, post, h.resolveViewer(c))})
}

type CreatePostRequest struct {
	Title      string            `json:"title" binding:"required,min=1,max=200"`
	Body       string            `json:"body" binding:"required,max=20000"`
	MediaURL   string            `json:"media_url" binding:"max=2048"`
	AccessType domain.AccessType `json:"access_type" binding:"required"`
	PriceCents int64             `json:"price_cents"`
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	var req CreatePostRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	authorID, _ := middleware.UserIDFromContext(c)

	policy := domain.ContentAccessPolicy{
		Type:       req.AccessType,
		PriceCents: req.PriceCents,
		OwnerID:    authorID,
	}
	if err := policy.Validate(); err != nil {
		c.Error(errors.NewInvalidInputError("invalid access policy"))
		return
	}

	post := &domain.Post{
		ID:        domain.ContentID(utils.NewID("post")),
		AuthorID:  authorID,
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		MediaURL:  req.MediaURL,
		Policy:    policy,
		CreatedAt: time.Now(),
	}

	if err := h.deps.Posts.Create(c.Request.Context(), post); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create post"})
		return
	}

	h.notifySubscribers(c, post)

	c.JSON(http.StatusCreated, gin.H{"post": h.view(c, post, h.resolveViewer(c))})
}

func (h *PostHandler) notifySubscribers(c *gin.Context, post *domain.Post) {
	subscribers, err := h.deps.Subscriptions.ListSubscribers(c.Request.Context(), post.AuthorID)
	if err != nil {
		h.deps.Logger.Warnw("failed to list subscribers for post notification",
			"author_id", post.AuthorID,
			"error", err,
		)
		return
	}

	err = h.deps.Fanout.NotifyMany(subscribers, domain.Notification{
		Type: domain.NotifyPostCreated,
		Data: gin.H{
			"post_id":   post.ID,
			"title":     post.Title,
			"author_id": post.AuthorID,
		},
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.deps.Logger.Warnw("failed to notify subscribers",
			"post_id", post.ID,
			"error", err,
		)
	}
}

func (h *PostHandler) Purchase(c *gin.Context) {
	postID := domain.ContentID(c.Param("id"))

	viewer := h.resolveViewer(c)
	if viewer == nil {
		c.Error(errors.NewUnauthorizedError("unknown identity"))
		return
	}

	post, err := h.deps.Posts.GetByID(c.Request.Context(), postID)
	if err != nil {
		if err == domain.ErrPostNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get post"})
		return
	}

	if post.Policy.Type != domain.AccessPaid {
		c.Error(errors.NewInvalidInputError("post is not purchasable"))
		return
	}

	if existing, err := h.deps.Purchases.FindCompleted(c.Request.Context(), viewer.ID, post.ID); err == nil && existing != nil {
		c.JSON(http.StatusOK, gin.H{
			"provider_ref": existing.ProviderRef,
			"amount_cents": existing.AmountCents,
		})
		return
	}

	providerRef, err := h.deps.Payments.Charge(c.Request.Context(), viewer.ID, post.Policy.PriceCents, "post:"+string(postID))
	if err != nil {
		c.Error(errors.NewPaymentError("purchase payment failed"))
		return
	}

	purchase := &domain.PurchaseRecord{
		UserID:      viewer.ID,
		ContentID:   post.ID,
		Status:      domain.PurchaseCompleted,
		AmountCents: post.Policy.PriceCents,
		ProviderRef: providerRef,
		CreatedAt:   time.Now(),
	}
	if err := h.deps.Purchases.Record(c.Request.Context(), purchase); err != nil {
		h.deps.Logger.Errorw("charge succeeded but purchase record failed",
			"user_id", viewer.ID,
			"content_id", purchase.ContentID,
			"provider_ref", providerRef,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record purchase"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider_ref": providerRef,
		"amount_cents": purchase.AmountCents,
	})
}
