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
	"fancast/internal/infrastructure/realtime"
	"fancast/pkg/errors"
	"fancast/pkg/utils"
)

// StreamHandlerDeps bundles the collaborators of the stream REST
// surface. The realtime registry and relay are shared with the
// websocket side so counters and fan-outs agree.
type StreamHandlerDeps struct {
	Streams       ports.StreamRepository
	Subscriptions ports.SubscriptionRepository
	Purchases     ports.PurchaseRepository
	Identities    ports.IdentityRepository
	Access        ports.AccessEvaluator
	Payments      ports.PaymentProcessor
	Fanout        ports.NotificationFanout
	Registry      *realtime.Registry
	Relay         *realtime.Relay
	AuthService   services.AuthService
	Logger        *zap.SugaredLogger
}

type StreamHandler struct {
	deps StreamHandlerDeps
}

func NewStreamHandler(deps StreamHandlerDeps) *StreamHandler {
	return &StreamHandler{deps: deps}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine) {
	optional := middleware.OptionalAuthMiddleware(h.deps.AuthService)
	required := middleware.AuthMiddleware(h.deps.AuthService)

	api := router.Group("/api/v1")
	{
		api.GET("/streams", optional, h.ListStreams)
		api.GET("/streams/:id", optional, h.GetStream)
		api.GET("/streams/:id/stats", optional, h.GetStreamStats)

		api.POST("/streams", required, middleware.RequireRole(domain.RoleCreator), h.CreateStream)
		api.POST("/streams/:id/end", required, h.EndStream)
		api.POST("/streams/:id/tip", required, h.Tip)
		api.POST("/streams/:id/purchase", required, h.Purchase)
	}
}

// streamView is the API shape of a live stream. Locked tells the client
// to show the paywall instead of connecting to the room.
type streamView struct {
	ID          domain.StreamID   `json:"id"`
	Title       string            `json:"title"`
	CreatorID   domain.UserID     `json:"creator_id"`
	Live        bool              `json:"live"`
	AccessType  domain.AccessType `json:"access_type"`
	PriceCents  int64             `json:"price_cents,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	ViewerCount int               `json:"viewer_count"`
	Locked      bool              `json:"locked"`
}

func (h *StreamHandler) view(c *gin.Context, stream *domain.LiveStream, viewer *domain.Identity) streamView {
	locked := !h.deps.Access.Evaluate(c.Request.Context(), stream.Policy, viewer, stream.ID.ContentID())
	return streamView{
		ID:          stream.ID,
		Title:       stream.Title,
		CreatorID:   stream.CreatorID,
		Live:        stream.Live,
		AccessType:  stream.Policy.Type,
		PriceCents:  stream.Policy.PriceCents,
		StartedAt:   stream.StartedAt,
		ViewerCount: h.deps.Registry.ViewerCount(stream.ID),
		Locked:      locked,
	}
}

// resolveViewer maps the optionally-authenticated caller to an
// identity. Anonymous callers and stale tokens both come back nil;
// gating treats them the same.
func (h *StreamHandler) resolveViewer(c *gin.Context) *domain.Identity {
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

func (h *StreamHandler) ListStreams(c *gin.Context) {
	streams, err := h.deps.Streams.ListLive(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list streams"})
		return
	}

	viewer := h.resolveViewer(c)
	views := make([]streamView, 0, len(streams))
	for _, stream := range streams {
		views = append(views, h.view(c, stream, viewer))
	}

	c.JSON(http.StatusOK, gin.H{"streams": views})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))

	stream, err := h.deps.Streams.GetByID(c.Request.Context(), streamID)
	if err != nil {
		if err == domain.ErrStreamNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stream"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": h.view(c, stream, h.resolveViewer(c))})
}

func (h *StreamHandler) GetStreamStats(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))

	if _, err := h.deps.Streams.GetByID(c.Request.Context(), streamID); err != nil {
		if err == domain.ErrStreamNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stream"})
		return
	}

	stats, _ := h.deps.Registry.Stats(streamID)
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

type CreateStreamRequest struct {
	Title      string            `json:"title" binding:"required,min=1,max=200"`
	AccessType domain.AccessType `json:"access_type" binding:"required"`
	PriceCents int64             `json:"price_cents"`
}

func (h *StreamHandler) CreateStream(c *gin.Context) {
	var req CreateStreamRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	creatorID, _ := middleware.UserIDFromContext(c)

	policy := domain.ContentAccessPolicy{
		Type:       req.AccessType,
		PriceCents: req.PriceCents,
		OwnerID:    creatorID,
	}
	if err := policy.Validate(); err != nil {
		c.Error(errors.NewInvalidInputError("invalid access policy"))
		return
	}

	stream := &domain.LiveStream{
		ID:        domain.StreamID(utils.NewID("stream")),
		Title:     strings.TrimSpace(req.Title),
		CreatorID: creatorID,
		Live:      true,
		Policy:    policy,
		StartedAt: time.Now(),
	}

	if err := h.deps.Streams.Create(c.Request.Context(), stream); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create stream"})
		return
	}

	h.notifySubscribers(c, stream)

	c.JSON(http.StatusCreated, gin.H{"stream": h.view(c, stream, h.resolveViewer(c))})
}

// notifySubscribers pushes a stream.started notification to the
// creator's active subscribers. Delivery is best-effort; a fanout
// problem never fails the stream creation.
func (h *StreamHandler) notifySubscribers(c *gin.Context, stream *domain.LiveStream) {
	subscribers, err := h.deps.Subscriptions.ListSubscribers(c.Request.Context(), stream.CreatorID)
	if err != nil {
		h.deps.Logger.Warnw("failed to list subscribers for stream notification",
			"creator_id", stream.CreatorID,
			"error", err,
		)
		return
	}

	err = h.deps.Fanout.NotifyMany(subscribers, domain.Notification{
		Type: domain.NotifyStreamStarted,
		Data: gin.H{
			"stream_id":  stream.ID,
			"title":      stream.Title,
			"creator_id": stream.CreatorID,
		},
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.deps.Logger.Warnw("failed to notify subscribers",
			"stream_id", stream.ID,
			"error", err,
		)
	}
}

func (h *StreamHandler) EndStream(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))
	userID, _ := middleware.UserIDFromContext(c)

	stream, err := h.deps.Streams.GetByID(c.Request.Context(), streamID)
	if err != nil {
		if err == domain.ErrStreamNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stream"})
		return
	}

	if stream.CreatorID != userID {
		c.Error(errors.NewForbiddenError("only the creator may end the stream"))
		return
	}
	if !stream.Live {
		c.JSON(http.StatusOK, gin.H{"stream": h.view(c, stream, h.resolveViewer(c))})
		return
	}

	stream.Live = false
	stream.EndedAt = time.Now()
	if err := h.deps.Streams.Update(c.Request.Context(), stream); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end stream"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": h.view(c, stream, h.resolveViewer(c))})
}

type TipRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,min=1"`
	Message     string `json:"message" binding:"max=500"`
}

// Tip charges the viewer and announces the tip in the room. The charge
// happens first; a failed payment never produces a tip event.
func (h *StreamHandler) Tip(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))

	var req TipRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	viewer := h.resolveViewer(c)
	if viewer == nil {
		c.Error(errors.NewUnauthorizedError("unknown identity"))
		return
	}

	stream, err := h.deps.Streams.GetByID(c.Request.Context(), streamID)
	if err != nil {
		if err == domain.ErrStreamNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stream"})
		return
	}
	if !stream.Live {
		c.Error(errors.NewConflictError("stream is not live"))
		return
	}

	providerRef, err := h.deps.Payments.Charge(c.Request.Context(), viewer.ID, req.AmountCents, "tip:"+string(streamID))
	if err != nil {
		c.Error(errors.NewPaymentError("tip payment failed"))
		return
	}

	h.deps.Relay.BroadcastTip(streamID, *viewer, req.AmountCents, req.Message)

	err = h.deps.Fanout.NotifyOne(stream.CreatorID, domain.Notification{
		Type: domain.NotifyTipReceived,
		Data: gin.H{
			"stream_id":    streamID,
			"from":         viewer.DisplayName,
			"amount_cents": req.AmountCents,
		},
		CreatedAt: time.Now(),
	})
	if err != nil {
		h.deps.Logger.Warnw("failed to notify creator of tip",
			"stream_id", streamID,
			"error", err,
		)
	}

	c.JSON(http.StatusOK, gin.H{
		"provider_ref": providerRef,
		"amount_cents": req.AmountCents,
	})
}

// Purchase charges the viewer the stream's price and records the
// completed purchase. A later join re-evaluates access and sees it.
func (h *StreamHandler) Purchase(c *gin.Context) {
	streamID := domain.StreamID(c.Param("id"))

	viewer := h.resolveViewer(c)
	if viewer == nil {
		c.Error(errors.NewUnauthorizedError("unknown identity"))
		return
	}

	stream, err := h.deps.Streams.GetByID(c.Request.Context(), streamID)
	if err != nil {
		if err == domain.ErrStreamNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "stream not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stream"})
		return
	}

	if stream.Policy.Type != domain.AccessPaid {
		c.Error(errors.NewInvalidInputError("stream is not purchasable"))
		return
	}

	if existing, err := h.deps.Purchases.FindCompleted(c.Request.Context(), viewer.ID, stream.ID.ContentID()); err == nil && existing != nil {
		c.JSON(http.StatusOK, gin.H{
			"provider_ref": existing.ProviderRef,
			"amount_cents": existing.AmountCents,
		})
		return
	}

	providerRef, err := h.deps.Payments.Charge(c.Request.Context(), viewer.ID, stream.Policy.PriceCents, "stream:"+string(streamID))
	if err != nil {
		c.Error(errors.NewPaymentError("purchase payment failed"))
		return
	}

	purchase := &domain.PurchaseRecord{
		UserID:      viewer.ID,
		ContentID:   stream.ID.ContentID(),
		Status:      domain.PurchaseCompleted,
		AmountCents: stream.Policy.PriceCents,
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
