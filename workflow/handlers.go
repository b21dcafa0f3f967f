package workflow

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/frh3ddy/farmacia-ops-sub000/config"
	"github.com/frh3ddy/farmacia-ops-sub000/models"
	"github.com/frh3ddy/farmacia-ops-sub000/possync"
	"github.com/frh3ddy/farmacia-ops-sub000/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

func resolveBusinessID(c *gin.Context) (string, error) {
	businessId := strings.TrimSpace(c.GetHeader("x-business-id"))
	if businessId == "" {
		businessId = strings.TrimSpace(c.Query("business_id"))
	}
	if businessId == "" {
		return "", errors.New("unauthorized")
	}
	return businessId, nil
}

func requestContext(c *gin.Context, businessId string) context.Context {
	return utils.SetBusinessIdInContext(c.Request.Context(), businessId)
}

// statusFor maps the error taxonomy onto HTTP statuses. Callers branch on the
// serialized code, not the status, but the status should still be honest.
func statusFor(err error) int {
	appErr, ok := models.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Code {
	case models.ErrCodeValidation:
		return http.StatusBadRequest
	case models.ErrCodeUnmappedProduct, models.ErrCodeMissingCost:
		return http.StatusUnprocessableEntity
	case models.ErrCodeMigrationBlocked:
		return http.StatusConflict
	case models.ErrCodeExternalSource:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	payload := gin.H{}
	if cid, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok && cid != "" {
		payload["correlation_id"] = cid
	}
	if appErr, ok := models.AsAppError(err); ok {
		payload["error"] = appErr
		c.JSON(statusFor(err), payload)
		return
	}
	payload["error"] = err.Error()
	c.JSON(http.StatusInternalServerError, payload)
}

// ExtractionHandler starts or resumes a batched cost-review session.
func ExtractionHandler(client possync.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var input ExtractionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := StartOrResumeExtraction(requestContext(c, businessId), client, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type batchSizeRequest struct {
	SessionId string `json:"session_id"`
	BatchSize int    `json:"batch_size"`
}

func ChangeBatchSizeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req batchSizeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := ChangeBatchSize(requestContext(c, businessId), req.SessionId, req.BatchSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type approveBatchRequest struct {
	Items []ItemApproval `json:"items"`
}

func ApproveBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		batchId, err := strconv.Atoi(c.Param("id"))
		if err != nil || batchId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
			return
		}
		var req approveBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		result, err := ApproveBatch(requestContext(c, businessId), batchId, req.Items)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func RejectBatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		batchId, err := strconv.Atoi(c.Param("id"))
		if err != nil || batchId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch id"})
			return
		}
		result, err := RejectBatch(requestContext(c, businessId), batchId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

type itemApprovalRequest struct {
	CutoverId string `json:"cutover_id"`
	ProductId int    `json:"product_id"`
	// ExternalId + LocationId are an alternative to ProductId; they resolve
	// through the catalog mapper's strict single-item path.
	ExternalId string                `json:"external_id"`
	LocationId int                   `json:"location_id"`
	Cost       decimal.Decimal       `json:"cost"`
	Source     models.ApprovalSource `json:"source"`
	Notes      string                `json:"notes"`
}

// resolveTarget fills ProductId from ExternalId when needed and validates the
// request. Responds and returns false when the request cannot proceed.
func (r *itemApprovalRequest) resolveTarget(c *gin.Context, ctx context.Context) bool {
	if r.CutoverId == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cutover_id is required"})
		return false
	}
	if r.ProductId <= 0 && r.ExternalId != "" {
		productId, err := ResolveItemProduct(ctx, r.ExternalId, r.LocationId)
		if err != nil {
			respondError(c, err)
			return false
		}
		r.ProductId = productId
	}
	if r.ProductId <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id or external_id is required"})
		return false
	}
	return true
}

func ApproveItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req itemApprovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := requestContext(c, businessId)
		if !req.resolveTarget(c, ctx) {
			return
		}
		approval, err := ApproveItem(ctx, req.CutoverId, req.ProductId, req.Cost, req.Source, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, approval)
	}
}

func DiscardItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req itemApprovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := requestContext(c, businessId)
		if !req.resolveTarget(c, ctx) {
			return
		}
		approval, err := DiscardItem(ctx, req.CutoverId, req.ProductId, req.Notes)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, approval)
	}
}

func RestoreItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req itemApprovalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := requestContext(c, businessId)
		if !req.resolveTarget(c, ctx) {
			return
		}
		approval, err := RestoreItem(ctx, req.CutoverId, req.ProductId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, approval)
	}
}

type cancelSessionRequest struct {
	SessionId string `json:"session_id"`
}

func CancelSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req cancelSessionRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.SessionId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
			return
		}
		if err := CancelSession(requestContext(c, businessId), req.SessionId); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CutoverHandler validates and starts a migration, executing its first batch.
func CutoverHandler(client possync.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var input CutoverInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := validate.Struct(input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": utils.ProcessValidationErrors(err)})
			return
		}
		result, err := InitiateCutover(requestContext(c, businessId), client, input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ContinueCutoverHandler(client possync.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, err := ContinueCutover(requestContext(c, businessId), client, c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func ResetCutoverHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, err := ResetCutover(requestContext(c, businessId), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func CutoverStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		result, err := GetCutoverStatus(requestContext(c, businessId), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// LocksHandler reports installed cutover locks, optionally for one location.
func LocksHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessId, err := resolveBusinessID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := requestContext(c, businessId)
		var locationId *int
		if raw := strings.TrimSpace(c.Query("location_id")); raw != "" {
			id, aerr := strconv.Atoi(raw)
			if aerr != nil || id <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid location_id"})
				return
			}
			locationId = &id
		}
		locks, err := models.GetCutoverLocks(config.GetDB().WithContext(ctx), businessId, locationId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"locks": locks})
	}
}
