package materialsync

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"bitbucket.org/mmdatafocus/materialsync_backend/config"
	"bitbucket.org/mmdatafocus/materialsync_backend/models"
	"bitbucket.org/mmdatafocus/materialsync_backend/shopify"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ConfigGetHandler returns the current Relations mapping as JSON. A broken
// or absent mapping reads as {} by the lenient-read policy.
func ConfigGetHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, engine.GetRelations(c.Request.Context()))
	}
}

// ConfigSetHandler accepts a full replacement mapping and persists it.
func ConfigSetHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var newMap Relations
		if err := c.ShouldBindJSON(&newMap); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid mapping data"})
			return
		}
		if err := ValidateRelations(NormalizeRelations(newMap)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := engine.SaveRelations(c.Request.Context(), newMap); err != nil {
			config.LogError(config.GetLogger(), "materialsync", "ConfigSetHandler", "save relations", newMap, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save metafield"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

type variantListRequest struct {
	Variants []string `json:"variants"`
}

// VariantTitlesHandler resolves variant GIDs to display names for the
// config editor.
func VariantTitlesHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req variantListRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Variants == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing variants array"})
			return
		}
		titles, err := engine.VariantTitles(c.Request.Context(), req.Variants)
		if err != nil {
			config.LogError(config.GetLogger(), "materialsync", "VariantTitlesHandler", "fetch titles", req.Variants, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch variant titles"})
			return
		}
		c.JSON(http.StatusOK, titles)
	}
}

// ValidateVariantsHandler reports which submitted GIDs do not resolve.
func ValidateVariantsHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req variantListRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Variants == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing variant list"})
			return
		}
		missing, err := engine.MissingVariants(c.Request.Context(), req.Variants)
		if err != nil {
			config.LogError(config.GetLogger(), "materialsync", "ValidateVariantsHandler", "validate", req.Variants, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "validation failed"})
			return
		}
		if missing == nil {
			missing = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"invalid": missing})
	}
}

// OrderWebhookHandler processes an orders/create event synchronously:
// success only once every matched material has been decremented, a generic
// failure otherwise.
func OrderWebhookHandler(engine *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var order OrderEvent
		if err := c.ShouldBindJSON(&order); err != nil {
			c.String(http.StatusBadRequest, "invalid payload")
			return
		}

		adjusted, err := engine.HandleOrder(c.Request.Context(), order)
		if err != nil {
			config.LogError(config.GetLogger(), "materialsync", "OrderWebhookHandler", "process order", order.ID, err)
			c.String(http.StatusInternalServerError, "Error")
			return
		}
		if adjusted == 0 {
			c.String(http.StatusOK, "No matching materials")
			return
		}
		c.String(http.StatusOK, "OK")
	}
}

// TriggerSyncHandler starts a manual reconciliation pass in the background.
func TriggerSyncHandler(worker *Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		go worker.RunOnce(context.Background(), models.SyncTriggeredManual)
		c.JSON(http.StatusAccepted, gin.H{"started": true})
	}
}

// SyncHistoryHandler lists recent reconciliation passes.
func SyncHistoryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
			return
		}
		var runs []models.SyncRun
		if err := db.WithContext(c.Request.Context()).
			Order("id DESC").Limit(20).Find(&runs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": runs})
	}
}

// SyncRunDetailHandler returns one pass with its per-material errors.
func SyncRunDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		db := config.GetDB()
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not connected"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		var run models.SyncRun
		if err := db.WithContext(c.Request.Context()).Where("id = ?", id).Take(&run).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		var runErrors []models.SyncRunError
		if err := db.WithContext(c.Request.Context()).
			Where("sync_run_id = ?", run.ID).Order("id").Find(&runErrors).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run": run, "errors": runErrors})
	}
}

// InstallHandler redirects the merchant to the OAuth authorize URL.
func InstallHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Redirect(http.StatusFound, shopify.AuthorizeURL())
	}
}

// OAuthCallbackHandler exchanges the authorization code and stores the
// access token for the shop.
func OAuthCallbackHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "Missing authorization code")
			return
		}
		shop := c.Query("shop")
		if shop == "" {
			shop = os.Getenv("SHOP")
		}

		token, err := shopify.ExchangeCode(c.Request.Context(), code)
		if err != nil {
			config.LogError(config.GetLogger(), "materialsync", "OAuthCallbackHandler", "token exchange", shop, err)
			c.String(http.StatusInternalServerError, "Authentication failed")
			return
		}
		if err := models.SaveAccessToken(c.Request.Context(), shop, token); err != nil {
			config.LogError(config.GetLogger(), "materialsync", "OAuthCallbackHandler", "save token", shop, err)
			c.String(http.StatusInternalServerError, "Authentication failed")
			return
		}
		config.GetLogger().Info("shopify access token saved successfully")
		c.Data(http.StatusOK, "text/html; charset=utf-8",
			[]byte("<h3>Installation complete! You can close this tab.</h3>"))
	}
}
