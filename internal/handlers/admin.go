// internal/handlers/admin.go
package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/greenhaven/garden-backend/internal/models"
	"github.com/greenhaven/garden-backend/internal/services"
	"github.com/greenhaven/garden-backend/internal/syncer"
	"github.com/greenhaven/garden-backend/internal/utils"
)

// AdminHandler exposes sync control, run history and shop settings to the
// admin dashboard.
type AdminHandler struct {
	reconciler      *syncer.Reconciler
	syncLogService  *services.SyncLogService
	settingsService *services.SettingsService
}

func NewAdminHandler(reconciler *syncer.Reconciler, syncLogService *services.SyncLogService, settingsService *services.SettingsService) *AdminHandler {
	return &AdminHandler{
		reconciler:      reconciler,
		syncLogService:  syncLogService,
		settingsService: settingsService,
	}
}

type triggerSyncRequest struct {
	Type string `json:"type"`
}

// POST /admin/sync
// The run is dispatched to a background goroutine; the response only
// acknowledges that it started.
func (h *AdminHandler) TriggerSync(c *gin.Context) {
	var req triggerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	syncType := models.SyncType(req.Type)
	if req.Type == "" {
		syncType = models.SyncTypeChanges
	}
	if syncType != models.SyncTypeChanges && syncType != models.SyncTypeFull {
		utils.BadRequestResponse(c, "Unsupported sync type, use sync-changes or sync-full", nil)
		return
	}

	entry, runFn, err := h.reconciler.TriggerManual(c.Request.Context(), syncType)
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			utils.ConflictResponse(c, "A sync run of this type is already in progress")
			return
		}
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	go runFn()

	utils.AcceptedResponse(c, gin.H{
		"log_id":     entry.ID,
		"type":       entry.Type,
		"status":     entry.Status,
		"started_at": entry.StartedAt,
	})
}

// GET /admin/sync-logs
func (h *AdminHandler) GetSyncLogs(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	syncType := c.Query("type")

	logs, total, err := h.syncLogService.ListRuns(params, syncType)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	result := utils.CreatePaginationResult(logs, total, params)
	utils.PaginatedResponse(c, result)
}

// GET /admin/sync-logs/:id
func (h *AdminHandler) GetSyncLog(c *gin.Context) {
	entry, err := h.syncLogService.GetRun(c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "Sync run")
		return
	}

	utils.SuccessResponse(c, entry)
}

// GET /admin/settings
func (h *AdminHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.List()
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, gin.H{"settings": settings})
}

type updateSettingRequest struct {
	Value       interface{} `json:"value"`
	DataType    string      `json:"data_type"`
	Description string      `json:"description"`
}

// PUT /admin/settings/:key
func (h *AdminHandler) UpdateSetting(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		utils.BadRequestResponse(c, "Missing setting key", nil)
		return
	}

	var req updateSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}
	if req.Value == nil {
		utils.BadRequestResponse(c, "Missing value", nil)
		return
	}
	if req.DataType == "" {
		req.DataType = "json"
	}

	if err := h.settingsService.Upsert(key, req.Value, req.DataType, req.Description); err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	setting, err := h.settingsService.Get(key)
	if err != nil {
		utils.InternalErrorResponse(c, err.Error())
		return
	}

	utils.SuccessResponse(c, setting)
}
