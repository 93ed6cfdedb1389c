package ai

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	aiService "github.com/zhouzirui/tutor-chat/backend/internal/service/ai"
	"github.com/zhouzirui/tutor-chat/backend/pkg/utils"
)

// Handler AI状态与配置的HTTP处理器
type Handler struct {
	aiSvc *aiService.Service
}

// New 创建AI处理器
func New(aiSvc *aiService.Service) *Handler {
	return &Handler{aiSvc: aiSvc}
}

// RegisterRoutes 注册状态与配置路由；/generate 由路由器单独挂载以便限流。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/status", h.handleStatus)
	r.Patch("/config", h.handleUpdateConfig)
}

// HandleGenerate serves POST /generate.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Prompt string `json:"prompt"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}
	if strings.TrimSpace(payload.Prompt) == "" {
		utils.RespondError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	text, err := h.aiSvc.GenerateContent(r.Context(), payload.Prompt)
	if err != nil {
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.aiSvc.Status())
}

func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var update aiService.ConfigUpdate
	if !utils.DecodeJSON(w, r, &update) {
		return
	}

	if err := h.aiSvc.UpdateConfig(r.Context(), update); err != nil {
		if errors.Is(err, aiService.ErrInvalidConfig) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, h.aiSvc.Status())
}
