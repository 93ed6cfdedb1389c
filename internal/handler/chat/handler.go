package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/tutor-chat/backend/internal/model/chat"
	"github.com/zhouzirui/tutor-chat/backend/internal/model/persona"
	chatService "github.com/zhouzirui/tutor-chat/backend/internal/service/chat"
	"github.com/zhouzirui/tutor-chat/backend/pkg/utils"
)

// SessionInvalidator drops provider sessions whose transcript changed.
type SessionInvalidator interface {
	Invalidate(sessionID string)
	Clear()
}

// Handler 聊天记录的HTTP处理器
type Handler struct {
	chatSvc      *chatService.Service
	personaStore persona.Store
	sessions     SessionInvalidator
}

// New 创建聊天处理器，sessions 可以为 nil。
func New(chatSvc *chatService.Service, personaStore persona.Store, sessions SessionInvalidator) *Handler {
	return &Handler{
		chatSvc:      chatSvc,
		personaStore: personaStore,
		sessions:     sessions,
	}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chats", func(r chi.Router) {
		r.Post("/", h.handleCreateChat)
		r.Get("/", h.handleListChats)
		r.Delete("/", h.handleClearAll)

		r.Route("/{chatID}", func(r chi.Router) {
			r.Get("/", h.handleGetChat)
			r.Patch("/", h.handleRenameChat)
			r.Delete("/", h.handleDeleteChat)
			r.Post("/messages", h.handleAppendMessage)
			r.Delete("/messages", h.handleClearChat)
			r.Patch("/messages/{messageID}", h.handleUpdateMessage)
		})
	})
}

type chatResponse struct {
	chat.Chat
	Messages []chat.Message `json:"messages"`
}

// handleCreateChat 创建聊天
func (h *Handler) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaID string `json:"personaId"`
		Name      string `json:"name"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	if payload.PersonaID == "" {
		utils.RespondError(w, http.StatusBadRequest, "personaId is required")
		return
	}
	if _, ok := h.personaStore.FindByID(payload.PersonaID); !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found")
		return
	}

	c, err := h.chatSvc.CreateChat(r.Context(), payload.PersonaID, payload.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, c)
}

// handleListChats 列出聊天，可按 personaId 过滤
func (h *Handler) handleListChats(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.ListChats(r.Context(), r.URL.Query().Get("personaId")))
}

// handleClearAll 删除所有聊天
func (h *Handler) handleClearAll(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.ClearAll(r.Context())
	if h.sessions != nil {
		h.sessions.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetChat 返回聊天及其消息
func (h *Handler) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	c, err := h.chatSvc.GetChat(r.Context(), chatID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	messages, err := h.chatSvc.LoadTranscript(r.Context(), chatID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, chatResponse{Chat: c, Messages: messages})
}

// handleRenameChat 重命名聊天
func (h *Handler) handleRenameChat(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	c, err := h.chatSvc.RenameChat(r.Context(), chi.URLParam(r, "chatID"), payload.Name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, c)
}

// handleDeleteChat 删除聊天
func (h *Handler) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chatSvc.DeleteChat(r.Context(), chatID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.invalidate(chatID)
	w.WriteHeader(http.StatusNoContent)
}

// handleClearChat 清空聊天消息
func (h *Handler) handleClearChat(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	if err := h.chatSvc.ClearChat(r.Context(), chatID); err != nil {
		respondServiceError(w, err)
		return
	}
	h.invalidate(chatID)
	w.WriteHeader(http.StatusNoContent)
}

// handleAppendMessage 保存消息
func (h *Handler) handleAppendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	role, ok := chat.ParseRole(payload.Role)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, chatService.ErrInvalidRole.Error())
		return
	}

	msg, err := h.chatSvc.AppendMessage(r.Context(), chi.URLParam(r, "chatID"), role, payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, msg)
}

// handleUpdateMessage 修改单条消息
func (h *Handler) handleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	chatID := chi.URLParam(r, "chatID")
	msg, err := h.chatSvc.UpdateMessage(r.Context(), chatID, chi.URLParam(r, "messageID"), payload.Text)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	h.invalidate(chatID)
	utils.RespondJSON(w, http.StatusOK, msg)
}

func (h *Handler) invalidate(chatID string) {
	if h.sessions != nil {
		h.sessions.Invalidate(chatID)
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrChatNotFound), errors.Is(err, chatService.ErrMessageNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chatService.ErrPersonaRequired),
		errors.Is(err, chatService.ErrInvalidRole),
		errors.Is(err, chatService.ErrEmptyMessage),
		errors.Is(err, chatService.ErrEmptyName):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
