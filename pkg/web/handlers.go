package web

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/dukex/docflow/pkg/models"
	"github.com/dukex/docflow/pkg/persistence"
	"github.com/dukex/docflow/pkg/services"
)

// Identity headers resolved by the authentication layer in front of the API.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type APIHandlers struct {
	documentService   *services.Document
	submissionService *services.Submission
	reviewService     *services.Review
	templateService   *services.FlowTemplate
	persistence       persistence.Persistence
	validator         *validator.Validate
}

func NewAPIHandlers(
	documentService *services.Document,
	submissionService *services.Submission,
	reviewService *services.Review,
	templateService *services.FlowTemplate,
	persistence persistence.Persistence,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		documentService:   documentService,
		submissionService: submissionService,
		reviewService:     reviewService,
		templateService:   templateService,
		persistence:       persistence,
		validator:         validator,
	}
}

// RegisterRoutes mounts every API route on the given router.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	d := app.Group("/documents")
	d.Get("/", h.ListDocuments)
	d.Post("/", h.CreateDocument)
	d.Get("/:id", h.GetDocument)
	d.Patch("/:id", h.UpdateDocument)
	d.Post("/:id/submit", h.SubmitDocument)
	d.Post("/:id/reopen", h.ReopenDocument)
	d.Post("/:id/archive", h.ArchiveDocument)

	r := app.Group("/review-tasks")
	r.Get("/", h.ListReviewTasks)
	r.Post("/:id/approve", h.ApproveTask)
	r.Post("/:id/reject", h.RejectTask)

	f := app.Group("/flow-templates")
	f.Get("/", h.ListTemplates)
	f.Post("/", h.CreateTemplate)
	f.Get("/:id", h.GetTemplate)
	f.Put("/:id", h.UpdateTemplate)
	f.Delete("/:id", h.DeactivateTemplate)

	app.Get("/health", h.HealthCheck)
}

// actor resolves the acting principal from the identity headers. Header and
// param values alias fasthttp's request buffer, which is recycled after the
// request; anything that may outlive the handler must be cloned.
func actor(c fiber.Ctx) (models.Actor, bool) {
	userID := strings.Clone(c.Get(HeaderUserID))
	if userID == "" {
		return models.Actor{}, false
	}

	role := models.Role(strings.Clone(c.Get(HeaderUserRole)))
	switch role {
	case models.RoleUser, models.RoleReviewer, models.RoleAdmin:
	default:
		role = models.RoleUser
	}

	return models.Actor{ID: userID, Role: role}, true
}

func pathID(c fiber.Ctx) string {
	return strings.Clone(c.Params("id"))
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "missing " + HeaderUserID + " header",
	})
}

func (h *APIHandlers) ListDocuments(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	documents, err := h.documentService.ListVisible(c.Context(), act)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"documents": documents})
}

func (h *APIHandlers) CreateDocument(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	var req CreateDocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	document, err := h.documentService.CreateDraft(c.Context(), act, req.Title, req.Content)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(document)
}

func (h *APIHandlers) GetDocument(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	detail, err := h.documentService.GetDetail(c.Context(), act, pathID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(detail)
}

func (h *APIHandlers) UpdateDocument(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	var req UpdateDocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	document, err := h.documentService.UpdateDraft(c.Context(), act, pathID(c), services.DraftUpdate{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(document)
}

func (h *APIHandlers) SubmitDocument(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	var req SubmitDocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	document, err := h.submissionService.Submit(c.Context(), act, pathID(c), req.FlowTemplateID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(document)
}

func (h *APIHandlers) ReopenDocument(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	document, err := h.documentService.ReopenAsDraft(c.Context(), act, pathID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(document)
}

func (h *APIHandlers) ArchiveDocument(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	document, err := h.documentService.Archive(c.Context(), act, pathID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(document)
}

func (h *APIHandlers) ListReviewTasks(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	tasks, err := h.reviewService.ListPending(c.Context(), act)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *APIHandlers) ApproveTask(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	result, err := h.reviewService.Act(c.Context(), act, pathID(c), services.ReviewActionApprove, "")
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) RejectTask(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	var req RejectTaskRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	result, err := h.reviewService.Act(c.Context(), act, pathID(c), services.ReviewActionReject, req.Reason)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) ListTemplates(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	templates, err := h.templateService.List(c.Context(), act)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"templates": templates})
}

func (h *APIHandlers) GetTemplate(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	template, err := h.templateService.Get(c.Context(), act, pathID(c))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(template)
}

func (h *APIHandlers) CreateTemplate(c fiber.Ctx) error {
	return h.upsertTemplate(c, "")
}

func (h *APIHandlers) UpdateTemplate(c fiber.Ctx) error {
	return h.upsertTemplate(c, pathID(c))
}

func (h *APIHandlers) upsertTemplate(c fiber.Ctx, templateID string) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := validateTemplatePayload(c.Body()); err != nil {
		return badRequest(c, err.Error())
	}

	var req UpsertTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	template, err := h.templateService.Upsert(c.Context(), act, services.UpsertTemplateInput{
		TemplateID: templateID,
		Name:       req.Name,
		IsActive:   req.IsActive,
		Steps:      req.DomainSteps(),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	if templateID == "" {
		return c.Status(fiber.StatusCreated).JSON(template)
	}

	return c.JSON(template)
}

func (h *APIHandlers) DeactivateTemplate(c fiber.Ctx) error {
	act, ok := actor(c)
	if !ok {
		return unauthorized(c)
	}

	if err := h.templateService.Deactivate(c.Context(), act, pathID(c)); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}
