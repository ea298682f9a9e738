package controller

import (
	"ai-citation-be/internal/dto"
	"ai-citation-be/internal/pkg/serverutils"
	"ai-citation-be/pkg/citation"
	"ai-citation-be/pkg/store"

	"github.com/gofiber/fiber/v2"
)

type ICitationController interface {
	RegisterRoutes(r fiber.Router)
	Generate(ctx *fiber.Ctx) error
}

type citationController struct {
	orchestrator *citation.Orchestrator
}

func NewCitationController(orchestrator *citation.Orchestrator) ICitationController {
	return &citationController{orchestrator: orchestrator}
}

func (c *citationController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/citation/v1")
	h.Post("generate", c.Generate)
}

func (c *citationController) Generate(ctx *fiber.Ctx) error {
	var req dto.GenerateCitationRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	sources := make([]store.Source, 0, len(req.Sources))
	for _, s := range req.Sources {
		sources = append(sources, s.ToSource())
	}

	style := req.CitationStyle
	if style == "" {
		style = "APA"
	}

	result, err := c.orchestrator.ProcessCitation(ctx.Context(), citation.Request{
		Title:          req.Title,
		Content:        req.Content,
		FormType:       req.FormType,
		CitationStyle:  style,
		Sources:        sources,
		SupplementURLs: req.SupplementURLs,
	})
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success generate citation", dto.GenerateCitationResponse{
		Result: dto.CitationResult{
			FormattedText:   result.FormattedText,
			References:      result.References,
			ValidationNotes: result.ValidationNotes,
		},
		OverallScore: result.OverallScore,
		Sources:      result.Sources,
	}))
}
