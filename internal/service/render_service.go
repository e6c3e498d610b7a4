package service

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/mkrivosheev/kp-builder/internal/models"
	"github.com/mkrivosheev/kp-builder/internal/repository"
)

// RenderService generates the output document for a proposal from a chosen
// template. Rendering failures are reported to the caller and never touch
// proposal state.
type RenderService struct {
	proposals repository.ProposalRepository
	templates repository.TemplateRepository
}

// NewRenderService creates a new render service.
func NewRenderService(proposals repository.ProposalRepository, templates repository.TemplateRepository) *RenderService {
	return &RenderService{proposals: proposals, templates: templates}
}

var documentTmpl = template.Must(template.New("proposal").Parse(`Коммерческое предложение № {{.Proposal.Number}}
Шаблон: {{.Template.Name}}

Клиент: {{.Proposal.ClientName}}
Дата мероприятия: {{.Proposal.EventDate}}{{if .Proposal.Location}}
Площадка: {{.Proposal.Location}}{{end}}
Количество гостей: {{.Proposal.Guests}}
{{range .Proposal.Formats}}
  • {{.Name}}{{if .TimeRange}} ({{.TimeRange}}){{end}} — {{.Guests}} гостей{{end}}

Меню: {{printf "%.2f" .Proposal.DishesTotal}}
Оборудование: {{printf "%.2f" .Proposal.EquipmentTotal}}
Сервис: {{printf "%.2f" .Proposal.ServiceTotal}}
Скидка: {{printf "%.2f" .Proposal.Discount}}
Итого: {{printf "%.2f" .Proposal.Total}}
`))

type renderContext struct {
	Proposal *models.Proposal
	Template *models.Template
}

// Generate renders the proposal document and returns its bytes.
func (s *RenderService) Generate(ctx context.Context, proposalID, templateID int64) ([]byte, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("load proposal %d: %w", proposalID, err)
	}
	if templateID == 0 {
		templateID = proposal.TemplateID
	}
	tmpl, err := s.templates.GetByID(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load template %d: %w", templateID, err)
	}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, renderContext{Proposal: proposal, Template: tmpl}); err != nil {
		return nil, fmt.Errorf("render proposal %d: %w", proposalID, err)
	}
	return buf.Bytes(), nil
}
