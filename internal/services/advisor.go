package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"business-os/backend/internal/logging"
	"business-os/backend/pkg/models"
)

// DefaultAdvisorModel is used when no model is configured.
const DefaultAdvisorModel = "claude-3-5-haiku-latest"

// AdvisorDeals is the deal data the advisor reads.
type AdvisorDeals interface {
	GetDeal(ctx context.Context, id string) (*models.Deal, error)
}

// Advice is the assistant's recommendation for one deal.
type Advice struct {
	DealID       string `json:"deal_id"`
	Text         string `json:"text"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

var advisorMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var advisorMetricsOnce sync.Once

func initAdvisorMetrics() {
	m := otel.Meter("business-os/backend/internal/services")
	advisorMetrics.inputTokens, _ = m.Int64Counter("ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	advisorMetrics.outputTokens, _ = m.Int64Counter("ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	advisorMetrics.duration, _ = m.Float64Histogram("ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// DealAdvisor asks Claude for next steps on a deal, within the tenant's
// AI quota.
type DealAdvisor struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	deals     AdvisorDeals
	quota     *UsageQuota
	logger    *logging.Logger
}

// NewDealAdvisor creates a DealAdvisor. Extra client options are appended
// after the API key, which lets tests point the client at a fake server.
func NewDealAdvisor(apiKey, model string, maxTokens int64, deals AdvisorDeals, quota *UsageQuota, logger *logging.Logger, opts ...option.RequestOption) *DealAdvisor {
	if logger == nil {
		logger = logging.Discard()
	}
	if model == "" {
		model = DefaultAdvisorModel
	}
	if maxTokens <= 0 {
		maxTokens = 512
	}
	advisorMetricsOnce.Do(initAdvisorMetrics)
	return &DealAdvisor{
		client:    anthropic.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		deals:     deals,
		quota:     quota,
		logger:    logger,
	}
}

// Advise returns a recommendation for the deal. It fails with
// ErrQuotaExceeded before calling the API when the tenant has no tokens left.
func (a *DealAdvisor) Advise(ctx context.Context, tenantID, dealID, question string) (*Advice, error) {
	deal, err := a.deals.GetDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("load deal %s: %w", dealID, err)
	}
	remaining, err := a.quota.Check(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	maxTokens := a.maxTokens
	if remaining > 0 && remaining < maxTokens {
		maxTokens = remaining
	}

	t0 := time.Now()
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(dealPrompt(deal, question))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic request: %w", err)
	}
	ms := float64(time.Since(t0).Milliseconds())

	modelAttr := metric.WithAttributes(attribute.String("ai.model", string(a.model)))
	if advisorMetrics.inputTokens != nil {
		advisorMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, modelAttr)
		advisorMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, modelAttr)
		advisorMetrics.duration.Record(ctx, ms, modelAttr)
	}

	used := message.Usage.InputTokens + message.Usage.OutputTokens
	if err := a.quota.Record(ctx, tenantID, used); err != nil {
		a.logger.Error("failed to record AI usage", "tenant_id", tenantID, "tokens", used, "error", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("unexpected response format: no text content")
	}
	return &Advice{
		DealID:       deal.ID,
		Text:         text.String(),
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}, nil
}

func dealPrompt(d *models.Deal, question string) string {
	var sb strings.Builder
	sb.WriteString("You are a sales coach. Suggest concrete next steps for this deal in at most five bullet points.\n\n")
	fmt.Fprintf(&sb, "Deal: %s\nStage: %s\nAmount: %.2f\nWin probability: %d%%\n", d.Name, d.Stage, d.Amount, d.Probability)
	if d.LastContactedAt != nil {
		fmt.Fprintf(&sb, "Last contacted: %s\n", d.LastContactedAt.Format(time.DateOnly))
	}
	if d.LastActivityAt != nil {
		fmt.Fprintf(&sb, "Last activity: %s\n", d.LastActivityAt.Format(time.DateOnly))
	}
	if q := strings.TrimSpace(question); q != "" {
		fmt.Fprintf(&sb, "\nQuestion from the rep: %s\n", q)
	}
	return sb.String()
}
