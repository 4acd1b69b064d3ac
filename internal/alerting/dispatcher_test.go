package alerting

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/datastore/entities"
)

type sentMessage struct {
	url, message string
}

type recordingSender struct {
	sent []sentMessage
	fail map[string]bool
}

func (r *recordingSender) Send(serviceURL, message string) error {
	if r.fail[serviceURL] {
		return fmt.Errorf("connection refused")
	}
	r.sent = append(r.sent, sentMessage{serviceURL, message})
	return nil
}

func vacancyRule() *entities.AlertRule {
	return &entities.AlertRule{
		ID:        1,
		Name:      "High vacancy count",
		Metric:    MetricVacancyCount,
		Operator:  OperatorGT,
		Threshold: 10,
	}
}

func TestDispatcher_PerRecipient(t *testing.T) {
	sender := &recordingSender{}
	d := NewActionDispatcher("smtp://mail:25/?from=ops@example.com&to={recipient}", testLogger()).
		WithSender(sender.Send)

	delivered := d.Dispatch(t.Context(), vacancyRule(), 12, []string{"a@example.com", "b+ops@example.com"})

	assert.Equal(t, 2, delivered)
	require.Len(t, sender.sent, 2)
	assert.Equal(t, "smtp://mail:25/?from=ops@example.com&to=a%40example.com", sender.sent[0].url)
	assert.Equal(t, "smtp://mail:25/?from=ops@example.com&to=b%2Bops%40example.com", sender.sent[1].url)
	assert.Equal(t, "Alert: High vacancy count: vacancy_count is 12 (gt 10)", sender.sent[0].message)
}

func TestDispatcher_PartialFailure(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"generic://hook/?to=a%40example.com": true}}
	d := NewActionDispatcher("generic://hook/?to={recipient}", testLogger()).WithSender(sender.Send)

	delivered := d.Dispatch(t.Context(), vacancyRule(), 12, []string{"a@example.com", "b@example.com"})
	assert.Equal(t, 1, delivered)
	require.Len(t, sender.sent, 1)
}

func TestDispatcher_ChannelURLSendsOnce(t *testing.T) {
	sender := &recordingSender{}
	d := NewActionDispatcher("slack://token@channel", testLogger()).WithSender(sender.Send)

	assert.Equal(t, 1, d.Dispatch(t.Context(), vacancyRule(), 11, nil))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "slack://token@channel", sender.sent[0].url)
}

func TestDispatcher_NoTemplate(t *testing.T) {
	sender := &recordingSender{}
	d := NewActionDispatcher("  ", testLogger()).WithSender(sender.Send)

	assert.Zero(t, d.Dispatch(t.Context(), vacancyRule(), 11, []string{"a@example.com"}))
	assert.Empty(t, sender.sent)
}

func TestDispatcher_CanceledContext(t *testing.T) {
	sender := &recordingSender{}
	d := NewActionDispatcher("generic://hook/?to={recipient}", testLogger()).WithSender(sender.Send)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.Zero(t, d.Dispatch(ctx, vacancyRule(), 11, []string{"a@example.com"}))
}

func TestRenderTemplate(t *testing.T) {
	rule := vacancyRule()
	rule.Description = "Too many empty units"

	assert.Equal(t, "High vacancy count / Too many empty units / 10.5",
		renderTemplate("{{rule_name}} / {{description}} / {{value}}", rule, 10.5))
	assert.Contains(t, renderTemplate("", rule, 3), "vacancy_count is 3")
}
