//go:build integration

package alerting_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/propops/internal/alerting"
	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/testutil/containers"
)

func TestDispatcher_NtfyDelivery(t *testing.T) {
	ctx := context.Background()
	ntfy, err := containers.NewNtfyContainer(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ntfy.Terminate(context.Background()) })

	topics := []string{
		"ops-" + uuid.NewString()[:8],
		"finance-" + uuid.NewString()[:8],
	}
	template := fmt.Sprintf("ntfy://%s/%s?scheme=http", ntfy.Host(), alerting.RecipientPlaceholder)
	dispatcher := alerting.NewActionDispatcher(template, logger.Discard())

	rule := &entities.AlertRule{
		ID:        7,
		Name:      "Sync failures",
		Metric:    alerting.MetricSyncConsecutiveFailures,
		Operator:  alerting.OperatorGTE,
		Threshold: 3,
	}
	delivered := dispatcher.Dispatch(ctx, rule, 4, topics)
	require.Equal(t, len(topics), delivered)

	for _, topic := range topics {
		messages, err := ntfy.PollMessages(ctx, topic)
		require.NoError(t, err)
		require.Len(t, messages, 1, "topic %s", topic)
		assert.Equal(t, "Alert: Sync failures: sync_consecutive_failures is 4 (gte 3)", messages[0].Message)
	}
}
