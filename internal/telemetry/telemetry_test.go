package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_Stdout(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{
		Enabled:     true,
		ServiceName: "rbuvault-test",
		UseStdout:   true,
	})
	require.NoError(t, err)
	defer shutdown(context.Background())

	ctx, span := StartOperation(context.Background(), "encode")
	require.NotNil(t, span)
	_, phaseSpan := StartPhase(ctx, "database")
	phaseSpan.End()
	span.End()
}
