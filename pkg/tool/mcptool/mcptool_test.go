package mcptool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/tool"
)

func newWeatherTool(t *testing.T) *Tool {
	t.Helper()
	srv := server.NewMCPServer("weather", "1.0.0", server.WithToolCapabilities(true))
	srv.AddTool(mcp.NewTool("forecast",
		mcp.WithDescription("Weather forecast for a city"),
		mcp.WithString("city", mcp.Required(), mcp.Description("City name")),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		city, _ := req.GetArguments()["city"].(string)
		if city == "" {
			return mcp.NewToolResultError("city is required"), nil
		}
		return mcp.NewToolResultText("Sunny in " + city), nil
	})

	c, err := client.NewInProcessClient(srv)
	require.NoError(t, err)

	wt, err := New(context.Background(), "weather", "Weather data", c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = wt.Close() })
	return wt
}

func TestMCPToolExecute(t *testing.T) {
	wt := newWeatherTool(t)

	assert.Equal(t, []string{"forecast"}, wt.Actions())
	assert.Contains(t, wt.Instruction(), `Action "forecast" with payload`)
	assert.Contains(t, wt.Instruction(), "city")

	doc, err := wt.Execute(context.Background(), tool.Call{
		Action:  "forecast",
		Payload: json.RawMessage(`{"city":"Paris"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Sunny in Paris", doc.Text)
	assert.Equal(t, "weather.forecast", doc.Metadata.Name)
}

func TestMCPToolErrors(t *testing.T) {
	wt := newWeatherTool(t)
	ctx := context.Background()

	_, err := wt.Execute(ctx, tool.Call{Action: "rain"})
	assert.True(t, errs.IsValidation(err))

	_, err = wt.Execute(ctx, tool.Call{Action: "forecast", Payload: json.RawMessage(`[1]`)})
	assert.True(t, errs.IsValidation(err))

	_, err = wt.Execute(ctx, tool.Call{Action: "forecast", Payload: json.RawMessage(`{"city":""}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "city is required")

	require.NoError(t, wt.Close())
	_, err = wt.Execute(ctx, tool.Call{Action: "forecast", Payload: json.RawMessage(`{"city":"Oslo"}`)})
	assert.Error(t, err)
}
