package apiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/transport"
)

// GraphInput is the writable part of a graph. Description may be empty.
type GraphInput struct {
	Name        string
	Description string
}

func (in GraphInput) validate() []error {
	return checks(nonEmptyString("name", in.Name))
}

func (in GraphInput) body() schemas.Graph {
	return schemas.Graph{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
	}
}

func graphPath(id int) string { return fmt.Sprintf("/api/graph/%d/", id) }

func (c *Client) ListGraphs(ctx context.Context) schemas.Envelope {
	return c.call(ctx, "list_graphs", nil, "/api/graph/", transport.MethodGet, nil)
}

func (c *Client) CreateGraph(ctx context.Context, in GraphInput) schemas.Envelope {
	return c.call(ctx, "create_graph", in.validate(), "/api/graph/", transport.MethodPost, in.body())
}

func (c *Client) GetGraph(ctx context.Context, id int) schemas.Envelope {
	return c.call(ctx, "get_graph", checks(positiveInt("graph_id", id)), graphPath(id), transport.MethodGet, nil)
}

func (c *Client) UpdateGraph(ctx context.Context, id int, in GraphInput) schemas.Envelope {
	return c.call(ctx, "update_graph",
		append(checks(positiveInt("graph_id", id)), in.validate()...),
		graphPath(id), transport.MethodPut, in.body())
}

func (c *Client) DeleteGraph(ctx context.Context, id int) schemas.Envelope {
	return c.call(ctx, "delete_graph", checks(positiveInt("graph_id", id)), graphPath(id), transport.MethodDelete, nil)
}

// GetGraphData returns the chart configuration the server assembles for the
// graph.
func (c *Client) GetGraphData(ctx context.Context, id int) schemas.Envelope {
	return c.call(ctx, "get_graph_data", checks(positiveInt("graph_id", id)), graphPath(id)+"data/", transport.MethodGet, nil)
}

// GraphChart is GetGraphData decoded into a chart configuration.
func (c *Client) GraphChart(ctx context.Context, id int) (*schemas.ChartConfig, error) {
	cfg, err := schemas.Decode[schemas.ChartConfig](c.GetGraphData(ctx, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load chart for graph %d: %w", id, err)
	}
	return &cfg, nil
}
