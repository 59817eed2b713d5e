package apiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/transport"
)

// DatasetInput is the writable part of a graph dataset. An axis dataset
// supplies the labels and is never plotted, so its PlotType is ignored and
// sent as "none".
type DatasetInput struct {
	Label    string
	PlotType schemas.PlotType
	IsAxis   bool
	SourceID int
	ColumnID int
}

func (in DatasetInput) validate() []error {
	errs := checks(positiveInt("source_id", in.SourceID), nonNegativeInt("column_id", in.ColumnID))
	if !in.IsAxis {
		errs = append(errs, supportedPlotType("plot_type", in.PlotType))
	}
	return errs
}

func (in DatasetInput) body() schemas.Dataset {
	plot := in.PlotType
	if in.IsAxis {
		plot = schemas.PlotNone
	}
	return schemas.Dataset{
		Label:    strings.TrimSpace(in.Label),
		PlotType: plot,
		IsAxis:   in.IsAxis,
		SourceID: in.SourceID,
		ColumnID: in.ColumnID,
	}
}

func datasetsPath(graphID int) string { return fmt.Sprintf("/api/graph/%d/dataset/", graphID) }

func datasetPath(graphID, datasetID int) string {
	return fmt.Sprintf("/api/graph/%d/dataset/%d/", graphID, datasetID)
}

func (c *Client) ListGraphDatasets(ctx context.Context, graphID int) schemas.Envelope {
	return c.call(ctx, "list_graph_datasets", checks(positiveInt("graph_id", graphID)),
		datasetsPath(graphID), transport.MethodGet, nil)
}

func (c *Client) CreateGraphDataset(ctx context.Context, graphID int, in DatasetInput) schemas.Envelope {
	return c.call(ctx, "create_graph_dataset",
		append(checks(positiveInt("graph_id", graphID)), in.validate()...),
		datasetsPath(graphID), transport.MethodPost, in.body())
}

func (c *Client) GetGraphDataset(ctx context.Context, graphID, datasetID int) schemas.Envelope {
	return c.call(ctx, "get_graph_dataset",
		checks(positiveInt("graph_id", graphID), positiveInt("dataset_id", datasetID)),
		datasetPath(graphID, datasetID), transport.MethodGet, nil)
}

func (c *Client) UpdateGraphDataset(ctx context.Context, graphID, datasetID int, in DatasetInput) schemas.Envelope {
	return c.call(ctx, "update_graph_dataset",
		append(checks(positiveInt("graph_id", graphID), positiveInt("dataset_id", datasetID)), in.validate()...),
		datasetPath(graphID, datasetID), transport.MethodPut, in.body())
}

func (c *Client) DeleteGraphDataset(ctx context.Context, graphID, datasetID int) schemas.Envelope {
	return c.call(ctx, "delete_graph_dataset",
		checks(positiveInt("graph_id", graphID), positiveInt("dataset_id", datasetID)),
		datasetPath(graphID, datasetID), transport.MethodDelete, nil)
}
