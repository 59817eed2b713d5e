package apiclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/xkilldash9x/csvmapper-cli/api/schemas"
	"github.com/xkilldash9x/csvmapper-cli/internal/transport"
)

// SourceInput is the writable part of a source.
type SourceInput struct {
	Name      string
	Location  string
	HasHeader bool
}

func (in SourceInput) validate() []error {
	return checks(nonEmptyString("name", in.Name), nonEmptyString("location", in.Location))
}

func (in SourceInput) body() schemas.Source {
	return schemas.Source{
		Name:      strings.TrimSpace(in.Name),
		Location:  strings.TrimSpace(in.Location),
		HasHeader: in.HasHeader,
	}
}

func sourcePath(id int) string { return fmt.Sprintf("/api/source/%d/", id) }

func (c *Client) ListSources(ctx context.Context) schemas.Envelope {
	return c.call(ctx, "list_sources", nil, "/api/source/", transport.MethodGet, nil)
}

func (c *Client) CreateSource(ctx context.Context, in SourceInput) schemas.Envelope {
	return c.call(ctx, "create_source", in.validate(), "/api/source/", transport.MethodPost, in.body())
}

func (c *Client) GetSource(ctx context.Context, id int) schemas.Envelope {
	return c.call(ctx, "get_source", checks(positiveInt("source_id", id)), sourcePath(id), transport.MethodGet, nil)
}

func (c *Client) UpdateSource(ctx context.Context, id int, in SourceInput) schemas.Envelope {
	return c.call(ctx, "update_source",
		append(checks(positiveInt("source_id", id)), in.validate()...),
		sourcePath(id), transport.MethodPut, in.body())
}

func (c *Client) DeleteSource(ctx context.Context, id int) schemas.Envelope {
	return c.call(ctx, "delete_source", checks(positiveInt("source_id", id)), sourcePath(id), transport.MethodDelete, nil)
}

// GetSourceData returns the parsed columns of the source's CSV.
func (c *Client) GetSourceData(ctx context.Context, id int) schemas.Envelope {
	return c.call(ctx, "get_source_data", checks(positiveInt("source_id", id)), sourcePath(id)+"data/", transport.MethodGet, nil)
}
