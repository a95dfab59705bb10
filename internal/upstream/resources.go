package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ListManufacturers fetches up to limit manufacturers in one request.
func (c *Client) ListManufacturers(ctx context.Context, limit int) ([]RawRecord, int, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/manufacturers", query: query}, "GET /manufacturers")
	if err != nil {
		return nil, 0, err
	}
	items, err := records(env, "manufacturers")
	if err != nil {
		return nil, 0, err
	}
	return items, total(env, len(items)), nil
}

// GetManufacturer fetches one manufacturer.
func (c *Client) GetManufacturer(ctx context.Context, id string) (RawRecord, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/manufacturers/" + url.PathEscape(id)}, "GET /manufacturers/{id}")
	if err != nil {
		return nil, err
	}
	return record(env, "manufacturer")
}

// FilterOptions fetches the manufacturer directory filter options.
func (c *Client) FilterOptions(ctx context.Context) (map[string][]string, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/manufacturers/filter-options"}, "GET /manufacturers/filter-options")
	if err != nil {
		return nil, err
	}
	src, err := record(env, "filterOptions")
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(src))
	for key, value := range src {
		items, ok := value.([]any)
		if !ok {
			continue
		}
		values := make([]string, 0, len(items))
		for _, item := range items {
			switch v := item.(type) {
			case string:
				if v = strings.TrimSpace(v); v != "" {
					values = append(values, v)
				}
			case map[string]any:
				if s, _ := v["value"].(string); s != "" {
					values = append(values, s)
				} else if s, _ := v["name"].(string); s != "" {
					values = append(values, s)
				}
			}
		}
		out[key] = values
	}
	return out, nil
}

// Favorites returns the ids the caller has marked as favorite.
func (c *Client) Favorites(ctx context.Context) ([]string, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/favorites"}, "GET /favorites")
	if err != nil {
		return nil, err
	}
	raw, _ := env["favorites"].([]any)
	if raw == nil {
		if data, ok := env["data"].([]any); ok {
			raw = data
		}
	}
	ids := make([]string, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case json.Number:
			ids = append(ids, v.String())
		case map[string]any:
			if id := favoriteID(v); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func favoriteID(v map[string]any) string {
	for _, key := range []string{"manufacturerId", "manufacturer_id", "id", "_id"} {
		switch id := v[key].(type) {
		case string:
			return id
		case json.Number:
			return id.String()
		}
	}
	return ""
}

// ListProjects fetches the caller's sourcing projects.
func (c *Client) ListProjects(ctx context.Context) ([]RawRecord, int, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/projects"}, "GET /projects")
	if err != nil {
		return nil, 0, err
	}
	items, err := records(env, "projects")
	if err != nil {
		return nil, 0, err
	}
	return items, total(env, len(items)), nil
}

// CreateProject submits a project and returns the created record. A fresh
// idempotency key is generated when key is empty.
func (c *Client) CreateProject(ctx context.Context, payload any, key string) (RawRecord, error) {
	if key == "" {
		key = uuid.NewString()
	}
	env, err := c.do(ctx, request{method: http.MethodPost, path: "/projects", body: payload, idempotencyKey: key}, "POST /projects")
	if err != nil {
		return nil, err
	}
	return record(env, "project")
}

// ProjectManufacturers fetches the server-computed matches for a project.
func (c *Client) ProjectManufacturers(ctx context.Context, projectID string) ([]RawRecord, error) {
	path := "/projects/" + url.PathEscape(projectID) + "/manufacturers"
	env, err := c.do(ctx, request{method: http.MethodGet, path: path}, "GET /projects/{id}/manufacturers")
	if err != nil {
		return nil, err
	}
	items, err := records(env, "manufacturers")
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return records(env, "matches")
	}
	return items, nil
}

// ListProducts fetches the caller's product catalog.
func (c *Client) ListProducts(ctx context.Context) ([]RawRecord, int, error) {
	env, err := c.do(ctx, request{method: http.MethodGet, path: "/products"}, "GET /products")
	if err != nil {
		return nil, 0, err
	}
	items, err := records(env, "products")
	if err != nil {
		return nil, 0, err
	}
	return items, total(env, len(items)), nil
}

// CreateProduct creates a catalog product.
func (c *Client) CreateProduct(ctx context.Context, payload any) (RawRecord, error) {
	env, err := c.do(ctx, request{method: http.MethodPost, path: "/products", body: payload, idempotencyKey: uuid.NewString()}, "POST /products")
	if err != nil {
		return nil, err
	}
	return record(env, "product")
}

// UpdateProduct replaces a catalog product.
func (c *Client) UpdateProduct(ctx context.Context, id string, payload any) (RawRecord, error) {
	env, err := c.do(ctx, request{method: http.MethodPut, path: "/products/" + url.PathEscape(id), body: payload}, "PUT /products/{id}")
	if err != nil {
		return nil, err
	}
	return record(env, "product")
}

// DeleteProduct removes a catalog product.
func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	_, err := c.do(ctx, request{method: http.MethodDelete, path: "/products/" + url.PathEscape(id)}, "DELETE /products/{id}")
	return err
}
