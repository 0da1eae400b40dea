package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"boardsync/internal/models"
)

// ListItems returns every item of a project, optionally filtered by type.
func (c *Client) ListItems(ctx context.Context, projectID int64, itemType models.ItemType) ([]models.Item, error) {
	q := url.Values{}
	if itemType != "" {
		q.Set("type", string(itemType))
	}
	var out struct {
		Items []models.Item `json:"items"`
	}
	if err := c.do(ctx, "list items", http.MethodGet, withQuery(projectPath(projectID, "/items"), q), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetItem returns one item.
func (c *Client) GetItem(ctx context.Context, itemID int64) (models.Item, error) {
	var out struct {
		Item models.Item `json:"item"`
	}
	err := c.do(ctx, "get item", http.MethodGet, itemPath(itemID, ""), nil, &out)
	return out.Item, err
}

// ListColumns returns the columns of a project as stored.
func (c *Client) ListColumns(ctx context.Context, projectID int64) ([]models.Column, error) {
	var out struct {
		Columns []models.Column `json:"columns"`
	}
	if err := c.do(ctx, "list columns", http.MethodGet, projectPath(projectID, "/columns"), nil, &out); err != nil {
		return nil, err
	}
	return out.Columns, nil
}

// CreateColumn adds a column to a project.
func (c *Client) CreateColumn(ctx context.Context, projectID int64, spec models.ColumnSpec) (models.Column, error) {
	var out struct {
		Column models.Column `json:"column"`
	}
	err := c.do(ctx, "create column", http.MethodPost, projectPath(projectID, "/columns"), spec, &out)
	return out.Column, err
}

// UpdateItem applies a partial update and returns the stored item.
func (c *Client) UpdateItem(ctx context.Context, itemID int64, patch models.ItemPatch) (models.Item, error) {
	var out struct {
		Item models.Item `json:"item"`
	}
	err := c.do(ctx, "update item", http.MethodPatch, itemPath(itemID, ""), patch, &out)
	return out.Item, err
}

// CreateItem adds an item to a project.
func (c *Client) CreateItem(ctx context.Context, projectID int64, fields models.ItemFields) (models.Item, error) {
	var out struct {
		Item models.Item `json:"item"`
	}
	err := c.do(ctx, "create item", http.MethodPost, projectPath(projectID, "/items"), fields, &out)
	return out.Item, err
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, itemID int64) error {
	return c.do(ctx, "delete item", http.MethodDelete, itemPath(itemID, ""), nil, nil)
}

// ListMembers returns the member rows of a project.
func (c *Client) ListMembers(ctx context.Context, projectID int64) ([]models.Member, error) {
	var out struct {
		Members []models.Member `json:"members"`
	}
	if err := c.do(ctx, "list members", http.MethodGet, projectPath(projectID, "/members"), nil, &out); err != nil {
		return nil, err
	}
	return out.Members, nil
}

// ListSubtasks returns the children of an epic.
func (c *Client) ListSubtasks(ctx context.Context, itemID int64) ([]models.Item, error) {
	var out struct {
		Subtasks []models.Item `json:"subtasks"`
	}
	if err := c.do(ctx, "list subtasks", http.MethodGet, itemPath(itemID, "/subtasks"), nil, &out); err != nil {
		return nil, err
	}
	return out.Subtasks, nil
}

// ListComments returns the comments of an item, oldest first.
func (c *Client) ListComments(ctx context.Context, itemID int64) ([]models.Comment, error) {
	var out struct {
		Comments []models.Comment `json:"comments"`
	}
	if err := c.do(ctx, "list comments", http.MethodGet, itemPath(itemID, "/comments"), nil, &out); err != nil {
		return nil, err
	}
	return out.Comments, nil
}

type commentRequest struct {
	Content string `json:"content"`
}

// CreateComment appends a comment to an item.
func (c *Client) CreateComment(ctx context.Context, itemID int64, content string) (models.Comment, error) {
	var out struct {
		Comment models.Comment `json:"comment"`
	}
	err := c.do(ctx, "create comment", http.MethodPost, itemPath(itemID, "/comments"), commentRequest{Content: content}, &out)
	return out.Comment, err
}

// UpdateComment replaces the content of a comment.
func (c *Client) UpdateComment(ctx context.Context, commentID int64, content string) (models.Comment, error) {
	var out struct {
		Comment models.Comment `json:"comment"`
	}
	err := c.do(ctx, "update comment", http.MethodPatch, fmt.Sprintf("/comments/%d", commentID), commentRequest{Content: content}, &out)
	return out.Comment, err
}

// GetCurrentUser returns the user the credential belongs to.
func (c *Client) GetCurrentUser(ctx context.Context) (models.User, error) {
	var out struct {
		User models.User `json:"user"`
	}
	err := c.do(ctx, "current user", http.MethodGet, "/me", nil, &out)
	return out.User, err
}

// GetProject returns a project with its ownership fields.
func (c *Client) GetProject(ctx context.Context, projectID int64) (models.Project, error) {
	var out struct {
		Project models.Project `json:"project"`
	}
	err := c.do(ctx, "get project", http.MethodGet, projectPath(projectID, ""), nil, &out)
	return out.Project, err
}
