package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/fivetwenty-io/blog-client/internal/constants"
	"github.com/fivetwenty-io/blog-client/internal/http"
	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

// PostsClient implements blog.PostsClient.
type PostsClient struct {
	httpClient *http.Client
}

// NewPostsClient creates a new posts client.
func NewPostsClient(httpClient *http.Client) *PostsClient {
	return &PostsClient{
		httpClient: httpClient,
	}
}

// List implements blog.PostsClient.List.
func (c *PostsClient) List(ctx context.Context) ([]blog.Post, error) {
	posts, err := http.Decode[[]blog.Post](c.httpClient.Get(ctx, constants.PostsPath, nil)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}

	if posts == nil {
		posts = []blog.Post{}
	}

	return posts, nil
}

// Get implements blog.PostsClient.Get.
func (c *PostsClient) Get(ctx context.Context, id string) (*blog.Post, error) {
	path, err := postPath(id)
	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}

	post, err := http.Decode[blog.Post](c.httpClient.Get(ctx, path, nil)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting post %s: %w", id, err)
	}

	return &post, nil
}

// Create implements blog.PostsClient.Create.
func (c *PostsClient) Create(ctx context.Context, request *blog.PostCreateRequest) (*blog.Post, error) {
	post, err := http.Decode[blog.Post](c.httpClient.Post(ctx, constants.PostsPath, request)).Result()
	if err != nil {
		return nil, fmt.Errorf("creating post: %w", err)
	}

	return &post, nil
}

// Update implements blog.PostsClient.Update. The whole post is replaced.
func (c *PostsClient) Update(ctx context.Context, request *blog.PostUpdateRequest) (*blog.Post, error) {
	path, err := postPath(request.ID)
	if err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}

	post, err := http.Decode[blog.Post](c.httpClient.Put(ctx, path, request.Body)).Result()
	if err != nil {
		return nil, fmt.Errorf("updating post %s: %w", request.ID, err)
	}

	return &post, nil
}

// Delete implements blog.PostsClient.Delete.
func (c *PostsClient) Delete(ctx context.Context, id string) error {
	path, err := postPath(id)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}

	_, err = c.httpClient.Delete(ctx, path)
	if err != nil {
		return fmt.Errorf("deleting post %s: %w", id, err)
	}

	return nil
}

func postPath(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", blog.NewExecutionError("post id is required", blog.ErrPostIDRequired)
	}

	return constants.PostsPath + "/" + url.PathEscape(id), nil
}
