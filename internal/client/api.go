package client

import (
	"context"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
	"github.com/fivetwenty-io/blog-client/pkg/query"
)

// PostsTagType is the tag type carried by every posts endpoint.
const PostsTagType = "Posts"

// Endpoint names, also used as action and latency labels.
const (
	EndpointListPosts  = "listPosts"
	EndpointGetPost    = "getPost"
	EndpointCreatePost = "createPost"
	EndpointUpdatePost = "updatePost"
	EndpointDeletePost = "deletePost"
)

// API declares the posts endpoints on a query store.
type API struct {
	List   *query.Query[struct{}, []blog.Post]
	Get    *query.Query[string, *blog.Post]
	Create *query.Mutation[blog.PostCreateRequest, *blog.Post]
	Update *query.Mutation[blog.PostUpdateRequest, *blog.Post]
	Delete *query.Mutation[string, struct{}]
}

// PostTag returns the tag of a single post.
func PostTag(id string) query.Tag {
	return query.Tag{Type: PostsTagType, ID: id}
}

// ListTag returns the tag of the posts collection.
func ListTag() query.Tag {
	return query.ListTag(PostsTagType)
}

// NewAPI declares the posts endpoints on store, backed by posts.
func NewAPI(store *query.Store, posts blog.PostsClient) *API {
	return &API{
		List: query.DefineQuery(store, EndpointListPosts,
			func(ctx context.Context, _ struct{}) ([]blog.Post, error) {
				return posts.List(ctx)
			},
			listProvides),
		Get: query.DefineQuery(store, EndpointGetPost,
			posts.Get,
			func(_ *blog.Post, _ error, id string) []query.Tag {
				return []query.Tag{PostTag(id)}
			}),
		Create: query.DefineMutation(store, EndpointCreatePost,
			func(ctx context.Context, request blog.PostCreateRequest) (*blog.Post, error) {
				return posts.Create(ctx, &request)
			},
			func(_ *blog.Post, err error, _ blog.PostCreateRequest) []query.Tag {
				if err != nil {
					return nil
				}

				return []query.Tag{ListTag()}
			}),
		Update: query.DefineMutation(store, EndpointUpdatePost,
			func(ctx context.Context, request blog.PostUpdateRequest) (*blog.Post, error) {
				return posts.Update(ctx, &request)
			},
			func(_ *blog.Post, err error, request blog.PostUpdateRequest) []query.Tag {
				if err != nil {
					return nil
				}

				return []query.Tag{PostTag(request.ID)}
			}),
		Delete: query.DefineMutation(store, EndpointDeletePost,
			func(ctx context.Context, id string) (struct{}, error) {
				return struct{}{}, posts.Delete(ctx, id)
			},
			func(_ struct{}, _ error, id string) []query.Tag {
				return []query.Tag{PostTag(id)}
			}),
	}
}

// listProvides tags every listed post plus the collection. A failed list
// still provides the collection tag so a later create refetches it.
func listProvides(posts []blog.Post, err error, _ struct{}) []query.Tag {
	if err != nil {
		return []query.Tag{ListTag()}
	}

	tags := make([]query.Tag, 0, len(posts)+1)
	for _, post := range posts {
		tags = append(tags, PostTag(post.ID))
	}

	return append(tags, ListTag())
}
