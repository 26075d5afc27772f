// Package blogclient is the entry point for building a blog posts client.
//
// It wires configuration, HTTP transport, authentication, the query cache
// and the error notification middleware on top of the types defined in the
// blog package. Most applications construct a Client here and then work with
// the cached endpoints returned by Posts().
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/blog-client/pkg/blog"
//	  "github.com/fivetwenty-io/blog-client/pkg/blogclient"
//	  "github.com/fivetwenty-io/blog-client/pkg/query"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  cli, err := blogclient.New(ctx, &blog.Config{BaseURL: "http://localhost:4000/"})
//	  if err != nil { log.Fatal(err) }
//	  defer cli.Close()
//
//	  // One-shot read through the cache.
//	  posts, err := cli.Posts().List.Fetch(ctx, struct{}{}, query.SubscribeOptions{})
//	  if err != nil { log.Fatal(err) }
//	  _ = posts
//
//	  // Creating a post invalidates the list; live subscribers refetch it.
//	  res := cli.Posts().Create.New().Trigger(ctx, blog.PostCreateRequest{Title: "Hello"})
//	  if res.Error != nil { log.Print(res.Error) }
//	}
//
// # Notifications
//
// Failed server requests are reported through Config.Notifier. Validation
// failures are not: they belong next to the offending form field and are
// available from the mutation state or an editor Controller.
//
// # Shared invalidation
//
// When Config.NATSURL is set, tag invalidations are published on
// Config.NATSSubject and invalidations published by other processes are
// applied to this client's cache.
package blogclient
