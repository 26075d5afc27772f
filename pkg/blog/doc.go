// Package blog provides the types, errors, and helpers shared by the blog
// posts client.
//
// # Overview
//
// The blog package defines the Post domain type, its create and update
// payloads, the PostsClient interface implemented by the REST layer, and the
// error taxonomy every layer speaks:
//
//   - NetworkError: transport or HTTP-level failure, carrying status and body.
//   - ValidationError: per-field failure reported by the server, shown inline.
//   - ExecutionError: raised locally while building a request.
//
// Most consumers construct a client through the blogclient package:
//
//	cli, err := blogclient.New(ctx, &blog.Config{BaseURL: "http://localhost:4000/"})
//	if err != nil { log.Fatal(err) }
//	defer cli.Close()
//
//	sub := cli.Posts().List.Subscribe(struct{}{}, query.SubscribeOptions{}, func(s query.QueryState[[]blog.Post]) {
//	  // render s.Data
//	})
//	defer sub.Unsubscribe()
//
// # Interceptors
//
// Request and response interceptors (bearer authentication, custom headers,
// default query parameters, logging) run around every HTTP call made by the
// client.
package blog
