// Package query is a normalized cache and subscription store for
// request/response endpoints.
//
// Queries are declared once on a Store with DefineQuery. Each call argument
// gets its own cache entry, keyed by the endpoint name and the JSON form of
// the argument. Subscribers to the same entry share one in-flight fetch, and
// results are retained for a while after the last subscriber leaves.
//
// Results provide tags. Mutations, declared with DefineMutation, name the
// tags they invalidate when they settle: subscribed entries providing an
// invalidated tag are refetched, unsubscribed ones are dropped.
//
//	store := query.NewStore(query.WithKeepUnusedFor(time.Minute))
//	defer store.Close()
//
//	getPost := query.DefineQuery(store, "getPost", fetchPost,
//		func(_ *blog.Post, _ error, id string) []query.Tag {
//			return []query.Tag{{Type: "Posts", ID: id}}
//		})
//
//	sub := getPost.Subscribe("42", query.SubscribeOptions{}, func(s query.QueryState[*blog.Post]) {
//		fmt.Println(s.Status, s.Data)
//	})
//	defer sub.Unsubscribe()
//
// Listeners and middleware run on a single store-owned goroutine, in the
// order the state changes happened.
package query
