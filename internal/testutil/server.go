// Package testutil provides an in-memory posts backend for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/fivetwenty-io/blog-client/pkg/blog"
)

type failure struct {
	status int
	body   interface{}
}

// Server is an httptest server speaking the posts REST protocol. Posts are
// kept in insertion order; ids are assigned sequentially from 1.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	posts     map[string]blog.Post
	order     []string
	nextID    int
	requests  map[string]int
	headers   http.Header
	query     url.Values
	failures  map[string][]failure
	validator func(blog.Post) map[string]string
}

// NewServer starts a server seeded with posts and closes it with the test.
func NewServer(t testing.TB, seed ...blog.Post) *Server {
	t.Helper()

	s := &Server{
		posts:     make(map[string]blog.Post),
		requests:  make(map[string]int),
		failures:  make(map[string][]failure),
		validator: Validate,
	}

	for _, post := range seed {
		s.insert(post)
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)

	return s
}

// BaseURL returns the server URL with a trailing slash, the way clients are configured.
func (s *Server) BaseURL() string {
	return s.Server.URL + "/"
}

// Validate rejects posts without a title or with a featured image that is
// not an http(s) URL, answering the way the backend does.
func Validate(post blog.Post) map[string]string {
	fields := make(map[string]string)

	if strings.TrimSpace(post.Title) == "" {
		fields["title"] = "Title is required"
	}

	if post.FeaturedImage != "" &&
		!strings.HasPrefix(post.FeaturedImage, "http://") &&
		!strings.HasPrefix(post.FeaturedImage, "https://") {
		fields["featuredImage"] = "Featured image must be a URL"
	}

	return fields
}

// FailNext makes the next request matching "METHOD /path" answer status
// with body instead of being served.
func (s *Server) FailNext(route string, status int, body interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[route] = append(s.failures[route], failure{status: status, body: body})
}

// Requests returns how many times "METHOD /path" was requested.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.requests[route]
}

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.headers.Clone()
}

// LastQuery returns the query parameters of the most recent request.
func (s *Server) LastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.query
}

// Posts returns the stored posts in insertion order.
func (s *Server) Posts() []blog.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.listLocked()
}

func (s *Server) insert(post blog.Post) blog.Post {
	for post.ID == "" {
		s.nextID++

		if _, taken := s.posts[strconv.Itoa(s.nextID)]; !taken {
			post.ID = strconv.Itoa(s.nextID)
		}
	}

	s.posts[post.ID] = post
	s.order = append(s.order, post.ID)

	return post
}

func (s *Server) listLocked() []blog.Post {
	posts := make([]blog.Post, 0, len(s.order))
	for _, id := range s.order {
		posts = append(posts, s.posts[id])
	}

	return posts
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests[route]++
	s.headers = r.Header.Clone()
	s.query = r.URL.Query()

	if queued := s.failures[route]; len(queued) > 0 {
		s.failures[route] = queued[1:]
		writeJSON(w, queued[0].status, queued[0].body)

		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/posts/")

	switch {
	case r.URL.Path == "/posts" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, s.listLocked())
	case r.URL.Path == "/posts" && r.Method == http.MethodPost:
		s.create(w, r)
	case strings.HasPrefix(r.URL.Path, "/posts/") && id != "":
		s.item(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var request blog.PostCreateRequest

	err := json.NewDecoder(r.Body).Decode(&request)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed body"})

		return
	}

	post := request.Post("")
	if fields := s.validator(post); len(fields) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": fields})

		return
	}

	writeJSON(w, http.StatusCreated, s.insert(post))
}

func (s *Server) item(w http.ResponseWriter, r *http.Request, id string) {
	post, ok := s.posts[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Post not found"})

		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, post)
	case http.MethodPut:
		var body blog.Post

		err := json.NewDecoder(r.Body).Decode(&body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Malformed body"})

			return
		}

		body.ID = id
		if fields := s.validator(body); len(fields) > 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{"error": fields})

			return
		}

		s.posts[id] = body
		writeJSON(w, http.StatusOK, body)
	case http.MethodDelete:
		delete(s.posts, id)

		for i, existing := range s.order {
			if existing == id {
				s.order = append(s.order[:i], s.order[i+1:]...)

				break
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{})
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "Method not allowed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}
