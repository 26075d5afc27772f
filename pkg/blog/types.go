package blog

// Post represents a blog post as served by the posts resource.
type Post struct {
	ID            string `json:"id"            yaml:"id"`
	Title         string `json:"title"         yaml:"title"`
	Description   string `json:"description"   yaml:"description"`
	FeaturedImage string `json:"featuredImage" yaml:"featured_image"`
	PublishDate   string `json:"publishDate"   yaml:"publish_date"`
	Published     bool   `json:"published"     yaml:"published"`
}

// PostCreateRequest is the payload for creating a post. The server assigns the id.
type PostCreateRequest struct {
	Title         string `json:"title"         yaml:"title"`
	Description   string `json:"description"   yaml:"description"`
	FeaturedImage string `json:"featuredImage" yaml:"featured_image"`
	PublishDate   string `json:"publishDate"   yaml:"publish_date"`
	Published     bool   `json:"published"     yaml:"published"`
}

// PostUpdateRequest replaces the post identified by ID with Body.
type PostUpdateRequest struct {
	ID   string `json:"id"   yaml:"id"`
	Body Post   `json:"body" yaml:"body"`
}

// CreateRequest returns the post without its id.
func (p Post) CreateRequest() PostCreateRequest {
	return PostCreateRequest{
		Title:         p.Title,
		Description:   p.Description,
		FeaturedImage: p.FeaturedImage,
		PublishDate:   p.PublishDate,
		Published:     p.Published,
	}
}

// Post returns the payload as a post with the given id.
func (r PostCreateRequest) Post(id string) Post {
	return Post{
		ID:            id,
		Title:         r.Title,
		Description:   r.Description,
		FeaturedImage: r.FeaturedImage,
		PublishDate:   r.PublishDate,
		Published:     r.Published,
	}
}
