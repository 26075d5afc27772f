package query

import "fmt"

// ListID is the tag id that stands for a collection as a whole.
const ListID = "LIST"

// Tag labels cached query results so they can be invalidated in bulk.
type Tag struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// String returns "Type:ID", or just the type for a type-wide tag.
func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}

	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

// ListTag returns the collection-wide tag for tagType.
func ListTag(tagType string) Tag {
	return Tag{Type: tagType, ID: ListID}
}

// matches reports whether invalidating t affects a result that provides other.
// A tag without an id matches every id of its type.
func (t Tag) matches(other Tag) bool {
	if t.Type != other.Type {
		return false
	}

	return t.ID == "" || t.ID == other.ID
}

func anyMatch(invalidated, provided []Tag) bool {
	for _, inv := range invalidated {
		for _, prov := range provided {
			if inv.matches(prov) {
				return true
			}
		}
	}

	return false
}
