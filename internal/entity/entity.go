package entity

// Entity is anything that can be persisted to the search index.
type Entity interface {
	Slug() string
}
