package model

// Tag represents a template tag
type Tag struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// TagWithCount is a tag together with the number of templates using it
type TagWithCount struct {
	ID            int    `json:"id" db:"id"`
	Name          string `json:"name" db:"name"`
	TemplateCount int    `json:"template_count" db:"template_count"`
}

// TagInstance links a tag to exactly one template
type TagInstance struct {
	ID         int `json:"id" db:"id"`
	TagID      int `json:"tag_id" db:"tag_id"`
	TemplateID int `json:"template_id" db:"template_id"`
}
