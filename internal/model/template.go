package model

// Template is a saved source course plus the metadata shown when picking it
type Template struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	CourseID    int     `json:"course_id" db:"course_id"`
	Filename    *string `json:"filename,omitempty" db:"filename"`
	Screenshot  *string `json:"screenshot,omitempty" db:"screenshot"`
	TimeCreated int64   `json:"time_created" db:"time_created"`
	Tags        []Tag   `json:"tags,omitempty" db:"-"`
}

// HasArchive reports whether a backup archive has already been cached for the template
func (t *Template) HasArchive() bool {
	return t.Filename != nil && *t.Filename != ""
}

// ArchiveName returns the cached archive filename or an empty string
func (t *Template) ArchiveName() string {
	if t.Filename == nil {
		return ""
	}
	return *t.Filename
}

// TemplateCreate holds the fields accepted when creating a template
type TemplateCreate struct {
	Name        string `json:"name" validate:"required,notblank,max=255"`
	Description string `json:"description"`
	CourseID    int    `json:"course_id" validate:"required,gt=0"`
	Tags        string `json:"tags"`
}

// TemplateUpdate holds the fields accepted when updating a template.
// Nil fields are left unchanged.
type TemplateUpdate struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,notblank,max=255"`
	Description *string `json:"description,omitempty"`
	Tags        *string `json:"tags,omitempty"`
}
