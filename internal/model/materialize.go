package model

// TargetMode is how restored content is applied to the destination course
type TargetMode string

const (
	TargetNewCourse      TargetMode = "new-course"
	TargetExistingAdding TargetMode = "existing-adding"
)

// CourseOverrides replace the identity fields coming from an archive.
// They only apply to the new course path.
type CourseOverrides struct {
	Fullname  string `json:"fullname"`
	Shortname string `json:"shortname"`
	IDNumber  string `json:"idnumber"`
	StartDate int64  `json:"startdate"`
}

// Target describes where a template is materialized
type Target struct {
	Mode       TargetMode
	CourseID   int
	CategoryID int
	Overrides  CourseOverrides
}

// NewCourseTarget builds a target that creates a fresh course in the given category
func NewCourseTarget(categoryID int, overrides CourseOverrides) Target {
	return Target{Mode: TargetNewCourse, CategoryID: categoryID, Overrides: overrides}
}

// ImportTarget builds a target that adds content to an existing course
func ImportTarget(courseID int) Target {
	return Target{Mode: TargetExistingAdding, CourseID: courseID}
}

// IsNewCourse reports whether the target creates a course
func (t Target) IsNewCourse() bool {
	return t.Mode == TargetNewCourse
}

// MaterializationState tracks one materialization request
type MaterializationState string

const (
	StatePending          MaterializationState = "pending"
	StateArchiveReady     MaterializationState = "archive_ready"
	StateExtracted        MaterializationState = "extracted"
	StateRestorePlanBuilt MaterializationState = "restore_plan_built"
	StateConversionDone   MaterializationState = "conversion_done"
	StatePrechecked       MaterializationState = "prechecked"
	StateExecuted         MaterializationState = "executed"
	StateCleaned          MaterializationState = "cleaned"
	StateDone             MaterializationState = "done"
	StateFailed           MaterializationState = "failed"
)

// Actor is the user on whose behalf a request runs
type Actor struct {
	UserID int
}

// NewCourseRequest is the validated payload for creating a course from a template
type NewCourseRequest struct {
	TemplateID          int    `json:"template" validate:"required,gt=0"`
	Referer             string `json:"referer" validate:"omitempty,url"`
	SetChannel          bool   `json:"setchannel"`
	CategoryID          int    `json:"category" validate:"required,gt=0"`
	Fullname            string `json:"fullname" validate:"required,notblank,max=254"`
	Shortname           string `json:"shortname" validate:"required,notblank,max=100"`
	IDNumber            string `json:"idnumber" validate:"max=100"`
	StartDate           int64  `json:"startdate" validate:"gte=0"`
	Summary             string `json:"summary"`
	CustomCourseHeading string `json:"customcourseheading"`
}

// Overrides returns the identity fields that replace the archive values
func (r *NewCourseRequest) Overrides() CourseOverrides {
	return CourseOverrides{
		Fullname:  r.Fullname,
		Shortname: r.Shortname,
		IDNumber:  r.IDNumber,
		StartDate: r.StartDate,
	}
}

// ImportRequest is the validated payload for importing a template into a course
type ImportRequest struct {
	TemplateID int    `json:"template" validate:"required,gt=0"`
	CourseID   int    `json:"-"`
	Referer    string `json:"referer" validate:"omitempty,url"`
}

// FinishOptions carries the request payloads applied after restore
type FinishOptions struct {
	Summary       string
	SetChannel    bool
	CustomHeading string
	NewCourse     bool
}

// Result is reported back to the caller after a successful materialization
type Result struct {
	CourseID    int                  `json:"course_id"`
	RedirectURL string               `json:"redirect"`
	Message     string               `json:"message"`
	State       MaterializationState `json:"state"`
}
