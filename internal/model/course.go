package model

// SiteCourseID is the front page course, which never receives imported content
const SiteCourseID = 1

// Course is the subset of a host course record the service reads and writes
type Course struct {
	ID              int    `json:"id" db:"id"`
	CategoryID      int    `json:"category_id" db:"category_id"`
	Fullname        string `json:"fullname" db:"fullname"`
	Shortname       string `json:"shortname" db:"shortname"`
	IDNumber        string `json:"idnumber" db:"idnumber"`
	Summary         string `json:"summary" db:"summary"`
	StartDate       int64  `json:"startdate" db:"startdate"`
	Format          string `json:"format" db:"format"`
	AudienceVisible int    `json:"audience_visible" db:"audience_visible"`
}

// Category is a course category
type Category struct {
	ID   int    `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Activity is one course module placed in a section
type Activity struct {
	ID       int    `json:"id" db:"id"`
	CourseID int    `json:"course_id" db:"course_id"`
	Section  int    `json:"section" db:"section"`
	Module   string `json:"module" db:"module"`
	Name     string `json:"name" db:"name"`
	Config   string `json:"config" db:"config"`
}

// Block is a block instance shown on the course page
type Block struct {
	ID        int    `json:"id" db:"id"`
	CourseID  int    `json:"course_id" db:"course_id"`
	BlockName string `json:"block_name" db:"block_name"`
	Region    string `json:"region" db:"region"`
	Weight    int    `json:"weight" db:"weight"`
	Config    string `json:"config" db:"config"`
}

// Filter is a per-course text filter setting
type Filter struct {
	ID       int    `json:"id" db:"id"`
	CourseID int    `json:"course_id" db:"course_id"`
	Filter   string `json:"filter" db:"filter"`
	Active   int    `json:"active" db:"active"`
}

// EnrolmentInstance is one configured enrolment method of a course
type EnrolmentInstance struct {
	ID         int    `json:"id" db:"id"`
	CourseID   int    `json:"course_id" db:"course_id"`
	Enrol      string `json:"enrol" db:"enrol"`
	Status     int    `json:"status" db:"status"`
	SortOrder  int    `json:"sortorder" db:"sortorder"`
	RoleID     int    `json:"roleid" db:"roleid"`
	Name       string `json:"name" db:"name"`
	CustomInt1 int    `json:"customint1" db:"customint1"`
	CustomText string `json:"customtext1" db:"customtext1"`
}

// CustomFieldData is a course custom field value
type CustomFieldData struct {
	ID       int    `json:"id" db:"id"`
	CourseID int    `json:"course_id" db:"course_id"`
	FieldID  int    `json:"field_id" db:"field_id"`
	Data     string `json:"data" db:"data"`
}

// CourseContent is the structural content copied between courses
type CourseContent struct {
	Activities []Activity `json:"activities,omitempty"`
	Blocks     []Block    `json:"blocks,omitempty"`
	Filters    []Filter   `json:"filters,omitempty"`
}
