package backup

// Backup setting names understood by the engine
const (
	SettingUsers           = "users"
	SettingRoleAssignments = "role_assignments"
	SettingActivities      = "activities"
	SettingBlocks          = "blocks"
	SettingFilters         = "filters"
	SettingComments        = "comments"
	SettingCompletionInfo  = "completion_information"
	SettingLogs            = "logs"
	SettingHistories       = "histories"
)

// Restore plan settings that carry the new course identity
const (
	SettingCourseFullname  = "course_fullname"
	SettingCourseShortname = "course_shortname"
	SettingCourseIDNumber  = "course_idnumber"
	SettingCourseStartDate = "course_startdate"
)

// Settings selects what goes into a course archive
type Settings struct {
	Users           bool `json:"users"`
	RoleAssignments bool `json:"role_assignments"`
	Activities      bool `json:"activities"`
	Blocks          bool `json:"blocks"`
	Filters         bool `json:"filters"`
	Comments        bool `json:"comments"`
	CompletionInfo  bool `json:"completion_information"`
	Logs            bool `json:"logs"`
	Histories       bool `json:"histories"`
}

// TemplateSettings is the fixed configuration used for template archives:
// structure only, no user data
func TemplateSettings() Settings {
	return Settings{
		Users:           false,
		RoleAssignments: false,
		Activities:      true,
		Blocks:          true,
		Filters:         true,
		Comments:        false,
		CompletionInfo:  false,
		Logs:            false,
		Histories:       false,
	}
}

// AsMap returns the settings keyed by engine setting name
func (s Settings) AsMap() map[string]bool {
	return map[string]bool{
		SettingUsers:           s.Users,
		SettingRoleAssignments: s.RoleAssignments,
		SettingActivities:      s.Activities,
		SettingBlocks:          s.Blocks,
		SettingFilters:         s.Filters,
		SettingComments:        s.Comments,
		SettingCompletionInfo:  s.CompletionInfo,
		SettingLogs:            s.Logs,
		SettingHistories:       s.Histories,
	}
}
