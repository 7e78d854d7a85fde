package core

// Roles with their own settings document.
const (
	RoleAdmin    = "admin"
	RoleAuditor  = "auditor"
	RoleEmployee = "employee"
)

// Roles lists the known roles.
var Roles = []string{RoleAdmin, RoleAuditor, RoleEmployee}

// IsRole reports whether r is a known role.
func IsRole(r string) bool {
	for _, v := range Roles {
		if v == r {
			return true
		}
	}
	return false
}

type (
	Profile struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	}

	Organisation struct {
		Name     string `json:"name"`
		Industry string `json:"industry"`
		LogoPath string `json:"logoPath,omitempty"`
	}

	Contact struct {
		Info string `json:"info,omitempty"`
	}

	Help struct {
		Content string `json:"content,omitempty"`
	}

	AISettings struct {
		Enabled           bool    `json:"enabled"`
		ResponseTone      string  `json:"responseTone"`
		AccuracyThreshold float64 `json:"accuracyThreshold"`
	}

	Notifications struct {
		Email         bool `json:"email"`
		Push          bool `json:"push"`
		ExpenseAlerts bool `json:"expenseAlerts"`
		WeeklyReports bool `json:"weeklyReports"`
	}

	Preferences struct {
		Theme string `json:"theme"`
	}

	// Settings is the role-scoped settings document.
	Settings struct {
		ID            int64         `json:"id"`
		Role          string        `json:"role"`
		UserID        string        `json:"userId"`
		Profile       Profile       `json:"profile"`
		Organisation  Organisation  `json:"organisation"`
		Contact       *Contact      `json:"contact,omitempty"`
		Help          *Help         `json:"help,omitempty"`
		AI            AISettings    `json:"ai"`
		Notifications Notifications `json:"notifications"`
		Preferences   Preferences   `json:"preferences"`
		CreatedAt     string        `json:"createdAt"`
		UpdatedAt     string        `json:"updatedAt"`
	}

	// SettingsPatch is a partial update; nil sections are left untouched.
	SettingsPatch struct {
		Profile       *Profile       `json:"profile,omitempty"`
		Organisation  *Organisation  `json:"organisation,omitempty"`
		Contact       *Contact       `json:"contact,omitempty"`
		Help          *Help          `json:"help,omitempty"`
		AI            *AISettings    `json:"ai,omitempty"`
		Notifications *Notifications `json:"notifications,omitempty"`
		Preferences   *Preferences   `json:"preferences,omitempty"`
	}
)

// DefaultSettings returns the document a role starts with.
func DefaultSettings(role string) Settings {
	return Settings{
		Role:         role,
		UserID:       role + "-1",
		Profile:      Profile{DisplayName: role, Email: role + "@example.com"},
		Organisation: Organisation{Name: "Transparency AI", Industry: "Finance"},
		AI:           AISettings{Enabled: true, ResponseTone: "Professional", AccuracyThreshold: 85},
		Notifications: Notifications{
			Email:         true,
			ExpenseAlerts: true,
			WeeklyReports: true,
		},
		Preferences: Preferences{Theme: "dark"},
	}
}

// Apply merges the non-nil sections of p into s. An empty logo path in the
// patch keeps the current one.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Profile != nil {
		s.Profile = *p.Profile
	}
	if p.Organisation != nil {
		logo := s.Organisation.LogoPath
		s.Organisation = *p.Organisation
		if s.Organisation.LogoPath == "" {
			s.Organisation.LogoPath = logo
		}
	}
	if p.Contact != nil {
		c := *p.Contact
		s.Contact = &c
	}
	if p.Help != nil {
		h := *p.Help
		s.Help = &h
	}
	if p.AI != nil {
		s.AI = *p.AI
	}
	if p.Notifications != nil {
		s.Notifications = *p.Notifications
	}
	if p.Preferences != nil {
		s.Preferences = *p.Preferences
	}
	return s
}
