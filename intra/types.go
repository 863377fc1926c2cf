// Package intra is a read-only client for the 42 Intra v2 REST API:
// fetch one user profile by login, or search logins by prefix. Every
// call carries a bearer token obtained from the session manager.
package intra

// Project participation status vocabulary used by the API.
const (
	StatusFinished        = "finished"
	StatusInProgress      = "in_progress"
	StatusSearchingAGroup = "searching_a_group"
	StatusCreatingGroup   = "creating_group"
)

// User is one profile as returned by /v2/users. Fetched fresh per
// request, never cached or mutated.
type User struct {
	ID              int           `json:"id"`
	Login           string        `json:"login"`
	Email           string        `json:"email"`
	FirstName       string        `json:"first_name"`
	LastName        string        `json:"last_name"`
	UsualFullName   string        `json:"usual_full_name"`
	Phone           string        `json:"phone"`
	DisplayName     string        `json:"displayname"`
	Image           Image         `json:"image"`
	Location        string        `json:"location"`
	Wallet          int           `json:"wallet"`
	CorrectionPoint int           `json:"correction_point"`
	PoolMonth       string        `json:"pool_month"`
	PoolYear        string        `json:"pool_year"`
	CursusUsers     []CursusUser  `json:"cursus_users"`
	ProjectsUsers   []ProjectUser `json:"projects_users"`
	Campus          []Campus      `json:"campus"`
}

// Image holds the avatar references in several resolutions; any of them
// may be empty.
type Image struct {
	Link     string        `json:"link"`
	Versions ImageVersions `json:"versions"`
}

// ImageVersions are the resolution variants of the avatar.
type ImageVersions struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
	Small  string `json:"small"`
	Micro  string `json:"micro"`
}

// AvatarURL returns the preferred avatar reference: the small version,
// falling back to the primary link, falling back to empty (no image).
func (u *User) AvatarURL() string {
	if u.Image.Versions.Small != "" {
		return u.Image.Versions.Small
	}
	return u.Image.Link
}

// CursusUser is one cursus enrollment.
type CursusUser struct {
	ID           int     `json:"id"`
	BeginAt      string  `json:"begin_at"`
	EndAt        string  `json:"end_at"`
	Grade        string  `json:"grade"`
	Level        float64 `json:"level"`
	Skills       []Skill `json:"skills"`
	CursusID     int     `json:"cursus_id"`
	HasCoalition bool    `json:"has_coalition"`
	Cursus       Cursus  `json:"cursus"`
}

// Cursus identifies the cursus itself.
type Cursus struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Skill is one skill level within a cursus.
type Skill struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// ProjectUser is one project participation, tagged with a status from
// the fixed vocabulary above.
type ProjectUser struct {
	ID            int     `json:"id"`
	Occurrence    int     `json:"occurrence"`
	FinalMark     *int    `json:"final_mark"`
	Status        string  `json:"status"`
	Validated     *bool   `json:"validated?"`
	CurrentTeamID *int    `json:"current_team_id"`
	Project       Project `json:"project"`
	CursusIDs     []int   `json:"cursus_ids"`
	MarkedAt      string  `json:"marked_at"`
	Marked        bool    `json:"marked"`
	RetriableAt   string  `json:"retriable_at"`
}

// Project identifies the project itself.
type Project struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID *int   `json:"parent_id"`
}

// Campus is one campus a user belongs to.
type Campus struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	TimeZone string `json:"time_zone"`
	Country  string `json:"country"`
	City     string `json:"city"`
}
