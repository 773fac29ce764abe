package application

// Principal identifies the authenticated caller of a service operation.
type Principal struct {
	UserID string
	Token  string
}

// RegisterParams carries the inputs for account creation.
type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
}

// LoginParams carries the inputs for credential authentication.
type LoginParams struct {
	Email    string
	Password string
}

// StartSessionParams carries the inputs for starting (or merging into) a
// focus session.
type StartSessionParams struct {
	AppIDs            []string
	ScheduledDuration int
	BreaksAllowed     *int
}

// EndSessionParams carries the inputs for ending a focus session.
type EndSessionParams struct {
	SessionID string
	Status    string
}

// ScheduleParams carries the inputs for creating or updating an app
// blocking schedule.
type ScheduleParams struct {
	AppID      string
	DaysOfWeek []int
	StartTime  string
	EndTime    string
	IsActive   *bool
}

// RecordUsageParams carries the inputs for a usage merge.
type RecordUsageParams struct {
	AppID           string
	Date            string
	DurationMinutes int
	SessionsCount   int
}

// ListUsageParams narrows a usage query.
type ListUsageParams struct {
	AppID     string
	Date      string
	StartDate string
	EndDate   string
	Limit     int
}

// CircleParams carries the inputs for creating or renaming a circle.
type CircleParams struct {
	Name string
}

// LinkAppParams carries the inputs for linking a catalog app to a user.
type LinkAppParams struct {
	AppID     string
	IsTracked *bool
	IsBlocked *bool
}

// UpdateLinkParams carries the inputs for a link flags update.
type UpdateLinkParams struct {
	LinkID    string
	IsTracked *bool
	IsBlocked *bool
}
