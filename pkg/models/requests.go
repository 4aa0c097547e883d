package models

// Request bodies of the HTTP API. Dates are "2006-01-02" or RFC 3339 strings.

type CreateTaskRequest struct {
	Title                string   `json:"title"`
	Description          string   `json:"description,omitempty"`
	AssignedUserID       string   `json:"assigned_user_id"`
	TeamID               string   `json:"team_id"`
	Priority             Priority `json:"priority,omitempty"`
	StartDate            string   `json:"start_date,omitempty"`
	Deadline             string   `json:"deadline"`
	AllowsFileUpload     bool     `json:"allows_file_upload"`
	AllowsTextSubmission bool     `json:"allows_text_submission"`
	MaxFiles             int      `json:"max_files"`
}

// UpdateTaskRequest is a partial update; nil fields are left unchanged.
type UpdateTaskRequest struct {
	Title                *string   `json:"title,omitempty"`
	Description          *string   `json:"description,omitempty"`
	Priority             *Priority `json:"priority,omitempty"`
	StartDate            *string   `json:"start_date,omitempty"`
	Deadline             *string   `json:"deadline,omitempty"`
	AllowsFileUpload     *bool     `json:"allows_file_upload,omitempty"`
	AllowsTextSubmission *bool     `json:"allows_text_submission,omitempty"`
	MaxFiles             *int      `json:"max_files,omitempty"`
}

type AcceptRequest struct {
	EstimatedTimeToComplete string `json:"estimated_time_to_complete"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type ExtensionRequest struct {
	Reason            string `json:"reason"`
	RequestedDeadline string `json:"requested_deadline"`
}

// ApproveExtensionRequest overrides the requested deadline when Deadline is set.
type ApproveExtensionRequest struct {
	Deadline string `json:"deadline,omitempty"`
}

type EditRequest struct {
	Reason  string `json:"reason"`
	Details string `json:"details"`
}

type ReassignRequest struct {
	AssignedUserID string `json:"assigned_user_id"`
	Deadline       string `json:"deadline,omitempty"`
}

type TextRequest struct {
	Text string `json:"text"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
