package auth

// Form actions understood by the orchestrator.
const (
	ActionLogin        = "login"
	ActionRegister     = "register"
	ActionLostPassword = "lostpassword"
	ActionResetPass    = "resetpass"
	ActionGoogle       = "google"
)

// ActionViews scopes the token guarding the rendered-view endpoint. The
// host embeds a token with this scope into the page that fetches views.
const ActionViews = "views"

// Submission carries one form post through the orchestrator. Fields not
// relevant to the action are left empty.
type Submission struct {
	Login           string // username or email for login / lostpassword
	Email           string
	Password        string
	PasswordConfirm string
	ResetKey        string
	RedirectTo      string

	// IDToken is the raw federated assertion on the google path.
	IDToken string

	// Defense fields present on every form.
	FormToken       string
	Honeypot        string
	CaptchaResponse string
}

// NoticeKind classifies a user-facing notice.
type NoticeKind string

const (
	NoticeError   NoticeKind = "error"
	NoticeSuccess NoticeKind = "success"
)

// Notice is the single user-facing message a terminal branch produces.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Result is the orchestrator's decision for one submission. On success
// Redirect names the destination; otherwise View names the form to
// re-render with the notice.
type Result struct {
	Success  bool   `json:"success"`
	Redirect string `json:"redirect,omitempty"`
	View     string `json:"view,omitempty"`
	Notice   Notice `json:"notice"`
}

func errorResult(view, message string) Result {
	return Result{
		Success: false,
		View:    view,
		Notice:  Notice{Kind: NoticeError, Message: message},
	}
}
