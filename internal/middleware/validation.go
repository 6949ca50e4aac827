package middleware

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/model"
)

const (
	maxMessageBytes = 100000
	maxNameRunes    = 50
	maxTitleRunes   = 255
	maxAvatarURL    = 500
	minPassword     = 6
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,50}$`)

var themes = map[string]bool{"light": true, "dark": true, "system": true}

type fieldErrors []apperr.FieldError

func (f *fieldErrors) add(field, message string) {
	*f = append(*f, apperr.FieldError{Field: field, Message: message})
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return apperr.Validation(apperr.CodeValidationFailed, "invalid data", f...)
}

// ValidateRegister checks a registration request.
func ValidateRegister(req *model.RegisterRequest) error {
	var errs fieldErrors
	if !usernamePattern.MatchString(req.Username) {
		errs.add("username", "username must be 3 to 50 letters, digits or underscores")
	}
	if !validEmail(req.Email) {
		errs.add("email", "invalid email")
	}
	if msg := passwordProblem(req.Password); msg != "" {
		errs.add("password", msg)
	}
	checkName(&errs, "firstName", req.FirstName)
	checkName(&errs, "lastName", req.LastName)
	return errs.err()
}

// ValidateLogin checks a login request.
func ValidateLogin(req *model.LoginRequest) error {
	var errs fieldErrors
	if !validEmail(req.Email) {
		errs.add("email", "invalid email")
	}
	if req.Password == "" {
		errs.add("password", "password is required")
	}
	return errs.err()
}

// ValidateProfile checks a profile update.
func ValidateProfile(req *model.UpdateProfileRequest) error {
	var errs fieldErrors
	checkName(&errs, "firstName", req.FirstName)
	checkName(&errs, "lastName", req.LastName)
	if req.AvatarURL != nil && strings.TrimSpace(*req.AvatarURL) != "" && !validURL(*req.AvatarURL) {
		errs.add("avatarUrl", "avatar must be an http or https URL")
	}
	return errs.err()
}

// ValidateChangePassword checks a password change.
func ValidateChangePassword(req *model.ChangePasswordRequest) error {
	var errs fieldErrors
	if req.CurrentPassword == "" {
		errs.add("currentPassword", "current password is required")
	}
	if msg := passwordProblem(req.NewPassword); msg != "" {
		errs.add("newPassword", msg)
	}
	return errs.err()
}

// ValidatePreferences checks a preferences update.
func ValidatePreferences(req *model.UpdatePreferencesRequest) error {
	var errs fieldErrors
	if req.Theme != nil && !themes[*req.Theme] {
		errs.add("theme", "theme must be light, dark or system")
	}
	if req.Language != nil {
		n := utf8.RuneCountInString(*req.Language)
		if n < 2 || n > 10 {
			errs.add("language", "language must be 2 to 10 characters")
		}
	}
	return errs.err()
}

// ValidateMessageContent bounds message size. Blank messages are rejected by
// the message service.
func ValidateMessageContent(content string) error {
	var errs fieldErrors
	if len(content) > maxMessageBytes {
		errs.add("message", "message exceeds maximum length")
	} else if !utf8.ValidString(content) {
		errs.add("message", "message must be valid UTF-8")
	}
	return errs.err()
}

// ValidateTitle validates a conversation title.
func ValidateTitle(title string) error {
	var errs fieldErrors
	if !utf8.ValidString(title) {
		errs.add("title", "title must be valid UTF-8")
	} else if utf8.RuneCountInString(strings.TrimSpace(title)) > maxTitleRunes {
		errs.add("title", "title must be at most 255 characters")
	}
	return errs.err()
}

func validEmail(email string) bool {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}

func passwordProblem(password string) string {
	if len(password) < minPassword {
		return "password must be at least 6 characters"
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "password must contain a lower-case letter, an upper-case letter and a digit"
	}
	return ""
}

func checkName(errs *fieldErrors, field string, name *string) {
	if name != nil && utf8.RuneCountInString(*name) > maxNameRunes {
		errs.add(field, "must be at most 50 characters")
	}
}

func validURL(raw string) bool {
	if len(raw) > maxAvatarURL {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
