package api

import (
	"regexp"
	"unicode/utf8"

	"github.com/forcessl/forcessl/internal/database/models"
)

// maxTitleLen is the maximum length of a post title.
const maxTitleLen = 200

// maxSlugLen is the maximum length of a post slug.
const maxSlugLen = 200

// maxExcerptLen is the maximum length of a post excerpt.
const maxExcerptLen = 1000

// maxContentLen is the maximum length of post content (512 KB).
const maxContentLen = 512 * 1024

// maxUsernameLen is the maximum length of a username.
const maxUsernameLen = 60

// maxPasswordLen is the maximum length of a password.
const maxPasswordLen = 256

// slugRe validates slugs: lower-case letters, digits and single dashes.
var slugRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// validateStringLen checks that a string does not exceed maxLen characters.
// Returns an error message if invalid, empty string if OK.
func validateStringLen(field, value string, maxLen int) string {
	if utf8.RuneCountInString(value) > maxLen {
		return field + " exceeds maximum length"
	}
	return ""
}

// validateRequiredStringLen checks that a non-empty string does not exceed maxLen characters.
func validateRequiredStringLen(field, value string, maxLen int) string {
	if value == "" {
		return field + " is required"
	}
	return validateStringLen(field, value, maxLen)
}

// validateSlug checks an optional slug.
func validateSlug(field, value string) string {
	if value == "" {
		return ""
	}
	if msg := validateStringLen(field, value, maxSlugLen); msg != "" {
		return msg
	}
	if !slugRe.MatchString(value) {
		return field + " must contain only lower-case letters, digits and dashes"
	}
	return ""
}

// validatePostStatus checks an optional post status.
func validatePostStatus(field, value string) string {
	switch value {
	case "", models.PostStatusPublish, models.PostStatusDraft, models.PostStatusPrivate:
		return ""
	}
	return field + " is not one of publish, draft, private"
}

// validatePostRequest validates a create-post body.
func validatePostRequest(req postRequest) string {
	if msg := validateRequiredStringLen("title", req.Title, maxTitleLen); msg != "" {
		return msg
	}
	if msg := validateStringLen("content", req.Content, maxContentLen); msg != "" {
		return msg
	}
	if msg := validateStringLen("excerpt", req.Excerpt, maxExcerptLen); msg != "" {
		return msg
	}
	if msg := validateSlug("slug", req.Slug); msg != "" {
		return msg
	}
	return validatePostStatus("status", req.Status)
}

// validateTokenRequest validates a token request body.
func validateTokenRequest(req tokenRequest) string {
	if msg := validateRequiredStringLen("username", req.Username, maxUsernameLen); msg != "" {
		return msg
	}
	return validateRequiredStringLen("password", req.Password, maxPasswordLen)
}
