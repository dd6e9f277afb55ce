package sfdc

import "github.com/goliatone/go-account/social"

type userInfo struct {
	UserID            string `json:"user_id"`
	OrganizationID    string `json:"organization_id"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Email             string `json:"email"`
	EmailVerified     bool   `json:"email_verified"`
}

func mapProfile(info userInfo, raw map[string]any) *social.Profile {
	emails := []string{}
	if info.Email != "" {
		emails = append(emails, info.Email)
	}
	if info.PreferredUsername != "" && info.PreferredUsername != info.Email {
		emails = append(emails, info.PreferredUsername)
	}

	display := info.Name
	if display == "" {
		display = info.PreferredUsername
	}

	return &social.Profile{
		ID:          info.UserID,
		DisplayName: display,
		Emails:      emails,
		Raw:         raw,
	}
}
