// Package config loads the read-only system configuration document at
// D/config.json: worker/consumer capacity limits, the sample-per-pixel
// budget list, the CI include-file whitelist, and the mailer's SMTP
// settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// System is the immutable, fully-parsed form of D/config.json, plus the
// two www-ownership settings that are process environment rather than
// config-file state (FBKSD_WWW_USER/FBKSD_WWW_GROUP). It is read once
// at process start; there is no hot-reload or env-layering of the
// config.json fields themselves — config.json is a single authoritative
// document.
type System struct {
	MaxNumWorkspaces     int               `json:"max_num_workspaces"`
	UnpublishedDaysLimit int               `json:"unpublished_days_limit"`
	SPPs                 []int             `json:"spps"`
	Configs              map[string]string `json:"configs"` // alias -> container image
	MailerSMTPDomain     string            `json:"mailer_smtp_domain"`
	MailerEmailUser      string            `json:"mailer_email_user"`
	MailerEmailPassword  string            `json:"mailer_email_password"`
	MailerPollingRate    int               `json:"mailer_polling_rate"` // seconds
	MailerTimeout        int               `json:"mailer_timeout"`     // seconds

	// WWWUser and WWWGroup name the owner chown'd onto D/public at the
	// end of each public promotion, read from FBKSD_WWW_USER and
	// FBKSD_WWW_GROUP. Either may be blank, in which case the chown is
	// skipped — a deployment that never sets them serves the page as
	// whatever user runs the RPC server.
	WWWUser  string `json:"-"`
	WWWGroup string `json:"-"`
}

// Load parses the config document at path and overlays the two
// environment-sourced www-ownership fields.
func Load(path string) (*System, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var sys System
	if err := json.Unmarshal(data, &sys); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if sys.MaxNumWorkspaces <= 0 {
		return nil, fmt.Errorf("config: max_num_workspaces must be positive")
	}
	sys.WWWUser = os.Getenv("FBKSD_WWW_USER")
	sys.WWWGroup = os.Getenv("FBKSD_WWW_GROUP")
	return &sys, nil
}

// ImageForAlias resolves a CI include-file alias to its whitelisted
// container image, as referenced by pkg/ciconfig.
func (s *System) ImageForAlias(alias string) (string, bool) {
	img, ok := s.Configs[alias]
	return img, ok
}

// MailerTimeoutDuration is MailerTimeout as a time.Duration.
func (s *System) MailerTimeoutDuration() time.Duration {
	return time.Duration(s.MailerTimeout) * time.Second
}

// MailerPollingInterval is MailerPollingRate as a time.Duration.
func (s *System) MailerPollingInterval() time.Duration {
	return time.Duration(s.MailerPollingRate) * time.Second
}
