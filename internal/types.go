package internal

import "time"

// Session is an access-key/secret-key pair bound to an IAM user.
type Session struct {
	Principal string
	AccessKey string
	SecretKey string
	Region    string

	// Filled in by the STS identity check on login
	AccountID string
	Arn       string
	CreatedAt time.Time
}

// MaskedAccessKey returns the access key with everything but the last four
// characters hidden.
func (s *Session) MaskedAccessKey() string {
	if len(s.AccessKey) <= 4 {
		return "****"
	}
	return "****************" + s.AccessKey[len(s.AccessKey)-4:]
}
