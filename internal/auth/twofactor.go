package auth

import (
	"github.com/pquerna/otp/totp"
)

// TOTPService RFC 6238 codes for authenticator apps
type TOTPService struct {
	Issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	if issuer == "" {
		issuer = "wadesk"
	}
	return &TOTPService{Issuer: issuer}
}

func (s *TOTPService) GenerateSecret(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

func (s *TOTPService) Validate(code, secret string) bool {
	if code == "" || secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}
