package token

import "github.com/jrsteele09/go-medassist-client/internal/errors"

const (
	keyOnboardingPrefix = "onboarding_skipped_"
	KeyTheme            = "theme"
)

// Preferences are per-device settings stored next to the credentials but outliving a session.
type Preferences struct {
	repo Repo
}

func NewPreferences(repo Repo) (*Preferences, error) {
	if repo == nil {
		return nil, errors.New("[NewPreferences] repo is required")
	}
	return &Preferences{repo: repo}, nil
}

func (p *Preferences) OnboardingSkipped(userID string) bool {
	v, ok, err := p.repo.Get(keyOnboardingPrefix + userID)
	return err == nil && ok && v == "true"
}

func (p *Preferences) SetOnboardingSkipped(userID string, skipped bool) error {
	if userID == "" {
		return errors.New("[Preferences.SetOnboardingSkipped] user id is required")
	}
	if !skipped {
		return p.repo.Delete(keyOnboardingPrefix + userID)
	}
	return p.repo.Set(keyOnboardingPrefix+userID, "true")
}

// Theme returns "light" unless "dark" was saved.
func (p *Preferences) Theme() string {
	v, ok, err := p.repo.Get(KeyTheme)
	if err != nil || !ok || v != "dark" {
		return "light"
	}
	return v
}

func (p *Preferences) SetTheme(theme string) error {
	if theme != "light" && theme != "dark" {
		return errors.Wrapf(errors.ErrInternal, "[Preferences.SetTheme] unknown theme %q", theme)
	}
	return p.repo.Set(KeyTheme, theme)
}
