package domain

import "strings"

// PlatformProfile описывает поправочные коэффициенты платформы.
type PlatformProfile struct {
	Platform         Platform
	Name             string
	ImpactMultiplier float64
	ReachModifier    float64
	// MaxReplyLength — ограничение длины ответа на платформе, 0 — без ограничений.
	MaxReplyLength int
}

var profiles = map[Platform]PlatformProfile{
	PlatformTwitter: {
		Platform:         PlatformTwitter,
		Name:             "Twitter",
		ImpactMultiplier: 1.1,
		ReachModifier:    1.1,
		MaxReplyLength:   280,
	},
	PlatformX: {
		Platform:         PlatformX,
		Name:             "X",
		ImpactMultiplier: 1.1,
		ReachModifier:    1.1,
		MaxReplyLength:   280,
	},
	PlatformInstagram: {
		Platform:         PlatformInstagram,
		Name:             "Instagram",
		ImpactMultiplier: 1.0,
		ReachModifier:    1.0,
		MaxReplyLength:   2200,
	},
	PlatformFacebook: {
		Platform:         PlatformFacebook,
		Name:             "Facebook",
		ImpactMultiplier: 1.0,
		ReachModifier:    0.9,
		MaxReplyLength:   8000,
	},
	PlatformLinkedIn: {
		Platform:         PlatformLinkedIn,
		Name:             "LinkedIn",
		ImpactMultiplier: 1.1,
		ReachModifier:    0.8,
		MaxReplyLength:   1250,
	},
	PlatformTikTok: {
		Platform:         PlatformTikTok,
		Name:             "TikTok",
		ImpactMultiplier: 1.2,
		ReachModifier:    1.2,
		MaxReplyLength:   150,
	},
	PlatformYouTube: {
		Platform:         PlatformYouTube,
		Name:             "YouTube",
		ImpactMultiplier: 1.0,
		ReachModifier:    1.0,
		MaxReplyLength:   10000,
	},
	PlatformReddit: {
		Platform:         PlatformReddit,
		Name:             "Reddit",
		ImpactMultiplier: 0.9,
		ReachModifier:    0.9,
		MaxReplyLength:   10000,
	},
	PlatformTelegram: {
		Platform:         PlatformTelegram,
		Name:             "Telegram",
		ImpactMultiplier: 0.9,
		ReachModifier:    0.8,
		MaxReplyLength:   4096,
	},
}

var defaultProfile = PlatformProfile{
	Name:             "Unknown",
	ImpactMultiplier: 1.0,
	ReachModifier:    1.0,
}

// NormalizePlatform приводит идентификатор платформы к нижнему регистру.
func NormalizePlatform(p Platform) Platform {
	return Platform(strings.ToLower(strings.TrimSpace(string(p))))
}

// ProfileForPlatform возвращает профиль платформы или нейтральный профиль.
func ProfileForPlatform(p Platform) PlatformProfile {
	normalized := NormalizePlatform(p)
	if profile, ok := profiles[normalized]; ok {
		return profile
	}
	profile := defaultProfile
	profile.Platform = normalized
	return profile
}

// Profile возвращает профиль платформы события.
func (e SocialEvent) Profile() PlatformProfile {
	return ProfileForPlatform(e.Platform)
}
