package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalTypeLowerCasesAndAliases(t *testing.T) {
	assert.Equal(t, TypeStreak3, CanonicalType("STREAK_3"))
	assert.Equal(t, TypeStreak3, CanonicalType("Streak_3"))
	assert.Equal(t, TypeStreak3, CanonicalType("streak3")) // legacy spelling
	assert.Equal(t, TypeSpeedDemon, CanonicalType(" SpeedDemon "))
	assert.Equal(t, AchievementType("popculture_master"), CanonicalType("Pop_Culture_Master"))

	// unknown keys still collapse case variants onto one storage key
	assert.Equal(t, CanonicalType("MYSTERY_BADGE"), CanonicalType("mystery_badge"))
}

func TestCategoryKeyCanonicalization(t *testing.T) {
	assert.Equal(t, "popculture", CategoryKey("pop culture"))
	assert.Equal(t, "popculture", CategoryKey("Pop Culture"))
	assert.Equal(t, "movies", CategoryKey("Films"))
	assert.Equal(t, "science", CategoryKey("  Science "))
	assert.Equal(t, "geography", CategoryKey("GEO"))
	// transliterated before slugging
	assert.Equal(t, "musica", CategoryKey("Música"))
	// unaliased multi-word names collapse their separators
	assert.Equal(t, "ancienthistory", CategoryKey("Ancient History"))
}

func TestMasteryTypePrefersAliasMappedKey(t *testing.T) {
	// both "pop culture" (alias → popculture) and a literal lowering exist in
	// principle; the alias-mapped registry key wins
	assert.Equal(t, AchievementType("popculture_master"), MasteryType("Pop Culture"))
	assert.Equal(t, AchievementType("science_master"), MasteryType("Science"))
	assert.Equal(t, AchievementType("movies_master"), MasteryType("Films"))

	// unregistered categories still produce a stable key
	assert.Equal(t, AchievementType("astronomy_master"), MasteryType("Astronomy"))
}

func TestDisplayInfoResolvesAliases(t *testing.T) {
	info, ok := DisplayInfo("STREAK_5")
	assert.True(t, ok)
	assert.Equal(t, "Unstoppable", info.Name)

	_, ok = DisplayInfo("not_a_badge")
	assert.False(t, ok)
}

func TestSetIconOverridesRegisteredTypeOnly(t *testing.T) {
	original, _ := DisplayInfo(TypePerfectRound)
	defer SetIcon(TypePerfectRound, original.Icon)

	assert.True(t, SetIcon("PERFECT_ROUND", "https://cdn.example/perfect.png"))
	info, _ := DisplayInfo(TypePerfectRound)
	assert.Equal(t, "https://cdn.example/perfect.png", info.Icon)

	assert.False(t, SetIcon("unknown_badge", "x"))
}

func TestIsRegisteredIsVerbatim(t *testing.T) {
	assert.True(t, IsRegistered("speed_demon"))
	assert.False(t, IsRegistered("SPEED_DEMON"))
}
