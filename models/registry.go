package models

import (
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AchievementType is the closed set of badge keys. Values are the canonical
// storage form: lower-case, underscore-separated.
type AchievementType string

const (
	TypeStreak3           AchievementType = "streak_3"
	TypeStreak5           AchievementType = "streak_5"
	TypeSpeedDemon        AchievementType = "speed_demon"
	TypePerfectRound      AchievementType = "perfect_round"
	TypeCategoryCollector AchievementType = "category_collector"
	TypeDailyStreak7      AchievementType = "daily_streak_7"
	TypeWalletVerified    AchievementType = "wallet_verified"
)

// AchievementInfo is the static display metadata handed to the notification
// service alongside an unlock.
type AchievementInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Category    string `json:"category"`
}

var lowerCaser = cases.Lower(language.Und)

// registryMu guards icon overrides set by the admin upload endpoint; the rest
// of the registry is static config.
var registryMu sync.RWMutex

// Registry maps every achievement type to its display metadata. Consumed by
// the notification worker and by reconciliation for canonical-type
// preference.
var Registry = map[AchievementType]AchievementInfo{
	TypeStreak3:           {Name: "On a Roll", Description: "Answer 3 questions correctly in a row", Icon: "🔥", Category: "streaks"},
	TypeStreak5:           {Name: "Unstoppable", Description: "Answer 5 questions correctly in a row", Icon: "⚡", Category: "streaks"},
	TypeSpeedDemon:        {Name: "Speed Demon", Description: "Answer correctly in under 2 seconds", Icon: "🏎️", Category: "speed"},
	TypePerfectRound:      {Name: "Perfect Round", Description: "Complete a full round without a single miss", Icon: "💯", Category: "sessions"},
	TypeCategoryCollector: {Name: "Category Collector", Description: "Score a correct answer in 11 different categories", Icon: "🗂️", Category: "mastery"},
	TypeDailyStreak7:      {Name: "Week Warrior", Description: "Play 7 days in a row", Icon: "📅", Category: "streaks"},
	TypeWalletVerified:    {Name: "Verified Player", Description: "Verify your wallet", Icon: "✅", Category: "account"},

	"science_master":    {Name: "Science Master", Description: "50 correct science answers", Icon: "🔬", Category: "mastery"},
	"history_master":    {Name: "History Master", Description: "50 correct history answers", Icon: "🏛️", Category: "mastery"},
	"geography_master":  {Name: "Geography Master", Description: "50 correct geography answers", Icon: "🌍", Category: "mastery"},
	"sports_master":     {Name: "Sports Master", Description: "50 correct sports answers", Icon: "🏅", Category: "mastery"},
	"movies_master":     {Name: "Movies Master", Description: "50 correct movie answers", Icon: "🎬", Category: "mastery"},
	"music_master":      {Name: "Music Master", Description: "50 correct music answers", Icon: "🎵", Category: "mastery"},
	"popculture_master": {Name: "Pop Culture Master", Description: "50 correct pop culture answers", Icon: "🌟", Category: "mastery"},
	"technology_master": {Name: "Technology Master", Description: "50 correct technology answers", Icon: "💻", Category: "mastery"},
	"literature_master": {Name: "Literature Master", Description: "50 correct literature answers", Icon: "📚", Category: "mastery"},
	"food_master":       {Name: "Food Master", Description: "50 correct food answers", Icon: "🍜", Category: "mastery"},
	"animals_master":    {Name: "Animals Master", Description: "50 correct animal answers", Icon: "🦊", Category: "mastery"},
	"art_master":        {Name: "Art Master", Description: "50 correct art answers", Icon: "🎨", Category: "mastery"},
}

// typeAliases maps legacy spellings seen in stored rows to canonical types.
var typeAliases = map[string]AchievementType{
	"streak3":           TypeStreak3,
	"streak5":           TypeStreak5,
	"speeddemon":        TypeSpeedDemon,
	"perfectround":      TypePerfectRound,
	"categorycollector": TypeCategoryCollector,
	"dailystreak7":      TypeDailyStreak7,
	"walletverified":    TypeWalletVerified,
	"pop_culture_master": "popculture_master",
}

// categoryAliases maps normalized category names to their canonical keys.
var categoryAliases = map[string]string{
	"pop-culture":       "popculture",
	"pop-culture-trivia": "popculture",
	"films":             "movies",
	"film":              "movies",
	"tv-film":           "movies",
	"geo":               "geography",
	"tech":              "technology",
	"books":             "literature",
	"food-drink":        "food",
	"nature":            "animals",
}

// CanonicalType normalizes a free-form achievement type string to its
// canonical storage form: lower-case with alias mapping. Unknown strings come
// back lower-cased so case variants of the same unknown key still collide.
func CanonicalType(raw string) AchievementType {
	key := lowerCaser.String(strings.TrimSpace(raw))
	if t, ok := typeAliases[key]; ok {
		return t
	}
	return AchievementType(key)
}

// CategoryKey canonicalizes a category name: transliterate, slugify, then
// alias-map ("Pop Culture" → "popculture").
func CategoryKey(raw string) string {
	key := slug.Make(unidecode.Unidecode(raw))
	if alias, ok := categoryAliases[key]; ok {
		return alias
	}
	return strings.ReplaceAll(key, "-", "")
}

// MasteryType returns the achievement type for a category mastery badge.
// When both the alias-mapped key and the literal key resolve to a registered
// entry, the alias-mapped one wins.
func MasteryType(rawCategory string) AchievementType {
	aliased := AchievementType(CategoryKey(rawCategory) + "_master")
	if IsRegistered(string(aliased)) {
		return aliased
	}
	literal := AchievementType(lowerCaser.String(strings.TrimSpace(rawCategory)) + "_master")
	if IsRegistered(string(literal)) {
		return literal
	}
	return aliased
}

// DisplayInfo looks up registry metadata for a type, resolving aliases first.
func DisplayInfo(t AchievementType) (AchievementInfo, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := Registry[CanonicalType(string(t))]
	return info, ok
}

// IsRegistered reports whether the given string is, verbatim, a registry key.
// Reconciliation uses this to pick the canonical spelling among duplicates.
func IsRegistered(raw string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := Registry[AchievementType(raw)]
	return ok
}

// SetIcon overrides the icon for a registered type, e.g. after an asset
// upload. Unknown types are ignored.
func SetIcon(t AchievementType, iconURL string) bool {
	registryMu.Lock()
	defer registryMu.Unlock()
	canonical := CanonicalType(string(t))
	info, ok := Registry[canonical]
	if !ok {
		return false
	}
	info.Icon = iconURL
	Registry[canonical] = info
	return true
}
