package roster

import (
	"errors"
	"time"
	"unicode/utf8"

	"clan-manager/internal/apperr"
)

var ErrUserNotFound = errors.New("user not found")

const (
	maxNameChars     = 64
	maxLoadoutChars  = 4000
	maxKillsOrDeaths = 1_000_000
	maxItemCount     = 9999
)

type Stats struct {
	UserID      string `json:"user_id"`
	IngameName  string `json:"ingame_name"`
	DiscordName string `json:"discord_name"`
	Kills       int    `json:"kills"`
	Deaths      int    `json:"deaths"`
}

func (s Stats) Validate() error {
	if utf8.RuneCountInString(s.IngameName) > maxNameChars || utf8.RuneCountInString(s.DiscordName) > maxNameChars {
		return apperr.Validation("names must not exceed 64 characters")
	}
	if s.Kills < 0 || s.Deaths < 0 || s.Kills > maxKillsOrDeaths || s.Deaths > maxKillsOrDeaths {
		return apperr.Validation("kills and deaths must be between 0 and 1000000")
	}
	return nil
}

type Equipment struct {
	UserID         string `json:"user_id"`
	Weapons        string `json:"weapons"`
	Armors         string `json:"armors"`
	ArtifactBuilds string `json:"artifact_builds"`
	ArtifactImage  string `json:"artifact_image"`
}

func (e Equipment) Validate() error {
	for _, field := range []string{e.Weapons, e.Armors, e.ArtifactBuilds} {
		if utf8.RuneCountInString(field) > maxLoadoutChars {
			return apperr.Validation("equipment fields must not exceed 4000 characters")
		}
	}
	return nil
}

// Consumables is a member's inventory. Counts are per item; the two bonus
// fields only say whether the bonus is held.
type Consumables struct {
	UserID string `json:"user_id"`

	NadePlantain int `json:"nade_plantain"`
	NadeNapalm   int `json:"nade_napalm"`
	NadeThunder  int `json:"nade_thunder"`
	NadeFrost    int `json:"nade_frost"`
	NadeTarmac   int `json:"nade_tarmac"`
	NadeSickness int `json:"nade_sickness"`
	NadeStinky   int `json:"nade_stinky"`

	EnhSolyanka    int `json:"enh_solyanka"`
	EnhGarlicSoup  int `json:"enh_garlic_soup"`
	EnhPeaSoup     int `json:"enh_pea_soup"`
	EnhLingonberry int `json:"enh_lingonberry"`
	EnhFrosty      int `json:"enh_frosty"`
	EnhAlcobull    int `json:"enh_alcobull"`
	EnhGeyserVodka int `json:"enh_geyser_vodka"`

	MobGrog               int `json:"mob_grog"`
	MobStrengthStimulator int `json:"mob_strength_stimulator"`
	MobNeurotonic         int `json:"mob_neurotonic"`
	MobBattery            int `json:"mob_battery"`
	MobSalt               int `json:"mob_salt"`
	MobAtlas              int `json:"mob_atlas"`

	ShortPainkiller  int `json:"short_painkiller"`
	ShortSchizoyorsh int `json:"short_schizoyorsh"`
	ShortMorphine    int `json:"short_morphine"`
	ShortEpinephrine int `json:"short_epinephrine"`

	BonusStomp  bool `json:"bonus_stomp"`
	BonusStrike bool `json:"bonus_strike"`
}

var consumableColumns = []string{
	"nade_plantain", "nade_napalm", "nade_thunder", "nade_frost",
	"nade_tarmac", "nade_sickness", "nade_stinky",
	"enh_solyanka", "enh_garlic_soup", "enh_pea_soup", "enh_lingonberry",
	"enh_frosty", "enh_alcobull", "enh_geyser_vodka",
	"mob_grog", "mob_strength_stimulator", "mob_neurotonic", "mob_battery",
	"mob_salt", "mob_atlas",
	"short_painkiller", "short_schizoyorsh", "short_morphine", "short_epinephrine",
	"bonus_stomp", "bonus_strike",
}

// fields returns pointers in consumableColumns order.
func (c *Consumables) fields() []any {
	return []any{
		&c.NadePlantain, &c.NadeNapalm, &c.NadeThunder, &c.NadeFrost,
		&c.NadeTarmac, &c.NadeSickness, &c.NadeStinky,
		&c.EnhSolyanka, &c.EnhGarlicSoup, &c.EnhPeaSoup, &c.EnhLingonberry,
		&c.EnhFrosty, &c.EnhAlcobull, &c.EnhGeyserVodka,
		&c.MobGrog, &c.MobStrengthStimulator, &c.MobNeurotonic, &c.MobBattery,
		&c.MobSalt, &c.MobAtlas,
		&c.ShortPainkiller, &c.ShortSchizoyorsh, &c.ShortMorphine, &c.ShortEpinephrine,
		&c.BonusStomp, &c.BonusStrike,
	}
}

func (c Consumables) values() []any {
	ptrs := c.fields()
	values := make([]any, len(ptrs))
	for i, ptr := range ptrs {
		switch v := ptr.(type) {
		case *int:
			values[i] = *v
		case *bool:
			values[i] = *v
		}
	}
	return values
}

func (c Consumables) Validate() error {
	for _, ptr := range c.fields() {
		if count, ok := ptr.(*int); ok && (*count < 0 || *count > maxItemCount) {
			return apperr.Validation("item counts must be between 0 and 9999")
		}
	}
	return nil
}

// MemberOverview is one row of the admin member list.
type MemberOverview struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Role        string      `json:"role"`
	CreatedAt   time.Time   `json:"created_at"`
	Stats       Stats       `json:"stats"`
	Equipment   Equipment   `json:"equipment"`
	Consumables Consumables `json:"consumables"`
}
