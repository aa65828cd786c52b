////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                   Configuration                                    //
//                                                                                    //
// The server core consumes its configuration as a plain value of pure data;          //
// reading and validating config files is the business of cmd/akashi, which           //
// flattens whatever viper parsed into this struct before the service starts.         //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package courtroom

import "time"

// AreaConfig describes one room as configured at startup.
type AreaConfig struct {
	Name       string
	Background string

	// Protected areas never grant CM to the first claimant; ownership can
	// only be handed out by a moderator.
	Protected bool
}

// Config carries every tunable the service core reads. Durations of zero
// disable the corresponding guard.
type Config struct {
	Name        string
	Description string
	MOTD        string

	MaxPlayers       int
	MaxMessageLength int

	// AuthMode is "simple" (one shared modpass, any authenticated session
	// passes every check) or "advanced" (per-user role masks from the user
	// store).
	AuthMode string
	ModPass  string

	// ICFloodguard arms per area after each broadcast IC message;
	// GlobalICFloodguard arms server-wide. While armed, validated IC
	// messages are dropped at the final broadcast step.
	ICFloodguard       time.Duration
	GlobalICFloodguard time.Duration

	// WTCEFloodguard is the minimum interval between judge-button (RT)
	// packets from one session.
	WTCEFloodguard time.Duration

	// OOC chat and music changes are limited per session to this many
	// events per second with the given burst.
	OOCPerSecond float64
	OOCBurst     int

	// MaxStatements caps the testimony recorder's statement log per area.
	MaxStatements int

	// Dice limits for /roll.
	DiceMaxValue int
	DiceMaxCount int

	Characters  []string
	Music       []string
	Backgrounds []string
	Areas       []AreaConfig

	// CharPasswords maps a character name to the password a session must
	// present (via PW, or the CC password field) to claim that slot.
	CharPasswords map[string]string

	// TextFilters are regular expressions whose IC matches are replaced
	// with a placeholder glyph.
	TextFilters []string

	// TestimonyDir is where /save_testimony records land.
	TestimonyDir string
}

// applyDefaults fills in the values a barely-populated config needs for the
// server to function at all.
func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "An Unnamed Server"
	}
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = 100
	}
	if c.MaxMessageLength <= 0 {
		c.MaxMessageLength = 256
	}
	if c.AuthMode == "" {
		c.AuthMode = "simple"
	}
	if c.MaxStatements <= 0 {
		c.MaxStatements = 50
	}
	if c.DiceMaxValue <= 0 {
		c.DiceMaxValue = 100
	}
	if c.DiceMaxCount <= 0 {
		c.DiceMaxCount = 20
	}
	if c.OOCPerSecond <= 0 {
		c.OOCPerSecond = 2
	}
	if c.OOCBurst <= 0 {
		c.OOCBurst = 5
	}
	if len(c.Areas) == 0 {
		c.Areas = []AreaConfig{{Name: "Basement", Background: "default"}}
	}
}
