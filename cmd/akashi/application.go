////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                     Application                                    //
//                                                                                    //
// Application holds the global settings and other context for the server             //
// process generally: command-line options, the parsed configuration file,            //
// the logger, and the opened database handle.                                        //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/AttorneyOnline/akashi-sub000/courtroom"
)

type Application struct {
	// Log is where all server output goes.
	Log *logrus.Logger

	// Endpoint is the "[host]:port" string which specifies where our
	// incoming TCP socket is listening.
	Endpoint string

	// WSEndpoint, if not empty, additionally serves the protocol over
	// WebSocket at this "[host]:port".
	WSEndpoint string

	// ConfigFile is the path of the configuration file we loaded.
	ConfigFile string

	// DatabaseName is the pathname for the sqlite database file holding
	// bans and moderator accounts.
	DatabaseName string

	// Instrument enables New Relic instrumentation of the WebSocket
	// endpoint. The agent itself is configured from the environment.
	Instrument bool

	cfg   courtroom.Config
	sqldb *sql.DB
}

//
// GetAppOptions configures the application by reading command-line options.
//
func (a *Application) GetAppOptions() error {
	var configFile = flag.String("config", "config/config.toml", "Load server configuration from named file path")
	var logFile = flag.String("log-file", "-", "Write log to given pathname (stderr if '-'); special % tokens allowed in path")
	var logLevel = flag.String("log-level", "info", "Log verbosity (debug, info, warn, error)")
	var endPoint = flag.String("endpoint", "", "Incoming TCP connection endpoint ([host]:port; overrides config)")
	var wsEndPoint = flag.String("ws-endpoint", "", "Incoming WebSocket endpoint ([host]:port; overrides config)")
	var sqlDbName = flag.String("sqlite", "", "Specify filename for sqlite database to use (overrides config)")
	var instrument = flag.Bool("instrument", false, "Enable New Relic instrumentation (configured from environment)")
	flag.Parse()

	a.Log = logrus.New()
	a.Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return fmt.Errorf("unknown log level %q: %v", *logLevel, err)
	}
	a.Log.SetLevel(level)

	if *logFile != "-" && *logFile != "" {
		path, err := a.FancyFileName(*logFile)
		if err != nil {
			return fmt.Errorf("unable to understand log file path \"%s\": %v", *logFile, err)
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("unable to open log file: %v", err)
		}
		a.Log.SetOutput(f)
	}

	a.ConfigFile = *configFile
	if err := a.loadConfig(); err != nil {
		return err
	}

	if *endPoint != "" {
		a.Endpoint = *endPoint
	}
	if a.Endpoint == "" {
		return fmt.Errorf("non-empty tcp [host]:port value required")
	}
	a.Log.Infof("configured to listen on \"%s\"", a.Endpoint)
	if *wsEndPoint != "" {
		a.WSEndpoint = *wsEndPoint
	}
	if a.WSEndpoint != "" {
		a.Log.Infof("serving WebSocket clients on \"%s\"", a.WSEndpoint)
	}

	if *sqlDbName != "" {
		a.DatabaseName = *sqlDbName
	}
	if a.DatabaseName == "" {
		a.Log.Warn("no database configured; bans and moderator accounts will not persist")
	} else {
		a.Log.Infof("using database \"%s\" for bans and accounts", a.DatabaseName)
	}

	a.Instrument = *instrument
	return nil
}

// loadConfig reads the configuration file into the service Config plus
// the process-level settings the core doesn't care about.
func (a *Application) loadConfig() error {
	v := viper.New()
	v.SetConfigFile(a.ConfigFile)
	v.SetDefault("server.name", "An Unnamed Server")
	v.SetDefault("server.endpoint", ":27016")
	v.SetDefault("server.auth", "simple")
	v.SetDefault("server.max_players", 100)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("unable to read configuration \"%s\": %v", a.ConfigFile, err)
	}

	a.Endpoint = v.GetString("server.endpoint")
	a.WSEndpoint = v.GetString("server.ws_endpoint")
	a.DatabaseName = v.GetString("server.database")

	a.cfg = courtroom.Config{
		Name:               v.GetString("server.name"),
		Description:        v.GetString("server.description"),
		MOTD:               v.GetString("server.motd"),
		MaxPlayers:         v.GetInt("server.max_players"),
		MaxMessageLength:   v.GetInt("server.max_message_length"),
		AuthMode:           v.GetString("server.auth"),
		ModPass:            v.GetString("server.modpass"),
		ICFloodguard:       v.GetDuration("server.ic_floodguard"),
		GlobalICFloodguard: v.GetDuration("server.global_ic_floodguard"),
		WTCEFloodguard:     v.GetDuration("server.wtce_floodguard"),
		OOCPerSecond:       v.GetFloat64("server.ooc_rate"),
		OOCBurst:           v.GetInt("server.ooc_burst"),
		MaxStatements:      v.GetInt("server.max_statements"),
		DiceMaxValue:       v.GetInt("dice.max_value"),
		DiceMaxCount:       v.GetInt("dice.max_count"),
		Characters:         v.GetStringSlice("lists.characters"),
		Music:              v.GetStringSlice("lists.music"),
		Backgrounds:        v.GetStringSlice("lists.backgrounds"),
		TextFilters:        v.GetStringSlice("lists.text_filters"),
		CharPasswords:      v.GetStringMapString("lists.character_passwords"),
		TestimonyDir:       v.GetString("server.testimony_dir"),
	}

	var areas []courtroom.AreaConfig
	if err := v.UnmarshalKey("areas", &areas); err != nil {
		return fmt.Errorf("unable to parse area list: %v", err)
	}
	a.cfg.Areas = areas

	a.Log.Infof("loaded configuration from \"%s\" (%d areas, %d characters, %d songs)",
		a.ConfigFile, len(areas), len(a.cfg.Characters), len(a.cfg.Music))
	return nil
}

//
// FancyFileName expands tokens found in the path string to allow the user
// to specify dynamically-named files at runtime. If there's a problem with
// the formatting, an error is returned along with the original path.
//
// The tokens which may appear in the path are strftime-style conversions
// such as %Y, %m, %d, and %H, plus %P for the process ID and %% for a
// literal % character.
//
func (a *Application) FancyFileName(path string) (string, error) {
	ss := strftime.NewSpecificationSet()

	if err := ss.Delete('n'); err != nil {
		return path, err
	}
	if err := ss.Delete('t'); err != nil {
		return path, err
	}
	if err := ss.Set('P', strftime.Verbatim(strconv.Itoa(os.Getpid()))); err != nil {
		return path, err
	}

	return strftime.Format(path, time.Now(),
		strftime.WithSpecificationSet(ss),
		strftime.WithUnixSeconds('s'),
		strftime.WithMilliseconds('L'),
	)
}
