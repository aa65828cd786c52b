////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                       akashi                                       //
//                                                                                    //
// Multiplayer courtroom-roleplay session server. Clients connect over raw            //
// TCP or WebSocket, speak the courtroom wire protocol, and are routed                //
// through the shared area state in the courtroom package.                            //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"

	"github.com/AttorneyOnline/akashi-sub000/courtroom"
)

func main() {
	app := Application{}
	if err := app.GetAppOptions(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
	app.Log.Infof("%s %s starting", courtroom.SoftwareName, courtroom.SoftwareVersion)

	if err := app.dbOpen(); err != nil {
		app.Log.Fatalf("database: %v", err)
	}
	defer app.dbClose()

	opts := courtroom.Options{
		Audit: courtroom.NewAuditLogger(app.Log),
	}
	if app.sqldb != nil {
		store := &dbStore{db: app.sqldb}
		opts.Bans = store
		opts.Users = store
	}
	server := courtroom.NewServer(app.cfg, app.Log, opts)

	listener, err := net.Listen("tcp", app.Endpoint)
	if err != nil {
		app.Log.Fatalf("unable to open incoming TCP endpoint %s: %v", app.Endpoint, err)
	}
	defer listener.Close()
	go func() {
		if err := server.Serve(listener); err != nil {
			app.Log.Errorf("accept loop ended: %v", err)
		}
	}()

	// The WebSocket endpoint rides on net/http; instrumentation, when
	// enabled, wraps the upgrade handler so every connection shows up as
	// a transaction.
	//
	// Set NEW_RELIC_APP_NAME and NEW_RELIC_LICENSE_KEY in the
	// environment for the agent.
	if app.WSEndpoint != "" {
		mux := http.NewServeMux()
		pattern, handler := "/", server.WSHandler()
		if app.Instrument {
			nrApp, err := newrelic.NewApplication(
				newrelic.ConfigAppName(courtroom.SoftwareName),
				newrelic.ConfigFromEnvironment(),
			)
			if err != nil {
				app.Log.Fatalf("unable to start instrumentation: %v", err)
			}
			defer nrApp.Shutdown(30 * time.Second)
			pattern, handler = newrelic.WrapHandle(nrApp, pattern, handler)
		}
		mux.Handle(pattern, handler)
		ws := &http.Server{Addr: app.WSEndpoint, Handler: mux}
		go func() {
			if err := ws.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				app.Log.Errorf("websocket endpoint ended: %v", err)
			}
		}()
		defer ws.Close()
	}

	sigChannel := make(chan os.Signal, 1)
	signal.Notify(sigChannel, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
	s := <-sigChannel
	app.Log.Infof("received signal %v; shutting down", s)
	server.Shutdown()
	app.Log.Info("server shut down")
}
