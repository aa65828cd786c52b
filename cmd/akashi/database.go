////////////////////////////////////////////////////////////////////////////////////////
//                                                                                    //
//                                      Database                                      //
//                                                                                    //
// Database subsystem for the server. This stores the persistent data the             //
// server needs to maintain between sessions: ban records and moderator                //
// accounts. Area and session state is considered too ephemeral to pay the            //
// cost of constantly writing it out.                                                 //
//                                                                                    //
////////////////////////////////////////////////////////////////////////////////////////

package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"os"
	"time"

	"github.com/pkg/errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AttorneyOnline/akashi-sub000/acl"
	"github.com/AttorneyOnline/akashi-sub000/courtroom"
)

func (a *Application) dbOpen() error {
	var err error

	if a.DatabaseName == "" {
		a.sqldb = nil
		return nil
	}

	if _, err = os.Stat(a.DatabaseName); os.IsNotExist(err) {
		// database doesn't exist yet; create a new one

		a.Log.Infof("no existing sqlite3 database \"%s\" found--creating a new one", a.DatabaseName)
		a.sqldb, err = sql.Open("sqlite3", "file:"+a.DatabaseName)
		if err != nil {
			return errors.Wrapf(err, "unable to create sqlite3 database %s", a.DatabaseName)
		}

		_, err = a.sqldb.Exec(`
			create table bans (
				banid     integer primary key,
				ipid      text    not null,
				hwid      text    not null,
				reason    text    not null,
				moderator text    not null,
				until     integer not null
			);
			create table users (
				userid        integer primary key,
				username      text    not null unique,
				password_hash text    not null,
				permissions   integer not null
			);`)
		if err != nil {
			a.Log.Errorf("unable to create sqlite3 database %s contents: %v", a.DatabaseName, err)
			a.Log.Errorf("WARNING! %s may be in a corrupt state--fix or delete before running the server!", a.DatabaseName)
			return errors.Wrap(err, "creating database schema")
		}
		return nil
	}

	a.sqldb, err = sql.Open("sqlite3", "file:"+a.DatabaseName)
	return errors.Wrapf(err, "unable to open sqlite3 database %s", a.DatabaseName)
}

func (a *Application) dbClose() {
	if a.sqldb != nil {
		a.sqldb.Close()
	}
}

// dbStore adapts the database handle to the storage interfaces the
// service core consumes.
type dbStore struct {
	db *sql.DB
}

var _ courtroom.BanStore = (*dbStore)(nil)
var _ courtroom.UserStore = (*dbStore)(nil)

// IsBanned reports whether either identifier matches a ban still in
// effect. An until value of 0 is a permanent ban.
func (d *dbStore) IsBanned(ipid, hwid string) (bool, string, error) {
	rows, err := d.db.Query(
		`select reason, until from bans where ipid = ? or (hwid <> '' and hwid = ?)`,
		ipid, hwid)
	if err != nil {
		return false, "", errors.Wrap(err, "querying bans")
	}
	defer rows.Close()

	now := time.Now().Unix()
	for rows.Next() {
		var reason string
		var until int64
		if err := rows.Scan(&reason, &until); err != nil {
			return false, "", errors.Wrap(err, "reading ban record")
		}
		if until == 0 || until > now {
			return true, reason, nil
		}
	}
	return false, "", errors.Wrap(rows.Err(), "iterating bans")
}

func (d *dbStore) RecordBan(b courtroom.Ban) error {
	var until int64
	if !b.Until.IsZero() {
		until = b.Until.Unix()
	}
	_, err := d.db.Exec(
		`insert into bans (ipid, hwid, reason, moderator, until) values (?, ?, ?, ?, ?)`,
		b.IPID, b.HWID, b.Reason, b.Moderator, until)
	return errors.Wrap(err, "recording ban")
}

func (d *dbStore) Authenticate(username, password string) (bool, error) {
	var stored string
	err := d.db.QueryRow(
		`select password_hash from users where username = ?`, username).Scan(&stored)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "looking up user")
	}
	sum := sha256.Sum256([]byte(password))
	hash := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(hash), []byte(stored)) == 1, nil
}

func (d *dbStore) RoleMask(username string) (acl.Permission, error) {
	var mask uint64
	err := d.db.QueryRow(
		`select permissions from users where username = ?`, username).Scan(&mask)
	if err == sql.ErrNoRows {
		return acl.None, nil
	}
	if err != nil {
		return acl.None, errors.Wrap(err, "looking up role")
	}
	return acl.Permission(mask), nil
}

func (d *dbStore) SetRoleMask(username string, mask acl.Permission) error {
	res, err := d.db.Exec(
		`update users set permissions = ? where username = ?`, uint64(mask), username)
	if err != nil {
		return errors.Wrap(err, "updating role")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("no such user %q", username)
	}
	return nil
}
