// Package identity splits the host's single committer-info string into
// the (name, email, time, tz-offset) tuple a log record needs.
package identity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Identity is a parsed committer identity, ready to be copied into a log
// record.
type Identity struct {
	Name     string
	Email    string
	When     time.Time
	TZOffset int // seconds east of UTC, matching the record's tz-offset field
}

// Split parses a committer-info string of the form
//
//	Jane Doe <jane@example.com> 1700000000 +0200
//
// which is the format host callbacks such as CommitterInfo() return.
func Split(raw string) (Identity, error) {
	lt := strings.LastIndexByte(raw, '<')
	gt := strings.LastIndexByte(raw, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return Identity{}, fmt.Errorf("identity: malformed committer info %q", raw)
	}

	name := strings.TrimSpace(raw[:lt])
	email := strings.TrimSpace(raw[lt+1 : gt])
	rest := strings.Fields(raw[gt+1:])
	if len(rest) != 2 {
		return Identity{}, fmt.Errorf("identity: malformed committer info %q: expected \"<epoch> <tz>\"", raw)
	}

	epoch, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: bad timestamp in %q: %w", raw, err)
	}

	offset, err := parseTZ(rest[1])
	if err != nil {
		return Identity{}, fmt.Errorf("identity: bad tz offset in %q: %w", raw, err)
	}

	return Identity{
		Name:     name,
		Email:    email,
		When:     time.Unix(epoch, 0).UTC(),
		TZOffset: offset,
	}, nil
}

// parseTZ parses a git-style "+HHMM"/"-HHMM" offset into seconds east of UTC.
func parseTZ(s string) (int, error) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("expected +HHMM or -HHMM, got %q", s)
	}
	hh, err := strconv.Atoi(s[1:3])
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(s[3:5])
	if err != nil {
		return 0, err
	}
	secs := hh*3600 + mm*60
	if s[0] == '-' {
		secs = -secs
	}
	return secs, nil
}

// Format renders an Identity back into the "Name <email> epoch +zone"
// wire form used by reflog consumers (the counterpart to Split, used when
// surfacing a log record's committer string to a ForEachReflogEnt
// callback).
func Format(id Identity) string {
	sign := byte('+')
	off := id.TZOffset
	if off < 0 {
		sign = '-'
		off = -off
	}
	return fmt.Sprintf("%s <%s> %d %c%02d%02d", id.Name, id.Email, id.When.Unix(), sign, off/3600, (off%3600)/60)
}
